package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/razoraze123/dolibar/internal/browser"
)

const (
	DefaultPriceSelector       = ".price"
	DefaultDescriptionSelector = ".rte"

	// fallbackProductName is used when a page exposes no usable name at all.
	fallbackProductName = "produit_woo"
)

// FieldExtractor reads a single element off a product page: the price text,
// the raw description HTML, or any other one-selector field.
type FieldExtractor struct {
	Timeout time.Duration
	logger  *slog.Logger
}

func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{
		Timeout: 10 * time.Second,
		logger:  slog.Default().With("component", "field_extractor"),
	}
}

// Text returns the trimmed inner text of the first element matching
// selector on url. The page is closed on every exit path.
func (x *FieldExtractor) Text(ctx context.Context, page browser.Page, url, selector string) (string, error) {
	elem, err := x.locate(ctx, page, url, selector)
	if err != nil {
		return "", err
	}
	defer page.Close()

	text, err := elem.Text()
	if err != nil {
		return "", fmt.Errorf("read text of %q: %w", selector, err)
	}
	x.logger.Info("field extracted", "selector", selector, "url", url)
	return strings.TrimSpace(text), nil
}

// HTML returns the trimmed inner HTML of the first element matching
// selector on url. The page is closed on every exit path.
func (x *FieldExtractor) HTML(ctx context.Context, page browser.Page, url, selector string) (string, error) {
	elem, err := x.locate(ctx, page, url, selector)
	if err != nil {
		return "", err
	}
	defer page.Close()

	html, err := elem.HTML()
	if err != nil {
		return "", fmt.Errorf("read html of %q: %w", selector, err)
	}
	x.logger.Info("field extracted", "selector", selector, "url", url)
	return strings.TrimSpace(html), nil
}

func (x *FieldExtractor) locate(ctx context.Context, page browser.Page, url, selector string) (browser.Element, error) {
	if err := ValidateURL(url); err != nil {
		page.Close()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		page.Close()
		return nil, err
	}

	if err := page.Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitFor(selector, x.Timeout); err != nil {
		page.Close()
		return nil, fmt.Errorf("%w: %s never appeared", ErrPageLoadTimeout, selector)
	}

	elem, err := page.Find(selector)
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("locate %q: %w", selector, err)
	}
	return elem, nil
}

// FindProductName resolves the display name of an already-loaded product
// page, trying og:title, then the document title, then the first h1. Pages
// without any of those get a generic fallback rather than an error.
func FindProductName(page browser.Page) string {
	html, err := page.Content()
	if err != nil {
		return fallbackProductName
	}
	return productNameFromHTML(html)
}

func productNameFromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fallbackProductName
	}

	if content, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if name := strings.TrimSpace(content); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(doc.Find("title").First().Text()); name != "" {
		return name
	}
	if name := strings.TrimSpace(doc.Find("h1").First().Text()); name != "" {
		return name
	}
	return fallbackProductName
}
