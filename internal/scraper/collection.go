package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/razoraze123/dolibar/internal/browser"
)

// ProductLink is one entry of a collection listing.
type ProductLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type CollectionConfig struct {
	LinkSelector string
	NextSelector string
	PageTimeout  time.Duration
	// MaxPages caps pagination; 0 follows next links until none remain.
	MaxPages  int
	DelayMin  time.Duration
	DelayMax  time.Duration
	PollEvery time.Duration
}

func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		LinkSelector: "div.product-card__info h3.product-card__title a",
		NextSelector: `a[rel="next"]`,
		PageTimeout:  10 * time.Second,
		DelayMin:     time.Second,
		DelayMax:     2500 * time.Millisecond,
		PollEvery:    100 * time.Millisecond,
	}
}

// CollectionScraper walks every page of a storefront collection and
// collects the product names and links in listing order.
type CollectionScraper struct {
	cfg    CollectionConfig
	logger *slog.Logger
	sleep  func(time.Duration)
}

func NewCollectionScraper(cfg CollectionConfig) *CollectionScraper {
	return &CollectionScraper{
		cfg:    cfg,
		logger: slog.Default().With("component", "collection"),
		sleep:  time.Sleep,
	}
}

// Scrape paginates through the collection at startURL. Pagination stops
// when no next link is present or when navigation to the next page never
// settles. The page is closed on every exit path.
func (s *CollectionScraper) Scrape(ctx context.Context, page browser.Page, startURL string) ([]ProductLink, error) {
	defer page.Close()

	if err := ValidateURL(startURL); err != nil {
		return nil, err
	}

	s.logger.Info("opening collection", "url", startURL)
	if err := page.Navigate(startURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	s.sleep(s.politeDelay())

	base, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}

	var results []ProductLink
	for pageNum := 1; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.logger.Info("processing collection page", "page", pageNum)
		if err := page.WaitFor(s.cfg.LinkSelector, s.cfg.PageTimeout); err != nil {
			return nil, fmt.Errorf("%w: %s never appeared", ErrPageLoadTimeout, s.cfg.LinkSelector)
		}

		links, err := s.collectLinks(page, base)
		if err != nil {
			return nil, err
		}
		results = append(results, links...)

		if s.cfg.MaxPages > 0 && pageNum >= s.cfg.MaxPages {
			s.logger.Info("page cap reached", "pages", pageNum)
			break
		}
		if !s.nextPage(page) {
			s.logger.Info("pagination finished", "pages", pageNum)
			break
		}
	}

	s.logger.Info("collection scraped", "products", len(results))
	return results, nil
}

func (s *CollectionScraper) collectLinks(page browser.Page, base *url.URL) ([]ProductLink, error) {
	elems, err := page.FindAll(s.cfg.LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("enumerate product links: %w", err)
	}

	links := make([]ProductLink, 0, len(elems))
	for _, elem := range elems {
		name, err := elem.Text()
		if err != nil {
			continue
		}
		href, _ := elem.Attribute("href")
		if href == "" {
			href, _ = elem.Attribute("data-href")
		}
		links = append(links, ProductLink{
			Name: strings.TrimSpace(name),
			URL:  s.absoluteURL(base, href),
		})
	}
	return links, nil
}

func (s *CollectionScraper) absoluteURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// nextPage follows the rel=next link and waits for the navigation to
// settle. Returns false when the collection has no further page.
func (s *CollectionScraper) nextPage(page browser.Page) bool {
	next, err := page.Find(s.cfg.NextSelector)
	if err != nil {
		return false
	}
	href, err := next.Attribute("href")
	if err != nil || href == "" {
		return false
	}

	before := page.URL()
	if err := next.Click(); err != nil {
		s.logger.Warn("next page click failed", "error", err)
		return false
	}

	deadline := time.Now().Add(s.cfg.PageTimeout)
	for page.URL() == before {
		if time.Now().After(deadline) {
			s.logger.Warn("navigation to next page never settled", "href", href)
			return false
		}
		s.sleep(s.cfg.PollEvery)
	}

	s.sleep(s.politeDelay())
	return true
}

func (s *CollectionScraper) politeDelay() time.Duration {
	if s.cfg.DelayMax <= s.cfg.DelayMin {
		return s.cfg.DelayMin
	}
	return s.cfg.DelayMin + time.Duration(rand.Int63n(int64(s.cfg.DelayMax-s.cfg.DelayMin)))
}
