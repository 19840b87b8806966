package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/razoraze123/dolibar/internal/browser"
	"github.com/razoraze123/dolibar/internal/publish"
)

// Variant pairs one variant control value with the gallery image it shows.
type Variant struct {
	Name     string
	ImageURL string
}

// Result is one complete extraction run. Variants keep DOM encounter order;
// the result is never mutated after Resolve returns.
type Result struct {
	Title    string
	Variants []Variant
}

// Map returns the variant mapping as name -> image URL.
func (r *Result) Map() map[string]string {
	m := make(map[string]string, len(r.Variants))
	for _, v := range r.Variants {
		m[v.Name] = v.ImageURL
	}
	return m
}

type Config struct {
	TitleSelector    string
	ControlSelector  string
	GallerySelector  string
	NamesSelector    string
	PageLoadTimeout  time.Duration
	SelectionTimeout time.Duration
	PollInterval     time.Duration
	SettleDelayMin   time.Duration
	SettleDelayMax   time.Duration
}

func DefaultConfig() Config {
	return Config{
		TitleSelector:    "h1",
		ControlSelector:  ".variant-picker__option-values input[type='radio'].sr-only",
		GallerySelector:  ".product-gallery__media.is-selected img",
		NamesSelector:    ".variant-picker__option-values span.sr-only",
		PageLoadTimeout:  10 * time.Second,
		SelectionTimeout: 5 * time.Second,
		PollInterval:     50 * time.Millisecond,
		SettleDelayMin:   100 * time.Millisecond,
		SettleDelayMax:   200 * time.Millisecond,
	}
}

type Engine struct {
	cfg    Config
	logger *slog.Logger
	sleep  func(time.Duration)
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: slog.Default().With("component", "variants"),
		sleep:  time.Sleep,
	}
}

// Resolve navigates to a product page and returns its title together with
// the variant -> image mapping. The mapping is all-or-nothing: if any
// variant's selection stalls the whole run fails, because a truncated
// mapping is indistinguishable from a complete one downstream.
//
// The page is closed on every exit path.
func (e *Engine) Resolve(ctx context.Context, page browser.Page, url string) (*Result, error) {
	defer page.Close()

	if err := ValidateURL(url); err != nil {
		return nil, err
	}

	e.logger.Info("loading product page", "url", url)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	if err := page.WaitFor(e.cfg.TitleSelector, e.cfg.PageLoadTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s never appeared", ErrPageLoadTimeout, e.cfg.TitleSelector)
	}

	title, err := e.readTitle(page)
	if err != nil {
		return nil, err
	}

	controls, err := page.FindAll(e.cfg.ControlSelector)
	if err != nil {
		return nil, fmt.Errorf("enumerate variant controls: %w", err)
	}

	// A product with no variant picker is legitimate, not an error.
	result := &Result{Title: title}
	seen := make(map[string]struct{}, len(controls))

	for _, ctrl := range controls {
		name, err := ctrl.Attribute("value")
		if err != nil {
			return nil, fmt.Errorf("read variant value: %w", err)
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			// First-seen image wins.
			continue
		}

		src, err := e.resolveImage(ctx, page, ctrl, name)
		if err != nil {
			return nil, err
		}

		src = publish.NormalizeScheme(src)
		seen[name] = struct{}{}
		result.Variants = append(result.Variants, Variant{Name: name, ImageURL: src})
		e.logger.Info("variant resolved", "name", name, "image", src)
	}

	e.logger.Info("extraction complete", "title", title, "variants", len(result.Variants))
	return result, nil
}

// resolveImage returns the gallery src shown for one control, selecting it
// first when it is not already active.
func (e *Engine) resolveImage(ctx context.Context, page browser.Page, ctrl browser.Element, name string) (string, error) {
	oldSrc, err := e.gallerySrc(page)
	if err != nil {
		return "", err
	}

	selected, err := ctrl.Selected()
	if err != nil {
		return "", fmt.Errorf("variant %q: %w", name, err)
	}
	if selected {
		// The carousel already shows this variant's image.
		return oldSrc, nil
	}

	if err := ctrl.Click(); err != nil {
		return "", fmt.Errorf("select variant %q: %w", name, err)
	}

	// Brief randomized settle so the poll does not hammer the DOM
	// mid-transition. Correctness comes from the change wait below.
	e.sleep(e.settleDelay())

	return e.waitForImageChange(ctx, page, oldSrc, name)
}

// waitForImageChange polls the gallery image until its src differs from the
// value captured before the click. Waiting for mere presence would pass
// immediately on the stale image, since the carousel element never leaves
// the DOM.
func (e *Engine) waitForImageChange(ctx context.Context, page browser.Page, oldSrc, name string) (string, error) {
	deadline := time.Now().Add(e.cfg.SelectionTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		src, err := e.gallerySrc(page)
		if err == nil && src != "" && src != oldSrc {
			return src, nil
		}

		if time.Now().After(deadline) {
			return "", &SelectionTimeoutError{Variant: name}
		}
		e.sleep(e.cfg.PollInterval)
	}
}

func (e *Engine) gallerySrc(page browser.Page) (string, error) {
	img, err := page.Find(e.cfg.GallerySelector)
	if err != nil {
		return "", fmt.Errorf("locate gallery image: %w", err)
	}
	src, err := img.Attribute("src")
	if err != nil {
		return "", fmt.Errorf("read gallery src: %w", err)
	}
	return src, nil
}

func (e *Engine) readTitle(page browser.Page) (string, error) {
	elem, err := page.Find(e.cfg.TitleSelector)
	if err != nil {
		return "", fmt.Errorf("locate title: %w", err)
	}
	text, err := elem.Text()
	if err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *Engine) settleDelay() time.Duration {
	min, max := e.cfg.SettleDelayMin, e.cfg.SettleDelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// ResolveNames extracts the title and the plain variant labels, without
// driving the image carousel.
func (e *Engine) ResolveNames(ctx context.Context, page browser.Page, url string) (string, []string, error) {
	defer page.Close()

	if err := ValidateURL(url); err != nil {
		return "", nil, err
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	e.logger.Info("loading product page", "url", url)
	if err := page.Navigate(url); err != nil {
		return "", nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitFor(e.cfg.NamesSelector, e.cfg.PageLoadTimeout); err != nil {
		return "", nil, fmt.Errorf("%w: %s never appeared", ErrPageLoadTimeout, e.cfg.NamesSelector)
	}

	title, err := e.readTitle(page)
	if err != nil {
		return "", nil, err
	}

	elems, err := page.FindAll(e.cfg.NamesSelector)
	if err != nil {
		return "", nil, fmt.Errorf("enumerate variant labels: %w", err)
	}

	var names []string
	for _, elem := range elems {
		text, err := elem.Text()
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			names = append(names, text)
		}
	}

	e.logger.Info("variants detected", "count", len(names))
	return title, names, nil
}
