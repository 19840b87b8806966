package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/razoraze123/dolibar/internal/browser"
	"github.com/razoraze123/dolibar/internal/collection"
	"github.com/razoraze123/dolibar/internal/config"
	"github.com/razoraze123/dolibar/internal/database"
	"github.com/razoraze123/dolibar/internal/images"
	"github.com/razoraze123/dolibar/internal/jobs"
	"github.com/razoraze123/dolibar/internal/profiles"
	"github.com/razoraze123/dolibar/internal/queue"
	"github.com/razoraze123/dolibar/internal/scraper"
)

// Sessions opens fresh browser pages. *browser.Browser satisfies it.
type Sessions interface {
	NewSession() (browser.Page, error)
}

// ProductStore persists resolved products. *database.DB satisfies it.
type ProductStore interface {
	SaveProductVariants(ctx context.Context, p *database.Product, variants []database.Variant) error
}

// Service runs the scraping operations over a shared browser. It is the
// single entry point both the CLI and the HTTP API go through.
type Service struct {
	sessions  Sessions
	engine    *scraper.Engine
	extractor *scraper.FieldExtractor
	collector *scraper.CollectionScraper
	crawler   *collection.Crawler
	pipeline  *images.Pipeline
	profiles  *profiles.Store
	products  ProductStore
	logger    *slog.Logger
}

// New assembles the service. store and products may be nil when no site
// profiles or database are configured.
func New(sessions Sessions, cfg *config.Config, store *profiles.Store, products ProductStore, reg prometheus.Registerer) *Service {
	engineCfg := scraper.DefaultConfig()
	engineCfg.PageLoadTimeout = cfg.Scraper.PageTimeout

	imagesCfg := images.DefaultConfig()
	imagesCfg.ParentDir = cfg.Images.ParentDir
	imagesCfg.MaxWorkers = cfg.Images.MaxWorkers
	imagesCfg.FetchTimeout = cfg.Images.FetchTimeout
	imagesCfg.UserAgent = cfg.Images.UserAgent
	imagesCfg.PhrasePath = cfg.Images.PhrasePath
	imagesCfg.PageTimeout = cfg.Scraper.PageTimeout

	crawlerCfg := collection.DefaultConfig()
	crawlerCfg.UserAgent = cfg.Images.UserAgent

	return &Service{
		sessions:  sessions,
		engine:    scraper.NewEngine(engineCfg),
		extractor: scraper.NewFieldExtractor(),
		collector: scraper.NewCollectionScraper(scraper.DefaultCollectionConfig()),
		crawler:   collection.NewCrawler(crawlerCfg),
		pipeline:  images.NewPipelineWithMetrics(imagesCfg, reg),
		profiles:  store,
		products:  products,
		logger:    slog.Default().With("component", "service"),
	}
}

// Variants resolves each product variant to the gallery image it selects.
func (s *Service) Variants(ctx context.Context, url string) (*scraper.Result, error) {
	page, err := s.sessions.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return s.engine.Resolve(ctx, page, url)
}

// Names lists the product's variant labels without driving the carousel.
func (s *Service) Names(ctx context.Context, url string) (string, []string, error) {
	page, err := s.sessions.NewSession()
	if err != nil {
		return "", nil, fmt.Errorf("open session: %w", err)
	}
	return s.engine.ResolveNames(ctx, page, url)
}

// Images downloads the product gallery and reports per-item progress.
func (s *Service) Images(ctx context.Context, url string, observer images.Observer) (images.Summary, error) {
	page, err := s.sessions.NewSession()
	if err != nil {
		return images.Summary{}, fmt.Errorf("open session: %w", err)
	}
	return s.pipeline.Download(ctx, page, url, observer)
}

// Price reads the product price text.
func (s *Service) Price(ctx context.Context, url string) (string, error) {
	page, err := s.sessions.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return s.extractor.Text(ctx, page, url, s.selectorFor(url, selectorPrice))
}

// Description reads the raw product description HTML.
func (s *Service) Description(ctx context.Context, url string) (string, error) {
	page, err := s.sessions.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return s.extractor.HTML(ctx, page, url, s.selectorFor(url, selectorDescription))
}

// Collection walks a collection listing with the browser, following the
// pagination links.
func (s *Service) Collection(ctx context.Context, url string) ([]scraper.ProductLink, error) {
	page, err := s.sessions.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return s.collector.Scrape(ctx, page, url)
}

// CollectionStatic crawls a server-rendered collection without a browser.
func (s *Service) CollectionStatic(url string) ([]scraper.ProductLink, error) {
	return s.crawler.Crawl(url)
}

type selectorKind int

const (
	selectorPrice selectorKind = iota
	selectorDescription
)

// selectorFor resolves the CSS selector for a field, preferring the site
// profile matching the URL.
func (s *Service) selectorFor(url string, kind selectorKind) string {
	if s.profiles != nil {
		if profile, ok := s.profiles.ForURL(url); ok {
			switch kind {
			case selectorPrice:
				if profile.PriceSelector != "" {
					return profile.PriceSelector
				}
			case selectorDescription:
				if profile.DescriptionSelector != "" {
					return profile.DescriptionSelector
				}
			}
		}
	}
	if kind == selectorPrice {
		return scraper.DefaultPriceSelector
	}
	return scraper.DefaultDescriptionSelector
}

// Run dispatches one queued task by mode, satisfying jobs.Runner.
func (s *Service) Run(ctx context.Context, task *queue.Task) (json.RawMessage, error) {
	switch task.Mode {
	case queue.ModeVariants:
		result, err := s.Variants(ctx, task.URL)
		if err != nil {
			return nil, err
		}
		s.persistVariants(ctx, task.URL, result)
		return json.Marshal(result)
	case queue.ModeNames:
		title, names, err := s.Names(ctx, task.URL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"title": title, "variants": names})
	case queue.ModeImages:
		summary, err := s.Images(ctx, task.URL, nil)
		if err != nil {
			return nil, err
		}
		return json.Marshal(summary)
	case queue.ModePrice:
		price, err := s.Price(ctx, task.URL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"price": price})
	case queue.ModeDescription:
		html, err := s.Description(ctx, task.URL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"description": html})
	case queue.ModeCollection:
		links, err := s.Collection(ctx, task.URL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(links)
	default:
		return nil, fmt.Errorf("unknown mode %q", task.Mode)
	}
}

// persistVariants mirrors a resolved product into the database. Failures
// are logged, never surfaced: persistence is a side channel of the scrape.
func (s *Service) persistVariants(ctx context.Context, url string, result *scraper.Result) {
	if s.products == nil {
		return
	}

	product := &database.Product{URL: url, Title: result.Title}
	variants := make([]database.Variant, len(result.Variants))
	for i, v := range result.Variants {
		variants[i] = database.Variant{Name: v.Name, ImageURL: v.ImageURL}
	}

	if err := s.products.SaveProductVariants(ctx, product, variants); err != nil {
		s.logger.Warn("product persistence failed", "url", url, "error", err)
		return
	}
	s.logger.Info("product persisted", "url", url, "variants", len(variants))
}

var _ jobs.Runner = (*Service)(nil)
