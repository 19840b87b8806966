// Package collection crawls storefront collection pages without a browser.
// It covers the common case where listings are server-rendered; scripted
// storefronts go through the scraper package instead.
package collection

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/razoraze123/dolibar/internal/scraper"
)

type Config struct {
	LinkSelector string
	UserAgent    string
	// MaxPages caps how many ?page=N listings are visited.
	MaxPages int
	Delay    time.Duration
	Timeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		LinkSelector: "div.product-card__info h3.product-card__title a",
		UserAgent:    "ScrapImageBot/1.0",
		MaxPages:     10,
		Delay:        time.Second,
		Timeout:      15 * time.Second,
	}
}

type Crawler struct {
	cfg    Config
	logger *slog.Logger
}

func NewCrawler(cfg Config) *Crawler {
	return &Crawler{
		cfg:    cfg,
		logger: slog.Default().With("component", "collection_crawler"),
	}
}

// PageURLs expands a collection URL into its numbered pages, page 1 first.
func PageURLs(collectionURL string, pages int) ([]string, error) {
	parsed, err := url.Parse(collectionURL)
	if err != nil {
		return nil, fmt.Errorf("parse collection url: %w", err)
	}

	urls := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		query := parsed.Query()
		if page == 1 {
			query.Del("page")
		} else {
			query.Set("page", fmt.Sprintf("%d", page))
		}
		parsed.RawQuery = query.Encode()
		urls = append(urls, parsed.String())
	}
	return urls, nil
}

// Crawl visits the collection's numbered pages and returns every product
// link found, in listing order. Crawling stops early at the first page
// without any product link.
func (c *Crawler) Crawl(collectionURL string) ([]scraper.ProductLink, error) {
	if err := scraper.ValidateURL(collectionURL); err != nil {
		return nil, err
	}
	base, err := url.Parse(collectionURL)
	if err != nil {
		return nil, fmt.Errorf("parse collection url: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(c.cfg.UserAgent),
		colly.AllowedDomains(base.Hostname()),
	)
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      c.cfg.Delay,
	})

	var links []scraper.ProductLink
	pageHadLinks := false

	collector.OnHTML(c.cfg.LinkSelector, func(e *colly.HTMLElement) {
		pageHadLinks = true
		links = append(links, scraper.ProductLink{
			Name: strings.TrimSpace(e.Text),
			URL:  e.Request.AbsoluteURL(e.Attr("href")),
		})
	})

	var lastErr error
	collector.OnError(func(r *colly.Response, err error) {
		lastErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
	})

	pages, err := PageURLs(collectionURL, c.cfg.MaxPages)
	if err != nil {
		return nil, err
	}

	for i, pageURL := range pages {
		pageHadLinks = false
		if err := collector.Visit(pageURL); err != nil {
			return links, fmt.Errorf("visit %s: %w", pageURL, err)
		}
		collector.Wait()

		if lastErr != nil {
			if i == 0 {
				return nil, lastErr
			}
			break
		}
		if !pageHadLinks {
			c.logger.Info("empty listing page, stopping", "page", i+1)
			break
		}
	}

	c.logger.Info("collection crawled", "products", len(links))
	return links, nil
}
