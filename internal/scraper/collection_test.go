package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razoraze123/dolibar/internal/browser"
)

type listingLink struct {
	name     string
	href     string
	dataHref string
}

func (l *listingLink) Attribute(name string) (string, error) {
	switch name {
	case "href":
		return l.href, nil
	case "data-href":
		return l.dataHref, nil
	}
	return "", nil
}

func (l *listingLink) Text() (string, error)   { return l.name, nil }
func (l *listingLink) HTML() (string, error)   { return "", nil }
func (l *listingLink) Selected() (bool, error) { return false, nil }
func (l *listingLink) Click() error            { return nil }

type listingPage struct {
	links   []*listingLink
	nextURL string
}

// collectionPage serves a sequence of listing pages, advancing when the
// next link is clicked.
type collectionPage struct {
	pages      []listingPage
	current    int
	currentURL string
	closed     bool
}

func (p *collectionPage) Navigate(url string) error { p.currentURL = url; return nil }

func (p *collectionPage) WaitFor(selector string, timeout time.Duration) error { return nil }

func (p *collectionPage) Find(selector string) (browser.Element, error) {
	if selector == DefaultCollectionConfig().NextSelector {
		if next := p.pages[p.current].nextURL; next != "" {
			return &nextLink{page: p, href: next}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, selector)
}

func (p *collectionPage) FindAll(selector string) ([]browser.Element, error) {
	links := p.pages[p.current].links
	elems := make([]browser.Element, len(links))
	for i, l := range links {
		elems[i] = l
	}
	return elems, nil
}

func (p *collectionPage) Content() (string, error) { return "", nil }
func (p *collectionPage) URL() string              { return p.currentURL }
func (p *collectionPage) Close() error             { p.closed = true; return nil }

type nextLink struct {
	page *collectionPage
	href string
}

func (l *nextLink) Attribute(name string) (string, error) {
	if name == "href" {
		return l.href, nil
	}
	return "", nil
}

func (l *nextLink) Text() (string, error)   { return "", nil }
func (l *nextLink) HTML() (string, error)   { return "", nil }
func (l *nextLink) Selected() (bool, error) { return false, nil }

func (l *nextLink) Click() error {
	l.page.current++
	l.page.currentURL = l.href
	return nil
}

func newTestCollectionScraper() *CollectionScraper {
	cfg := DefaultCollectionConfig()
	cfg.DelayMin = 0
	cfg.DelayMax = 0
	cfg.PollEvery = time.Millisecond
	s := NewCollectionScraper(cfg)
	s.sleep = func(time.Duration) {}
	return s
}

func TestCollectionScrapeSinglePage(t *testing.T) {
	page := &collectionPage{pages: []listingPage{{
		links: []*listingLink{
			{name: " Bob Ficelle ", href: "/products/bob-ficelle"},
			{name: "Bob Marine", href: "https://shop.example.com/products/bob-marine"},
		},
	}}}

	links, err := newTestCollectionScraper().Scrape(context.Background(), page, "https://shop.example.com/collections/bobs")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, ProductLink{Name: "Bob Ficelle", URL: "https://shop.example.com/products/bob-ficelle"}, links[0])
	assert.Equal(t, ProductLink{Name: "Bob Marine", URL: "https://shop.example.com/products/bob-marine"}, links[1])
	assert.True(t, page.closed)
}

func TestCollectionScrapeFollowsPagination(t *testing.T) {
	page := &collectionPage{pages: []listingPage{
		{
			links:   []*listingLink{{name: "Bob Uni", href: "/products/bob-uni"}},
			nextURL: "https://shop.example.com/collections/bobs?page=2",
		},
		{
			links: []*listingLink{{name: "Bob Raye", href: "/products/bob-raye"}},
		},
	}}

	links, err := newTestCollectionScraper().Scrape(context.Background(), page, "https://shop.example.com/collections/bobs")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "Bob Uni", links[0].Name)
	assert.Equal(t, "https://shop.example.com/products/bob-raye", links[1].URL)
}

func TestCollectionScrapeMaxPages(t *testing.T) {
	page := &collectionPage{pages: []listingPage{
		{
			links:   []*listingLink{{name: "Bob Un", href: "/products/bob-un"}},
			nextURL: "https://shop.example.com/collections/bobs?page=2",
		},
		{
			links: []*listingLink{{name: "Bob Deux", href: "/products/bob-deux"}},
		},
	}}

	s := newTestCollectionScraper()
	s.cfg.MaxPages = 1

	links, err := s.Scrape(context.Background(), page, "https://shop.example.com/collections/bobs")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "Bob Un", links[0].Name)
}

func TestCollectionScrapeDataHrefFallback(t *testing.T) {
	page := &collectionPage{pages: []listingPage{{
		links: []*listingLink{{name: "Bob Cache", dataHref: "/products/bob-cache"}},
	}}}

	links, err := newTestCollectionScraper().Scrape(context.Background(), page, "https://shop.example.com/collections/bobs")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://shop.example.com/products/bob-cache", links[0].URL)
}

func TestCollectionScrapeRejectsBadURL(t *testing.T) {
	page := &collectionPage{pages: []listingPage{{}}}

	_, err := newTestCollectionScraper().Scrape(context.Background(), page, "not-a-url")
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.True(t, page.closed)
}
