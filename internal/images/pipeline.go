package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/razoraze123/dolibar/internal/browser"
	"github.com/razoraze123/dolibar/internal/scraper"
)

type Config struct {
	// Selector matches the gallery img elements to download.
	Selector  string
	ParentDir string
	UserAgent string
	// MaxWorkers bounds concurrent remote fetches.
	MaxWorkers   int
	FetchTimeout time.Duration
	PageTimeout  time.Duration
	// PhrasePath optionally points at a JSON index of alternative phrases
	// used to rename downloaded files.
	PhrasePath string
}

func DefaultConfig() Config {
	return Config{
		Selector:     ".product-gallery__media-list img",
		ParentDir:    "images",
		UserAgent:    "ScrapImageBot/1.0",
		MaxWorkers:   4,
		FetchTimeout: 10 * time.Second,
		PageTimeout:  10 * time.Second,
	}
}

// Summary reports the outcome of one page batch.
type Summary struct {
	Folder     string
	FirstImage string
	Downloaded int
	Skipped    int
}

// Pipeline downloads every gallery image of a product page: inline data
// URIs are written as they are discovered, remote URLs fan out to a fixed
// pool of fetch workers. Individual failures are skipped, never fatal.
type Pipeline struct {
	cfg     Config
	client  *http.Client
	phrases *PhraseLoader
	metrics *Metrics
	logger  *slog.Logger
}

func NewPipeline(cfg Config) *Pipeline {
	return NewPipelineWithMetrics(cfg, prometheus.NewRegistry())
}

// NewPipelineWithMetrics registers the pipeline counters on reg instead of
// a private registry.
func NewPipelineWithMetrics(cfg Config, reg prometheus.Registerer) *Pipeline {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	return &Pipeline{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		phrases: NewPhraseLoader(),
		metrics: NewMetrics(reg),
		logger:  slog.Default().With("component", "images"),
	}
}

type fetchTask struct {
	index  int
	source imageSource
}

// Download fetches all images matched by the configured selector on url.
// The observer, if any, receives (0, 0) before any work and a cumulative
// (completed, total) update for every element, skips included, so the last
// call always reads (total, total). The page is closed on every exit path.
func (p *Pipeline) Download(ctx context.Context, page browser.Page, url string, observer Observer) (Summary, error) {
	defer page.Close()
	started := time.Now()
	defer func() { p.metrics.Duration.Observe(time.Since(started).Seconds()) }()

	tracker := NewTracker(observer)
	tracker.Begin()

	if err := scraper.ValidateURL(url); err != nil {
		return Summary{}, err
	}

	// Reservations live and die with the batch, so overlapping batches on
	// one pipeline cannot wipe each other's claims.
	registry := NewPathRegistry()

	p.logger.Info("opening product page", "url", url)
	if err := page.Navigate(url); err != nil {
		return Summary{}, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitFor(p.cfg.Selector, p.cfg.PageTimeout); err != nil {
		return Summary{}, fmt.Errorf("%w: %s never appeared", scraper.ErrPageLoadTimeout, p.cfg.Selector)
	}

	product := scraper.FindProductName(page)
	folder, err := SafeFolder(p.cfg.ParentDir, product)
	if err != nil {
		return Summary{}, err
	}

	elems, err := page.FindAll(p.cfg.Selector)
	if err != nil {
		return Summary{}, fmt.Errorf("enumerate gallery: %w", err)
	}
	tracker.SetTotal(len(elems))
	p.logger.Info("gallery enumerated", "product", product, "images", len(elems))

	// results holds the written path per element, indexed by discovery
	// order, so the first image is deterministic however fetches finish.
	results := make([]string, len(elems))
	tasks := make(chan fetchTask, len(elems))

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.MaxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if path, err := p.fetchRemote(ctx, registry, folder, task.source); err != nil {
					p.skip(task.source.remote, "fetch", err)
				} else {
					results[task.index] = path
					p.metrics.Downloads.WithLabelValues("remote").Inc()
				}
				tracker.Increment()
			}
		}()
	}

	for i, elem := range elems {
		if err := ctx.Err(); err != nil {
			close(tasks)
			wg.Wait()
			return Summary{}, err
		}

		source, err := resolveSource(elem, i)
		if err != nil {
			p.skip(fmt.Sprintf("element %d", i), "source", err)
			tracker.Increment()
			continue
		}

		if source.inline() {
			path := registry.Reserve(folder, source.filename)
			if err := os.WriteFile(path, source.data, 0o644); err != nil {
				p.skip(source.filename, "write", err)
			} else {
				results[i] = path
				p.metrics.Downloads.WithLabelValues("inline").Inc()
			}
			tracker.Increment()
			continue
		}

		tasks <- fetchTask{index: i, source: source}
	}
	close(tasks)
	wg.Wait()

	p.applyPhrase(registry, folder, results)

	summary := Summary{Folder: folder}
	for _, path := range results {
		if path == "" {
			summary.Skipped++
			continue
		}
		summary.Downloaded++
		if summary.FirstImage == "" {
			summary.FirstImage = path
		}
	}

	p.logger.Info("batch finished",
		"folder", folder,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped)
	return summary, nil
}

// fetchRemote downloads one image over HTTP, reserving its destination
// before any network I/O so concurrent tasks never contend for a name.
func (p *Pipeline) fetchRemote(ctx context.Context, registry *PathRegistry, folder string, source imageSource) (string, error) {
	path := registry.Reserve(folder, source.filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.remote, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d for %s", ErrImageFetch, resp.StatusCode, source.remote)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	return path, nil
}

func (p *Pipeline) skip(subject, reason string, err error) {
	p.metrics.Skips.WithLabelValues(reason).Inc()
	p.logger.Warn("image skipped", "subject", subject, "reason", reason, "error", err)
}

// applyPhrase renames the batch after alternative phrases from the
// configured index, when the product has any. Each file draws its own
// phrase. The product key is the folder name with underscores read as
// spaces.
func (p *Pipeline) applyPhrase(registry *PathRegistry, folder string, results []string) {
	if p.cfg.PhrasePath == "" {
		return
	}
	index := p.phrases.Load(p.cfg.PhrasePath)

	key := strings.ReplaceAll(filepath.Base(folder), "_", " ")
	if !index.Has(key) {
		p.logger.Warn("no alt phrase for product", "product", key)
		return
	}

	for i, path := range results {
		if path == "" {
			continue
		}
		base := CleanFilename(index.PhraseFor(key))
		renamed := registry.Reserve(folder, base+filepath.Ext(path))
		if err := os.Rename(path, renamed); err != nil {
			p.logger.Warn("rename failed", "from", path, "error", err)
			continue
		}
		results[i] = renamed
	}
}
