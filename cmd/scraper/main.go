package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/razoraze123/dolibar/internal/browser"
	"github.com/razoraze123/dolibar/internal/collection"
	"github.com/razoraze123/dolibar/internal/config"
	"github.com/razoraze123/dolibar/internal/export"
	"github.com/razoraze123/dolibar/internal/images"
	"github.com/razoraze123/dolibar/internal/profiles"
	"github.com/razoraze123/dolibar/internal/publish"
	"github.com/razoraze123/dolibar/internal/queue"
	"github.com/razoraze123/dolibar/internal/ratelimit"
	"github.com/razoraze123/dolibar/internal/scraper"
	"github.com/razoraze123/dolibar/internal/service"
)

func main() {
	var (
		mode        = flag.String("mode", "variants", "What to scrape: variants, names, images, price, description, collection, links")
		urls        = flag.String("urls", "", "Comma-separated product or collection URLs")
		inputFile   = flag.String("file", "", "File containing URLs (one per line, # for comments)")
		folder      = flag.String("folder", "", "Local image folder to publish links for (links mode)")
		output      = flag.String("output", "stdout", "Output format: stdout, txt, json, csv")
		outDir      = flag.String("out", ".", "Directory for exported files")
		profilePath = flag.String("profiles", "", "Site profile JSON file")
		headless    = flag.Bool("headless", true, "Run the browser headless")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Publishing links for an already-downloaded folder needs neither URLs
	// nor a browser.
	if *mode == "links" && *folder != "" {
		if err := runFolderLinks(cfg, *folder, *output, *outDir); err != nil {
			logger.Error("folder link generation failed", "folder", *folder, "error", err)
			os.Exit(1)
		}
		return
	}

	taskQueue := queue.NewInMemoryQueue()
	defer taskQueue.Close()

	if err := loadTasks(taskQueue, queue.Mode(*mode), *urls, *inputFile); err != nil {
		logger.Error("failed to load tasks", "error", err)
		os.Exit(1)
	}
	if taskQueue.Size() == 0 {
		fmt.Println("No URLs to process. Use -urls or -file.")
		flag.Usage()
		os.Exit(1)
	}

	var store *profiles.Store
	if *profilePath != "" {
		if store, err = profiles.NewStore(*profilePath); err != nil {
			logger.Error("failed to load site profiles", "error", err)
			os.Exit(1)
		}
	}

	// Static collection crawling never needs a browser.
	if *mode == "links" {
		runLinks(taskQueue, cfg, *output, *outDir, logger)
		return
	}

	b, err := browser.New(&browser.Options{
		Headless:       *headless && cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	svc := service.New(b, cfg, store, nil, nil)
	limiter := ratelimit.NewAdaptiveLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	logger.Info("starting scrape", "mode", *mode, "tasks", taskQueue.Size())

	for taskQueue.Size() > 0 {
		if ctx.Err() != nil {
			logger.Info("cancelled, exiting")
			return
		}

		task, err := taskQueue.Pop(ctx)
		if err != nil {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		logger.Info("processing", "url", task.URL)
		if err := processTask(ctx, svc, cfg, task, *output, *outDir); err != nil {
			logger.Error("task failed", "url", task.URL, "error", err)
			limiter.RecordError()

			if task.Retries < cfg.Scraper.MaxRetries {
				task.Retries++
				taskQueue.Push(task)
				logger.Info("retrying", "url", task.URL, "attempt", task.Retries)
			}
			continue
		}
		limiter.RecordSuccess()
	}

	logger.Info("scrape finished")
}

func processTask(ctx context.Context, svc *service.Service, cfg *config.Config, task *queue.Task, output, outDir string) error {
	switch task.Mode {
	case queue.ModeVariants:
		result, err := svc.Variants(ctx, task.URL)
		if err != nil {
			return err
		}
		return exportVariants(*result, cfg, output, outDir)

	case queue.ModeNames:
		title, names, err := svc.Names(ctx, task.URL)
		if err != nil {
			return err
		}
		fmt.Printf("Product: %s\n", title)
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		return nil

	case queue.ModeImages:
		summary, err := svc.Images(ctx, task.URL, printProgress)
		if err != nil {
			return err
		}
		fmt.Printf("\n%d downloaded, %d skipped -> %s\n", summary.Downloaded, summary.Skipped, summary.Folder)
		if summary.FirstImage != "" {
			fmt.Printf("first image: %s\n", summary.FirstImage)
		}
		return nil

	case queue.ModePrice:
		price, err := svc.Price(ctx, task.URL)
		if err != nil {
			return err
		}
		fmt.Printf("%s : %s\n", task.URL, price)
		return nil

	case queue.ModeDescription:
		html, err := svc.Description(ctx, task.URL)
		if err != nil {
			return err
		}
		fmt.Println(html)
		return nil

	case queue.ModeCollection:
		links, err := svc.Collection(ctx, task.URL)
		if err != nil {
			return err
		}
		return exportLinks(links, output, outDir)

	default:
		return fmt.Errorf("unknown mode %q", task.Mode)
	}
}

func runLinks(taskQueue *queue.InMemoryQueue, cfg *config.Config, output, outDir string, logger *slog.Logger) {
	crawlerCfg := collection.DefaultConfig()
	crawlerCfg.UserAgent = cfg.Images.UserAgent
	crawler := collection.NewCrawler(crawlerCfg)

	for _, task := range queue.Drain(taskQueue) {
		links, err := crawler.Crawl(task.URL)
		if err != nil {
			logger.Error("crawl failed", "url", task.URL, "error", err)
			continue
		}
		if err := exportLinks(links, output, outDir); err != nil {
			logger.Error("export failed", "url", task.URL, "error", err)
		}
	}
}

func runFolderLinks(cfg *config.Config, folder, output, outDir string) error {
	if cfg.Publish.Domain == "" {
		return fmt.Errorf("folder link generation needs PUBLISH_DOMAIN")
	}

	links, err := publish.FolderLinks(cfg.Publish.Domain, cfg.Publish.DatePath, folder)
	if err != nil {
		return err
	}

	if output == "txt" {
		return export.WriteURLsTxt(filepath.Join(outDir, "published_links.txt"), links)
	}
	for _, link := range links {
		fmt.Println(link)
	}
	return nil
}

func exportVariants(result scraper.Result, cfg *config.Config, output, outDir string) error {
	switch output {
	case "txt":
		return export.WriteVariantsTxt(filepath.Join(outDir, "variants.txt"), result)
	case "csv":
		if cfg.Publish.Domain == "" {
			return fmt.Errorf("csv export needs PUBLISH_DOMAIN")
		}
		return export.WritePublishCSV(filepath.Join(outDir, "variants.csv"), result,
			cfg.Publish.Domain, cfg.Publish.DatePath)
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	default:
		fmt.Printf("Product: %s\n", result.Title)
		for _, v := range result.Variants {
			fmt.Printf("  %s : %s\n", v.Name, v.ImageURL)
		}
		return nil
	}
}

func exportLinks(links []scraper.ProductLink, output, outDir string) error {
	switch output {
	case "txt":
		return export.WriteLinksTxt(filepath.Join(outDir, "links.txt"), links)
	case "json":
		return export.WriteLinksJSON(filepath.Join(outDir, "links.json"), links)
	case "csv":
		return export.WriteLinksCSV(filepath.Join(outDir, "links.csv"), links)
	default:
		for _, link := range links {
			fmt.Printf("%s : %s\n", link.Name, link.URL)
		}
		return nil
	}
}

func printProgress(completed, total int) {
	if total == 0 {
		return
	}
	fmt.Printf("\r%d/%d (%.0f%%)", completed, total, images.Fraction(completed, total)*100)
}

func loadTasks(q queue.Queue, mode queue.Mode, urls, inputFile string) error {
	var list []string
	if urls != "" {
		list = append(list, strings.Split(urls, ",")...)
	}
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("read input file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				list = append(list, line)
			}
		}
	}

	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		q.Push(&queue.Task{
			ID:        uuid.New().String(),
			URL:       raw,
			Mode:      mode,
			CreatedAt: time.Now(),
		})
	}
	return nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
