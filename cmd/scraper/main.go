package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-apartments/config"
	"github.com/aluiziolira/go-scrape-apartments/models"
	"github.com/aluiziolira/go-scrape-apartments/pipeline"
	"github.com/aluiziolira/go-scrape-apartments/scraper"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}

	d := config.DefaultConfig()
	envs := envDefaults{}
	locationDefault := envs.stringOr("SCRAPER_LOCATION", d.Location)
	baseDefault := envs.stringOr("SCRAPER_BASE_URL", d.BaseURL)
	galleryDefault := envs.stringOr("SCRAPER_GALLERY_URL", d.GalleryURL)
	pagesDefault := envs.intOr("SCRAPER_PAGES", d.MaxPages)
	parallelDefault := envs.intOr("SCRAPER_PARALLEL", d.Parallelism)
	timeoutDefault := envs.durationOr("SCRAPER_TIMEOUT", d.Timeout)
	attemptsDefault := envs.intOr("SCRAPER_PROBE_ATTEMPTS", d.ProbeAttempts)
	fanOutDefault := envs.stringOr("SCRAPER_FAN_OUT", d.FanOutMode)
	dedupeDefault := envs.boolOr("SCRAPER_DEDUPE_LINKS", d.DedupeLinks)
	skipImagesDefault := envs.boolOr("SCRAPER_SKIP_IMAGES", d.SkipImages)
	outputDefault := envs.stringOr("SCRAPER_OUTPUT", d.OutputPath)
	formatDefault := envs.stringOr("SCRAPER_FORMAT", d.OutputFormat)
	databaseDefault := envs.stringOr("DATABASE_URL", d.DatabaseURL)
	metricsDefault := envs.stringOr("SCRAPER_METRICS_ADDR", d.MetricsAddr)
	if envs.err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", envs.err)
		return 1
	}

	location := flag.String("location", locationDefault, "Location slug to scrape (e.g. tucson-az)")
	baseURL := flag.String("base-url", baseDefault, "Listings site base URL")
	galleryURL := flag.String("gallery-url", galleryDefault, "Image gallery endpoint")
	maxPages := flag.Int("pages", pagesDefault, "Maximum result pages to scrape")
	parallelism := flag.Int("parallel", parallelDefault, "Number of concurrent requests")
	delay := flag.Duration("delay", d.Delay, "Delay between requests")
	randomDelay := flag.Duration("random-delay", d.RandomDelay, "Random jitter added to delay")
	timeout := flag.Duration("timeout", timeoutDefault, "Per-request timeout")
	probeAttempts := flag.Int("probe-attempts", attemptsDefault, "Attempts for the page-range probe")
	retryBackoff := flag.Duration("retry-backoff", d.RetryBackoff, "Initial retry backoff (0 retries immediately)")
	retryBackoffMax := flag.Duration("retry-backoff-max", d.RetryBackoffMax, "Maximum retry backoff")
	fanOut := flag.String("fan-out", fanOutDefault, "Batch failure mode: strict or tolerant")
	dedupeLinks := flag.Bool("dedupe-links", dedupeDefault, "Drop repeated detail links across result pages")
	skipImages := flag.Bool("skip-images", skipImagesDefault, "Skip image gallery requests")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputPath := flag.String("output", outputDefault, "Output path (directory for csv, file for json)")
	outputFormat := flag.String("format", formatDefault, "Output format: csv, json, dual, or postgres")
	databaseURL := flag.String("database-url", databaseDefault, "Postgres connection string for postgres output")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.Location = *location
	cfg.BaseURL = *baseURL
	cfg.GalleryURL = *galleryURL
	cfg.MaxPages = *maxPages
	cfg.Parallelism = *parallelism
	cfg.Delay = *delay
	cfg.RandomDelay = *randomDelay
	cfg.Timeout = *timeout
	cfg.ProbeAttempts = *probeAttempts
	cfg.RetryBackoff = *retryBackoff
	cfg.RetryBackoffMax = *retryBackoffMax
	cfg.FanOutMode = strings.ToLower(*fanOut)
	cfg.DedupeLinks = *dedupeLinks
	cfg.SkipImages = *skipImages
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputPath = *outputPath
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.DatabaseURL = *databaseURL
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.String("location", cfg.Location),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
		slog.String("fan_out", cfg.FanOutMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	writer, err := createWriter(ctx, cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, runErr := s.Run(ctx, cfg.Location, p)
	closeErr := p.Close()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if result != nil {
		printSummary(result, time.Since(startTime), cfg, p.GetMetrics())
	}
	if runErr != nil {
		slog.Error("scraping failed", slog.Any("error", runErr))
		return 1
	}
	if closeErr != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", closeErr))
		return 1
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		return 1
	}
	return 0
}

// envDefaults reads flag defaults from the environment and keeps the first parse error.
type envDefaults struct {
	err error
}

func (e *envDefaults) stringOr(key, def string) string {
	if value, ok := config.EnvString(key); ok {
		return value
	}
	return def
}

func (e *envDefaults) intOr(key string, def int) int {
	value, ok, err := config.EnvInt(key)
	return pick(e, value, ok, err, def)
}

func (e *envDefaults) boolOr(key string, def bool) bool {
	value, ok, err := config.EnvBool(key)
	return pick(e, value, ok, err, def)
}

func (e *envDefaults) durationOr(key string, def time.Duration) time.Duration {
	value, ok, err := config.EnvDuration(key)
	return pick(e, value, ok, err, def)
}

func pick[T any](e *envDefaults, value T, ok bool, err error, def T) T {
	if err != nil {
		if e.err == nil {
			e.err = err
		}
		return def
	}
	if !ok {
		return def
	}
	return value
}

func createWriter(ctx context.Context, cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(jsonPath(cfg.OutputPath))
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputPath)
	case "dual":
		return pipeline.NewDualWriter(cfg.OutputPath, jsonPath(cfg.OutputPath))
	case "postgres":
		return pipeline.NewPostgresWriter(ctx, cfg.DatabaseURL, cfg.Parallelism)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

// jsonPath appends the JSONL extension when path has none.
func jsonPath(path string) string {
	if filepath.Ext(path) == "" {
		return path + ".jsonl"
	}
	return path
}

func printSummary(result *models.ScraperResult, duration time.Duration, cfg *config.Config, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}
	perSec := 0.0
	if duration.Seconds() > 0 {
		perSec = float64(written) / duration.Seconds()
	}

	fmt.Printf("  Run ID:        %s\n", result.RunID)
	fmt.Printf("  Location:      %s\n", result.Location)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Links:         %d\n", result.LinkCount)
	fmt.Printf("  Details:       %d\n", result.DetailCount)
	fmt.Printf("  Listings:      %d assembled, %d written\n", result.TotalCount, written)
	fmt.Printf("  Success rate:  %.2f%%\n", successRate(result))
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Failed reqs:   %d\n", result.RequestFailures)
	fmt.Printf("  Warnings:      %d\n", result.WarningCount)
	fmt.Printf("  Image errors:  %d\n", result.ImageFailures)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Listings/sec:  %.2f\n", perSec)
	if cfg.OutputFormat == "postgres" {
		fmt.Printf("  Output:        postgres\n")
	} else {
		fmt.Printf("  Output:        %s (%s)\n", cfg.OutputPath, cfg.OutputFormat)
	}
	fmt.Println(separator)
}

// successRate is the share of issued requests that returned a 2xx response.
func successRate(result *models.ScraperResult) float64 {
	if result.RequestCount == 0 {
		return 0
	}
	return float64(result.RequestCount-result.RequestFailures) / float64(result.RequestCount) * 100
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
