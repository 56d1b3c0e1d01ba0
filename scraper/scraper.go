package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-apartments/config"
	"github.com/aluiziolira/go-scrape-apartments/models"
	"github.com/aluiziolira/go-scrape-apartments/parser"
	"github.com/aluiziolira/go-scrape-apartments/pipeline"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Scraper drives discovery, harvesting, detail fetching, assembly and image
// resolution for one location at a time.
type Scraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	Metrics *Metrics

	mu            sync.Mutex
	pageCount     int
	recordCount   int
	errorCount    int
	warningCount  int
	imageFailures int
	failedURLs    []string
	errorsByType  map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:          cfg,
		fetcher:      fetcher,
		Metrics:      metrics,
		errorsByType: make(map[string]int),
	}, nil
}

// Fetcher exposes the underlying fetcher.
func (s *Scraper) Fetcher() *Fetcher {
	return s.fetcher
}

// Run scrapes every listing for location and streams the assembled records
// through p. Failures to discover or harvest abort the run; a detail page
// that cannot be assembled is logged and skipped.
func (s *Scraper) Run(ctx context.Context, location string, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.reset()

	runID := uuid.NewString()
	logger := slog.With(slog.String("run_id", runID), slog.String("location", location))
	result := &models.ScraperResult{RunID: runID, Location: location, StartTime: time.Now()}

	searchURL, err := SearchURL(s.cfg.BaseURL, location)
	if err != nil {
		return s.finish(result), err
	}

	pages, err := s.DiscoverPageCount(ctx, searchURL)
	if err != nil {
		s.recordFailure(searchURL, "discover", err)
		return s.finish(result), err
	}
	if pages > s.cfg.MaxPages {
		logger.Info("capping page count", slog.Int("pages", pages), slog.Int("max_pages", s.cfg.MaxPages))
		pages = s.cfg.MaxPages
	}
	logger.Info("discovered result pages", slog.Int("pages", pages), slog.String("url", searchURL))

	links, err := s.HarvestLinks(ctx, searchURL, pages)
	if err != nil {
		return s.finish(result), err
	}
	result.LinkCount = len(links)
	logger.Info("harvested detail links", slog.Int("links", len(links)))

	details, err := s.FetchDetails(ctx, links)
	if err != nil {
		return s.finish(result), err
	}

	markers := parser.Markers{Payload: s.cfg.PayloadMarker, Call: s.cfg.PayloadCall}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	for _, page := range details {
		if page.Err != nil {
			continue
		}
		result.DetailCount++

		assembly, err := parser.Assemble(page.URL, string(page.Body), markers)
		if err != nil {
			s.recordFailure(page.URL, "assemble", err)
			logger.Error("assemble detail page", slog.String("url", page.URL), slog.Any("error", err))
			continue
		}
		s.recordWarnings(logger, page.URL, assembly.Warnings)

		sourceURL := page.URL
		g.Go(func() error {
			record := &models.ListingRecord{
				RunID:     runID,
				SourceURL: sourceURL,
				Listing:   assembly.Listing,
				Units:     assembly.Units,
				Reviews:   assembly.Reviews,
				ScrapedAt: time.Now(),
			}
			if !s.cfg.SkipImages {
				images, warnings, err := s.ResolveImages(gctx, assembly.Document, assembly.Listing.ID)
				if err != nil {
					s.recordImageFailure(err)
					logger.Warn("resolve images",
						slog.String("listing_id", assembly.Listing.ID),
						slog.Any("error", err),
					)
				} else {
					record.Images = images
					s.Metrics.AddImages(len(images))
				}
				s.recordWarnings(logger, sourceURL, warnings)
			}

			if err := p.Process(record); err != nil {
				if errors.Is(err, pipeline.ErrPipelineClosed) {
					return nil
				}
				return fmt.Errorf("process listing %s: %w", record.Listing.ID, err)
			}
			s.Metrics.IncItems()
			s.mu.Lock()
			s.recordCount++
			s.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return s.finish(result), err
	}
	return s.finish(result), nil
}

func (s *Scraper) finish(result *models.ScraperResult) *models.ScraperResult {
	s.mu.Lock()
	result.PageCount = s.pageCount
	result.TotalCount = s.recordCount
	result.ErrorCount = s.errorCount
	result.WarningCount = s.warningCount
	result.ImageFailures = s.imageFailures
	result.FailedURLs = append([]string(nil), s.failedURLs...)
	result.ErrorsByType = make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		result.ErrorsByType[k] = v
	}
	s.mu.Unlock()

	result.EndTime = time.Now()
	result.RetryCount = s.fetcher.RetryCount()
	result.RequestCount = s.fetcher.RequestCount()
	result.RequestFailures = s.fetcher.FailureCount()
	return result
}

func (s *Scraper) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCount = 0
	s.recordCount = 0
	s.errorCount = 0
	s.warningCount = 0
	s.imageFailures = 0
	s.failedURLs = nil
	s.errorsByType = make(map[string]int)
}

func (s *Scraper) incPages() {
	s.mu.Lock()
	s.pageCount++
	s.mu.Unlock()
}

func (s *Scraper) recordFailure(url, stage string, err error) {
	category := errorTypeLabel(err)
	s.mu.Lock()
	s.errorCount++
	s.errorsByType[category]++
	if url != "" {
		s.failedURLs = append(s.failedURLs, url)
	}
	s.mu.Unlock()
	s.Metrics.IncPageFailure(stage)
}

// recordBatch records every failure carried by a strict fan-out error.
func (s *Scraper) recordBatch(err error, stage string) {
	var batch *BatchError
	if !errors.As(err, &batch) {
		s.recordFailure("", stage, err)
		return
	}
	for _, f := range batch.Failures {
		s.recordFailure(f.URL, stage, f.Err)
	}
}

func (s *Scraper) recordImageFailure(err error) {
	category := errorTypeLabel(err)
	s.mu.Lock()
	s.imageFailures++
	s.errorsByType[category]++
	s.mu.Unlock()
}

func (s *Scraper) recordWarnings(logger *slog.Logger, url string, warnings parser.Warnings) {
	if len(warnings) == 0 {
		return
	}
	s.mu.Lock()
	s.warningCount += len(warnings)
	s.mu.Unlock()
	for _, w := range warnings {
		s.Metrics.IncWarning(parser.Kind(w))
		logger.Warn("extraction warning", slog.String("url", url), slog.Any("error", w))
	}
}
