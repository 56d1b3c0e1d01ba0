package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apartments/config"
	"github.com/aluiziolira/go-scrape-apartments/parser"
)

// HarvestLinks fetches result pages 1..pageCount under searchURL and returns
// the detail-page URLs listed in their structured data, in page order.
// Repeated URLs are kept unless DedupeLinks is set.
func (s *Scraper) HarvestLinks(ctx context.Context, searchURL string, pageCount int) ([]string, error) {
	pages, err := PageURLs(searchURL, pageCount)
	if err != nil {
		return nil, err
	}

	results, err := s.fetcher.GetAll(ctx, pages, PhaseSearch)
	if err != nil {
		s.recordBatch(err, "search")
		return nil, fmt.Errorf("fetch result pages: %w", err)
	}

	var links []string
	for _, res := range results {
		if res.Err != nil {
			s.recordFailure(res.URL, "search", res.Err)
			continue
		}
		s.incPages()

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
		if err == nil {
			var found []string
			found, err = parser.ParseDetailLinks(doc)
			links = append(links, found...)
		}
		if err != nil {
			s.recordFailure(res.URL, "search", err)
			if s.cfg.FanOutMode != config.FanOutTolerant {
				return nil, fmt.Errorf("harvest %s: %w", res.URL, err)
			}
		}
	}

	if s.cfg.DedupeLinks {
		before := len(links)
		links = dedupe(links)
		if dropped := before - len(links); dropped > 0 {
			slog.Debug("dropped repeated detail links", slog.Int("dropped", dropped))
		}
	}
	return links, nil
}

func dedupe(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := links[:0:0]
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
