package scraper

import (
	"context"
	"fmt"
)

// FetchDetails fetches every detail page concurrently. Results match the
// order of urls. In tolerant mode failed pages are recorded on the run and
// carry their error; in strict mode any failure fails the call.
func (s *Scraper) FetchDetails(ctx context.Context, urls []string) ([]Result, error) {
	results, err := s.fetcher.GetAll(ctx, urls, PhaseDetail)
	if err != nil {
		s.recordBatch(err, "detail")
		return nil, fmt.Errorf("fetch detail pages: %w", err)
	}
	for _, res := range results {
		if res.Err != nil {
			s.recordFailure(res.URL, "detail", res.Err)
		}
	}
	return results, nil
}
