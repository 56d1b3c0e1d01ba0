package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apartments/parser"
)

// SearchURL joins the location slug onto base as a directory, e.g.
// https://www.apartments.com/ + tucson-az -> https://www.apartments.com/tucson-az/.
func SearchURL(base, location string) (string, error) {
	location = strings.Trim(strings.TrimSpace(location), "/")
	if location == "" {
		return "", fmt.Errorf("location cannot be empty")
	}
	return joinPath(base, location+"/")
}

// PageURLs builds the URLs of result pages 1..count under searchURL.
func PageURLs(searchURL string, count int) ([]string, error) {
	urls := make([]string, 0, count)
	for n := 1; n <= count; n++ {
		u, err := joinPath(searchURL, strconv.Itoa(n)+"/")
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func joinPath(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// DiscoverPageCount fetches searchURL with bounded retry and returns the total
// number of result pages it advertises.
func (s *Scraper) DiscoverPageCount(ctx context.Context, searchURL string) (int, error) {
	body, err := s.fetcher.GetWithRetry(ctx, searchURL, PhaseSearch)
	if err != nil {
		return 0, fmt.Errorf("discover page count: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse search page: %w", err)
	}
	count, err := parser.ParsePageRange(doc)
	if err != nil {
		return 0, fmt.Errorf("discover page count: %w", err)
	}
	return count, nil
}
