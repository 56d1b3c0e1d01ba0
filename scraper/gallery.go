package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apartments/models"
	"github.com/aluiziolira/go-scrape-apartments/parser"
	"github.com/aluiziolira/go-scrape-apartments/payload"
)

// ResolveImages scrapes the anti-crawler token from doc, posts the gallery
// request for listingID and parses the returned fragment. The token is read
// again on every call. Malformed gallery items come back as warnings.
func (s *Scraper) ResolveImages(ctx context.Context, doc *goquery.Document, listingID string) ([]models.Image, parser.Warnings, error) {
	token, err := payload.ExtractToken(doc, s.cfg.TokenMarker, s.cfg.TokenProperty)
	if err != nil {
		return nil, nil, fmt.Errorf("gallery token: %w", err)
	}

	body, err := json.Marshal(parser.GalleryRequest{ListingKey: listingID})
	if err != nil {
		return nil, nil, fmt.Errorf("encode gallery request: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("X-Requested-With", "XMLHttpRequest")
	hdr.Set(s.cfg.TokenHeader, token)

	resp, err := s.fetcher.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    s.cfg.GalleryURL,
		Header: hdr,
		Body:   body,
		Phase:  PhaseGallery,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gallery request: %w", err)
	}

	fragment, err := parser.ParseGalleryResponse(resp)
	if err != nil {
		return nil, nil, err
	}
	return parser.ParseGallery(fragment, listingID)
}
