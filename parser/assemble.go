package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-apartments/models"
	"github.com/aluiziolira/go-scrape-apartments/payload"
)

// Markers identify the inline script holding the listing payload.
type Markers struct {
	Payload string // substring of the script, e.g. "ProfileStartup"
	Call    string // function receiving the object literal, e.g. "startup.init"
}

// Assembly is the result of parsing one detail page.
type Assembly struct {
	Document *goquery.Document
	Listing  models.Listing
	Units    []models.Unit
	Reviews  []models.Review
	Warnings Warnings
}

// Assemble builds the listing, units and reviews of one detail page. Payload
// errors are returned; field and item problems end up in Warnings.
func Assemble(pageURL, html string, m Markers) (*Assembly, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}
	return AssembleDocument(pageURL, doc, m)
}

// AssembleDocument is Assemble for an already parsed page.
func AssembleDocument(pageURL string, doc *goquery.Document, m Markers) (*Assembly, error) {
	obj, err := payload.Extract(doc, m.Payload, m.Call)
	if err != nil {
		return nil, err
	}

	var warnings Warnings
	listing := buildListing(doc, newFieldReader(obj, "listing", &warnings), pageURL)
	if listing.ID == "" {
		return nil, ErrListingIDMissing
	}

	return &Assembly{
		Document: doc,
		Listing:  listing,
		Units:    buildUnits(listing.ID, obj, &warnings),
		Reviews:  buildReviews(doc, listing.ID, &warnings),
		Warnings: warnings,
	}, nil
}
