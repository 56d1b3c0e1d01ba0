// Package parser turns fetched pages into listing records.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-apartments/models"
)

var (
	spaceRun     = regexp.MustCompile(`\s+`)
	leadingFloat = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ValidateRecord ensures an assembled record can be persisted.
func ValidateRecord(r *models.ListingRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	id := r.Listing.ID
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("record missing listing id")
	}
	for i, u := range r.Units {
		if u.ListingID != id {
			return fmt.Errorf("unit %d belongs to %q, want %q", i, u.ListingID, id)
		}
	}
	for i, rv := range r.Reviews {
		if rv.ListingID != id {
			return fmt.Errorf("review %d belongs to %q, want %q", i, rv.ListingID, id)
		}
	}
	for i, img := range r.Images {
		if img.ListingID != id {
			return fmt.Errorf("image %d belongs to %q, want %q", i, img.ListingID, id)
		}
	}
	return nil
}

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(text string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}

// RatingToNumeric extracts the first number from a rating label such as
// "4 out of 5 stars".
func RatingToNumeric(rating string) float64 {
	m := leadingFloat.FindString(rating)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseAvailableDate parses the availability timestamp of a unit. An empty
// string yields nil without error.
func ParseAvailableDate(text string) (*time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", text)
}
