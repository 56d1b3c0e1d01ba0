package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-apartments/models"
)

func buildListing(doc *goquery.Document, r fieldReader, pageURL string) models.Listing {
	return models.Listing{
		ID:              r.String("listingId"),
		Name:            r.String("listingName"),
		URL:             listingURL(doc, pageURL),
		Phone:           r.String("phoneNumber"),
		Street:          r.String("listingAddress"),
		City:            r.String("listingCity"),
		State:           r.String("listingState"),
		Zip:             r.String("listingZip"),
		Country:         r.OptionalString("listingCountry"),
		County:          r.OptionalString("listingCounty"),
		Neighborhood:    r.OptionalString("listingNeighborhood"),
		DMA:             r.OptionalString("listingDMA"),
		Latitude:        r.Float("geo.latitude"),
		Longitude:       r.Float("geo.longitude"),
		PropertyType:    r.OptionalString("propertyType"),
		Specialties:     r.Strings("listingSpecialties"),
		PropertyWebsite: firstNonEmpty(r.OptionalString("propertyWebsite"), resolve(pageURL, attr(doc, PropertyWebsiteSelector, "href"))),
		VendorName:      firstNonEmpty(r.OptionalString("vendorName"), text(doc, VendorSelector)),
	}
}

// listingURL prefers the language-switch anchor, then the canonical link,
// then the URL the page was fetched from.
func listingURL(doc *goquery.Document, pageURL string) string {
	return firstNonEmpty(
		resolve(pageURL, attr(doc, LanguageSwitchSelector, "href")),
		resolve(pageURL, attr(doc, CanonicalSelector, "href")),
		pageURL,
	)
}

func resolve(base, ref string) string {
	if ref == "" || base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func text(doc *goquery.Document, selector string) string {
	return NormalizeText(doc.Find(selector).First().Text())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
