// Package models defines data structures for the scraper.
package models

import "time"

// Listing is one property assembled from a detail page.
type Listing struct {
	ID              string   `csv:"id" json:"id"`
	Name            string   `csv:"name" json:"name"`
	URL             string   `csv:"url" json:"url"`
	Phone           string   `csv:"phone" json:"phone"`
	Street          string   `csv:"street" json:"street"`
	City            string   `csv:"city" json:"city"`
	State           string   `csv:"state" json:"state"`
	Zip             string   `csv:"zip" json:"zip"`
	Country         string   `csv:"country" json:"country"`
	County          string   `csv:"county" json:"county"`
	Neighborhood    string   `csv:"neighborhood" json:"neighborhood"`
	DMA             string   `csv:"dma" json:"dma"`
	Latitude        float64  `csv:"latitude" json:"latitude"`
	Longitude       float64  `csv:"longitude" json:"longitude"`
	PropertyType    string   `csv:"property_type" json:"property_type"`
	Specialties     []string `csv:"specialties" json:"specialties"`
	PropertyWebsite string   `csv:"property_website" json:"property_website"`
	VendorName      string   `csv:"vendor_name" json:"vendor_name"`
}

// Unit is one rental record of a listing.
type Unit struct {
	ListingID         string     `csv:"listing_id" json:"listing_id"`
	ID                string     `csv:"id" json:"id"`
	UnitNumber        string     `csv:"unit_number" json:"unit_number"`
	Name              string     `csv:"name" json:"name"`
	Beds              float64    `csv:"beds" json:"beds"`
	Baths             float64    `csv:"baths" json:"baths"`
	MaxRent           float64    `csv:"max_rent" json:"max_rent"`
	Deposit           string     `csv:"deposit" json:"deposit"`
	SquareFeet        int        `csv:"square_feet" json:"square_feet"`
	MaxSquareFeet     int        `csv:"max_square_feet" json:"max_square_feet"`
	AvailableDateText string     `csv:"available_date_text" json:"available_date_text"`
	AvailableDate     *time.Time `csv:"available_date" json:"available_date,omitempty"`
	Availability      string     `csv:"availability" json:"availability"`
	UnitCount         int        `csv:"unit_count" json:"unit_count"`
	IsNew             bool       `csv:"is_new" json:"is_new"`
	SpecialtyType     string     `csv:"specialty_type" json:"specialty_type"`
	PricingType       string     `csv:"pricing_type" json:"pricing_type"`
	Description       string     `csv:"description" json:"description"`
	ImageURI          string     `csv:"image_uri" json:"image_uri"`
	InteriorAmenities string     `csv:"interior_amenities" json:"interior_amenities"`
}

// Review is one resident review shown on a detail page.
type Review struct {
	ListingID  string  `csv:"listing_id" json:"listing_id"`
	ID         string  `csv:"id" json:"id"`
	RatingText string  `csv:"rating_text" json:"rating_text"`
	Rating     float64 `csv:"rating" json:"rating"`
	Title      string  `csv:"title" json:"title"`
	Content    string  `csv:"content" json:"content"`
	Date       string  `csv:"date" json:"date"`
}

// Image is one photo from the listing's gallery.
type Image struct {
	ListingID string `csv:"listing_id" json:"listing_id"`
	ID        string `csv:"id" json:"id"`
	Alt       string `csv:"alt" json:"alt"`
	URL       string `csv:"url" json:"url"`
}

// ListingRecord groups a listing with every child entity scraped for it.
type ListingRecord struct {
	RunID     string    `json:"run_id"`
	SourceURL string    `json:"source_url"`
	Listing   Listing   `json:"listing"`
	Units     []Unit    `json:"units"`
	Reviews   []Review  `json:"reviews"`
	Images    []Image   `json:"images"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	RunID           string
	Location        string
	StartTime       time.Time
	EndTime         time.Time
	PageCount       int
	LinkCount       int
	DetailCount     int
	TotalCount      int
	ErrorCount      int
	WarningCount    int
	FailedURLs      []string
	ErrorsByType    map[string]int
	RetryCount      int
	RequestCount    int
	RequestFailures int
	ImageFailures   int
}
