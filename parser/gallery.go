package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-apartments/models"
)

// GalleryRequest is the JSON body of the image-gallery call.
type GalleryRequest struct {
	ListingKey      string `json:"ListingKey"`
	HasViewFromUnit bool   `json:"HasViewFromUnit"`
	UnitNumber      string `json:"UnitNumber"`
}

type galleryResponse struct {
	Photos *string `json:"Photos"`
}

// ParseGalleryResponse returns the HTML fragment held in the Photos field.
func ParseGalleryResponse(body []byte) (string, error) {
	var resp galleryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode gallery response: %w", err)
	}
	if resp.Photos == nil {
		return "", errors.New("gallery response has no Photos field")
	}
	return *resp.Photos, nil
}

// ParseGallery turns the gallery fragment's list items into images. Items
// without an id or image element are skipped with a warning.
func ParseGallery(fragment, listingID string) ([]models.Image, Warnings, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, nil, fmt.Errorf("parse gallery fragment: %w", err)
	}

	var (
		images   []models.Image
		warnings Warnings
	)
	doc.Find(GalleryItemSelector).Each(func(i int, s *goquery.Selection) {
		img, err := extractImage(s, listingID)
		if err != nil {
			warnings.add(&ItemExtractionError{Kind: "image", Index: i, Err: err})
			return
		}
		images = append(images, img)
	})
	return images, warnings, nil
}

func extractImage(s *goquery.Selection, listingID string) (models.Image, error) {
	id, _ := s.Attr("id")
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Image{}, errors.New("list item has no id")
	}
	el := s.Find(GalleryImageSelector).First()
	if el.Length() == 0 {
		return models.Image{}, fmt.Errorf("missing %s", GalleryImageSelector)
	}
	url, _ := el.Attr(GalleryURLAttr)
	url = strings.TrimSpace(url)
	if url == "" {
		return models.Image{}, fmt.Errorf("%s missing %s attribute", GalleryImageSelector, GalleryURLAttr)
	}
	alt, _ := el.Attr(GalleryAltAttr)

	return models.Image{
		ListingID: listingID,
		ID:        id,
		Alt:       strings.TrimSpace(alt),
		URL:       url,
	}, nil
}
