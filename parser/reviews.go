package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-apartments/models"
)

func buildReviews(doc *goquery.Document, listingID string, warnings *Warnings) []models.Review {
	var reviews []models.Review
	doc.Find(ReviewSelector).Each(func(i int, s *goquery.Selection) {
		review, err := extractReview(s, listingID)
		if err != nil {
			warnings.add(&ItemExtractionError{Kind: "review", Index: i, Err: err})
			return
		}
		reviews = append(reviews, review)
	})
	return reviews
}

// extractReview requires the rating, title and content elements; the id and
// date are best effort.
func extractReview(s *goquery.Selection, listingID string) (models.Review, error) {
	rating := s.Find(ReviewRatingSelector).First()
	if rating.Length() == 0 {
		return models.Review{}, fmt.Errorf("missing %s", ReviewRatingSelector)
	}
	ratingText, ok := rating.Attr(ReviewRatingAttr)
	if !ok {
		return models.Review{}, fmt.Errorf("%s missing %s attribute", ReviewRatingSelector, ReviewRatingAttr)
	}

	title := s.Find(ReviewTitleSelector).First()
	if title.Length() == 0 {
		return models.Review{}, fmt.Errorf("missing %s", ReviewTitleSelector)
	}
	content := s.Find(ReviewContentSelector).First()
	if content.Length() == 0 {
		return models.Review{}, fmt.Errorf("missing %s", ReviewContentSelector)
	}

	id, _ := s.Attr(ReviewIDAttr)
	ratingText = strings.TrimSpace(ratingText)

	return models.Review{
		ListingID:  listingID,
		ID:         strings.TrimSpace(id),
		RatingText: ratingText,
		Rating:     RatingToNumeric(ratingText),
		Title:      NormalizeText(title.Text()),
		Content:    NormalizeText(content.Text()),
		Date:       NormalizeText(s.Find(ReviewDateSelector).First().Text()),
	}, nil
}
