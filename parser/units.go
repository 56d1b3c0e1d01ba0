package parser

import (
	"fmt"

	"github.com/aluiziolira/go-scrape-apartments/models"
)

// buildUnits maps every entry of the payload's rentals array to a Unit. An
// entry that is not an object, or has no rental key, is skipped with an item
// warning.
func buildUnits(listingID string, obj map[string]any, warnings *Warnings) []models.Unit {
	raw, ok := lookup(obj, "rentals")
	if !ok || raw == nil {
		warnings.add(&FieldExtractionError{Scope: "listing", Field: "rentals", Err: errFieldMissing})
		return nil
	}
	rentals, ok := raw.([]any)
	if !ok {
		warnings.add(&FieldExtractionError{Scope: "listing", Field: "rentals", Err: fmt.Errorf("%w: %T", errFieldType, raw)})
		return nil
	}

	units := make([]models.Unit, 0, len(rentals))
	for i, entry := range rentals {
		rental, ok := entry.(map[string]any)
		if !ok {
			warnings.add(&ItemExtractionError{Kind: "unit", Index: i, Err: fmt.Errorf("%w: %T", errFieldType, entry)})
			continue
		}
		unit, err := buildUnit(listingID, rental, fmt.Sprintf("rentals[%d]", i), warnings)
		if err != nil {
			warnings.add(&ItemExtractionError{Kind: "unit", Index: i, Err: err})
			continue
		}
		units = append(units, unit)
	}
	return units
}

func buildUnit(listingID string, rental map[string]any, scope string, warnings *Warnings) (models.Unit, error) {
	r := newFieldReader(rental, scope, warnings)

	id := r.OptionalString("RentalKey")
	if id == "" {
		return models.Unit{}, fmt.Errorf("rental key: %w", errFieldMissing)
	}

	dateText := r.OptionalString("AvailableDate")
	available, err := ParseAvailableDate(dateText)
	if err != nil {
		warnings.add(&FieldExtractionError{Scope: scope, Field: "AvailableDate", Err: err})
	}

	return models.Unit{
		ListingID:         listingID,
		ID:                id,
		UnitNumber:        r.OptionalString("UnitNumber"),
		Name:              r.String("Name"),
		Beds:              r.Float("Beds"),
		Baths:             r.Float("Baths"),
		MaxRent:           r.Float("MaxRent"),
		Deposit:           r.OptionalString("Deposit"),
		SquareFeet:        r.Int("SquareFeet"),
		MaxSquareFeet:     r.Int("MaxSquareFeet"),
		AvailableDateText: r.OptionalString("AvailableDateText"),
		AvailableDate:     available,
		Availability:      r.OptionalString("AvailabilityStatus"),
		UnitCount:         r.Int("UnitCount"),
		IsNew:             r.Bool("IsNew"),
		SpecialtyType:     r.OptionalString("SpecialtyType"),
		PricingType:       r.OptionalString("PricingType"),
		Description:       r.OptionalString("Description"),
		ImageURI:          r.OptionalString("ImageUri"),
		InteriorAmenities: r.Raw("InteriorAmenities"),
	}, nil
}
