package parser

// CSS selectors and attributes for the listings site.
const (
	PageRangeSelector      = "span.pageRange"
	StructuredDataSelector = `script[type="application/ld+json"]`

	LanguageSwitchSelector  = "a.js-languageSwitch"
	CanonicalSelector       = `link[rel="canonical"]`
	VendorSelector          = `[aria-label="Property Management Company"]`
	PropertyWebsiteSelector = "a.propertyWebsiteLink"

	ReviewSelector        = "div.reviewContainer"
	ReviewIDAttr          = "data-reviewid"
	ReviewRatingSelector  = "div.reviewRating"
	ReviewRatingAttr      = "aria-label"
	ReviewTitleSelector   = "h3.reviewTitle"
	ReviewContentSelector = "p.reviewText"
	ReviewDateSelector    = "span.reviewDate"

	GalleryItemSelector  = "li"
	GalleryImageSelector = "div.aspectRatioElement"
	GalleryURLAttr       = "data-image"
	GalleryAltAttr       = "data-alt"
)
