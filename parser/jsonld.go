package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type structuredData struct {
	About []struct {
		URL string `json:"url"`
	} `json:"about"`
}

// ParseDetailLinks returns the detail-page URLs listed in the first JSON-LD
// block that carries an "about" list, in document order.
func ParseDetailLinks(doc *goquery.Document) ([]string, error) {
	var (
		links []string
		found bool
	)
	doc.Find(StructuredDataSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data structuredData
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		if data.About == nil {
			return true
		}
		found = true
		for _, entry := range data.About {
			if u := strings.TrimSpace(entry.URL); u != "" {
				links = append(links, u)
			}
		}
		return false
	})
	if !found {
		return nil, ErrStructuredDataNotFound
	}
	return links, nil
}
