package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParsePageRange reads the total page count from the page-range indicator,
// e.g. "Page 1 of 7" yields 7.
func ParsePageRange(doc *goquery.Document) (int, error) {
	sel := doc.Find(PageRangeSelector).First()
	if sel.Length() == 0 {
		return 0, &PageRangeParseError{Err: errors.New("indicator not found")}
	}
	text := strings.TrimSpace(sel.Text())
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, &PageRangeParseError{Text: text, Err: errors.New("indicator is empty")}
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, &PageRangeParseError{Text: text, Err: err}
	}
	if n <= 0 {
		return 0, &PageRangeParseError{Text: text, Err: fmt.Errorf("page count %d is not positive", n)}
	}
	return n, nil
}
