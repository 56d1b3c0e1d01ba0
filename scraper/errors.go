package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/aluiziolira/go-scrape-apartments/parser"
	"github.com/aluiziolira/go-scrape-apartments/payload"
)

// TransportError indicates the request never produced an HTTP response:
// DNS, connection, or timeout failures.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	// The collector reports client timeouts as a plain url.Error string.
	return strings.Contains(e.Err.Error(), "Client.Timeout exceeded")
}

// HTTPStatusError indicates a response outside the 2xx range.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.StatusCode, e.URL)
}

// URLError pairs a URL from a batch with the error it produced.
type URLError struct {
	URL string
	Err error
}

func (e *URLError) Error() string {
	return fmt.Sprintf("%s: %v", e.URL, e.Err)
}

func (e *URLError) Unwrap() error {
	return e.Err
}

// BatchError reports the failures of a strict fan-out. Failures are in input order.
type BatchError struct {
	Total    int
	Failures []*URLError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d requests failed, first %v", len(e.Failures), e.Total, e.Failures[0])
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

func classifyError(err error, statusCode int, url string) error {
	if err == nil && statusCode == 0 {
		return nil
	}
	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return &HTTPStatusError{StatusCode: statusCode, URL: url}
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return err
	}
	if err == nil {
		return nil
	}
	return &TransportError{URL: url, Err: err}
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}

	var status *HTTPStatusError
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		}
		return "http_status"
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		if transport.Timeout() {
			return "timeout"
		}
		return "connection"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var notFound *payload.PayloadNotFoundError
	if errors.As(err, &notFound) {
		return "payload_not_found"
	}
	var repair *payload.PayloadRepairError
	if errors.As(err, &repair) {
		return "payload_repair"
	}
	var pageRange *parser.PageRangeParseError
	if errors.As(err, &pageRange) {
		return "page_range"
	}
	if errors.Is(err, parser.ErrStructuredDataNotFound) {
		return "structured_data"
	}
	if errors.Is(err, parser.ErrListingIDMissing) {
		return "listing_id_missing"
	}
	return "other"
}
