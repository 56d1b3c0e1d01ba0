package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-apartments/models"
)

// CSV file names written inside the output directory.
const (
	ListingsFile = "listings.csv"
	UnitsFile    = "units.csv"
	ReviewsFile  = "reviews.csv"
	ImagesFile   = "images.csv"
)

var (
	listingHeader = []string{"run_id", "id", "name", "url", "phone", "street", "city", "state", "zip", "country", "county", "neighborhood", "dma", "latitude", "longitude", "property_type", "specialties", "property_website", "vendor_name", "source_url", "scraped_at"}
	unitHeader    = []string{"listing_id", "id", "unit_number", "name", "beds", "baths", "max_rent", "deposit", "square_feet", "max_square_feet", "available_date_text", "available_date", "availability", "unit_count", "is_new", "specialty_type", "pricing_type", "description", "image_uri", "interior_amenities"}
	reviewHeader  = []string{"listing_id", "id", "rating_text", "rating", "title", "content", "date"}
	imageHeader   = []string{"listing_id", "id", "alt", "url"}
)

type csvTable struct {
	file   *os.File
	writer *csv.Writer
}

func newCSVTable(path string, header []string) (*csvTable, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &csvTable{file: f, writer: writer}, nil
}

// CSVWriter writes one CSV file per entity into a directory.
type CSVWriter struct {
	dir      string
	listings *csvTable
	units    *csvTable
	reviews  *csvTable
	images   *csvTable
	mu       sync.Mutex
}

// NewCSVWriter creates dir and the four entity files with their header rows.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}

	cw := &CSVWriter{dir: dir}
	files := []struct {
		table  **csvTable
		name   string
		header []string
	}{
		{&cw.listings, ListingsFile, listingHeader},
		{&cw.units, UnitsFile, unitHeader},
		{&cw.reviews, ReviewsFile, reviewHeader},
		{&cw.images, ImagesFile, imageHeader},
	}
	for _, f := range files {
		table, err := newCSVTable(filepath.Join(dir, f.name), f.header)
		if err != nil {
			cw.closeTables()
			return nil, err
		}
		*f.table = table
	}
	return cw, nil
}

// Write appends the records and their children to the entity files.
func (cw *CSVWriter) Write(records []*models.ListingRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, rec := range records {
		if err := cw.listings.writer.Write(listingRow(rec)); err != nil {
			return fmt.Errorf("write listing row: %w", err)
		}
		for _, u := range rec.Units {
			if err := cw.units.writer.Write(unitRow(u)); err != nil {
				return fmt.Errorf("write unit row: %w", err)
			}
		}
		for _, r := range rec.Reviews {
			if err := cw.reviews.writer.Write(reviewRow(r)); err != nil {
				return fmt.Errorf("write review row: %w", err)
			}
		}
		for _, img := range rec.Images {
			if err := cw.images.writer.Write([]string{img.ListingID, img.ID, img.Alt, img.URL}); err != nil {
				return fmt.Errorf("write image row: %w", err)
			}
		}
	}

	for _, t := range cw.tables() {
		t.writer.Flush()
		if err := t.writer.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
	}
	return nil
}

// Close flushes and closes every file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, t := range cw.tables() {
		t.writer.Flush()
		if err := t.writer.Error(); err != nil {
			cw.closeTables()
			return fmt.Errorf("flush csv writer: %w", err)
		}
	}
	return cw.closeTables()
}

// Validate ensures the listings file has rows besides the header.
func (cw *CSVWriter) Validate() error {
	f, err := os.Open(filepath.Join(cw.dir, ListingsFile))
	if err != nil {
		return fmt.Errorf("open listings csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("read listings csv: %w", err)
	}
	if len(rows) <= 1 {
		return fmt.Errorf("listings csv has no records")
	}
	return nil
}

func (cw *CSVWriter) tables() []*csvTable {
	var out []*csvTable
	for _, t := range []*csvTable{cw.listings, cw.units, cw.reviews, cw.images} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (cw *CSVWriter) closeTables() error {
	var first error
	for _, t := range cw.tables() {
		if err := t.file.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func listingRow(rec *models.ListingRecord) []string {
	l := rec.Listing
	return []string{
		rec.RunID,
		l.ID,
		l.Name,
		l.URL,
		l.Phone,
		l.Street,
		l.City,
		l.State,
		l.Zip,
		l.Country,
		l.County,
		l.Neighborhood,
		l.DMA,
		formatFloat(l.Latitude),
		formatFloat(l.Longitude),
		l.PropertyType,
		strings.Join(l.Specialties, "; "),
		l.PropertyWebsite,
		l.VendorName,
		rec.SourceURL,
		rec.ScrapedAt.Format(time.RFC3339),
	}
}

func unitRow(u models.Unit) []string {
	available := ""
	if u.AvailableDate != nil {
		available = u.AvailableDate.Format("2006-01-02")
	}
	return []string{
		u.ListingID,
		u.ID,
		u.UnitNumber,
		u.Name,
		formatFloat(u.Beds),
		formatFloat(u.Baths),
		formatFloat(u.MaxRent),
		u.Deposit,
		strconv.Itoa(u.SquareFeet),
		strconv.Itoa(u.MaxSquareFeet),
		u.AvailableDateText,
		available,
		u.Availability,
		strconv.Itoa(u.UnitCount),
		strconv.FormatBool(u.IsNew),
		u.SpecialtyType,
		u.PricingType,
		u.Description,
		u.ImageURI,
		u.InteriorAmenities,
	}
}

func reviewRow(r models.Review) []string {
	return []string{r.ListingID, r.ID, r.RatingText, formatFloat(r.Rating), r.Title, r.Content, r.Date}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// JSONWriter writes one nested listing record per line.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []*models.ListingRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, rec := range records {
		if err := jw.encoder.Encode(rec); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := os.Stat(jw.file.Name())
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
