package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-apartments/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS listings (
	id               TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	url              TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	street           TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zip              TEXT NOT NULL DEFAULT '',
	country          TEXT NOT NULL DEFAULT '',
	county           TEXT NOT NULL DEFAULT '',
	neighborhood     TEXT NOT NULL DEFAULT '',
	dma              TEXT NOT NULL DEFAULT '',
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	property_type    TEXT NOT NULL DEFAULT '',
	specialties      TEXT[] NOT NULL DEFAULT '{}',
	property_website TEXT NOT NULL DEFAULT '',
	vendor_name      TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	scraped_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS units (
	listing_id          TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	id                  TEXT NOT NULL,
	unit_number         TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL DEFAULT '',
	beds                DOUBLE PRECISION,
	baths               DOUBLE PRECISION,
	max_rent            DOUBLE PRECISION,
	deposit             TEXT NOT NULL DEFAULT '',
	square_feet         INTEGER,
	max_square_feet     INTEGER,
	available_date_text TEXT NOT NULL DEFAULT '',
	available_date      TIMESTAMPTZ,
	availability        TEXT NOT NULL DEFAULT '',
	unit_count          INTEGER,
	is_new              BOOLEAN NOT NULL DEFAULT FALSE,
	specialty_type      TEXT NOT NULL DEFAULT '',
	pricing_type        TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	image_uri           TEXT NOT NULL DEFAULT '',
	interior_amenities  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (listing_id, id)
);
CREATE TABLE IF NOT EXISTS reviews (
	listing_id  TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	id          TEXT NOT NULL DEFAULT '',
	rating_text TEXT NOT NULL DEFAULT '',
	rating      DOUBLE PRECISION,
	title       TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	review_date TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (listing_id, position)
);
CREATE TABLE IF NOT EXISTS images (
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	alt        TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL,
	PRIMARY KEY (listing_id, id)
);`

const (
	upsertListingSQL = `INSERT INTO listings
	(id, run_id, name, url, phone, street, city, state, zip, country, county, neighborhood, dma,
	 latitude, longitude, property_type, specialties, property_website, vendor_name, source_url, scraped_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	ON CONFLICT (id) DO UPDATE SET
	 run_id = EXCLUDED.run_id, name = EXCLUDED.name, url = EXCLUDED.url, phone = EXCLUDED.phone,
	 street = EXCLUDED.street, city = EXCLUDED.city, state = EXCLUDED.state, zip = EXCLUDED.zip,
	 country = EXCLUDED.country, county = EXCLUDED.county, neighborhood = EXCLUDED.neighborhood,
	 dma = EXCLUDED.dma, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
	 property_type = EXCLUDED.property_type, specialties = EXCLUDED.specialties,
	 property_website = EXCLUDED.property_website, vendor_name = EXCLUDED.vendor_name,
	 source_url = EXCLUDED.source_url, scraped_at = EXCLUDED.scraped_at`
	deleteUnitsSQL   = `DELETE FROM units WHERE listing_id = $1`
	deleteReviewsSQL = `DELETE FROM reviews WHERE listing_id = $1`
	deleteImagesSQL  = `DELETE FROM images WHERE listing_id = $1`
	insertUnitSQL    = `INSERT INTO units
	(listing_id, id, unit_number, name, beds, baths, max_rent, deposit, square_feet, max_square_feet,
	 available_date_text, available_date, availability, unit_count, is_new, specialty_type, pricing_type,
	 description, image_uri, interior_amenities)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	ON CONFLICT (listing_id, id) DO NOTHING`
	insertReviewSQL = `INSERT INTO reviews (listing_id, position, id, rating_text, rating, title, content, review_date)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (listing_id, position) DO NOTHING`
	insertImageSQL = `INSERT INTO images (listing_id, id, alt, url)
	VALUES ($1,$2,$3,$4)
	ON CONFLICT (listing_id, id) DO NOTHING`
)

// pgExecutor is the subset of *pgxpool.Pool used by PostgresWriter.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresWriter upserts listing records and replaces their children.
type PostgresWriter struct {
	ctx   context.Context
	db    pgExecutor
	close func()
	mu    sync.Mutex
	rows  int64
}

// NewPostgresWriter connects to dsn and creates the tables if needed.
func NewPostgresWriter(ctx context.Context, dsn string, maxConns int) (*PostgresWriter, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	w := newPostgresWriter(ctx, pool)
	w.close = pool.Close
	if err := w.EnsureSchema(); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

func newPostgresWriter(ctx context.Context, db pgExecutor) *PostgresWriter {
	return &PostgresWriter{ctx: ctx, db: db, close: func() {}}
}

// EnsureSchema creates the listing tables when they do not exist.
func (pw *PostgresWriter) EnsureSchema() error {
	if _, err := pw.db.Exec(pw.ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Write sends one batch per call: every listing is upserted and its units,
// reviews and images are replaced.
func (pw *PostgresWriter) Write(records []*models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}
	pw.mu.Lock()
	defer pw.mu.Unlock()

	b := buildBatch(records)
	br := pw.db.SendBatch(pw.ctx, b)
	for i, q := range b.QueuedQueries {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return fmt.Errorf("exec %s (query %d): %w", statementName(q.SQL), i, err)
		}
		pw.rows += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (pw *PostgresWriter) Close() error {
	pw.close()
	return nil
}

// Validate ensures at least one row was written.
func (pw *PostgresWriter) Validate() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.rows == 0 {
		return fmt.Errorf("no rows written to postgres")
	}
	return nil
}

func buildBatch(records []*models.ListingRecord) *pgx.Batch {
	b := &pgx.Batch{}
	for _, rec := range records {
		l := rec.Listing
		specialties := l.Specialties
		if specialties == nil {
			specialties = []string{}
		}
		b.Queue(upsertListingSQL,
			l.ID, rec.RunID, l.Name, l.URL, l.Phone, l.Street, l.City, l.State, l.Zip, l.Country,
			l.County, l.Neighborhood, l.DMA, l.Latitude, l.Longitude, l.PropertyType, specialties,
			l.PropertyWebsite, l.VendorName, rec.SourceURL, rec.ScrapedAt,
		)
		b.Queue(deleteUnitsSQL, l.ID)
		b.Queue(deleteReviewsSQL, l.ID)
		b.Queue(deleteImagesSQL, l.ID)

		for _, u := range rec.Units {
			b.Queue(insertUnitSQL,
				u.ListingID, u.ID, u.UnitNumber, u.Name, u.Beds, u.Baths, u.MaxRent, u.Deposit,
				u.SquareFeet, u.MaxSquareFeet, u.AvailableDateText, u.AvailableDate, u.Availability,
				u.UnitCount, u.IsNew, u.SpecialtyType, u.PricingType, u.Description, u.ImageURI,
				u.InteriorAmenities,
			)
		}
		// Review ids are optional on the page, so rows are keyed by page order.
		for i, r := range rec.Reviews {
			b.Queue(insertReviewSQL, r.ListingID, i, r.ID, r.RatingText, r.Rating, r.Title, r.Content, r.Date)
		}
		for _, img := range rec.Images {
			b.Queue(insertImageSQL, img.ListingID, img.ID, img.Alt, img.URL)
		}
	}
	return b
}

func statementName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) >= 3 {
		return strings.ToLower(fields[0] + " " + fields[2])
	}
	return "statement"
}
