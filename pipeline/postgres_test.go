package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-apartments/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeBatchResults struct {
	remaining int
	failAt    int
	execs     int
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	f.execs++
	if f.failAt > 0 && f.execs == f.failAt {
		return pgconn.CommandTag{}, errors.New("unique violation")
	}
	f.remaining--
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (f *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (f *fakeBatchResults) Close() error             { return nil }

type fakeDB struct {
	execSQL []string
	batches []*pgx.Batch
	failAt  int
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execSQL = append(db.execSQL, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (db *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	db.batches = append(db.batches, b)
	return &fakeBatchResults{remaining: b.Len(), failAt: db.failAt}
}

func TestBuildBatchQueuesEveryEntity(t *testing.T) {
	b := buildBatch([]*models.ListingRecord{sampleRecord()})

	// 1 upsert + 3 deletes + 2 units + 1 review + 1 image
	if b.Len() != 8 {
		t.Fatalf("queued = %d, want 8", b.Len())
	}

	prefixes := []string{
		"INSERT INTO listings",
		"DELETE FROM units",
		"DELETE FROM reviews",
		"DELETE FROM images",
		"INSERT INTO units",
		"INSERT INTO units",
		"INSERT INTO reviews",
		"INSERT INTO images",
	}
	for i, q := range b.QueuedQueries {
		if !strings.HasPrefix(q.SQL, prefixes[i]) {
			t.Fatalf("query %d = %q, want prefix %q", i, q.SQL[:30], prefixes[i])
		}
	}

	listing := b.QueuedQueries[0]
	if len(listing.Arguments) != 21 {
		t.Fatalf("listing args = %d, want 21", len(listing.Arguments))
	}
	if listing.Arguments[0] != "abc123" || listing.Arguments[1] != "run-1" {
		t.Fatalf("listing key args = %v, %v", listing.Arguments[0], listing.Arguments[1])
	}
	if unit := b.QueuedQueries[4]; len(unit.Arguments) != 20 || unit.Arguments[1] != "r1" {
		t.Fatalf("unexpected unit args: %v", unit.Arguments)
	}
}

func TestBuildBatchNilSpecialties(t *testing.T) {
	rec := sampleRecord()
	rec.Listing.Specialties = nil
	b := buildBatch([]*models.ListingRecord{rec})

	specialties, ok := b.QueuedQueries[0].Arguments[16].([]string)
	if !ok || specialties == nil {
		t.Fatalf("specialties should be an empty array, got %#v", b.QueuedQueries[0].Arguments[16])
	}
}

func TestPostgresWriterWrite(t *testing.T) {
	db := &fakeDB{}
	w := newPostgresWriter(context.Background(), db)

	if err := w.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS listings") {
		t.Fatalf("schema not executed: %v", db.execSQL)
	}

	if err := w.Validate(); err == nil {
		t.Fatalf("expected validation error before any write")
	}
	if err := w.Write([]*models.ListingRecord{sampleRecord()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(db.batches) != 1 {
		t.Fatalf("batches sent = %d, want 1", len(db.batches))
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate after write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPostgresWriterWriteError(t *testing.T) {
	db := &fakeDB{failAt: 5}
	w := newPostgresWriter(context.Background(), db)

	err := w.Write([]*models.ListingRecord{sampleRecord()})
	if err == nil || !strings.Contains(err.Error(), "insert units") {
		t.Fatalf("expected error naming the failed statement, got %v", err)
	}
}

func TestBuildBatchReviewsWithoutIDs(t *testing.T) {
	rec := sampleRecord()
	rec.Reviews = []models.Review{
		{ListingID: "abc123", RatingText: "4 out of 5 stars", Title: "Fine", Content: "Quiet"},
		{ListingID: "abc123", RatingText: "2 out of 5 stars", Title: "Loud", Content: "Thin walls"},
	}
	b := buildBatch([]*models.ListingRecord{rec})

	var positions []any
	for _, q := range b.QueuedQueries {
		if strings.HasPrefix(q.SQL, "INSERT INTO reviews") {
			if len(q.Arguments) != 8 {
				t.Fatalf("review args = %d, want 8", len(q.Arguments))
			}
			positions = append(positions, q.Arguments[1])
		}
	}
	if len(positions) != 2 || positions[0] == positions[1] {
		t.Fatalf("review keys = %v, want two distinct positions", positions)
	}
	if !strings.Contains(insertReviewSQL, "ON CONFLICT (listing_id, position)") {
		t.Fatalf("reviews must be keyed by position: %s", insertReviewSQL)
	}
}
