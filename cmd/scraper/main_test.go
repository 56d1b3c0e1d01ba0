package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-apartments/config"
	"github.com/aluiziolira/go-scrape-apartments/models"
)

func TestJSONPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "output", want: "output.jsonl"},
		{in: "out/listings.jsonl", want: "out/listings.jsonl"},
		{in: "listings.json", want: "listings.json"},
	}
	for _, tt := range tests {
		if got := jsonPath(tt.in); got != tt.want {
			t.Fatalf("jsonPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateWriter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
		files   []string
	}{
		{format: "csv", files: []string{"out/listings.csv", "out/units.csv"}},
		{format: "json", files: []string{"out.jsonl"}},
		{format: "dual", files: []string{"out/reviews.csv", "out.jsonl"}},
		{format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.DefaultConfig()
			cfg.OutputFormat = tt.format
			cfg.OutputPath = filepath.Join(dir, "out")

			w, err := createWriter(context.Background(), cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for format %q", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("create writer: %v", err)
			}
			defer w.Close()

			for _, f := range tt.files {
				if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
					t.Fatalf("expected %s: %v", f, err)
				}
			}
		})
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("SCRAPER_TEST_PAGES", "5")
	t.Setenv("SCRAPER_TEST_SKIP", "true")
	t.Setenv("SCRAPER_TEST_TIMEOUT", "bogus")

	envs := envDefaults{}
	if got := envs.intOr("SCRAPER_TEST_PAGES", 28); got != 5 {
		t.Fatalf("pages = %d, want 5", got)
	}
	if got := envs.intOr("SCRAPER_TEST_UNSET", 28); got != 28 {
		t.Fatalf("unset pages = %d, want 28", got)
	}
	if !envs.boolOr("SCRAPER_TEST_SKIP", false) {
		t.Fatalf("expected skip to be true")
	}
	if envs.err != nil {
		t.Fatalf("unexpected error: %v", envs.err)
	}
	if got := envs.durationOr("SCRAPER_TEST_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("timeout = %v, want fallback", got)
	}
	if envs.err == nil {
		t.Fatalf("expected parse error to be kept")
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name   string
		result models.ScraperResult
		want   float64
	}{
		{name: "no requests", result: models.ScraperResult{}, want: 0},
		{name: "all ok", result: models.ScraperResult{RequestCount: 4}, want: 100},
		{
			name: "only request failures count",
			result: models.ScraperResult{
				RequestCount:    4,
				RequestFailures: 1,
				ErrorCount:      3,
				ImageFailures:   2,
			},
			want: 75,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := successRate(&tt.result); got != tt.want {
				t.Fatalf("successRate = %v, want %v", got, tt.want)
			}
		})
	}
}
