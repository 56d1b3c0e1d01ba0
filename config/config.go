package config

import (
	"fmt"
	"net/url"
	"time"
)

// Fan-out modes for batch fetches.
const (
	// FanOutStrict fails the whole batch when any request fails.
	FanOutStrict = "strict"

	// FanOutTolerant keeps successful responses and reports failures per URL.
	FanOutTolerant = "tolerant"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL            string
	Location           string
	MaxPages           int
	Parallelism        int
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	ProbeAttempts      int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	FanOutMode         string // strict or tolerant
	DedupeLinks        bool
	SkipImages         bool
	PayloadMarker      string
	PayloadCall        string
	TokenMarker        string
	TokenProperty      string
	TokenHeader        string
	GalleryURL         string
	OutputPath         string
	OutputFormat       string // csv, json, dual, or postgres
	DatabaseURL        string
	UserAgent          string
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	MetricsAddr        string
	Verbose            bool
	RespectRobotsTxt   bool
}

// DefaultConfig returns conservative defaults for the listings site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://www.apartments.com/",
		Location:           "tucson-az",
		MaxPages:           28,
		Parallelism:        8,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            30 * time.Second,
		ProbeAttempts:      3,
		RetryBackoff:       0,
		RetryBackoffMax:    0,
		FanOutMode:         FanOutStrict,
		DedupeLinks:        false,
		SkipImages:         false,
		PayloadMarker:      "ProfileStartup",
		PayloadCall:        "startup.init",
		TokenMarker:        "aft",
		TokenProperty:      "aft",
		TokenHeader:        "x_aft",
		GalleryURL:         "https://www.apartments.com/services/property/gallery/",
		OutputPath:         "output",
		OutputFormat:       "csv",
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		PipelineBufferSize: 256,
		BatchSize:          32,
		DedupeMaxSize:      100000,
		MetricsAddr:        "",
		Verbose:            false,
		RespectRobotsTxt:   false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.Location == "" {
		return fmt.Errorf("location cannot be empty")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ProbeAttempts <= 0 {
		return fmt.Errorf("probe attempts must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.FanOutMode != FanOutStrict && c.FanOutMode != FanOutTolerant {
		return fmt.Errorf("fan-out mode must be %s or %s", FanOutStrict, FanOutTolerant)
	}
	if c.PayloadMarker == "" {
		return fmt.Errorf("payload marker cannot be empty")
	}
	if !c.SkipImages {
		if c.TokenMarker == "" || c.TokenProperty == "" || c.TokenHeader == "" {
			return fmt.Errorf("token marker, property and header are required unless images are skipped")
		}
		galleryURL, err := url.Parse(c.GalleryURL)
		if err != nil || galleryURL.Host == "" {
			return fmt.Errorf("gallery URL must be absolute")
		}
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres output")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, or postgres")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}

// AllowedHosts lists the hosts the scraper may contact.
func (c *Config) AllowedHosts() []string {
	var hosts []string
	for _, raw := range []string{c.BaseURL, c.GalleryURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		dup := false
		for _, h := range hosts {
			if h == u.Host {
				dup = true
			}
		}
		if !dup {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
