package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-apartments/config"
	"github.com/gocolly/colly/v2"
)

// Request phases used for metrics and logging.
const (
	PhaseSearch  = "search"
	PhaseDetail  = "detail"
	PhaseGallery = "gallery"
)

const (
	ctxIndex = "index"
	ctxPhase = "phase"
	ctxStart = "start"
)

// Request describes a single HTTP call issued through the Fetcher.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	Phase  string
}

// Result is the outcome of one request in a batch.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

// Fetcher issues requests through a shared colly collector. Each batch runs on
// a clone so concurrent batches wait only for their own requests while sharing
// the transport and parallelism limits.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics

	requestCount int64
	failureCount int64
	retryCount   int64
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	hosts := cfg.AllowedHosts()
	if len(hosts) == 0 {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(hosts...),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	// Every response reaches OnResponse; status classification happens there.
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Fetcher{cfg: cfg, collector: collector, metrics: metrics}, nil
}

// WithTransport replaces the HTTP transport used for every request.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Get fetches url once.
func (f *Fetcher) Get(ctx context.Context, url, phase string) ([]byte, error) {
	return f.Do(ctx, Request{Method: http.MethodGet, URL: url, Phase: phase})
}

// Do issues a single request and returns its body.
func (f *Fetcher) Do(ctx context.Context, req Request) ([]byte, error) {
	res := f.run(ctx, []Request{req})[0]
	return res.Body, res.Err
}

// GetWithRetry fetches url, retrying any failure up to ProbeAttempts attempts.
func (f *Fetcher) GetWithRetry(ctx context.Context, url, phase string) ([]byte, error) {
	attempts := f.cfg.ProbeAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := f.Get(ctx, url, phase)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		atomic.AddInt64(&f.retryCount, 1)
		f.metrics.IncRetries()
		slog.Warn("retrying request",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if delay := f.backoff(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, fmt.Errorf("get %s after %d attempts: %w", url, attempts, lastErr)
}

// GetAll fetches urls concurrently and returns results in input order. In
// strict mode any failure fails the batch with a *BatchError and no results.
// In tolerant mode failed entries carry their error in Result.Err.
func (f *Fetcher) GetAll(ctx context.Context, urls []string, phase string) ([]Result, error) {
	reqs := make([]Request, len(urls))
	for i, u := range urls {
		reqs[i] = Request{Method: http.MethodGet, URL: u, Phase: phase}
	}
	results := f.run(ctx, reqs)

	if f.cfg.FanOutMode == config.FanOutTolerant {
		return results, nil
	}
	var failures []*URLError
	for _, res := range results {
		if res.Err != nil {
			failures = append(failures, &URLError{URL: res.URL, Err: res.Err})
		}
	}
	if len(failures) > 0 {
		return nil, &BatchError{Total: len(results), Failures: failures}
	}
	return results, nil
}

// RequestCount returns the number of requests issued so far.
func (f *Fetcher) RequestCount() int {
	return int(atomic.LoadInt64(&f.requestCount))
}

// FailureCount returns the number of issued requests that failed.
func (f *Fetcher) FailureCount() int {
	return int(atomic.LoadInt64(&f.failureCount))
}

// RetryCount returns the number of retries scheduled so far.
func (f *Fetcher) RetryCount() int {
	return int(atomic.LoadInt64(&f.retryCount))
}

func (f *Fetcher) run(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	answered := make([]bool, len(reqs))

	c := f.collector.Clone()

	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		atomic.AddInt64(&f.requestCount, 1)
		f.metrics.IncRequest(r.Ctx.Get(ctxPhase))
	})

	fail := func(r *colly.Response, i int, err error) {
		classified := classifyError(err, r.StatusCode, results[i].URL)
		category := errorTypeLabel(classified)
		atomic.AddInt64(&f.failureCount, 1)
		f.metrics.IncError(category)
		slog.Debug("request error",
			slog.String("url", results[i].URL),
			slog.String("phase", r.Ctx.Get(ctxPhase)),
			slog.String("category", category),
			slog.Any("error", err),
		)
		answered[i] = true
		results[i] = Result{URL: results[i].URL, StatusCode: r.StatusCode, Err: classified}
	}

	c.OnResponse(func(r *colly.Response) {
		i, ok := r.Ctx.GetAny(ctxIndex).(int)
		if !ok {
			return
		}
		f.observe(r)
		if r.StatusCode < 200 || r.StatusCode > 299 {
			fail(r, i, fmt.Errorf("%s", http.StatusText(r.StatusCode)))
			return
		}
		answered[i] = true
		results[i] = Result{URL: results[i].URL, StatusCode: r.StatusCode, Body: r.Body}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		i, ok := r.Ctx.GetAny(ctxIndex).(int)
		if !ok {
			return
		}
		f.observe(r)
		fail(r, i, err)
	})

	for i, req := range reqs {
		results[i].URL = req.URL
		if err := ctx.Err(); err != nil {
			answered[i] = true
			results[i].Err = err
			continue
		}

		method := req.Method
		if method == "" {
			method = http.MethodGet
		}
		hdr := req.Header.Clone()
		if hdr == nil {
			hdr = http.Header{}
		}
		if hdr.Get("User-Agent") == "" {
			hdr.Set("User-Agent", f.cfg.UserAgent)
		}
		var body io.Reader
		if req.Body != nil {
			body = bytes.NewReader(req.Body)
		}

		rctx := colly.NewContext()
		rctx.Put(ctxIndex, i)
		rctx.Put(ctxPhase, req.Phase)
		if err := c.Request(method, req.URL, body, rctx, hdr); err != nil {
			answered[i] = true
			results[i].Err = &TransportError{URL: req.URL, Err: err}
		}
	}
	c.Wait()

	for i := range results {
		if !answered[i] {
			results[i].Err = &TransportError{URL: results[i].URL, Err: fmt.Errorf("no response received")}
		}
	}
	return results
}

func (f *Fetcher) observe(r *colly.Response) {
	if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
		f.metrics.ObserveDuration(r.Ctx.Get(ctxPhase), time.Since(start))
	}
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	base := f.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
