// Package fetch implements the bounded-concurrency HTTP engine used by source adapters.
// Every request is retried with exponential backoff on transient failures,
// pagination is issued in batched rounds of W pages and article enrichment runs
// as a separate fan-out over collected candidates.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/borsawire/borsawire/pkg/metrics"
)

// maxBodySize caps a single response body
const maxBodySize = 10 * 1024 * 1024

// ErrPermanent marks a failure which is not worth retrying
var ErrPermanent = errors.New("permanent fetch failure")

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// Transient reports whether the status is worth retrying: 408, 429 and 5xx
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Unwrap makes errors.Is(err, ErrPermanent) true for non-transient statuses
func (e *StatusError) Unwrap() error {
	if e.Transient() {
		return nil
	}
	return ErrPermanent
}

// IsStatus checks if err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Config defines engine parameters, zero values replaced by defaults
type Config struct {
	Source        string
	Timeout       time.Duration
	Workers       int
	EnrichWorkers int
	RetryAttempts int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	RateLimit     float64 // requests per second, 0 is unlimited
	Burst         int
	MaxPages      int
	UserAgent     string
	Client        *http.Client // optional, built from Timeout if nil
}

// Engine executes fetch tasks for one source
type Engine struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// RequestFunc builds a fresh request for every attempt
type RequestFunc func(ctx context.Context) (*http.Request, error)

// New makes an engine with defaults applied
func New(cfg Config) *Engine {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.EnrichWorkers <= 0 {
		cfg.EnrichWorkers = 5
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Engine{cfg: cfg, client: client, limiter: rate.NewLimiter(limit, cfg.Burst)}
}

// Get fetches url with GET
func (e *Engine) Get(ctx context.Context, u string) ([]byte, error) {
	return e.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	})
}

// PostForm posts url-encoded form values
func (e *Engine) PostForm(ctx context.Context, u string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	return e.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		return req, nil
	})
}

// PostJSON posts payload encoded as JSON
func (e *Engine) PostJSON(ctx context.Context, u string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return e.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/plain, */*")
		return req, nil
	})
}

// Do executes one fetch task: up to RetryAttempts attempts with exponential backoff.
// Network errors, timeouts, 408, 429 and 5xx are retried, any other non-2xx status
// stops retrying and is returned as *StatusError.
func (e *Engine) Do(ctx context.Context, build RequestFunc) ([]byte, error) {
	var body []byte
	var permErr error
	target := ""
	attempt := 0

	retrier := repeater.NewBackoff(e.cfg.RetryAttempts, e.cfg.RetryDelay, repeater.WithMaxDelay(e.cfg.MaxRetryDelay))
	err := retrier.Do(ctx, func() error {
		attempt++
		if attempt > e.cfg.RetryAttempts {
			return ErrPermanent
		}
		req, err := build(ctx)
		if err != nil {
			permErr = fmt.Errorf("build request: %w", err)
			return ErrPermanent
		}
		target = req.URL.String()

		st := time.Now()
		b, err := e.roundTrip(ctx, req)
		if err == nil {
			metrics.RecordFetch(e.cfg.Source, "ok", time.Since(st).Seconds())
			body = b
			return nil
		}
		if errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			metrics.RecordFetch(e.cfg.Source, "failed", time.Since(st).Seconds())
			permErr = err
			return ErrPermanent
		}
		metrics.RecordFetch(e.cfg.Source, "retry", time.Since(st).Seconds())
		lgr.Printf("[DEBUG] %s attempt %d/%d for %s failed: %v", e.cfg.Source, attempt, e.cfg.RetryAttempts, target, err)
		return err
	}, ErrPermanent)

	if permErr != nil {
		return nil, permErr
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s, %d attempts: %w", target, attempt, err)
	}
	return body, nil
}

// roundTrip makes a single attempt and returns body decoded to UTF-8
func (e *Engine) roundTrip(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	addBrowserHeaders(req, e.cfg.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", req.URL, err)
	}
	return toUTF8(data, resp.Header.Get("Content-Type")), nil
}

// toUTF8 decodes legacy encoded bodies (windows-1254, iso-8859-9) to UTF-8
func toUTF8(data []byte, contentType string) []byte {
	if utf8.Valid(data) {
		return data
	}
	enc, name, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		lgr.Printf("[DEBUG] can't decode body as %s: %v", name, err)
		return data
	}
	return decoded
}
