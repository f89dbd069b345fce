// Package source defines the source adapter contract and the concrete adapters.
// An adapter knows how to build requests for one page or date slice of its source,
// parse responses into candidate records and detect the end of data. Network
// access, retries and concurrency are delegated to the fetch engine.
package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/fetch"
)

//go:generate moq -out mocks/adapter.go -pkg mocks -skip-ensure -fmt goimports . Adapter

// Adapter produces normalized candidate records for a date range
type Adapter interface {
	Name() string
	Scrape(ctx context.Context, r Range) ([]domain.NewsRecord, error)
}

// Fetcher is the part of fetch engine adapters rely on, implemented by *fetch.Engine
type Fetcher interface {
	Get(ctx context.Context, u string) ([]byte, error)
	PostForm(ctx context.Context, u string, form url.Values) ([]byte, error)
	PostJSON(ctx context.Context, u string, payload any) ([]byte, error)
	Paginate(ctx context.Context, first int, fn fetch.PageFunc) []domain.NewsRecord
	Enrich(ctx context.Context, recs []domain.NewsRecord, fn fetch.EnrichFunc) []domain.NewsRecord
}

// Kind is the adapter type selected in configuration
type Kind string

// supported adapter kinds
const (
	KindBigpara   Kind = "bigpara"
	KindKAP       Kind = "kap"
	KindAnadolu   Kind = "anadolu"
	KindRSS       Kind = "rss"
	KindMynet     Kind = "mynet"
	KindBloomberg Kind = "bloomberght"
)

// Spec is what's needed to build an adapter
type Spec struct {
	Name       string
	Kind       Kind
	URL        string
	StockCodes []string
	Extract    bool
}

// New makes adapter for the spec
func New(spec Spec, f Fetcher) (Adapter, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	switch spec.Kind {
	case KindBigpara:
		return NewBigpara(spec.Name, spec.URL, f), nil
	case KindKAP:
		return NewKAP(spec.Name, spec.URL, spec.StockCodes, f), nil
	case KindAnadolu:
		return NewAnadolu(spec.Name, spec.URL, f), nil
	case KindMynet:
		return NewMynet(spec.Name, spec.URL, f), nil
	case KindBloomberg:
		return NewBloomberg(spec.Name, spec.URL, spec.StockCodes, f), nil
	case KindRSS:
		if spec.URL == "" {
			return nil, fmt.Errorf("source %s: rss url is required", spec.Name)
		}
		return NewRSS(spec.Name, spec.URL, spec.Extract, f), nil
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", spec.Name, spec.Kind)
	}
}

// Range is an inclusive range of calendar days in domain.Location
type Range struct {
	Start time.Time // first day, midnight
	End   time.Time // last day, midnight
}

// NewRange makes a range covering days of from and to
func NewRange(from, to time.Time) Range {
	r := Range{Start: day(from), End: day(to)}
	if r.End.Before(r.Start) {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

// LastDays makes a range of today and the given number of preceding days
func LastDays(now time.Time, lookback int) Range {
	return NewRange(now.AddDate(0, 0, -lookback), now)
}

// Contains checks if t falls on one of the range days
func (r Range) Contains(t time.Time) bool {
	return !r.Before(t) && !r.After(t)
}

// Before checks if t is earlier than the first day of the range
func (r Range) Before(t time.Time) bool {
	return t.Before(r.Start)
}

// After checks if t is later than the last day of the range
func (r Range) After(t time.Time) bool {
	return !t.Before(r.End.AddDate(0, 0, 1))
}

// Days lists midnights of all range days, oldest first
func (r Range) Days() []time.Time {
	var res []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		res = append(res, d)
	}
	return res
}

func (r Range) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

func day(t time.Time) time.Time {
	t = t.In(domain.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, domain.Location)
}
