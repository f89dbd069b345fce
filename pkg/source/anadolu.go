package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/borsawire/borsawire/pkg/domain"
)

const (
	anadoluDefaultURL = "https://www.aa.com.tr/tr/ekonomi"
	anadoluPageSize   = 5
)

// Anadolu scrapes economy news of Anadolu Ajansı through the paged listing API.
// Every item carries its summary, so no enrichment is needed.
type Anadolu struct {
	name    string
	baseURL string
	fetcher Fetcher
}

// anadoluItem is an element of the listing API response
type anadoluItem struct {
	ID         json.Number `json:"ID"`
	Title      string      `json:"Title"`
	Summary    string      `json:"Summary"`
	CreateDate string      `json:"CreateDate"`
	StartDate  string      `json:"StartDate"`
	Route      string      `json:"Route"`
}

var dotnetDateRe = regexp.MustCompile(`/Date\((-?\d+)(?:[+-]\d{4})?\)/`)

// NewAnadolu makes Anadolu Ajansı adapter, empty baseURL means the public economy category
func NewAnadolu(name, baseURL string, f Fetcher) *Anadolu {
	if baseURL == "" {
		baseURL = anadoluDefaultURL
	}
	return &Anadolu{name: name, baseURL: strings.TrimSuffix(baseURL, "/"), fetcher: f}
}

// Name returns source name
func (a *Anadolu) Name() string { return a.name }

// Scrape pages through the listing API until items get older than the range
func (a *Anadolu) Scrape(ctx context.Context, r Range) ([]domain.NewsRecord, error) {
	res := a.fetcher.Paginate(ctx, 1, func(ctx context.Context, page int) ([]domain.NewsRecord, bool, error) {
		return a.listPage(ctx, page, r)
	})
	lgr.Printf("[DEBUG] %s found %d items in %s", a.name, len(res), r)
	return res, nil
}

// listPage posts numFirst/numFin for the page. The API answers with the "Search" string
// or an empty list past the last item.
func (a *Anadolu) listPage(ctx context.Context, page int, r Range) ([]domain.NewsRecord, bool, error) {
	form := url.Values{
		"numFirst": {strconv.Itoa(1 + (page-1)*anadoluPageSize)},
		"numFin":   {strconv.Itoa(anadoluPageSize)},
	}
	body, err := a.fetcher.PostForm(ctx, a.baseURL, form)
	if err != nil {
		return nil, false, fmt.Errorf("get listing page %d: %w", page, err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == `"Search"` {
		return nil, true, nil
	}

	var items []anadoluItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, false, fmt.Errorf("decode listing page %d: %w", page, err)
	}
	if len(items) == 0 {
		return nil, true, nil
	}

	var res []domain.NewsRecord
	parsed, older := 0, 0
	for _, it := range items {
		rec, err := a.parseItem(it)
		if err != nil {
			lgr.Printf("[DEBUG] %s page %d, skip item: %v", a.name, page, err)
			continue
		}
		parsed++
		switch {
		case r.Before(*rec.PublishedAt):
			older++
		case r.After(*rec.PublishedAt):
		default:
			res = append(res, rec)
		}
	}
	return res, parsed == 0 || older == parsed, nil
}

func (a *Anadolu) parseItem(it anadoluItem) (domain.NewsRecord, error) {
	title := cleanText(it.Title)
	if title == "" || it.ID.String() == "" {
		return domain.NewsRecord{}, fmt.Errorf("no title or id")
	}
	ts, err := parseDotnetDate(it.CreateDate)
	if err != nil {
		// listing date without time is good enough for ordering inside the day
		if ts, err = time.ParseInLocation("02.01.2006", strings.TrimSpace(it.StartDate), domain.Location); err != nil {
			return domain.NewsRecord{}, fmt.Errorf("bad dates %q %q", it.CreateDate, it.StartDate)
		}
	}
	return domain.NewsRecord{
		Title:       title,
		Content:     cleanText(it.Summary),
		PublishedAt: &ts,
		Source:      a.name,
		URL:         fmt.Sprintf("%s/%s/%s", a.baseURL, strings.Trim(it.Route, "/"), it.ID.String()),
	}, nil
}

// parseDotnetDate parses "/Date(1718000000000)/" milliseconds since epoch
func parseDotnetDate(s string) (time.Time, error) {
	m := dotnetDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a /Date()/ value: %q", s)
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad /Date()/ value %q: %w", s, err)
	}
	return time.UnixMilli(ms).In(domain.Location), nil
}
