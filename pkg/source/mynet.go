package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/borsawire/borsawire/pkg/content"
	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/fetch"
)

const mynetDefaultURL = "https://finans.mynet.com"

// Mynet scrapes the daily news archive of finans.mynet.com, one archive page per day.
// Cards carry title, summary and publish time, so article pages are read only for cards without summary.
type Mynet struct {
	name      string
	baseURL   *url.URL
	fetcher   Fetcher
	extractor TextExtractor
}

// NewMynet makes mynet adapter, empty baseURL means the public site
func NewMynet(name, baseURL string, f Fetcher) *Mynet {
	if baseURL == "" {
		baseURL = mynetDefaultURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		lgr.Printf("[WARN] bad mynet url %q, use default: %v", baseURL, err)
		u, _ = url.Parse(mynetDefaultURL)
	}
	return &Mynet{name: name, baseURL: u, fetcher: f, extractor: content.NewExtractor(100)}
}

// Name returns source name
func (m *Mynet) Name() string { return m.name }

// Scrape reads the archive page of every day in the range
func (m *Mynet) Scrape(ctx context.Context, r Range) ([]domain.NewsRecord, error) {
	days := r.Days()
	var toEnrich []domain.NewsRecord
	recs := m.fetcher.Paginate(ctx, 0, func(ctx context.Context, page int) ([]domain.NewsRecord, bool, error) {
		if page >= len(days) {
			return nil, true, nil
		}
		return m.archivePage(ctx, days[page], r)
	})

	ready := make([]domain.NewsRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.HasContent() {
			ready = append(ready, rec)
			continue
		}
		toEnrich = append(toEnrich, rec)
	}
	lgr.Printf("[DEBUG] %s found %d cards in %s, %d without summary", m.name, len(recs), r, len(toEnrich))
	if len(toEnrich) > 0 {
		ready = append(ready, m.fetcher.Enrich(ctx, toEnrich, m.enrich)...)
	}
	return ready, nil
}

func (m *Mynet) archiveURL(day time.Time) string {
	return fmt.Sprintf("%s/haber/arsiv/%d/%d/%d/borsa/", m.baseURL, day.Day(), int(day.Month()), day.Year())
}

// archivePage parses cards of a single day, a missing archive page is an empty day
func (m *Mynet) archivePage(ctx context.Context, day time.Time, r Range) ([]domain.NewsRecord, bool, error) {
	body, err := m.fetcher.Get(ctx, m.archiveURL(day))
	if err != nil {
		if fetch.IsStatus(err, http.StatusNotFound) {
			lgr.Printf("[DEBUG] %s no archive for %s", m.name, day.Format("2006-01-02"))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get archive %s: %w", day.Format("2006-01-02"), err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("parse archive %s: %w", day.Format("2006-01-02"), err)
	}

	var res []domain.NewsRecord
	doc.Find("div.card.card-type-horizontal").Each(func(_ int, card *goquery.Selection) {
		rec, err := m.parseCard(card)
		if err != nil {
			lgr.Printf("[DEBUG] %s %s, skip card: %v", m.name, day.Format("2006-01-02"), err)
			return
		}
		if !r.Contains(*rec.PublishedAt) {
			return
		}
		res = append(res, rec)
	})
	return res, false, nil
}

func (m *Mynet) parseCard(card *goquery.Selection) (domain.NewsRecord, error) {
	title := cleanText(card.Find("h3").First().Text())
	if title == "" {
		return domain.NewsRecord{}, fmt.Errorf("no title")
	}
	href, ok := card.Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.NewsRecord{}, fmt.Errorf("no link for %q", title)
	}
	link, err := resolveURL(m.baseURL, href)
	if err != nil {
		return domain.NewsRecord{}, fmt.Errorf("bad link %q: %w", href, err)
	}

	dateStr := cleanText(card.Find("div.text-gray.smaller.font-weight-normal").First().Text())
	if i := strings.Index(dateStr, ":"); i >= 0 && strings.HasPrefix(dateStr, "Yayın Tarihi") {
		dateStr = strings.TrimSpace(dateStr[i+1:])
	}
	ts, err := domain.ParseTime(dateStr)
	if err != nil {
		return domain.NewsRecord{}, fmt.Errorf("bad time for %q: %w", title, err)
	}

	return domain.NewsRecord{
		Title:       title,
		Content:     cleanText(card.Find("p").First().Text()),
		PublishedAt: &ts,
		Source:      m.name,
		URL:         link,
	}, nil
}

func (m *Mynet) enrich(ctx context.Context, rec domain.NewsRecord) (domain.NewsRecord, error) {
	body, err := m.fetcher.Get(ctx, rec.URL)
	if err != nil {
		return rec, err
	}
	text, err := m.extractor.Extract(body, rec.URL)
	if err != nil {
		return rec, err
	}
	rec.Content = text
	return rec, nil
}
