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

	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/fetch"
)

const bigparaDefaultURL = "https://bigpara.hurriyet.com.tr"

// Bigpara scrapes the paginated news listing of bigpara.hurriyet.com.tr.
// Listing rows give title, link and time, content comes from the article page.
type Bigpara struct {
	name    string
	baseURL *url.URL
	fetcher Fetcher
}

// NewBigpara makes bigpara adapter, empty baseURL means the public site
func NewBigpara(name, baseURL string, f Fetcher) *Bigpara {
	if baseURL == "" {
		baseURL = bigparaDefaultURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		lgr.Printf("[WARN] bad bigpara url %q, use default: %v", baseURL, err)
		u, _ = url.Parse(bigparaDefaultURL)
	}
	return &Bigpara{name: name, baseURL: u, fetcher: f}
}

// Name returns source name
func (b *Bigpara) Name() string { return b.name }

// Scrape collects listing rows inside the range and enriches them with article text
func (b *Bigpara) Scrape(ctx context.Context, r Range) ([]domain.NewsRecord, error) {
	candidates := b.fetcher.Paginate(ctx, 1, func(ctx context.Context, page int) ([]domain.NewsRecord, bool, error) {
		return b.listPage(ctx, page, r)
	})
	lgr.Printf("[DEBUG] %s found %d listing rows in %s", b.name, len(candidates), r)
	if len(candidates) == 0 {
		return nil, nil
	}
	return b.fetcher.Enrich(ctx, candidates, b.enrich), nil
}

func (b *Bigpara) pageURL(page int) string {
	return fmt.Sprintf("%s/haberler/tumu/bu-yil/%d/", b.baseURL, page)
}

// listPage fetches one listing page. The listing is newest first, so a page without
// rows or with every row older than the range is the end of data.
func (b *Bigpara) listPage(ctx context.Context, page int, r Range) ([]domain.NewsRecord, bool, error) {
	body, err := b.fetcher.Get(ctx, b.pageURL(page))
	if err != nil {
		if fetch.IsStatus(err, http.StatusNotFound) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("get listing page %d: %w", page, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("parse listing page %d: %w", page, err)
	}

	rows := doc.Find(".tBody").First().Find("ul")
	if rows.Length() == 0 {
		return nil, true, nil
	}

	var res []domain.NewsRecord
	parsed, older := 0, 0
	rows.Each(func(_ int, row *goquery.Selection) {
		rec, err := b.parseRow(row)
		if err != nil {
			lgr.Printf("[DEBUG] %s page %d, skip row: %v", b.name, page, err)
			return
		}
		parsed++
		switch {
		case r.Before(*rec.PublishedAt):
			older++
		case r.After(*rec.PublishedAt):
		default:
			res = append(res, rec)
		}
	})
	return res, parsed == 0 || older == parsed, nil
}

func (b *Bigpara) parseRow(row *goquery.Selection) (domain.NewsRecord, error) {
	title := cleanText(row.Find("h2").First().Text())
	if title == "" {
		return domain.NewsRecord{}, fmt.Errorf("no title")
	}
	href, ok := row.Find("a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.NewsRecord{}, fmt.Errorf("no link for %q", title)
	}
	link, err := resolveURL(b.baseURL, href)
	if err != nil {
		return domain.NewsRecord{}, fmt.Errorf("bad link %q: %w", href, err)
	}

	dateStr := strings.TrimSpace(row.Find("li.cell005").First().Text())
	timeStr := strings.TrimSpace(row.Find("li.cell064").First().Text())
	ts, err := time.ParseInLocation("02.01.2006 15:04", dateStr+" "+timeStr, domain.Location)
	if err != nil {
		return domain.NewsRecord{}, fmt.Errorf("bad time %q %q: %w", dateStr, timeStr, err)
	}

	return domain.NewsRecord{Title: title, PublishedAt: &ts, Source: b.name, URL: link}, nil
}

// enrich fills content from the article page: headline, body paragraphs and gallery captions
func (b *Bigpara) enrich(ctx context.Context, rec domain.NewsRecord) (domain.NewsRecord, error) {
	body, err := b.fetcher.Get(ctx, rec.URL)
	if err != nil {
		return rec, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return rec, fmt.Errorf("parse article: %w", err)
	}

	parts := []string{
		cleanText(doc.Find(".news-content__inf h2").First().Text()),
		selectionText(doc.Find(".news-content.readingTime p")),
		// gallery wraps paragraphs into paragraphs, take the innermost ones only
		selectionText(doc.Find(".gallery-list p").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("p").Length() == 0
		})),
	}

	var text []string
	for _, p := range parts {
		if p != "" {
			text = append(text, p)
		}
	}
	rec.Content = strings.Join(text, " ")
	return rec, nil
}
