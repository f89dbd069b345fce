package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/borsawire/borsawire/pkg/domain"
)

const (
	kapDefaultURL = "https://www.kap.org.tr"
	kapSliceDays  = 3 // span of one disclosure query, fromDate..fromDate+3
)

// DefaultStockCodes is the BIST 50 list KAP disclosures are filtered by
var DefaultStockCodes = []string{
	"AEFES", "AKBNK", "AKSA", "AKSEN", "ALARK", "ARCLK", "ASELS", "ASTOR", "BIMAS", "BRSAN",
	"CCOLA", "CIMSA", "DOAS", "DOHOL", "EKGYO", "ENJSA", "ENKAI", "EREGL", "FROTO", "GARAN",
	"GUBRF", "HALKB", "HEKTS", "ISCTR", "KCHOL", "KONTR", "KOZAA", "KOZAL", "KRDMD", "MAVI",
	"MGROS", "MIATK", "OYAKC", "PETKM", "PGSUS", "SAHOL", "SASA", "SISE", "SOKM", "TAVHL",
	"TCELL", "THYAO", "TKFEN", "TOASO", "TSKB", "TTKOM", "TUPRS", "ULKER", "VAKBN", "YKBNK",
}

// KAP scrapes company disclosures from the Public Disclosure Platform.
// The query API is asked for date slices, disclosures are filtered by stock code and
// class, and the text of each disclosure comes from its notification page.
type KAP struct {
	name       string
	baseURL    string
	stockCodes map[string]bool
	fetcher    Fetcher
	now        func() time.Time
}

// kapDisclosure is an element of the memberDisclosureQuery response
type kapDisclosure struct {
	PublishDate        string `json:"publishDate"`
	KapTitle           string `json:"kapTitle"`
	DisclosureClass    string `json:"disclosureClass"`
	DisclosureType     string `json:"disclosureType"`
	DisclosureCategory string `json:"disclosureCategory"`
	Summary            string `json:"summary"`
	Subject            string `json:"subject"`
	DisclosureIndex    int64  `json:"disclosureIndex"`
	StockCodes         string `json:"stockCodes"`
}

// kapQuery is the request body of memberDisclosureQuery
type kapQuery struct {
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
}

// NewKAP makes KAP adapter, empty codes means DefaultStockCodes
func NewKAP(name, baseURL string, codes []string, f Fetcher) *KAP {
	if baseURL == "" {
		baseURL = kapDefaultURL
	}
	if len(codes) == 0 {
		codes = DefaultStockCodes
	}
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return &KAP{name: name, baseURL: strings.TrimSuffix(baseURL, "/"), stockCodes: set, fetcher: f, now: time.Now}
}

// Name returns source name
func (k *KAP) Name() string { return k.name }

// Scrape queries every date slice of the range and enriches matching disclosures
func (k *KAP) Scrape(ctx context.Context, r Range) ([]domain.NewsRecord, error) {
	slices := kapSlices(r)
	var categories sync.Map // disclosure url -> category, decides how the page is parsed
	candidates := k.fetcher.Paginate(ctx, 0, func(ctx context.Context, page int) ([]domain.NewsRecord, bool, error) {
		if page >= len(slices) {
			return nil, true, nil
		}
		return k.query(ctx, slices[page], &categories)
	})
	lgr.Printf("[DEBUG] %s found %d matching disclosures in %s", k.name, len(candidates), r)
	if len(candidates) == 0 {
		return nil, nil
	}
	return k.fetcher.Enrich(ctx, candidates, func(ctx context.Context, rec domain.NewsRecord) (domain.NewsRecord, error) {
		category, _ := categories.Load(rec.URL)
		return k.enrich(ctx, rec, category == "STT")
	}), nil
}

// kapSlices splits range into query slices, each spans kapSliceDays days after its start
func kapSlices(r Range) []kapQuery {
	var res []kapQuery
	for start := r.Start; !start.After(r.End); {
		end := start.AddDate(0, 0, kapSliceDays)
		if end.After(r.End) {
			end = r.End
		}
		res = append(res, kapQuery{FromDate: start.Format("2006-01-02"), ToDate: end.Format("2006-01-02")})
		start = end.AddDate(0, 0, 1)
	}
	return res
}

// query fetches one date slice and records category of every accepted disclosure
func (k *KAP) query(ctx context.Context, q kapQuery, categories *sync.Map) ([]domain.NewsRecord, bool, error) {
	body, err := k.fetcher.PostJSON(ctx, k.baseURL+"/tr/api/memberDisclosureQuery", q)
	if err != nil {
		return nil, false, fmt.Errorf("query disclosures %s..%s: %w", q.FromDate, q.ToDate, err)
	}

	var items []kapDisclosure
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, false, fmt.Errorf("decode disclosures %s..%s: %w", q.FromDate, q.ToDate, err)
	}

	var res []domain.NewsRecord
	for _, d := range items {
		if !k.accept(d) {
			continue
		}
		ts, err := k.parsePublishDate(d.PublishDate)
		if err != nil {
			lgr.Printf("[DEBUG] %s skip disclosure %d: %v", k.name, d.DisclosureIndex, err)
			continue
		}
		link := fmt.Sprintf("%s/tr/Bildirim/%d", k.baseURL, d.DisclosureIndex)
		categories.Store(link, d.DisclosureCategory)
		res = append(res, domain.NewsRecord{
			Title:       fmt.Sprintf("%d - %s - %s", d.DisclosureIndex, d.StockCodes, cleanText(d.KapTitle)),
			PublishedAt: &ts,
			Source:      k.name,
			URL:         link,
		})
	}
	return res, false, nil
}

// accept keeps material event disclosures (class ODA, category STT or ODA) of tracked companies
func (k *KAP) accept(d kapDisclosure) bool {
	if d.DisclosureClass != "ODA" || d.DisclosureIndex == 0 {
		return false
	}
	if d.DisclosureCategory != "STT" && d.DisclosureCategory != "ODA" && d.DisclosureType != "ODA" {
		return false
	}
	for _, code := range strings.Split(d.StockCodes, ",") {
		if k.stockCodes[strings.ToUpper(strings.TrimSpace(code))] {
			return true
		}
	}
	return false
}

// parsePublishDate parses "dd.mm.yy HH:MM", where the date may be "Bugün" (today) or "Dün" (yesterday)
func (k *KAP) parsePublishDate(s string) (time.Time, error) {
	now := k.now().In(domain.Location)
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, "Bugün"):
		s = strings.Replace(s, "Bugün", now.Format("02.01.06"), 1)
	case strings.Contains(s, "Dün"):
		s = strings.Replace(s, "Dün", now.AddDate(0, 0, -1).Format("02.01.06"), 1)
	}
	ts, err := time.ParseInLocation("02.01.06 15:04", s, domain.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad publish date %q: %w", s, err)
	}
	return ts, nil
}

// enrich reads disclosure text from the notification page. Status change (STT) pages keep
// the text in a table, other material events in a summernote block.
func (k *KAP) enrich(ctx context.Context, rec domain.NewsRecord, stt bool) (domain.NewsRecord, error) {
	body, err := k.fetcher.Get(ctx, rec.URL)
	if err != nil {
		return rec, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return rec, fmt.Errorf("parse disclosure page: %w", err)
	}

	if stt {
		rec.Content = k.additionalExplanations(doc)
		return rec, nil
	}
	rec.Content = spacedText(doc.Find("td.taxonomy-context-value-summernote.multi-language-content.content-tr div.text-block-value").First())
	return rec, nil
}

// additionalExplanations returns the cell following "Ek Açıklamalar" label,
// falls back to the last cell of the disclosure table
func (k *KAP) additionalExplanations(doc *goquery.Document) string {
	cells := doc.Find("div.disclosureScrollableArea td")
	if cells.Length() == 0 {
		return ""
	}
	for i := cells.Length() - 2; i >= 0; i-- {
		if cleanText(cells.Eq(i).Text()) == "Ek Açıklamalar" {
			return spacedText(cells.Eq(i + 1))
		}
	}
	return spacedText(cells.Last())
}
