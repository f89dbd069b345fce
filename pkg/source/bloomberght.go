package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/fetch"
)

const bloombergDefaultURL = "https://www.bloomberght.com"

// BloombergSearchTerms maps BIST 30 stock codes to the names BloombergHT search knows them by
var BloombergSearchTerms = map[string]string{
	"AEFES": "Efes", "AKBNK": "Akbank", "ALARK": "Alarko", "ASELS": "Aselsan", "ASTOR": "Astor",
	"BIMAS": "Bim", "EKGYO": "Emlak Konut", "ENKAI": "Enka", "EREGL": "Eregli", "FROTO": "Ford",
	"GARAN": "Garanti", "HEKTS": "Hektas", "ISCTR": "Is Bankasi", "KCHOL": "Koc Holding", "KONTR": "Kontrolmatik",
	"KOZAL": "Koza Altin", "KRDMD": "Kardemir", "MGROS": "Migros", "PETKM": "Petkim", "PGSUS": "Pegasus",
	"SAHOL": "Sabanci", "SASA": "Sasa", "SISE": "Sisecam", "TCELL": "Turkcell", "THYAO": "THY",
	"TOASO": "Tofas", "TTKOM": "Telekom", "TUPRS": "Tupras", "ULKER": "Ulker", "YKBNK": "Yapi Kredi",
}

// daily market wrap, published every day under the same title, not company news
const bloombergDailyWrap = "Piyasalarda gün sonu"

var (
	trMonths = map[string]time.Month{
		"Ocak": time.January, "Şubat": time.February, "Mart": time.March, "Nisan": time.April,
		"Mayıs": time.May, "Haziran": time.June, "Temmuz": time.July, "Ağustos": time.August,
		"Eylül": time.September, "Ekim": time.October, "Kasım": time.November, "Aralık": time.December,
	}
	trDateRe = regexp.MustCompile(`(\d{1,2})\s+(\pL+)\s+(\d{4}).*?(\d{1,2}):(\d{2})`)

	errNoDate = errors.New("no article date")
)

// Bloomberg scrapes BloombergHT search results for every tracked company. Search is not
// limited by date and result cards carry no date, so every result page is read and the
// date comes from the article page. Heavy, meant for backfill runs.
type Bloomberg struct {
	name    string
	baseURL *url.URL
	terms   []string
	fetcher Fetcher
}

// NewBloomberg makes BloombergHT adapter searching for the given stock codes,
// empty codes means all of BloombergSearchTerms. Unknown codes are searched as is.
func NewBloomberg(name, baseURL string, codes []string, f Fetcher) *Bloomberg {
	if baseURL == "" {
		baseURL = bloombergDefaultURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		lgr.Printf("[WARN] bad bloomberght url %q, use default: %v", baseURL, err)
		u, _ = url.Parse(bloombergDefaultURL)
	}

	if len(codes) == 0 {
		for code := range BloombergSearchTerms {
			codes = append(codes, code)
		}
		sort.Strings(codes)
	}
	terms := make([]string, 0, len(codes))
	seen := map[string]bool{}
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		term, ok := BloombergSearchTerms[code]
		if !ok {
			term = code
		}
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return &Bloomberg{name: name, baseURL: u, terms: terms, fetcher: f}
}

// Name returns source name
func (b *Bloomberg) Name() string { return b.name }

// Scrape walks search results of every term, dates the articles and keeps ones inside the range.
// An article found by several terms is kept once.
func (b *Bloomberg) Scrape(ctx context.Context, r Range) ([]domain.NewsRecord, error) {
	var cards []domain.NewsRecord
	seen := map[string]bool{}
	for _, term := range b.terms {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		found := b.fetcher.Paginate(ctx, 1, func(ctx context.Context, page int) ([]domain.NewsRecord, bool, error) {
			return b.searchPage(ctx, term, page)
		})
		for _, rec := range found {
			if seen[rec.URL] {
				continue
			}
			seen[rec.URL] = true
			cards = append(cards, rec)
		}
		lgr.Printf("[DEBUG] %s search %q found %d results", b.name, term, len(found))
	}
	if len(cards) == 0 {
		return nil, nil
	}

	dated := b.fetcher.Enrich(ctx, cards, b.enrich)
	res := make([]domain.NewsRecord, 0, len(dated))
	for _, rec := range dated {
		if rec.PublishedAt != nil && r.Contains(*rec.PublishedAt) {
			res = append(res, rec)
		}
	}
	lgr.Printf("[DEBUG] %s %d of %d articles inside %s", b.name, len(res), len(cards), r)
	return res, nil
}

func (b *Bloomberg) searchURL(term string, page int) string {
	return fmt.Sprintf("%s/infinite/arama/%s/p%d", b.baseURL, url.QueryEscape(term), page)
}

// searchPage parses one result page, an empty body or a page without cards is the last page
func (b *Bloomberg) searchPage(ctx context.Context, term string, page int) ([]domain.NewsRecord, bool, error) {
	body, err := b.fetcher.Get(ctx, b.searchURL(term, page))
	if err != nil {
		if fetch.IsStatus(err, http.StatusNotFound) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("search %q page %d: %w", term, page, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, true, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("parse search %q page %d: %w", term, page, err)
	}

	links := doc.Find("div.tab-content > div[data-type^='news-card'] > a")
	if links.Length() == 0 {
		return nil, true, nil
	}

	var res []domain.NewsRecord
	links.Each(func(_ int, a *goquery.Selection) {
		title := cleanText(a.AttrOr("title", ""))
		href := a.AttrOr("href", "")
		if title == "" || strings.TrimSpace(href) == "" || title == bloombergDailyWrap {
			return
		}
		link, err := resolveURL(b.baseURL, href)
		if err != nil {
			lgr.Printf("[DEBUG] %s skip bad link %q: %v", b.name, href, err)
			return
		}
		snippet := a.Find("figcaption div:nth-of-type(2)").First()
		if snippet.Length() == 0 {
			snippet = a.Find("figcaption div:nth-of-type(1)").First()
		}
		res = append(res, domain.NewsRecord{Title: title, Content: spacedText(snippet), Source: b.name, URL: link})
	})
	return res, false, nil
}

// enrich sets the publish time from the article page, articles without a readable date are dropped.
// The card snippet is the content, the article body is used only when the card has none.
func (b *Bloomberg) enrich(ctx context.Context, rec domain.NewsRecord) (domain.NewsRecord, error) {
	body, err := b.fetcher.Get(ctx, rec.URL)
	if err != nil {
		return rec, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return rec, fmt.Errorf("parse article: %w", err)
	}

	var ts time.Time
	doc.Find("div.news-wrapper div.text-xs").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t, ok := parseTurkishDate(cleanText(s.Text()))
		if ok {
			ts = t
		}
		return !ok
	})
	if ts.IsZero() {
		return rec, fmt.Errorf("%w in %s", errNoDate, rec.URL)
	}
	rec.PublishedAt = &ts

	if !rec.HasContent() {
		rec.Content = selectionText(doc.Find("div.news-wrapper article p"))
	}
	return rec, nil
}

// parseTurkishDate parses dates like "12 Mayıs 2025, Pazartesi 11:46"
func parseTurkishDate(s string) (time.Time, bool) {
	m := trDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := trMonths[m[2]]
	if !ok {
		return time.Time{}, false
	}
	nums := make([]int, 0, 4)
	for _, v := range []string{m[1], m[3], m[4], m[5]} {
		n, err := strconv.Atoi(v)
		if err != nil {
			return time.Time{}, false
		}
		nums = append(nums, n)
	}
	return time.Date(nums[1], month, nums[0], nums[2], nums[3], 0, 0, domain.Location), true
}
