package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"

	"github.com/borsawire/borsawire/pkg/content"
	"github.com/borsawire/borsawire/pkg/domain"
)

// TextExtractor pulls readable text out of an article page
type TextExtractor interface {
	Extract(body []byte, pageURL string) (string, error)
}

// RSS scrapes any RSS or Atom feed. Items come with summary text,
// with extract enabled (or no summary) full text is read from the article page.
type RSS struct {
	name      string
	feedURL   string
	extract   bool
	fetcher   Fetcher
	extractor TextExtractor
}

// NewRSS makes feed adapter
func NewRSS(name, feedURL string, extract bool, f Fetcher) *RSS {
	return &RSS{name: name, feedURL: feedURL, extract: extract, fetcher: f, extractor: content.NewExtractor(100)}
}

// Name returns source name
func (s *RSS) Name() string { return s.name }

// Scrape reads the feed once, items without a date are kept
func (s *RSS) Scrape(ctx context.Context, r Range) ([]domain.NewsRecord, error) {
	body, err := s.fetcher.Get(ctx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var ready, toEnrich []domain.NewsRecord
	for _, item := range feed.Items {
		if item.Title == "" || item.Link == "" {
			lgr.Printf("[DEBUG] %s skip item without title or link", s.name)
			continue
		}

		rec := domain.NewsRecord{Title: cleanText(item.Title), Source: s.name, URL: item.Link}
		switch {
		case item.PublishedParsed != nil:
			rec.PublishedAt = domain.TimePtr(item.PublishedParsed.In(domain.Location))
		case item.UpdatedParsed != nil:
			rec.PublishedAt = domain.TimePtr(item.UpdatedParsed.In(domain.Location))
		}
		if rec.PublishedAt != nil && !r.Contains(*rec.PublishedAt) {
			continue
		}

		rec.Content = cleanText(item.Content)
		if rec.Content == "" {
			rec.Content = cleanText(item.Description)
		}

		if s.extract || rec.Content == "" {
			toEnrich = append(toEnrich, rec)
			continue
		}
		ready = append(ready, rec)
	}

	if len(toEnrich) > 0 {
		ready = append(ready, s.fetcher.Enrich(ctx, toEnrich, s.enrich)...)
	}
	return ready, nil
}

// enrich replaces content with text extracted from the article page,
// the feed summary stays if extraction fails
func (s *RSS) enrich(ctx context.Context, rec domain.NewsRecord) (domain.NewsRecord, error) {
	text, err := s.extractText(ctx, rec.URL)
	if err != nil {
		if rec.HasContent() {
			lgr.Printf("[DEBUG] %s keep feed summary for %s: %v", s.name, rec.URL, err)
			return rec, nil
		}
		return rec, err
	}
	rec.Content = text
	return rec, nil
}

func (s *RSS) extractText(ctx context.Context, pageURL string) (string, error) {
	body, err := s.fetcher.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return s.extractor.Extract(body, pageURL)
}
