// Package domain contains the records flowing through the ingestion pipeline
// and their wire representation.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the storage and wire format of published timestamps
const TimeLayout = "2006-01-02 15:04:05"

// Location is the wall clock all sources publish in (Europe/Istanbul, no DST since 2016)
var Location = time.FixedZone("TRT", 3*60*60)

// parse layouts accepted in addition to TimeLayout, most specific first
var altLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// NewsRecord is a single news item or disclosure collected from a source.
// URL is the natural key, two records with the same URL are the same item.
type NewsRecord struct {
	Title       string
	Content     string
	PublishedAt *time.Time
	Source      string
	URL         string
}

// HasContent reports whether the record carries non-blank content
func (r NewsRecord) HasContent() bool {
	return strings.TrimSpace(r.Content) != ""
}

// Published returns the publish time and whether it is known
func (r NewsRecord) Published() (time.Time, bool) {
	if r.PublishedAt == nil {
		return time.Time{}, false
	}
	return *r.PublishedAt, true
}

// Watermark marks the most recent record already persisted for a source
type Watermark struct {
	PublishedAt time.Time
	Title       string
}

// WatermarkFrom builds a watermark from the last persisted record.
// Returns nil if there is no record or it has no publish time.
func WatermarkFrom(rec *NewsRecord) *Watermark {
	if rec == nil || rec.PublishedAt == nil {
		return nil
	}
	return &Watermark{PublishedAt: *rec.PublishedAt, Title: rec.Title}
}

func (w *Watermark) String() string {
	if w == nil {
		return "none"
	}
	return fmt.Sprintf("%s %q", FormatTime(w.PublishedAt), w.Title)
}

// Message is the flat wire form of a NewsRecord, used by the queue and the HTTP API
type Message struct {
	Title    string  `json:"title"`
	Content  *string `json:"content"`
	DateTime *string `json:"date_time"`
	Source   string  `json:"source"`
	URL      string  `json:"news_url"`
}

// ToMessage converts record to its wire form, empty content and missing time become null
func (r NewsRecord) ToMessage() Message {
	msg := Message{Title: r.Title, Source: r.Source, URL: r.URL}
	if r.Content != "" {
		content := r.Content
		msg.Content = &content
	}
	if r.PublishedAt != nil {
		ts := FormatTime(*r.PublishedAt)
		msg.DateTime = &ts
	}
	return msg
}

// Record converts wire message back to a NewsRecord
func (m Message) Record() (NewsRecord, error) {
	rec := NewsRecord{Title: m.Title, Source: m.Source, URL: m.URL}
	if m.Content != nil {
		rec.Content = *m.Content
	}
	if m.DateTime != nil && *m.DateTime != "" {
		ts, err := ParseTime(*m.DateTime)
		if err != nil {
			return NewsRecord{}, fmt.Errorf("parse date_time: %w", err)
		}
		rec.PublishedAt = &ts
	}
	return rec, nil
}

// FormatTime formats t in the sources' wall clock using TimeLayout
func FormatTime(t time.Time) string {
	return t.In(Location).Format(TimeLayout)
}

// ParseTime parses a timestamp in TimeLayout or one of the shorter layouts.
// Values without a zone are taken as Location wall clock.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation(TimeLayout, s, Location)
	if err == nil {
		return t, nil
	}
	for _, layout := range altLayouts {
		if t, e := time.ParseInLocation(layout, s, Location); e == nil {
			return t.In(Location), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q: %w", s, err)
}

// TimePtr returns pointer to t, handy for building records
func TimePtr(t time.Time) *time.Time {
	return &t
}
