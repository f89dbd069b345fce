// Package content extracts readable article text from fetched HTML pages.
package content

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"
)

// Extractor pulls main article text out of HTML using trafilatura
type Extractor struct {
	minTextLength int
}

// NewExtractor creates a content extractor, texts shorter than minTextLength are rejected
func NewExtractor(minTextLength int) *Extractor {
	return &Extractor{minTextLength: minTextLength}
}

// Extract returns plain text content of the page body fetched from pageURL
func (e *Extractor) Extract(body []byte, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", pageURL)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", pageURL, err)
	}
	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", pageURL)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return "", fmt.Errorf("no text content extracted from %s", pageURL)
	}
	if len([]rune(text)) < e.minTextLength {
		return "", fmt.Errorf("content of %s too short, %d chars", pageURL, len([]rune(text)))
	}
	return text, nil
}
