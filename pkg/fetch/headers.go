package fetch

import (
	"math/rand"
	"net/http"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// acceptLanguages contains browser Accept-Language values typical for turkish readers
var acceptLanguages = []string{
	"tr-TR,tr;q=0.9",
	"tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7",
	"tr,en-US;q=0.9,en;q=0.8",
	"en-US,en;q=0.9,tr;q=0.8",
}

// addBrowserHeaders adds common browser headers with some randomization.
// Headers already set by the request builder are kept.
func addBrowserHeaders(req *http.Request, userAgent string) {
	setDefault := func(k, v string) {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	setDefault("User-Agent", userAgent)
	setDefault("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	setDefault("Cache-Control", "no-cache")
	setDefault("Pragma", "no-cache")
	setDefault("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // non-cryptographic randomness is fine for header variation

	// dnt - 30% chance of being set
	if rand.Float32() < 0.3 { //nolint:gosec // non-cryptographic randomness is fine
		req.Header.Set("DNT", "1")
	}
}
