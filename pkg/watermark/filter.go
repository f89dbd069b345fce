// Package watermark implements the incremental filter, dropping candidates
// a source has already persisted according to its watermark.
package watermark

import "github.com/borsawire/borsawire/pkg/domain"

// Filter returns candidates published at or after the watermark, except the
// watermark record itself (same timestamp and same title). Nil watermark passes
// everything. Candidates without a publish time can't be ordered and pass as well,
// storage uniqueness is the only guard for them.
func Filter(wm *domain.Watermark, candidates []domain.NewsRecord) []domain.NewsRecord {
	if wm == nil {
		return candidates
	}

	res := make([]domain.NewsRecord, 0, len(candidates))
	for _, c := range candidates {
		if isNew(wm, c) {
			res = append(res, c)
		}
	}
	return res
}

func isNew(wm *domain.Watermark, c domain.NewsRecord) bool {
	ts, ok := c.Published()
	if !ok {
		return true
	}
	if ts.Before(wm.PublishedAt) {
		return false
	}
	return !(ts.Equal(wm.PublishedAt) && c.Title == wm.Title)
}
