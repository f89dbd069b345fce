package fetch

import (
	"context"
	"sync"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/borsawire/borsawire/pkg/domain"
)

// PageFunc fetches and parses one page. done reports the end-of-data signal for the page,
// a page may return records and done at the same time.
type PageFunc func(ctx context.Context, page int) (recs []domain.NewsRecord, done bool, err error)

// EnrichFunc fills in content of a candidate record
type EnrichFunc func(ctx context.Context, rec domain.NewsRecord) (domain.NewsRecord, error)

// collector accumulates records produced by concurrent workers
type collector struct {
	mu   sync.Mutex
	recs []domain.NewsRecord
}

func (c *collector) add(recs ...domain.NewsRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, recs...)
	c.mu.Unlock()
}

func (c *collector) records() []domain.NewsRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recs
}

// pageResult is the outcome of one page in a round
type pageResult struct {
	page  int
	count int
	done  bool
	err   error
}

// Paginate requests pages in rounds of Workers pages starting from first:
// first..first+W-1, then the next W and so on. A page reporting done marks the
// tentative last page. The run stops after a round where no page past the
// tentative last page returned content, after a round where every page failed,
// or when MaxPages is reached. Failed pages are logged and abandoned.
func (e *Engine) Paginate(ctx context.Context, first int, fn PageFunc) []domain.NewsRecord {
	var out collector
	w := e.cfg.Workers
	issued := 0

	for cursor := first; ; cursor += w {
		n := w
		if e.cfg.MaxPages > 0 {
			if issued >= e.cfg.MaxPages {
				lgr.Printf("[WARN] %s reached max pages %d, stop at page %d", e.cfg.Source, e.cfg.MaxPages, cursor-1)
				break
			}
			n = min(n, e.cfg.MaxPages-issued)
		}

		results := make([]pageResult, n)
		var g errgroup.Group
		g.SetLimit(w)
		for i := range n {
			page := cursor + i
			g.Go(func() error {
				recs, done, err := fn(ctx, page)
				results[i] = pageResult{page: page, count: len(recs), done: done, err: err}
				if err != nil {
					lgr.Printf("[WARN] %s page %d abandoned: %v", e.cfg.Source, page, err)
					return nil
				}
				out.add(recs...)
				return nil
			})
		}
		_ = g.Wait()
		issued += n

		if roundExhausted(results) {
			lgr.Printf("[DEBUG] %s pagination finished at round %d-%d", e.cfg.Source, cursor, cursor+n-1)
			break
		}
		if ctx.Err() != nil {
			lgr.Printf("[WARN] %s pagination interrupted: %v", e.cfg.Source, ctx.Err())
			break
		}
	}

	return out.records()
}

// roundExhausted decides if pagination should stop after this round.
// Results are ordered by page number.
func roundExhausted(results []pageResult) bool {
	failed, tentativeLast := 0, -1
	for i, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		if r.done && tentativeLast < 0 {
			tentativeLast = i
		}
	}
	if failed == len(results) {
		return true
	}
	if tentativeLast < 0 {
		return false
	}
	// a later page may still have content if the source reports end-of-data unevenly
	for _, r := range results[tentativeLast+1:] {
		if r.count > 0 {
			return false
		}
	}
	return true
}

// Enrich runs fn over every record with EnrichWorkers concurrent workers.
// Records whose enrichment fails or yields no content are dropped.
func (e *Engine) Enrich(ctx context.Context, recs []domain.NewsRecord, fn EnrichFunc) []domain.NewsRecord {
	var out collector
	var g errgroup.Group
	g.SetLimit(e.cfg.EnrichWorkers)

	for _, rec := range recs {
		g.Go(func() error {
			enriched, err := fn(ctx, rec)
			if err != nil {
				lgr.Printf("[WARN] %s can't enrich %s, dropped: %v", e.cfg.Source, rec.URL, err)
				return nil
			}
			if !enriched.HasContent() {
				lgr.Printf("[DEBUG] %s no content for %s, dropped", e.cfg.Source, rec.URL)
				return nil
			}
			out.add(enriched)
			return nil
		})
	}
	_ = g.Wait()

	res := out.records()
	if dropped := len(recs) - len(res); dropped > 0 {
		lgr.Printf("[INFO] %s enriched %d of %d records", e.cfg.Source, len(res), len(recs))
	}
	return res
}
