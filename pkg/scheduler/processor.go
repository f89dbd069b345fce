package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/metrics"
	"github.com/borsawire/borsawire/pkg/source"
	"github.com/borsawire/borsawire/pkg/watermark"
)

//go:generate moq -out mocks/session.go -pkg mocks -skip-ensure -fmt goimports . Session
//go:generate moq -out mocks/publisher.go -pkg mocks -skip-ensure -fmt goimports . Publisher

// Store opens storage sessions. Every source run gets its own session.
type Store interface {
	Session(ctx context.Context) (Session, error)
}

// Session is a storage connection owned by a single run
type Session interface {
	Latest(ctx context.Context, source string) (*domain.NewsRecord, error)
	SaveBatch(ctx context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error)
	Close() error
}

// Publisher forwards persisted records to the message queue
type Publisher interface {
	Publish(ctx context.Context, rec domain.NewsRecord) error
}

// batchPublisher is implemented by publishers able to send many records at once
type batchPublisher interface {
	PublishBatch(ctx context.Context, recs []domain.NewsRecord) error
}

// RunResult describes one completed source run
type RunResult struct {
	RunID     string        `json:"run_id"`
	Source    string        `json:"source"`
	Range     string        `json:"range"`
	Watermark string        `json:"watermark"`
	Scraped   int           `json:"scraped"`
	Fresh     int           `json:"fresh"`
	Saved     int           `json:"saved"`
	Published int           `json:"published"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

// SourceProcessor runs the ingestion pipeline for one source:
// watermark, scrape, filter, store and publish
type SourceProcessor struct {
	store     Store
	publisher Publisher // nil disables publishing
	now       func() time.Time
}

// NewSourceProcessor makes a processor. Publisher may be nil.
func NewSourceProcessor(store Store, publisher Publisher) *SourceProcessor {
	return &SourceProcessor{store: store, publisher: publisher, now: time.Now}
}

// Run executes a single pass of adapter over rng. Records are published only after
// they were committed, and a publish failure never fails the run.
func (p *SourceProcessor) Run(ctx context.Context, adapter source.Adapter, rng source.Range) (res RunResult, err error) {
	name := adapter.Name()
	res = RunResult{RunID: uuid.NewString(), Source: name, Range: rng.String(), Started: p.now()}
	defer func() { res.Duration = p.now().Sub(res.Started) }()

	sess, err := p.store.Session(ctx)
	if err != nil {
		return res, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			lgr.Printf("[WARN] run %s, close session for %s: %v", res.RunID, name, cerr)
		}
	}()

	latest, err := sess.Latest(ctx, name)
	if err != nil {
		return res, fmt.Errorf("get watermark: %w", err)
	}
	wm := domain.WatermarkFrom(latest)
	res.Watermark = wm.String()
	lgr.Printf("[DEBUG] run %s, %s range %s, watermark %s", res.RunID, name, rng, wm)

	candidates, err := adapter.Scrape(ctx, rng)
	if err != nil {
		return res, fmt.Errorf("scrape: %w", err)
	}
	res.Scraped = len(candidates)
	metrics.AddRecords(name, "scraped", res.Scraped)

	fresh := watermark.Filter(wm, candidates)
	res.Fresh = len(fresh)
	metrics.AddRecords(name, "fresh", res.Fresh)
	if len(fresh) == 0 {
		lgr.Printf("[DEBUG] run %s, %s: nothing new in %d candidates", res.RunID, name, res.Scraped)
		return res, nil
	}

	saved, saveErr := sess.SaveBatch(ctx, fresh)
	res.Saved = len(saved)
	metrics.AddRecords(name, "saved", res.Saved)

	// saved records are committed even if the batch failed later, so they go out anyway
	res.Published = p.publish(ctx, res.RunID, saved)
	metrics.AddRecords(name, "published", res.Published)

	if saveErr != nil {
		return res, fmt.Errorf("save: %w", saveErr)
	}
	lgr.Printf("[INFO] run %s, %s: scraped %d, new %d, saved %d, published %d",
		res.RunID, name, res.Scraped, res.Fresh, res.Saved, res.Published)
	return res, nil
}

// publish sends recs in one batch when the publisher supports it. A failed batch
// falls back to record by record publishing, so the count stays per record.
func (p *SourceProcessor) publish(ctx context.Context, runID string, recs []domain.NewsRecord) int {
	if p.publisher == nil || len(recs) == 0 {
		return 0
	}
	if bp, ok := p.publisher.(batchPublisher); ok {
		err := bp.PublishBatch(ctx, recs)
		if err == nil {
			return len(recs)
		}
		lgr.Printf("[WARN] run %s, publish batch of %d: %v, retry one by one", runID, len(recs), err)
	}
	count := 0
	for _, rec := range recs {
		if err := p.publisher.Publish(ctx, rec); err != nil {
			lgr.Printf("[WARN] run %s, publish %s: %v", runID, rec.URL, err)
			continue
		}
		count++
	}
	return count
}
