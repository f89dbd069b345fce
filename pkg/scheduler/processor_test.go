package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/scheduler/mocks"
	"github.com/borsawire/borsawire/pkg/source"
	srcmocks "github.com/borsawire/borsawire/pkg/source/mocks"
)

// storeFunc adapts a function to Store
type storeFunc func(ctx context.Context) (Session, error)

func (f storeFunc) Session(ctx context.Context) (Session, error) { return f(ctx) }

func sessionStore(sess Session) Store {
	return storeFunc(func(context.Context) (Session, error) { return sess, nil })
}

func news(src, title, url string, ts time.Time) domain.NewsRecord {
	return domain.NewsRecord{Title: title, Content: "body " + title, PublishedAt: &ts, Source: src, URL: url}
}

func ts(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, domain.Location)
}

func adapterMock(name string, recs []domain.NewsRecord, err error) *srcmocks.AdapterMock {
	return &srcmocks.AdapterMock{
		NameFunc:   func() string { return name },
		ScrapeFunc: func(context.Context, source.Range) ([]domain.NewsRecord, error) { return recs, err },
	}
}

// batchPublisherMock adds PublishBatch to the generated publisher mock
type batchPublisherMock struct {
	*mocks.PublisherMock
	err     error
	batches [][]domain.NewsRecord
}

func (m *batchPublisherMock) PublishBatch(_ context.Context, recs []domain.NewsRecord) error {
	m.batches = append(m.batches, recs)
	return m.err
}

func TestSourceProcessor_Run(t *testing.T) {
	rng := source.NewRange(ts(1, 0), ts(3, 0))
	t1 := news("kap", "T1", "https://e.com/1", ts(1, 10))
	t2 := news("kap", "T2", "https://e.com/2", ts(2, 10))
	t3 := news("kap", "T3", "https://e.com/3", ts(3, 10))

	t.Run("only records past watermark are saved and published", func(t *testing.T) {
		var mu sync.Mutex
		var events []string
		sess := &mocks.SessionMock{
			LatestFunc: func(context.Context, string) (*domain.NewsRecord, error) { return &t2, nil },
			SaveBatchFunc: func(_ context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error) {
				mu.Lock()
				events = append(events, "save")
				mu.Unlock()
				return recs, nil
			},
			CloseFunc: func() error { return nil },
		}
		pub := &mocks.PublisherMock{PublishFunc: func(_ context.Context, rec domain.NewsRecord) error {
			mu.Lock()
			events = append(events, "publish "+rec.Title)
			mu.Unlock()
			return nil
		}}
		adapter := adapterMock("kap", []domain.NewsRecord{t1, t2, t3}, nil)

		p := NewSourceProcessor(sessionStore(sess), pub)
		res, err := p.Run(context.Background(), adapter, rng)
		require.NoError(t, err)

		assert.Equal(t, "kap", res.Source)
		assert.NotEmpty(t, res.RunID)
		assert.Equal(t, `2024-01-02 10:00:00 "T2"`, res.Watermark)
		assert.Equal(t, 3, res.Scraped)
		assert.Equal(t, 1, res.Fresh)
		assert.Equal(t, 1, res.Saved)
		assert.Equal(t, 1, res.Published)

		require.Len(t, sess.LatestCalls(), 1)
		assert.Equal(t, "kap", sess.LatestCalls()[0].Source)
		require.Len(t, sess.SaveBatchCalls(), 1)
		assert.Equal(t, []domain.NewsRecord{t3}, sess.SaveBatchCalls()[0].Recs)
		assert.Len(t, sess.CloseCalls(), 1)
		require.Len(t, adapter.ScrapeCalls(), 1)
		assert.Equal(t, rng, adapter.ScrapeCalls()[0].R)
		assert.Equal(t, []string{"save", "publish T3"}, events)
	})

	t.Run("first run takes everything", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc:    func(context.Context, string) (*domain.NewsRecord, error) { return nil, nil },
			SaveBatchFunc: func(_ context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error) { return recs, nil },
			CloseFunc:     func() error { return nil },
		}
		p := NewSourceProcessor(sessionStore(sess), nil)
		res, err := p.Run(context.Background(), adapterMock("kap", []domain.NewsRecord{t1, t2, t3}, nil), rng)
		require.NoError(t, err)
		assert.Equal(t, "none", res.Watermark)
		assert.Equal(t, 3, res.Saved)
		assert.Equal(t, 0, res.Published, "no publisher configured")
	})

	t.Run("nothing new skips storage", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc: func(context.Context, string) (*domain.NewsRecord, error) { return &t3, nil },
			CloseFunc:  func() error { return nil },
		}
		pub := &mocks.PublisherMock{}
		p := NewSourceProcessor(sessionStore(sess), pub)
		res, err := p.Run(context.Background(), adapterMock("kap", []domain.NewsRecord{t1, t2, t3}, nil), rng)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Fresh)
		assert.Empty(t, sess.SaveBatchCalls())
		assert.Empty(t, pub.PublishCalls())
		assert.Len(t, sess.CloseCalls(), 1)
	})

	t.Run("committed part of a failed batch is still published", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc: func(context.Context, string) (*domain.NewsRecord, error) { return nil, nil },
			SaveBatchFunc: func(_ context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error) {
				return recs[:1], errors.New("disk full")
			},
			CloseFunc: func() error { return nil },
		}
		pub := &mocks.PublisherMock{PublishFunc: func(context.Context, domain.NewsRecord) error { return nil }}
		p := NewSourceProcessor(sessionStore(sess), pub)
		res, err := p.Run(context.Background(), adapterMock("kap", []domain.NewsRecord{t1, t2, t3}, nil), rng)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Equal(t, 1, res.Saved)
		require.Len(t, pub.PublishCalls(), 1)
		assert.Equal(t, "T1", pub.PublishCalls()[0].Rec.Title)
		assert.Len(t, sess.CloseCalls(), 1)
	})

	t.Run("publish failure does not fail the run", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc:    func(context.Context, string) (*domain.NewsRecord, error) { return nil, nil },
			SaveBatchFunc: func(_ context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error) { return recs, nil },
			CloseFunc:     func() error { return nil },
		}
		pub := &mocks.PublisherMock{PublishFunc: func(_ context.Context, rec domain.NewsRecord) error {
			if rec.Title == "T2" {
				return errors.New("broker down")
			}
			return nil
		}}
		p := NewSourceProcessor(sessionStore(sess), pub)
		res, err := p.Run(context.Background(), adapterMock("kap", []domain.NewsRecord{t1, t2, t3}, nil), rng)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Saved)
		assert.Equal(t, 2, res.Published)
		assert.Len(t, pub.PublishCalls(), 3)
	})

	t.Run("batch publisher gets all saved records at once", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc:    func(context.Context, string) (*domain.NewsRecord, error) { return nil, nil },
			SaveBatchFunc: func(_ context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error) { return recs, nil },
			CloseFunc:     func() error { return nil },
		}
		pub := &batchPublisherMock{PublisherMock: &mocks.PublisherMock{}}
		p := NewSourceProcessor(sessionStore(sess), pub)
		res, err := p.Run(context.Background(), adapterMock("kap", []domain.NewsRecord{t1, t2, t3}, nil), rng)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Published)
		require.Len(t, pub.batches, 1)
		assert.Len(t, pub.batches[0], 3)
		assert.Empty(t, pub.PublishCalls())
	})

	t.Run("failed batch falls back to single records", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc:    func(context.Context, string) (*domain.NewsRecord, error) { return nil, nil },
			SaveBatchFunc: func(_ context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error) { return recs, nil },
			CloseFunc:     func() error { return nil },
		}
		pub := &batchPublisherMock{err: errors.New("exec aborted"), PublisherMock: &mocks.PublisherMock{
			PublishFunc: func(_ context.Context, rec domain.NewsRecord) error {
				if rec.Title == "T3" {
					return errors.New("broker down")
				}
				return nil
			},
		}}
		p := NewSourceProcessor(sessionStore(sess), pub)
		res, err := p.Run(context.Background(), adapterMock("kap", []domain.NewsRecord{t1, t2, t3}, nil), rng)
		require.NoError(t, err)
		assert.Len(t, pub.batches, 1)
		assert.Len(t, pub.PublishCalls(), 3)
		assert.Equal(t, 2, res.Published, "counted per record")
	})

	t.Run("scrape error", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc: func(context.Context, string) (*domain.NewsRecord, error) { return nil, nil },
			CloseFunc:  func() error { return nil },
		}
		p := NewSourceProcessor(sessionStore(sess), nil)
		_, err := p.Run(context.Background(), adapterMock("kap", nil, errors.New("bad gateway")), rng)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scrape: bad gateway")
		assert.Empty(t, sess.SaveBatchCalls())
		assert.Len(t, sess.CloseCalls(), 1)
	})

	t.Run("watermark error", func(t *testing.T) {
		sess := &mocks.SessionMock{
			LatestFunc: func(context.Context, string) (*domain.NewsRecord, error) { return nil, errors.New("no such table") },
			CloseFunc:  func() error { return errors.New("already closed") },
		}
		adapter := adapterMock("kap", nil, nil)
		p := NewSourceProcessor(sessionStore(sess), nil)
		_, err := p.Run(context.Background(), adapter, rng)
		require.Error(t, err)
		assert.Empty(t, adapter.ScrapeCalls())
		assert.Len(t, sess.CloseCalls(), 1)
	})

	t.Run("session error", func(t *testing.T) {
		store := storeFunc(func(context.Context) (Session, error) { return nil, errors.New("too many connections") })
		adapter := adapterMock("kap", nil, nil)
		p := NewSourceProcessor(store, nil)
		_, err := p.Run(context.Background(), adapter, rng)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open session")
		assert.Empty(t, adapter.ScrapeCalls())
	})
}
