// Package scheduler drives periodic source runs. Each enabled source runs in its own
// goroutine on every tick, a source still running from the previous tick is skipped,
// and a failing or panicking source never affects the others.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/borsawire/borsawire/pkg/config"
	"github.com/borsawire/borsawire/pkg/metrics"
	"github.com/borsawire/borsawire/pkg/source"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider

// ConfigProvider returns the current configuration, re-read on every call
type ConfigProvider interface {
	Snapshot() *config.Config
}

// State of a source in the scheduler
type State string

// source states, a run goes idle -> running -> succeeded|failed -> idle
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

var transitions = map[State][]State{
	StateIdle:      {StateRunning},
	StateRunning:   {StateSucceeded, StateFailed},
	StateSucceeded: {StateIdle},
	StateFailed:    {StateIdle},
}

// errors returned by on-demand runs
var (
	ErrUnknownSource  = errors.New("unknown source")
	ErrAlreadyRunning = errors.New("source is already running")
	ErrStopped        = errors.New("scheduler is stopped")
)

// SourceStatus is the scheduler view of a single source
type SourceStatus struct {
	Name         string     `json:"name"`
	State        State      `json:"state"`
	Enabled      bool       `json:"enabled"`
	Runs         int        `json:"runs"`
	Failures     int        `json:"failures"`
	LastOutcome  State      `json:"last_outcome,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastRun      *RunResult `json:"last_run,omitempty"`
	LastFinished time.Time  `json:"last_finished"`
}

// Scheduler manages periodic runs of all configured sources
type Scheduler struct {
	sources   map[string]source.Adapter
	order     []string
	processor *SourceProcessor
	config    ConfigProvider
	now       func() time.Time

	mu       sync.Mutex
	status   map[string]*SourceStatus
	period   time.Duration
	stopping bool

	runs   sync.WaitGroup // in-flight source runs
	loop   sync.WaitGroup
	cancel context.CancelFunc
}

// Params for NewScheduler
type Params struct {
	Sources   []source.Adapter
	Store     Store
	Publisher Publisher // optional
	Config    ConfigProvider
}

// NewScheduler creates a scheduler for the given sources
func NewScheduler(params Params) *Scheduler {
	s := &Scheduler{
		sources:   make(map[string]source.Adapter, len(params.Sources)),
		processor: NewSourceProcessor(params.Store, params.Publisher),
		config:    params.Config,
		now:       time.Now,
		status:    make(map[string]*SourceStatus, len(params.Sources)),
	}
	for _, a := range params.Sources {
		name := a.Name()
		if _, dup := s.sources[name]; dup {
			lgr.Printf("[WARN] duplicate source %s ignored", name)
			continue
		}
		s.sources[name] = a
		s.order = append(s.order, name)
		s.status[name] = &SourceStatus{Name: name, State: StateIdle, Enabled: true}
	}
	return s
}

// Start begins the scheduler loop. The first tick fires immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.loop.Add(1)
	go s.run(ctx)

	lgr.Printf("[INFO] scheduler started with %d sources", len(s.order))
}

// Stop stops ticking and waits for in-flight runs to complete.
// Runs requested after Stop was called are refused with ErrStopped.
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.loop.Wait()
	s.runs.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.loop.Done()

	period := s.tick(ctx)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p := s.tick(ctx); p != period {
				lgr.Printf("[INFO] scrape period changed %v -> %v", period, p)
				period = p
				ticker.Reset(period)
			}
		}
	}
}

// tick takes a fresh config snapshot and starts a run for every enabled idle source.
// Returns the scrape period of the snapshot.
func (s *Scheduler) tick(ctx context.Context) time.Duration {
	cfg := s.config.Snapshot()
	rng := source.LastDays(s.now(), cfg.LookbackDays)

	for _, name := range s.order {
		enabled := s.enabled(cfg, name)
		s.setEnabled(name, enabled)
		if !enabled || s.backfillOnly(cfg, name) {
			continue
		}
		if err := s.acquire(name); err != nil {
			lgr.Printf("[DEBUG] %s skipped this tick: %v", name, err)
			continue
		}
		go func(a source.Adapter) {
			defer s.runs.Done()
			// runs are never interrupted mid-way, stopping the scheduler waits for them instead
			_, _ = s.execute(context.WithoutCancel(ctx), a, rng)
		}(s.sources[name])
	}

	period := cfg.ScrapePeriod()
	if period <= 0 {
		period = config.Default().ScrapePeriod()
	}
	s.mu.Lock()
	s.period = period
	s.mu.Unlock()
	return period
}

// RunNow runs the named source synchronously over the configured look-back range
func (s *Scheduler) RunNow(ctx context.Context, name string) (RunResult, error) {
	a, ok := s.sources[name]
	if !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if err := s.acquire(name); err != nil {
		return RunResult{}, fmt.Errorf("%w: %s", err, name)
	}
	defer s.runs.Done()

	cfg := s.config.Snapshot()
	return s.execute(context.WithoutCancel(ctx), a, source.LastDays(s.now(), cfg.LookbackDays))
}

// Backfill runs every enabled source once over rng, concurrently, and waits for all of them.
// Sources that failed are reported in the joined error, the others are still returned.
func (s *Scheduler) Backfill(ctx context.Context, rng source.Range) ([]RunResult, error) {
	cfg := s.config.Snapshot()

	var mu sync.Mutex
	var wg sync.WaitGroup
	var results []RunResult
	var errs []error

	for _, name := range s.order {
		if !s.enabled(cfg, name) {
			continue
		}
		if err := s.acquire(name); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%w: %s", err, name))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(a source.Adapter) {
			defer s.runs.Done()
			defer wg.Done()
			res, err := s.execute(ctx, a, rng)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
				return
			}
			results = append(results, res)
		}(s.sources[name])
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

// Status returns state of all sources in configuration order
func (s *Scheduler) Status() []SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]SourceStatus, 0, len(s.order))
	for _, name := range s.order {
		st := *s.status[name]
		if st.LastRun != nil {
			lr := *st.LastRun
			st.LastRun = &lr
		}
		res = append(res, st)
	}
	return res
}

// Period returns the scrape period used by the last tick
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// execute runs the pipeline for a source already moved to running state and
// settles the state afterwards. Panics are turned into a failed run.
func (s *Scheduler) execute(ctx context.Context, a source.Adapter, rng source.Range) (res RunResult, err error) {
	name := a.Name()
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			lgr.Printf("[ERROR] %s run panicked: %v\n%s", name, r, debug.Stack())
		}
		s.finish(name, res, err)
		state := StateSucceeded
		if err != nil {
			state = StateFailed
		}
		metrics.RecordRun(name, string(state), s.now().Sub(started).Seconds())
	}()

	return s.processor.Run(ctx, a, rng)
}

func (s *Scheduler) enabled(cfg *config.Config, name string) bool {
	sc, ok := cfg.Source(name)
	return ok && sc.IsEnabled()
}

func (s *Scheduler) setEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name].Enabled = enabled
}

// backfillOnly checks if the source is excluded from periodic ticks
func (s *Scheduler) backfillOnly(cfg *config.Config, name string) bool {
	sc, _ := cfg.Source(name)
	return sc.BackfillOnly
}

// acquire moves an idle source to running and registers the run, the caller
// must call s.runs.Done when the run is over. Registration happens under mu,
// so no run is added once Stop has started waiting.
func (s *Scheduler) acquire(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return ErrStopped
	}
	st := s.status[name]
	if st.State != StateIdle {
		return ErrAlreadyRunning
	}
	s.transition(st, StateRunning)
	s.runs.Add(1)
	return nil
}

// finish records the outcome of a run and returns the source to idle
func (s *Scheduler) finish(name string, res RunResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[name]
	st.Runs++
	st.LastFinished = s.now()
	st.LastRun = &res
	st.LastError = ""

	outcome := StateSucceeded
	if err != nil {
		outcome = StateFailed
		st.Failures++
		st.LastError = err.Error()
		lgr.Printf("[WARN] %s run failed: %v", name, err)
	}
	s.transition(st, outcome)
	st.LastOutcome = outcome
	s.transition(st, StateIdle)
}

// transition changes state, refusing moves not allowed by the state machine. Called with mu held.
func (s *Scheduler) transition(st *SourceStatus, to State) {
	for _, allowed := range transitions[st.State] {
		if allowed == to {
			st.State = to
			return
		}
	}
	lgr.Printf("[ERROR] %s: invalid state transition %s -> %s", st.Name, st.State, to)
}
