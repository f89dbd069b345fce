package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/repository"
	"github.com/borsawire/borsawire/pkg/scheduler"
	"github.com/borsawire/borsawire/server/mocks"
)

func testConfigProvider() *mocks.ConfigProviderMock {
	return &mocks.ConfigProviderMock{
		GetServerConfigFunc: func() (string, time.Duration) {
			return ":8080", 30 * time.Second
		},
	}
}

func testRecords() []domain.NewsRecord {
	ts := time.Date(2024, 1, 2, 10, 0, 0, 0, domain.Location)
	return []domain.NewsRecord{
		{Title: "T1", Content: "c1", PublishedAt: &ts, Source: "KAP", URL: "https://kap.example/1"},
		{Title: "T2", Source: "RSS", URL: "https://rss.example/2"},
	}
}

func TestServer_New(t *testing.T) {
	srv := New(testConfigProvider(), &mocks.DatabaseMock{}, &mocks.SchedulerMock{}, "1.0.0", false)
	assert.NotNil(t, srv)
	assert.Equal(t, "1.0.0", srv.version)
	assert.False(t, srv.debug)
}

func TestServer_Run(t *testing.T) {
	// find free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	err = listener.Close()
	require.NoError(t, err)

	cfg := &mocks.ConfigProviderMock{
		GetServerConfigFunc: func() (string, time.Duration) {
			return fmt.Sprintf("127.0.0.1:%d", port), 30 * time.Second
		},
	}
	database := &mocks.DatabaseMock{
		AllFunc: func(ctx context.Context) ([]domain.NewsRecord, error) { return testRecords(), nil },
	}

	srv := New(cfg, database, &mocks.SchedulerMock{}, "1.0.0", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// wait for server to start
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "pong"
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/news", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "borsawire", resp.Header.Get("App-Name"))

	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// shutdown server
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunWaitsForInFlightRequests(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	cfg := &mocks.ConfigProviderMock{
		GetServerConfigFunc: func() (string, time.Duration) {
			return fmt.Sprintf("127.0.0.1:%d", port), 30 * time.Second
		},
	}
	started := make(chan struct{})
	release := make(chan struct{})
	sched := &mocks.SchedulerMock{RunNowFunc: func(_ context.Context, name string) (scheduler.RunResult, error) {
		close(started)
		<-release
		return scheduler.RunResult{Source: name, Saved: 1}, nil
	}}
	srv := New(cfg, &mocks.DatabaseMock{}, sched, "1.0.0", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", port))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	codes := make(chan int, 1)
	go func() {
		resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/api/v1/sources/KAP/run", port), "", http.NoBody)
		if err != nil {
			codes <- 0
			return
		}
		resp.Body.Close()
		codes <- resp.StatusCode
	}()
	<-started

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while a request was still in flight")
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, http.StatusOK, <-codes)
}

func TestServer_statusHandler(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		database := &mocks.DatabaseMock{CountFunc: func(context.Context, string) (int, error) { return 42, nil }}
		srv := New(testConfigProvider(), database, &mocks.SchedulerMock{}, "1.2.3", false)

		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/status", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var status map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, "ok", status["status"])
		assert.Equal(t, "1.2.3", status["version"])
		assert.InDelta(t, 42, status["records"], 0.001)
		assert.NotEmpty(t, status["time"])
	})

	t.Run("database error", func(t *testing.T) {
		database := &mocks.DatabaseMock{CountFunc: func(context.Context, string) (int, error) { return 0, errors.New("locked") }}
		srv := New(testConfigProvider(), database, &mocks.SchedulerMock{}, "1.2.3", false)

		w := httptest.NewRecorder()
		srv.statusHandler(w, httptest.NewRequest("GET", "/api/v1/status", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
		var status map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, "degraded", status["status"])
		assert.NotContains(t, status, "records")
	})
}

func TestServer_listNewsHandler(t *testing.T) {
	t.Run("records in wire form", func(t *testing.T) {
		database := &mocks.DatabaseMock{AllFunc: func(context.Context) ([]domain.NewsRecord, error) { return testRecords(), nil }}
		srv := New(testConfigProvider(), database, &mocks.SchedulerMock{}, "1.0.0", false)

		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest("GET", "/news", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[
			{"title":"T1","content":"c1","date_time":"2024-01-02 10:00:00","source":"KAP","news_url":"https://kap.example/1"},
			{"title":"T2","content":null,"date_time":null,"source":"RSS","news_url":"https://rss.example/2"}
		]`, w.Body.String())
	})

	t.Run("empty list", func(t *testing.T) {
		database := &mocks.DatabaseMock{AllFunc: func(context.Context) ([]domain.NewsRecord, error) { return nil, nil }}
		srv := New(testConfigProvider(), database, &mocks.SchedulerMock{}, "1.0.0", false)

		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest("GET", "/news", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("database error", func(t *testing.T) {
		database := &mocks.DatabaseMock{AllFunc: func(context.Context) ([]domain.NewsRecord, error) {
			return nil, errors.New("disk I/O error")
		}}
		srv := New(testConfigProvider(), database, &mocks.SchedulerMock{}, "1.0.0", false)

		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest("GET", "/news", http.NoBody))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"disk I/O error"}`, w.Body.String())
	})
}

func TestServer_createNewsHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		saveErr    error
		wantCode   int
		wantSaved  bool
		wantInBody string
	}{
		{
			name:       "created",
			body:       `{"title":"T1","content":"c","date_time":"2024-01-02 10:00:00","source":"KAP","news_url":"https://kap.example/1"}`,
			wantCode:   http.StatusCreated,
			wantSaved:  true,
			wantInBody: `"news_url":"https://kap.example/1"`,
		},
		{
			name:       "created without optional fields",
			body:       `{"title":"T1","content":null,"date_time":null,"source":"KAP","news_url":"https://kap.example/1"}`,
			wantCode:   http.StatusCreated,
			wantSaved:  true,
			wantInBody: `"date_time":null`,
		},
		{
			name:       "duplicate",
			body:       `{"title":"T1","source":"KAP","news_url":"https://kap.example/1"}`,
			saveErr:    repository.ErrDuplicate,
			wantCode:   http.StatusConflict,
			wantSaved:  true,
			wantInBody: "already exists",
		},
		{
			name:      "storage failure",
			body:      `{"title":"T1","source":"KAP","news_url":"https://kap.example/1"}`,
			saveErr:   errors.New("database is locked"),
			wantCode:  http.StatusInternalServerError,
			wantSaved: true,
		},
		{name: "missing url", body: `{"title":"T1"}`, wantCode: http.StatusBadRequest, wantInBody: "required"},
		{name: "missing title", body: `{"news_url":"https://kap.example/1"}`, wantCode: http.StatusBadRequest},
		{name: "bad json", body: `{"title":`, wantCode: http.StatusBadRequest},
		{name: "bad date", body: `{"title":"T1","news_url":"u","date_time":"yesterday"}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := &mocks.DatabaseMock{
				SaveOneFunc: func(_ context.Context, rec domain.NewsRecord) (*domain.NewsRecord, error) {
					if tt.saveErr != nil {
						return nil, tt.saveErr
					}
					return &rec, nil
				},
			}
			srv := New(testConfigProvider(), database, &mocks.SchedulerMock{}, "1.0.0", false)

			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, httptest.NewRequest("POST", "/news", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantInBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantInBody)
			}
			if !tt.wantSaved {
				assert.Empty(t, database.SaveOneCalls())
				return
			}
			require.Len(t, database.SaveOneCalls(), 1)
			assert.Equal(t, "https://kap.example/1", database.SaveOneCalls()[0].Rec.URL)
		})
	}
}

func TestServer_queryNewsHandler(t *testing.T) {
	day := func(d, h, m, s int) time.Time { return time.Date(2024, 1, d, h, m, s, 0, domain.Location) }

	tests := []struct {
		name     string
		query    string
		wantCode int
		want     repository.Query
	}{
		{name: "defaults", query: "", wantCode: http.StatusOK, want: repository.Query{Limit: 100}},
		{name: "full", query: "?from=2024-01-02&to=2024-01-03&source=KAP&limit=5", wantCode: http.StatusOK,
			want: repository.Query{From: ptr(day(2, 0, 0, 0)), To: ptr(day(3, 23, 59, 59)), Source: "KAP", Limit: 5}},
		{name: "timestamps", query: "?from=2024-01-02+10:00:00&to=2024-01-02+12:30:00", wantCode: http.StatusOK,
			want: repository.Query{From: ptr(day(2, 10, 0, 0)), To: ptr(day(2, 12, 30, 0)), Limit: 100}},
		{name: "limit capped", query: "?limit=100000", wantCode: http.StatusOK, want: repository.Query{Limit: 1000}},
		{name: "bad from", query: "?from=yesterday", wantCode: http.StatusBadRequest},
		{name: "bad to", query: "?to=01/02/2024", wantCode: http.StatusBadRequest},
		{name: "reversed range", query: "?from=2024-01-03&to=2024-01-02", wantCode: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=abc", wantCode: http.StatusBadRequest},
		{name: "zero limit", query: "?limit=0", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := &mocks.DatabaseMock{
				QueryFunc: func(context.Context, repository.Query) ([]domain.NewsRecord, error) { return testRecords()[:1], nil },
			}
			srv := New(testConfigProvider(), database, &mocks.SchedulerMock{}, "1.0.0", false)

			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/news"+tt.query, http.NoBody))
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantCode != http.StatusOK {
				assert.Empty(t, database.QueryCalls())
				assert.Contains(t, w.Body.String(), `"error"`)
				return
			}
			require.Len(t, database.QueryCalls(), 1)
			got := database.QueryCalls()[0].Q
			assert.Equal(t, tt.want.Source, got.Source)
			assert.Equal(t, tt.want.Limit, got.Limit)
			assertTimePtr(t, tt.want.From, got.From)
			assertTimePtr(t, tt.want.To, got.To)

			var msgs []domain.Message
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
			require.Len(t, msgs, 1)
			assert.Equal(t, "T1", msgs[0].Title)
		})
	}
}

func TestServer_sourcesHandler(t *testing.T) {
	sched := &mocks.SchedulerMock{StatusFunc: func() []scheduler.SourceStatus {
		return []scheduler.SourceStatus{
			{Name: "KAP", State: scheduler.StateRunning, Enabled: true, Runs: 3},
			{Name: "BIGPARA", State: scheduler.StateIdle, Enabled: true, Runs: 2, Failures: 1,
				LastOutcome: scheduler.StateFailed, LastError: "timeout"},
		}
	}}
	srv := New(testConfigProvider(), &mocks.DatabaseMock{}, sched, "1.0.0", false)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/sources", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)

	var status []scheduler.SourceStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.Len(t, status, 2)
	assert.Equal(t, scheduler.StateRunning, status[0].State)
	assert.Equal(t, "timeout", status[1].LastError)
}

func TestServer_runSourceHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "ok", wantCode: http.StatusOK},
		{name: "unknown", err: fmt.Errorf("%w: nope", scheduler.ErrUnknownSource), wantCode: http.StatusNotFound},
		{name: "running", err: fmt.Errorf("%w: KAP", scheduler.ErrAlreadyRunning), wantCode: http.StatusConflict},
		{name: "stopping", err: fmt.Errorf("%w: KAP", scheduler.ErrStopped), wantCode: http.StatusServiceUnavailable},
		{name: "run failed", err: errors.New("scrape: 503"), wantCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &mocks.SchedulerMock{RunNowFunc: func(_ context.Context, name string) (scheduler.RunResult, error) {
				return scheduler.RunResult{Source: name, Saved: 3}, tt.err
			}}
			srv := New(testConfigProvider(), &mocks.DatabaseMock{}, sched, "1.0.0", false)

			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/sources/KAP/run", http.NoBody))
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			require.Len(t, sched.RunNowCalls(), 1)
			assert.Equal(t, "KAP", sched.RunNowCalls()[0].Name)

			if tt.err == nil {
				var res scheduler.RunResult
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
				assert.Equal(t, 3, res.Saved)
			}
		})
	}
}

func TestRenderJSON(t *testing.T) {
	data := map[string]string{
		"message": "test",
		"status":  "ok",
	}

	req := httptest.NewRequest("GET", "/test", http.NoBody)
	w := httptest.NewRecorder()

	RenderJSON(w, req, http.StatusOK, data)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestRenderError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedMsg  string
	}{
		{
			name:         "generic error",
			err:          errors.New("something went wrong"),
			expectedCode: http.StatusInternalServerError,
			expectedMsg:  "something went wrong",
		},
		{
			name:         "nil error",
			err:          nil,
			expectedCode: http.StatusInternalServerError,
			expectedMsg:  "unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", http.NoBody)
			w := httptest.NewRecorder()

			RenderError(w, req, tt.err, tt.expectedCode)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var result map[string]any
			err := json.Unmarshal(w.Body.Bytes(), &result)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedMsg, result["error"])
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }

func assertTimePtr(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "want %v, got %v", want, got)
}
