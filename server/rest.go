package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/repository"
	"github.com/borsawire/borsawire/pkg/scheduler"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	count, err := s.db.Count(r.Context(), "")
	if err != nil {
		log.Printf("[WARN] failed to count records: %v", err)
		status["status"] = "degraded"
	} else {
		status["records"] = count
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// listNewsHandler returns every stored record in wire form
func (s *Server) listNewsHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := s.db.All(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to get news: %v", err)
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, toMessages(recs))
}

// createNewsHandler stores a single record posted in wire form
func (s *Server) createNewsHandler(w http.ResponseWriter, r *http.Request) {
	var msg domain.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	msg.Title = strings.TrimSpace(msg.Title)
	msg.URL = strings.TrimSpace(msg.URL)
	if msg.Title == "" || msg.URL == "" {
		RenderError(w, r, errors.New("title and news_url are required"), http.StatusBadRequest)
		return
	}

	rec, err := msg.Record()
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	saved, err := s.db.SaveOne(r.Context(), rec)
	if errors.Is(err, repository.ErrDuplicate) {
		RenderError(w, r, fmt.Errorf("news %s already exists", rec.URL), http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("[ERROR] failed to save news %s: %v", rec.URL, err)
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusCreated, saved.ToMessage())
}

// queryNewsHandler returns records filtered by from, to, source and limit query params
func (s *Server) queryNewsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	recs, err := s.db.Query(r.Context(), q)
	if err != nil {
		log.Printf("[ERROR] failed to query news: %v", err)
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, toMessages(recs))
}

// sourcesHandler returns scheduler state of every source
func (s *Server) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, r, http.StatusOK, s.scheduler.Status())
}

// runSourceHandler runs a source right away and waits for the result
func (s *Server) runSourceHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	res, err := s.scheduler.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownSource):
		RenderError(w, r, err, http.StatusNotFound)
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		RenderError(w, r, err, http.StatusConflict)
	case errors.Is(err, scheduler.ErrStopped):
		RenderError(w, r, err, http.StatusServiceUnavailable)
	case err != nil:
		log.Printf("[WARN] on-demand run of %s failed: %v", name, err)
		RenderJSON(w, r, http.StatusBadGateway, map[string]any{"error": err.Error(), "result": res})
	default:
		RenderJSON(w, r, http.StatusOK, res)
	}
}

// parseQuery builds storage query from request params. Dates without time
// cover the whole day for "to".
func parseQuery(r *http.Request) (repository.Query, error) {
	q := repository.Query{Source: strings.TrimSpace(r.URL.Query().Get("source")), Limit: defaultQueryLimit}

	if v := r.URL.Query().Get("from"); v != "" {
		ts, err := domain.ParseTime(v)
		if err != nil {
			return q, fmt.Errorf("invalid from: %w", err)
		}
		q.From = &ts
	}

	if v := r.URL.Query().Get("to"); v != "" {
		ts, err := domain.ParseTime(v)
		if err != nil {
			return q, fmt.Errorf("invalid to: %w", err)
		}
		if len(strings.TrimSpace(v)) == len("2006-01-02") {
			ts = ts.AddDate(0, 0, 1).Add(-time.Second)
		}
		q.To = &ts
	}

	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return q, errors.New("to is before from")
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return q, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = min(limit, maxQueryLimit)
	}
	return q, nil
}

func toMessages(recs []domain.NewsRecord) []domain.Message {
	res := make([]domain.Message, 0, len(recs))
	for _, rec := range recs {
		res = append(res, rec.ToMessage())
	}
	return res
}
