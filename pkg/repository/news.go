package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"

	"github.com/borsawire/borsawire/pkg/domain"
)

// ErrDuplicate is returned when a record with the same url is already stored
var ErrDuplicate = errors.New("duplicate news url")

// Query selects stored records. Zero fields are not applied.
type Query struct {
	From   *time.Time
	To     *time.Time
	Source string
	Limit  int
}

// store implements news operations on top of either the pool or a single connection
type store struct {
	conn dbConn
}

// newsSQL is the database row of a news record
type newsSQL struct {
	ID       int64          `db:"id"`
	Title    string         `db:"title"`
	Content  sql.NullString `db:"content"`
	DateTime sql.NullString `db:"date_time"`
	Source   string         `db:"source"`
	URL      string         `db:"news_url"`
}

const selectNews = `SELECT id, title, content, date_time, source, news_url FROM news`

const insertNews = `INSERT INTO news (title, content, date_time, source, news_url) VALUES (?, ?, ?, ?, ?)`

// SaveBatch stores records in a single transaction. If the batch hits a url that is already stored,
// the transaction is rolled back and records are inserted one by one, skipping duplicates.
// Returns records actually stored. On a non-duplicate failure during the per-record pass,
// records committed so far are returned together with the error.
func (s *store) SaveBatch(ctx context.Context, recs []domain.NewsRecord) ([]domain.NewsRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	err := withLockRetry(ctx, func() error { return s.insert(ctx, recs) })
	switch {
	case err == nil:
		return recs, nil
	case !isUniqueError(err):
		return nil, fmt.Errorf("save batch of %d: %w", len(recs), err)
	}

	log.Printf("[DEBUG] batch of %d has duplicates, saving one by one", len(recs))
	saved := make([]domain.NewsRecord, 0, len(recs))
	for _, rec := range recs {
		err := withLockRetry(ctx, func() error { return s.insert(ctx, []domain.NewsRecord{rec}) })
		if isUniqueError(err) {
			log.Printf("[DEBUG] skip duplicate %s", rec.URL)
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("save %s: %w", rec.URL, err)
		}
		saved = append(saved, rec)
	}
	return saved, nil
}

// SaveOne stores a single record and returns it, ErrDuplicate if its url is already stored
func (s *store) SaveOne(ctx context.Context, rec domain.NewsRecord) (*domain.NewsRecord, error) {
	err := withLockRetry(ctx, func() error { return s.insert(ctx, []domain.NewsRecord{rec}) })
	if isUniqueError(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", rec.URL, err)
	}
	return &rec, nil
}

// Latest returns the most recent dated record of the source, nil if there is none
func (s *store) Latest(ctx context.Context, source string) (*domain.NewsRecord, error) {
	var row newsSQL
	q := selectNews + ` WHERE source = ? AND date_time IS NOT NULL ORDER BY date_time DESC, id DESC LIMIT 1`
	if err := s.conn.GetContext(ctx, &row, q, source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest for %s: %w", source, err)
	}
	rec := row.toDomain()
	return &rec, nil
}

// Query returns dated records matching q, newest first.
// All values are bound as parameters, the statement text depends only on which fields are set.
func (s *store) Query(ctx context.Context, q Query) ([]domain.NewsRecord, error) {
	conds := []string{"date_time IS NOT NULL"}
	args := []any{}
	if q.From != nil {
		conds = append(conds, "date_time >= ?")
		args = append(args, domain.FormatTime(*q.From))
	}
	if q.To != nil {
		conds = append(conds, "date_time <= ?")
		args = append(args, domain.FormatTime(*q.To))
	}
	if q.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, q.Source)
	}

	query := selectNews + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY date_time DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	var rows []newsSQL
	if err := s.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	return toDomainList(rows), nil
}

// All returns every stored record in insertion order, including undated ones
func (s *store) All(ctx context.Context) ([]domain.NewsRecord, error) {
	var rows []newsSQL
	if err := s.conn.SelectContext(ctx, &rows, selectNews+" ORDER BY id"); err != nil {
		return nil, fmt.Errorf("get all news: %w", err)
	}
	return toDomainList(rows), nil
}

// Count returns the number of stored records, for a single source if source is not empty
func (s *store) Count(ctx context.Context, source string) (int, error) {
	var count int
	var err error
	if source == "" {
		err = s.conn.GetContext(ctx, &count, "SELECT COUNT(*) FROM news")
	} else {
		err = s.conn.GetContext(ctx, &count, "SELECT COUNT(*) FROM news WHERE source = ?", source)
	}
	if err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return count, nil
}

// insert writes recs in one transaction, all or nothing
func (s *store) insert(ctx context.Context, recs []domain.NewsRecord) error {
	return inTransaction(ctx, s.conn, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, insertNews)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range recs {
			var content, dateTime sql.NullString
			if rec.HasContent() {
				content = sql.NullString{String: rec.Content, Valid: true}
			}
			if ts, ok := rec.Published(); ok {
				dateTime = sql.NullString{String: domain.FormatTime(ts), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, rec.Title, content, dateTime, rec.Source, rec.URL); err != nil {
				return fmt.Errorf("insert %s: %w", rec.URL, err)
			}
		}
		return nil
	})
}

func (r newsSQL) toDomain() domain.NewsRecord {
	rec := domain.NewsRecord{Title: r.Title, Content: r.Content.String, Source: r.Source, URL: r.URL}
	if r.DateTime.Valid && r.DateTime.String != "" {
		ts, err := domain.ParseTime(r.DateTime.String)
		if err != nil {
			log.Printf("[WARN] bad date_time %q for %s: %v", r.DateTime.String, r.URL, err)
			return rec
		}
		rec.PublishedAt = &ts
	}
	return rec
}

func toDomainList(rows []newsSQL) []domain.NewsRecord {
	res := make([]domain.NewsRecord, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toDomain())
	}
	return res
}
