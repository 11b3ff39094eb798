package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a kanji id has no row.
var ErrNotFound = errors.New("not found")

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the review-state store. Every method holds the store lock for its
// whole duration, so the notification poller and request handlers never
// interleave on the shared connection.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log *zap.Logger

	// Now returns the current time. Tests replace it to pin the clock.
	Now func() time.Time
}

// NewStore wraps an initialized connection (see Open).
func NewStore(conn *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:  conn,
		log: logger.Named("store"),
		Now: time.Now,
	}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// maxIDsPerQuery bounds the IN list of one lookup, well under SQLite's
// host parameter limit.
const maxIDsPerQuery = 500

// GetReviewStates returns one entry per requested id, in the same order.
// An entry is nil when the kanji has no review state yet.
func (s *Store) GetReviewStates(ctx context.Context, ids []int64) ([]*ReviewState, error) {
	out := make([]*ReviewState, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := make(map[int64]*ReviewState, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerQuery {
		end := min(start+maxIDsPerQuery, len(ids))
		if err := s.loadReviewStates(ctx, ids[start:end], found); err != nil {
			return nil, err
		}
	}

	for i, id := range ids {
		if st, ok := found[id]; ok {
			// Copy so duplicate ids in the request do not alias one struct.
			cp := *st
			out[i] = &cp
		}
	}
	return out, nil
}

func (s *Store) loadReviewStates(ctx context.Context, ids []int64, found map[int64]*ReviewState) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kanji_id, level, incorrect_streak, next_review_date, created_at
		 FROM review_state WHERE kanji_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("query review states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st ReviewState
		var next, created int64
		if err := rows.Scan(&st.KanjiID, &st.Level, &st.IncorrectStreak, &next, &created); err != nil {
			return fmt.Errorf("scan review state: %w", err)
		}
		st.NextReviewDate = time.Unix(next, 0)
		st.CreatedAt = time.Unix(created, 0)
		found[st.KanjiID] = &st
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate review states: %w", err)
	}
	return nil
}

// CreateOrUpdateReviewState upserts the state keyed by kanji id. created_at is
// written only on first insert.
func (s *Store) CreateOrUpdateReviewState(ctx context.Context, st ReviewState) error {
	if st.KanjiID <= 0 {
		return fmt.Errorf("kanjiID must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_state (kanji_id, level, incorrect_streak, next_review_date, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kanji_id) DO UPDATE SET
		   level = excluded.level,
		   incorrect_streak = excluded.incorrect_streak,
		   next_review_date = excluded.next_review_date`,
		st.KanjiID, st.Level, st.IncorrectStreak, st.NextReviewDate.Unix(), s.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert review state %d: %w", st.KanjiID, err)
	}
	return nil
}

// InitializeNewReviewStates introduces up to count untracked kanji, lowest ids
// first, and returns how many were introduced. Nothing is introduced while a
// previous batch is still outstanding: some state was never reviewed
// (created_at = next_review_date) or was created today (UTC).
func (s *Store) InitializeNewReviewStates(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin introduce tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	var fresh int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_state
		 WHERE created_at = next_review_date OR (created_at >= ? AND created_at < ?)`,
		dayStart.Unix(), dayEnd.Unix()).Scan(&fresh)
	if err != nil {
		return 0, fmt.Errorf("count fresh review states: %w", err)
	}
	if fresh > 0 {
		s.log.Debug("previous batch still outstanding, not introducing", zap.Int("fresh", fresh))
		return 0, nil
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM kanjis
		 WHERE id NOT IN (SELECT kanji_id FROM review_state)
		 ORDER BY id LIMIT ?`, count)
	if err != nil {
		return 0, fmt.Errorf("select untracked kanjis: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan kanji id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate untracked kanjis: %w", err)
	}

	for _, id := range ids {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO review_state (kanji_id, level, incorrect_streak, next_review_date, created_at)
			 VALUES (?, 0, 0, ?, ?)`, id, now.Unix(), now.Unix())
		if err != nil {
			return 0, fmt.Errorf("insert review state %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit introduce tx: %w", err)
	}
	return len(ids), nil
}

// GetPendingReviewCount counts review states due before now.
func (s *Store) GetPendingReviewCount(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_state WHERE next_review_date < ?`, now.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending reviews: %w", err)
	}
	return count, nil
}
