package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BatchInsertKanjis imports kanjis with their examples in one transaction and
// gives each an initial review state. An existing review state is left alone,
// so re-importing a kanji never resets its progress. A row that fails is
// logged and rolled back on its own; the rest of the batch still commits.
func (s *Store) BatchInsertKanjis(ctx context.Context, kanjis []Kanji) (int, error) {
	if len(kanjis) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	now := s.Now().Unix()
	imported := 0
	for _, k := range kanjis {
		if err := insertKanjiRow(ctx, tx, k, now); err != nil {
			s.log.Error("failed to import kanji, skipping",
				zap.String("kanji", k.Kanji),
				zap.Int64("id", k.ID),
				zap.Error(err))
			continue
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import tx (%d kanjis): %w", len(kanjis), err)
	}
	return imported, nil
}

// insertKanjiRow writes one kanji inside a savepoint so a failure undoes only
// this row's partial writes.
func insertKanjiRow(ctx context.Context, tx *sql.Tx, k Kanji, now int64) (err error) {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT kanji_row`); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	defer func() {
		if err != nil {
			_, _ = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT kanji_row`)
		}
		_, _ = tx.ExecContext(ctx, `RELEASE SAVEPOINT kanji_row`)
	}()

	id, err := upsertKanji(ctx, tx, k)
	if err != nil {
		return err
	}
	if err := replaceExamples(ctx, tx, id, k.Examples); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO review_state (kanji_id, level, incorrect_streak, next_review_date, created_at)
		 VALUES (?, 0, 0, ?, ?)`, id, now, now)
	if err != nil {
		return fmt.Errorf("insert review state: %w", err)
	}
	return nil
}

func upsertKanji(ctx context.Context, db DBExecutor, k Kanji) (int64, error) {
	text := strings.TrimSpace(k.Kanji)
	if text == "" {
		return 0, fmt.Errorf("kanji must be non-empty")
	}
	if k.ID <= 0 {
		return 0, fmt.Errorf("kanji %s: id must be positive, got %d", text, k.ID)
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO kanjis (id, kanji, meaning) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kanji = excluded.kanji,
		   meaning = excluded.meaning
		 RETURNING id`, k.ID, text, k.Meaning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert kanji %s: %w", text, err)
	}
	return id, nil
}

func replaceExamples(ctx context.Context, db DBExecutor, kanjiID int64, examples []Example) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kanji_examples WHERE kanji_id = ?`, kanjiID); err != nil {
		return fmt.Errorf("clear examples: %w", err)
	}
	for _, ex := range examples {
		word := strings.TrimSpace(ex.Word)
		if word == "" {
			continue
		}
		_, err := db.ExecContext(ctx,
			`INSERT INTO kanji_examples (kanji_id, word, reading) VALUES (?, ?, ?)`,
			kanjiID, word, strings.TrimSpace(ex.Reading))
		if err != nil {
			return fmt.Errorf("insert example %s: %w", word, err)
		}
	}
	return nil
}

// GetDueKanjis returns up to limit kanjis whose review is due before now, most
// overdue first, with examples loaded.
func (s *Store) GetDueKanjis(ctx context.Context, now time.Time, limit int) ([]Kanji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT k.id, k.kanji, k.meaning
		 FROM kanjis k
		 INNER JOIN review_state rs ON k.id = rs.kanji_id
		 WHERE rs.next_review_date < ?
		 ORDER BY rs.next_review_date, k.id
		 LIMIT ?`, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("query due kanjis: %w", err)
	}
	out, err := scanKanjis(rows)
	if err != nil {
		return nil, err
	}

	// Examples are loaded after rows is closed: the pool holds one connection.
	for i := range out {
		ex, err := getExamples(ctx, s.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Examples = ex
	}
	return out, nil
}

// GetKanji returns one kanji with its examples.
func (s *Store) GetKanji(ctx context.Context, id int64) (Kanji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var k Kanji
	err := s.db.QueryRowContext(ctx, `SELECT id, kanji, meaning FROM kanjis WHERE id = ?`, id).
		Scan(&k.ID, &k.Kanji, &k.Meaning)
	if errors.Is(err, sql.ErrNoRows) {
		return Kanji{}, ErrNotFound
	}
	if err != nil {
		return Kanji{}, fmt.Errorf("get kanji %d: %w", id, err)
	}
	k.Examples, err = getExamples(ctx, s.db, id)
	if err != nil {
		return Kanji{}, err
	}
	return k, nil
}

// GetKanjis lists every tracked kanji with its level, soonest review first.
func (s *Store) GetKanjis(ctx context.Context) ([]KanjiRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT k.id, k.kanji, k.meaning, rs.level, rs.next_review_date
		 FROM kanjis k
		 INNER JOIN review_state rs ON k.id = rs.kanji_id
		 ORDER BY rs.next_review_date, k.id`)
	if err != nil {
		return nil, fmt.Errorf("query kanji records: %w", err)
	}
	defer rows.Close()

	var out []KanjiRecord
	for rows.Next() {
		var r KanjiRecord
		var next int64
		if err := rows.Scan(&r.ID, &r.Kanji, &r.Meaning, &r.Level, &next); err != nil {
			return nil, fmt.Errorf("scan kanji record: %w", err)
		}
		r.NextReviewDate = time.Unix(next, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kanji records: %w", err)
	}
	return out, nil
}

// DeleteKanji removes a kanji; its examples and review state go with it.
func (s *Store) DeleteKanji(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM kanjis WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete kanji %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete kanji %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanKanjis(rows *sql.Rows) ([]Kanji, error) {
	defer rows.Close()
	var out []Kanji
	for rows.Next() {
		var k Kanji
		if err := rows.Scan(&k.ID, &k.Kanji, &k.Meaning); err != nil {
			return nil, fmt.Errorf("scan kanji: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kanjis: %w", err)
	}
	return out, nil
}

func getExamples(ctx context.Context, db DBExecutor, kanjiID int64) ([]Example, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT word, reading FROM kanji_examples WHERE kanji_id = ? ORDER BY id`, kanjiID)
	if err != nil {
		return nil, fmt.Errorf("query examples for %d: %w", kanjiID, err)
	}
	defer rows.Close()

	out := []Example{}
	for rows.Next() {
		var ex Example
		var reading sql.NullString
		if err := rows.Scan(&ex.Word, &reading); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		if reading.Valid {
			ex.Reading = reading.String
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate examples: %w", err)
	}
	return out, nil
}
