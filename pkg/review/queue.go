// Package review decides which kanji a session shows and when new kanji
// enter the SRS pipeline. Storage failures are logged and degrade to empty
// results; callers cannot tell an outage from an empty queue.
package review

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/kanjireview/pkg/db"
)

// DueBatchSize caps how many kanji one review session presents.
const DueBatchSize = 5

// DueStore is the slice of db.Store the queue reads.
type DueStore interface {
	GetDueKanjis(ctx context.Context, now time.Time, limit int) ([]db.Kanji, error)
	GetPendingReviewCount(ctx context.Context, now time.Time) (int, error)
}

// Queue selects due kanji.
type Queue struct {
	store DueStore
	log   *zap.Logger

	// Now returns the current time; tests replace it.
	Now func() time.Time
}

// NewQueue creates a Queue over the store.
func NewQueue(store DueStore, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, log: logger.Named("queue"), Now: time.Now}
}

// GetDueItems returns at most DueBatchSize overdue kanji, most overdue first.
func (q *Queue) GetDueItems(ctx context.Context) []db.Kanji {
	due, err := q.store.GetDueKanjis(ctx, q.Now(), DueBatchSize)
	if err != nil {
		q.log.Error("failed to load due kanjis", zap.Error(err))
		return []db.Kanji{}
	}
	if due == nil {
		due = []db.Kanji{}
	}
	return due
}

// GetPendingReviewCount returns how many kanji are overdue, uncapped.
func (q *Queue) GetPendingReviewCount(ctx context.Context) int {
	n, err := q.store.GetPendingReviewCount(ctx, q.Now())
	if err != nil {
		q.log.Error("failed to count pending reviews", zap.Error(err))
		return 0
	}
	return n
}
