// Package controller is the single entry point for request-path operations.
// Every call is serialized behind one mutex.
package controller

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/japaniel/kanjireview/pkg/db"
	"github.com/japaniel/kanjireview/pkg/review"
	"github.com/japaniel/kanjireview/pkg/srs"
)

// Answer is one graded review submitted by the client.
type Answer struct {
	KanjiID         int64 `json:"kanji_id"`
	IncorrectStreak int   `json:"incorrect_streak"`
}

// Reviews is the payload for a review session.
type Reviews struct {
	Due          []db.Kanji `json:"kanjis"`
	PendingCount int        `json:"pending_count"`
}

// Store is the part of db.Store the controller uses directly.
type Store interface {
	GetReviewStates(ctx context.Context, ids []int64) ([]*db.ReviewState, error)
	CreateOrUpdateReviewState(ctx context.Context, st db.ReviewState) error
	BatchInsertKanjis(ctx context.Context, kanjis []db.Kanji) (int, error)
	GetKanjis(ctx context.Context) ([]db.KanjiRecord, error)
}

// Controller serves the review operations. Every method holds one lock, so
// a read-modify-write of review state never interleaves with another call.
type Controller struct {
	mu sync.Mutex

	scheduler  srs.Scheduler
	store      Store
	queue      *review.Queue
	introducer *review.Introducer
	log        *zap.Logger
}

// New returns a Controller. A nil logger discards log output.
func New(scheduler srs.Scheduler, store Store, queue *review.Queue, introducer *review.Introducer, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		scheduler:  scheduler,
		store:      store,
		queue:      queue,
		introducer: introducer,
		log:        logger.Named("controller"),
	}
}

// GetReviews returns the next due batch and the total overdue count.
func (c *Controller) GetReviews(ctx context.Context) Reviews {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Reviews{
		Due:          c.queue.GetDueItems(ctx),
		PendingCount: c.queue.GetPendingReviewCount(ctx),
	}
}

// SetAnswers applies each answer through the scheduler and returns how many
// review states were written. Answers for kanji without a review state are
// skipped. A failed write does not stop the remaining answers.
func (c *Controller) SetAnswers(ctx context.Context, answers []Answer) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(answers) == 0 {
		return 0
	}

	ids := make([]int64, len(answers))
	for i, a := range answers {
		ids[i] = a.KanjiID
	}
	states, err := c.store.GetReviewStates(ctx, ids)
	if err != nil {
		c.log.Error("failed to load review states", zap.Int("answers", len(answers)), zap.Error(err))
		return 0
	}

	updated := 0
	for i, a := range answers {
		if i >= len(states) || states[i] == nil {
			c.log.Warn("no review state for answered kanji", zap.Int64("kanji_id", a.KanjiID))
			continue
		}
		next := c.scheduler.GetNextState(*states[i], a.IncorrectStreak)
		if err := c.store.CreateOrUpdateReviewState(ctx, next); err != nil {
			c.log.Error("failed to save review state", zap.Int64("kanji_id", a.KanjiID), zap.Error(err))
			continue
		}
		c.log.Debug("review state updated",
			zap.Int64("kanji_id", a.KanjiID),
			zap.Int("level", next.Level),
			zap.Time("next_review", next.NextReviewDate))
		updated++
	}
	return updated
}

// LearnMoreKanjis introduces the next batch of new kanji and returns how many
// were added. ok is false when the store failed.
func (c *Controller) LearnMoreKanjis(ctx context.Context) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.introducer.LearnMore(ctx)
}

// BatchAddKanjis imports kanji and returns how many rows were stored.
func (c *Controller) BatchAddKanjis(ctx context.Context, kanjis []db.Kanji) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.store.BatchInsertKanjis(ctx, kanjis)
	if err != nil {
		c.log.Error("failed to import kanjis", zap.Int("submitted", len(kanjis)), zap.Error(err))
		return 0
	}
	c.log.Info("imported kanjis", zap.Int("submitted", len(kanjis)), zap.Int("imported", n))
	return n
}

// GetKanjis lists every tracked kanji with its progress.
func (c *Controller) GetKanjis(ctx context.Context) []db.KanjiRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.store.GetKanjis(ctx)
	if err != nil {
		c.log.Error("failed to list kanjis", zap.Error(err))
		return []db.KanjiRecord{}
	}
	if records == nil {
		records = []db.KanjiRecord{}
	}
	return records
}
