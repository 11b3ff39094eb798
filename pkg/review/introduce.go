package review

import (
	"context"

	"go.uber.org/zap"
)

// LearnBatchSize is how many new kanji one "learn more" request introduces.
const LearnBatchSize = 10

// IntroductionStore is the slice of db.Store the introducer writes through.
type IntroductionStore interface {
	InitializeNewReviewStates(ctx context.Context, count int) (int, error)
}

// Introducer moves untracked kanji into the SRS pipeline in bounded batches.
type Introducer struct {
	store     IntroductionStore
	log       *zap.Logger
	batchSize int
}

// NewIntroducer creates an Introducer that introduces LearnBatchSize kanji per call.
func NewIntroducer(store IntroductionStore, logger *zap.Logger) *Introducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introducer{store: store, log: logger.Named("introducer"), batchSize: LearnBatchSize}
}

// LearnMore introduces the next batch and returns how many kanji it added.
// ok is false only when the store failed; a batch withheld because the
// previous one is still fresh is not a failure.
func (in *Introducer) LearnMore(ctx context.Context) (n int, ok bool) {
	n, err := in.store.InitializeNewReviewStates(ctx, in.batchSize)
	if err != nil {
		in.log.Error("failed to introduce new kanjis", zap.Error(err))
		return 0, false
	}
	if n == 0 {
		in.log.Info("no kanjis introduced", zap.Int("requested", in.batchSize))
	} else {
		in.log.Info("introduced new kanjis", zap.Int("count", n))
	}
	return n, true
}
