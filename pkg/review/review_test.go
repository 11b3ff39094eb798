package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/japaniel/kanjireview/pkg/db"
)

type fakeStore struct {
	due     []db.Kanji
	pending int
	err     error

	gotLimit int
	gotNow   time.Time
	gotCount int
	created  int
}

func (f *fakeStore) GetDueKanjis(ctx context.Context, now time.Time, limit int) ([]db.Kanji, error) {
	f.gotNow, f.gotLimit = now, limit
	return f.due, f.err
}

func (f *fakeStore) GetPendingReviewCount(ctx context.Context, now time.Time) (int, error) {
	f.gotNow = now
	return f.pending, f.err
}

func (f *fakeStore) InitializeNewReviewStates(ctx context.Context, count int) (int, error) {
	f.gotCount = count
	return f.created, f.err
}

func TestQueueAsksForCappedBatch(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fs := &fakeStore{due: []db.Kanji{{ID: 1}, {ID: 2}}, pending: 12}
	q := NewQueue(fs, nil)
	q.Now = func() time.Time { return now }

	due := q.GetDueItems(context.Background())
	assert.Len(t, due, 2)
	assert.Equal(t, DueBatchSize, fs.gotLimit)
	assert.Equal(t, now, fs.gotNow)

	assert.Equal(t, 12, q.GetPendingReviewCount(context.Background()))
}

func TestQueueDegradesOnStorageError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	q := NewQueue(&fakeStore{err: errors.New("disk I/O error")}, zap.New(core))

	due := q.GetDueItems(context.Background())
	require.NotNil(t, due)
	assert.Empty(t, due)
	assert.Equal(t, 0, q.GetPendingReviewCount(context.Background()))
	assert.Equal(t, 2, logs.Len())
}

func TestIntroducerUsesBatchSize(t *testing.T) {
	fs := &fakeStore{created: 10}
	in := NewIntroducer(fs, nil)
	n, ok := in.LearnMore(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 10, n)
	assert.Equal(t, LearnBatchSize, fs.gotCount)
}

func TestIntroducerReportsStorageFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	in := NewIntroducer(&fakeStore{err: errors.New("locked")}, zap.New(core))
	n, ok := in.LearnMore(context.Background())
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.Equal(t, 1, logs.FilterMessage("failed to introduce new kanjis").Len())
}

func TestQueueAgainstStore(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	store := db.NewStore(conn, nil)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	var batch []db.Kanji
	for i := int64(1); i <= 7; i++ {
		batch = append(batch, db.Kanji{ID: i, Kanji: "字", Meaning: "character"})
	}
	_, err = store.BatchInsertKanjis(ctx, batch)
	require.NoError(t, err)
	for i := int64(1); i <= 7; i++ {
		due := now.Add(-time.Duration(i) * time.Hour)
		require.NoError(t, store.CreateOrUpdateReviewState(ctx, db.ReviewState{KanjiID: i, Level: 2, NextReviewDate: due}))
	}

	q := NewQueue(store, nil)
	due := q.GetDueItems(ctx)
	require.Len(t, due, DueBatchSize)
	// Most overdue (largest offset, id 7) first.
	assert.Equal(t, int64(7), due[0].ID)
	for i := 1; i < len(due); i++ {
		assert.Greater(t, due[i-1].ID, due[i].ID)
	}
	assert.Equal(t, 7, q.GetPendingReviewCount(ctx))
}
