package db

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := Open(":memory:")
	require.NoError(t, err)
	s := NewStore(conn, zap.NewNop())
	s.Now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// insertBareKanji adds a kanji without a review state, the way kanji look
// before they are introduced.
func insertBareKanji(t *testing.T, s *Store, id int64, text string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO kanjis (id, kanji, meaning) VALUES (?, ?, ?)`, id, text, "meaning of "+text)
	require.NoError(t, err)
}

func countReviewStates(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM review_state`).Scan(&n))
	return n
}

func TestGetReviewStatesAlignsWithInput(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertBareKanji(t, s, 1, "一")
	insertBareKanji(t, s, 2, "二")
	require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 1, Level: 3, NextReviewDate: testNow.Add(time.Hour)}))
	require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 2, Level: 5, NextReviewDate: testNow.Add(2 * time.Hour)}))

	states, err := s.GetReviewStates(ctx, []int64{2, 42, 1, 2})
	require.NoError(t, err)
	require.Len(t, states, 4)

	require.NotNil(t, states[0])
	assert.Equal(t, int64(2), states[0].KanjiID)
	assert.Equal(t, 5, states[0].Level)
	assert.Nil(t, states[1], "unknown id must yield an absent entry")
	require.NotNil(t, states[2])
	assert.Equal(t, int64(1), states[2].KanjiID)
	require.NotNil(t, states[3])
	assert.NotSame(t, states[0], states[3])

	empty, err := s.GetReviewStates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetReviewStatesSpansSeveralQueries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	known := []int64{1, maxIDsPerQuery + 1, 2*maxIDsPerQuery + 7}
	for i, id := range known {
		insertBareKanji(t, s, id, string('一'+rune(i)))
		require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: id, Level: i + 1, NextReviewDate: testNow}))
	}

	ids := make([]int64, 0, 3*maxIDsPerQuery)
	for id := int64(1); id <= 3*maxIDsPerQuery; id++ {
		ids = append(ids, id)
	}
	states, err := s.GetReviewStates(ctx, ids)
	require.NoError(t, err)
	require.Len(t, states, len(ids))

	hits := 0
	for i, st := range states {
		if st == nil {
			continue
		}
		hits++
		assert.Equal(t, ids[i], st.KanjiID)
	}
	assert.Equal(t, len(known), hits)
	require.NotNil(t, states[2*maxIDsPerQuery+6])
	assert.Equal(t, 3, states[2*maxIDsPerQuery+6].Level)
}

func TestCreateOrUpdateReviewStateRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertBareKanji(t, s, 7, "七")

	first := ReviewState{KanjiID: 7, Level: 2, IncorrectStreak: 0, NextReviewDate: testNow.Add(8 * time.Hour)}
	require.NoError(t, s.CreateOrUpdateReviewState(ctx, first))

	// A later update must not move created_at.
	s.Now = func() time.Time { return testNow.Add(48 * time.Hour) }
	second := ReviewState{KanjiID: 7, Level: 1, IncorrectStreak: 3, NextReviewDate: testNow.Add(52 * time.Hour)}
	require.NoError(t, s.CreateOrUpdateReviewState(ctx, second))

	states, err := s.GetReviewStates(ctx, []int64{7})
	require.NoError(t, err)
	require.NotNil(t, states[0])
	got := states[0]
	assert.Equal(t, second.Level, got.Level)
	assert.Equal(t, second.NextReviewDate.Unix(), got.NextReviewDate.Unix())
	assert.Equal(t, testNow.Unix(), got.CreatedAt.Unix())
}

func TestCreateOrUpdateReviewStatePersistsStreak(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertBareKanji(t, s, 3, "三")

	require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 3, Level: 1, IncorrectStreak: 4, NextReviewDate: testNow}))
	states, err := s.GetReviewStates(ctx, []int64{3})
	require.NoError(t, err)
	assert.Equal(t, 4, states[0].IncorrectStreak)
}

func TestCreateOrUpdateReviewStateRejectsUnknownKanji(t *testing.T) {
	s := setupTestStore(t)
	err := s.CreateOrUpdateReviewState(context.Background(), ReviewState{KanjiID: 99, Level: 1, NextReviewDate: testNow})
	assert.Error(t, err)
	assert.Equal(t, 0, countReviewStates(t, s))
}

func TestInitializeNewReviewStatesEmptyStore(t *testing.T) {
	s := setupTestStore(t)
	n, err := s.InitializeNewReviewStates(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, countReviewStates(t, s))
}

func TestInitializeNewReviewStatesLowestIDsFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertBareKanji(t, s, 9, "九")
	insertBareKanji(t, s, 2, "二")
	insertBareKanji(t, s, 5, "五")

	n, err := s.InitializeNewReviewStates(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	states, err := s.GetReviewStates(ctx, []int64{2, 5, 9})
	require.NoError(t, err)
	for _, st := range states[:2] {
		require.NotNil(t, st)
		assert.Equal(t, 0, st.Level)
		assert.Equal(t, testNow.Unix(), st.NextReviewDate.Unix())
		assert.Equal(t, testNow.Unix(), st.CreatedAt.Unix())
	}
	assert.Nil(t, states[2])
}

func TestInitializeNewReviewStatesNoOpWhileUnreviewed(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertBareKanji(t, s, 1, "一")
	insertBareKanji(t, s, 2, "二")

	// Introduced last week and never reviewed.
	s.Now = func() time.Time { return testNow.AddDate(0, 0, -7) }
	_, err := s.InitializeNewReviewStates(ctx, 1)
	require.NoError(t, err)

	s.Now = func() time.Time { return testNow }
	n, err := s.InitializeNewReviewStates(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, countReviewStates(t, s))
}

func TestInitializeNewReviewStatesNoOpWhenCreatedToday(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertBareKanji(t, s, 1, "一")
	insertBareKanji(t, s, 2, "二")

	// Created this morning and already reviewed once.
	s.Now = func() time.Time { return testNow.Add(-3 * time.Hour) }
	require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 1, Level: 1, NextReviewDate: testNow.Add(time.Hour)}))

	s.Now = func() time.Time { return testNow }
	n, err := s.InitializeNewReviewStates(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInitializeNewReviewStatesAfterReviewedBatch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertBareKanji(t, s, 1, "一")
	insertBareKanji(t, s, 2, "二")
	insertBareKanji(t, s, 3, "三")

	s.Now = func() time.Time { return testNow.AddDate(0, 0, -2) }
	require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 1, Level: 2, NextReviewDate: testNow.AddDate(0, 0, -1)}))

	s.Now = func() time.Time { return testNow }
	n, err := s.InitializeNewReviewStates(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, countReviewStates(t, s))
}

func TestBatchInsertKanjisKeepsProgress(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	batch := []Kanji{
		{ID: 1, Kanji: "日", Meaning: "sun", Examples: []Example{{Word: "日本", Reading: "にほん"}, {Word: "毎日", Reading: "まいにち"}}},
		{ID: 2, Kanji: "月", Meaning: "moon"},
	}
	n, err := s.BatchInsertKanjis(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 1, Level: 6, NextReviewDate: testNow.Add(336 * time.Hour)}))

	batch[0].Meaning = "sun; day"
	batch[0].Examples = []Example{{Word: "日曜日", Reading: "にちようび"}}
	n, err = s.BatchInsertKanjis(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	states, err := s.GetReviewStates(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 6, states[0].Level)

	k, err := s.GetKanji(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "sun; day", k.Meaning)
	assert.Equal(t, []Example{{Word: "日曜日", Reading: "にちようび"}}, k.Examples)
}

func TestBatchInsertKanjisSkipsFailingRow(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	conn, err := Open(":memory:")
	require.NoError(t, err)
	s := NewStore(conn, zap.New(core))
	s.Now = func() time.Time { return testNow }
	defer s.Close()

	n, err := s.BatchInsertKanjis(context.Background(), []Kanji{
		{ID: 1, Kanji: "火", Meaning: "fire"},
		{ID: 2, Kanji: "  ", Meaning: "blank"},
		{ID: 3, Kanji: "水", Meaning: "water", Examples: []Example{{Word: "水曜日"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, countReviewStates(t, s))
	assert.Equal(t, 1, logs.FilterMessage("failed to import kanji, skipping").Len())

	_, err = s.GetKanji(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchInsertKanjisRejectsMissingID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	batch := []Kanji{{Kanji: "木", Meaning: "tree"}, {ID: -3, Kanji: "金", Meaning: "gold"}, {ID: 5, Kanji: "土", Meaning: "earth"}}

	// Importing the same file twice must not duplicate anything.
	for i := 0; i < 2; i++ {
		n, err := s.BatchInsertKanjis(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	records, err := s.GetKanjis(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(5), records[0].ID)
	assert.Equal(t, 1, countReviewStates(t, s))
}

func TestKanjiWithoutExamplesEncodesEmptyList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, err := s.BatchInsertKanjis(ctx, []Kanji{{ID: 1, Kanji: "一", Meaning: "one"}})
	require.NoError(t, err)

	due, err := s.GetDueKanjis(ctx, testNow.Add(time.Second), 5)
	require.NoError(t, err)
	require.Len(t, due, 1)
	body, err := json.Marshal(due)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"kanji":"一","meaning":"one","examples":[]}]`, string(body))

	k, err := s.GetKanji(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, k.Examples)
	assert.Empty(t, k.Examples)
}

func TestGetDueKanjisOrderAndCap(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var batch []Kanji
	for i := int64(1); i <= 8; i++ {
		batch = append(batch, Kanji{ID: i, Kanji: string('一' + rune(i)), Meaning: "m", Examples: []Example{{Word: "w", Reading: "r"}}})
	}
	_, err := s.BatchInsertKanjis(ctx, batch)
	require.NoError(t, err)

	// ids 1..7 overdue by decreasing amounts, id 8 due in the future.
	for i := int64(1); i <= 7; i++ {
		due := testNow.Add(-time.Duration(10-i) * time.Hour)
		require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: i, Level: 1, NextReviewDate: due}))
	}
	require.NoError(t, s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 8, Level: 1, NextReviewDate: testNow.Add(time.Hour)}))

	due, err := s.GetDueKanjis(ctx, testNow, 5)
	require.NoError(t, err)
	require.Len(t, due, 5)
	for i, k := range due {
		assert.Equal(t, int64(i+1), k.ID)
		assert.Len(t, k.Examples, 1)
	}

	pending, err := s.GetPendingReviewCount(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 7, pending)
}

func TestDeleteKanjiCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, err := s.BatchInsertKanjis(ctx, []Kanji{{ID: 4, Kanji: "四", Meaning: "four", Examples: []Example{{Word: "四月", Reading: "しがつ"}}}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteKanji(ctx, 4))
	assert.Equal(t, 0, countReviewStates(t, s))
	var examples int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM kanji_examples`).Scan(&examples))
	assert.Equal(t, 0, examples)

	assert.ErrorIs(t, s.DeleteKanji(ctx, 4), ErrNotFound)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, err := s.BatchInsertKanjis(ctx, []Kanji{{ID: 1, Kanji: "人", Meaning: "person"}})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(level int) {
			defer wg.Done()
			errs <- s.CreateOrUpdateReviewState(ctx, ReviewState{KanjiID: 1, Level: level, NextReviewDate: testNow})
		}(i + 1)
		go func() {
			defer wg.Done()
			_, err := s.GetPendingReviewCount(ctx, testNow)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, countReviewStates(t, s))
}
