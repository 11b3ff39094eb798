// Package importer loads kanji files, fills in missing example readings and
// hands the batch to the controller.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/japaniel/kanjireview/pkg/db"
)

// ReadingSource proposes a hiragana reading for a word. Both
// *dictionary.Index and *reading.Analyzer satisfy it.
type ReadingSource interface {
	Reading(word string) (string, bool)
}

// Adder stores an imported batch; *controller.Controller satisfies it.
type Adder interface {
	BatchAddKanjis(ctx context.Context, kanjis []db.Kanji) int
}

// Result summarizes one import.
type Result struct {
	Loaded         int
	ReadingsFilled int
	Imported       int
}

// LoadKanjiFile reads a JSON file holding either an array of kanji or an
// object with a "kanjis" array. Every entry needs a positive id, the key that
// lets a re-import update a kanji instead of adding it again.
func LoadKanjiFile(path string) ([]db.Kanji, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(raw))
	var kanjis []db.Kanji
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &kanjis); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		var wrapped struct {
			Kanjis []db.Kanji `json:"kanjis"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		kanjis = wrapped.Kanjis
	}

	for i, k := range kanjis {
		if strings.TrimSpace(k.Kanji) == "" {
			return nil, fmt.Errorf("parse %s: entry %d has no kanji", path, i)
		}
		if k.ID <= 0 {
			return nil, fmt.Errorf("parse %s: entry %d (%s) has no positive id", path, i, k.Kanji)
		}
	}
	return kanjis, nil
}

// Enricher fills empty example readings from its sources, tried in order.
type Enricher struct {
	sources []ReadingSource
	workers int
	log     *zap.Logger
}

// NewEnricher creates an Enricher. workers <= 0 uses GOMAXPROCS.
func NewEnricher(workers int, logger *zap.Logger, sources ...ReadingSource) *Enricher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var nonNil []ReadingSource
	for _, s := range sources {
		if s != nil {
			nonNil = append(nonNil, s)
		}
	}
	return &Enricher{sources: nonNil, workers: workers, log: logger.Named("enricher")}
}

// FillReadings sets Reading on every example that lacks one and a source can
// resolve, editing kanjis in place. It returns how many readings were filled.
func (e *Enricher) FillReadings(ctx context.Context, kanjis []db.Kanji) (int, error) {
	if len(e.sources) == 0 || len(kanjis) == 0 {
		return 0, nil
	}

	pool := NewWorkerPool(e.workers, e.workers*2)
	pool.Start(ctx)

	var filled int64
	var submitErr error
	for i := range kanjis {
		k := &kanjis[i]
		err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			for j := range k.Examples {
				ex := &k.Examples[j]
				if ex.Reading != "" || ex.Word == "" {
					continue
				}
				if r, ok := e.lookup(ex.Word); ok {
					ex.Reading = r
					atomic.AddInt64(&filled, 1)
				} else {
					e.log.Debug("no reading found", zap.String("kanji", k.Kanji), zap.String("word", ex.Word))
				}
			}
			return nil
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	pool.Close()

	if submitErr != nil {
		return int(atomic.LoadInt64(&filled)), fmt.Errorf("fill readings: %w", submitErr)
	}
	if err := ctx.Err(); err != nil {
		return int(atomic.LoadInt64(&filled)), fmt.Errorf("fill readings: %w", err)
	}
	return int(atomic.LoadInt64(&filled)), nil
}

func (e *Enricher) lookup(word string) (string, bool) {
	for _, s := range e.sources {
		if r, ok := s.Reading(word); ok && r != "" {
			return r, true
		}
	}
	return "", false
}

// ImportFile loads path, fills readings when an enricher is given and adds
// the batch through adder.
func ImportFile(ctx context.Context, path string, enricher *Enricher, adder Adder, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adder == nil {
		return Result{}, errors.New("importer: nil adder")
	}

	kanjis, err := LoadKanjiFile(path)
	if err != nil {
		return Result{}, err
	}
	res := Result{Loaded: len(kanjis)}

	if enricher != nil {
		n, err := enricher.FillReadings(ctx, kanjis)
		res.ReadingsFilled = n
		if err != nil {
			return res, err
		}
	}

	res.Imported = adder.BatchAddKanjis(ctx, kanjis)
	logger.Info("import finished",
		zap.String("path", path),
		zap.Int("loaded", res.Loaded),
		zap.Int("readings_filled", res.ReadingsFilled),
		zap.Int("imported", res.Imported))
	return res, nil
}
