// Package srs implements the WaniKani-style spaced-repetition schedule.
package srs

import (
	"math"
	"time"

	"github.com/japaniel/kanjireview/pkg/db"
)

// BurnedLevel is the first level at which a kanji is no longer reviewed.
const BurnedLevel = 9

// burnedInterval pushes burned kanji beyond any practical review horizon.
const burnedInterval = 10 * 365 * 24 * time.Hour

// Scheduler computes the review state that follows an answer.
type Scheduler interface {
	GetNextState(old db.ReviewState, incorrectStreak int) db.ReviewState
}

// WaniKani is the default Scheduler.
//
// A correct answer (incorrectStreak <= 0) promotes by exactly one level. A
// wrong answer demotes by ceil(streak/2) levels, doubled from level 5 (Guru)
// upwards, and never below level 1.
type WaniKani struct {
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// NewWaniKani returns a scheduler on the wall clock.
func NewWaniKani() *WaniKani {
	return &WaniKani{Now: time.Now}
}

// GetNextState implements Scheduler. It is total over all integer inputs.
func (w *WaniKani) GetNextState(old db.ReviewState, incorrectStreak int) db.ReviewState {
	now := time.Now()
	if w != nil && w.Now != nil {
		now = w.Now()
	}

	next := old
	next.IncorrectStreak = incorrectStreak
	if incorrectStreak <= 0 {
		next.IncorrectStreak = 0
		next.Level = promote(old.Level)
	} else {
		next.Level = NextLevel(old.Level, incorrectStreak)
	}
	next.NextReviewDate = now.Add(Interval(next.Level))
	return next
}

// promote returns level+1 for every level a stored state can hold (0 and up).
// A negative level, which the scheduler never produces, is lifted to 1 so the
// result stays a valid stage; math.MaxInt saturates.
func promote(level int) int {
	if level < 1 {
		return 1
	}
	if level == math.MaxInt {
		return level
	}
	return level + 1
}

// NextLevel applies the demotion rule for a positive incorrect streak.
func NextLevel(level, incorrectStreak int) int {
	if incorrectStreak <= 0 {
		return promote(level)
	}
	adjustment := incorrectStreak/2 + incorrectStreak%2
	if adjustment >= level {
		return 1
	}
	newLevel := level - adjustment
	if level >= 5 {
		newLevel -= adjustment
	}
	if newLevel < 1 {
		return 1
	}
	return newLevel
}

// Interval is the wait before the next review at the given level.
func Interval(level int) time.Duration {
	switch {
	case level <= 1:
		return 4 * time.Hour
	case level == 2:
		return 8 * time.Hour
	case level == 3:
		return 24 * time.Hour
	case level == 4:
		return 48 * time.Hour
	case level == 5:
		return 7 * 24 * time.Hour
	case level == 6:
		return 14 * 24 * time.Hour
	case level == 7:
		return 30 * 24 * time.Hour
	case level == 8:
		return 120 * 24 * time.Hour
	default:
		return burnedInterval
	}
}

// IsBurned reports whether the level is in the terminal band.
func IsBurned(level int) bool { return level >= BurnedLevel }

// StageName is the WaniKani name of the level's band.
func StageName(level int) string {
	switch {
	case level <= 0:
		return "Lesson"
	case level <= 4:
		return "Apprentice"
	case level <= 6:
		return "Guru"
	case level == 7:
		return "Master"
	case level == 8:
		return "Enlightened"
	default:
		return "Burned"
	}
}
