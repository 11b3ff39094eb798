package db

import "time"

// Example is a word that uses a kanji, with its kana reading.
type Example struct {
	Word    string `json:"word"`
	Reading string `json:"reading"`
}

// Kanji is the canonical learning item.
type Kanji struct {
	ID       int64     `json:"id"`
	Kanji    string    `json:"kanji"`
	Meaning  string    `json:"meaning"`
	Examples []Example `json:"examples"`
}

// ReviewState is the SRS progress of one kanji.
type ReviewState struct {
	KanjiID         int64
	Level           int
	IncorrectStreak int
	NextReviewDate  time.Time
	CreatedAt       time.Time
}

// KanjiRecord is a row of the admin listing.
type KanjiRecord struct {
	ID             int64     `json:"id"`
	Kanji          string    `json:"kanji"`
	Meaning        string    `json:"meaning"`
	Level          int       `json:"level"`
	NextReviewDate time.Time `json:"next_review_date"`
}
