// Package reading derives kana readings for Japanese words with the kagome
// morphological analyzer.
package reading

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token is one analyzed unit of a word or phrase.
type Token struct {
	Surface  string // as written, e.g. "行っ"
	BaseForm string // dictionary form, e.g. "行く"
	Reading  string // katakana, e.g. "イッ"
	POS      string // primary part of speech (kagome IPA label)
}

// Analyzer wraps a kagome tokenizer. It is safe for concurrent use.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer loads the IPA dictionary. This takes a noticeable moment, so
// build one Analyzer and share it.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Analyze splits text into tokens with readings and base forms.
func (a *Analyzer) Analyze(text string) []Token {
	var out []Token
	for _, tok := range a.t.Tokenize(text) {
		if tok.Class == tokenizer.DUMMY || strings.TrimSpace(tok.Surface) == "" {
			continue
		}

		// IPA features: 0 POS, 6 base form, 7 reading.
		features := tok.Features()
		t := Token{Surface: tok.Surface, BaseForm: tok.Surface}
		if len(features) > 0 {
			t.POS = features[0]
		}
		if len(features) > 6 && features[6] != "*" {
			t.BaseForm = features[6]
		}
		if len(features) > 7 && features[7] != "*" {
			t.Reading = features[7]
		}
		out = append(out, t)
	}
	return out
}

// Reading returns the hiragana reading of word. ok is false when any token
// is unknown to the dictionary, since a partial reading would be wrong.
func (a *Analyzer) Reading(word string) (string, bool) {
	tokens := a.Analyze(word)
	if len(tokens) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, t := range tokens {
		switch {
		case t.Reading != "":
			b.WriteString(t.Reading)
		case isKana(t.Surface):
			b.WriteString(t.Surface)
		default:
			return "", false
		}
	}
	return ToHiragana(b.String()), true
}

// ToHiragana converts katakana to hiragana and leaves everything else alone.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

func isKana(s string) bool {
	for _, r := range s {
		hira := r >= 0x3041 && r <= 0x309F
		kata := r >= 0x30A0 && r <= 0x30FF
		if !hira && !kata {
			return false
		}
	}
	return s != ""
}
