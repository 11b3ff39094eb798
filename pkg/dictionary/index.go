package dictionary

import (
	"sort"

	"github.com/japaniel/kanjireview/pkg/reading"
)

// Index maps written forms (kanji or kana) to their entries. It is read-only
// after construction and safe for concurrent use.
type Index struct {
	entries map[string][]JMdictEntry
}

// NewIndex builds an in-memory index of the provided dictionary.
func NewIndex(entries []JMdictEntry) *Index {
	idx := make(map[string][]JMdictEntry)
	for _, e := range entries {
		seen := make(map[string]bool)
		for _, el := range append(append([]JMdictElement{}, e.Kanji...), e.Kana...) {
			if seen[el.Text] {
				continue
			}
			seen[el.Text] = true
			idx[el.Text] = append(idx[el.Text], e)
		}
	}
	for text := range idx {
		list := idx[text]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return &Index{entries: idx}
}

// Len reports how many distinct written forms are indexed.
func (ix *Index) Len() int { return len(ix.entries) }

// Lookup returns the entries that spell word, ordered by entry id.
func (ix *Index) Lookup(word string) []JMdictEntry {
	if word == "" {
		return nil
	}
	return ix.entries[word]
}

// Reading returns the preferred hiragana reading of word: from the first
// entry spelling it, a common kana that applies to this spelling, falling
// back to any kana that applies.
func (ix *Index) Reading(word string) (string, bool) {
	found := ix.Lookup(word)
	if len(found) == 0 {
		return "", false
	}
	entries := append([]JMdictEntry(nil), found...)

	// Prefer entries flagged common for this spelling.
	sort.SliceStable(entries, func(i, j int) bool {
		return isCommonSpelling(entries[i], word) && !isCommonSpelling(entries[j], word)
	})

	for _, e := range entries {
		var fallback string
		for _, kana := range e.Kana {
			if !appliesTo(kana, word) {
				continue
			}
			if kana.Common {
				return reading.ToHiragana(kana.Text), true
			}
			if fallback == "" {
				fallback = kana.Text
			}
		}
		if fallback != "" {
			return reading.ToHiragana(fallback), true
		}
	}
	return "", false
}

func isCommonSpelling(e JMdictEntry, word string) bool {
	for _, el := range e.Kanji {
		if el.Text == word {
			return el.Common
		}
	}
	for _, el := range e.Kana {
		if el.Text == word {
			return el.Common
		}
	}
	return false
}

func appliesTo(kana JMdictElement, word string) bool {
	if kana.Text == word || len(kana.AppliesToKanji) == 0 {
		return true
	}
	for _, k := range kana.AppliesToKanji {
		if k == "*" || k == word {
			return true
		}
	}
	return false
}
