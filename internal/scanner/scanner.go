// Package scanner flags manipulation-tactic phrases, jargon and multi-part
// questions in finalized transcript fragments.
package scanner

import (
	"fmt"
	"regexp"
	"strings"
)

// Category classifies a match.
type Category string

const (
	CategoryPressure      Category = "pressure"
	CategoryJargon        Category = "jargon"
	CategoryMultiQuestion Category = "multi_question"
)

// multiQuestionMarks is how many question marks make a fragment a multi-part question.
const multiQuestionMarks = 2

// Match is one hit in a fragment.
type Match struct {
	Category Category
	// Phrase is the matched text, lower-cased. For multi-part questions it is
	// the whole normalized fragment.
	Phrase string
}

// Key identifies the match within a session's Detected set.
func (m Match) Key() string {
	if m.Category == CategoryMultiQuestion {
		return "?" + m.Phrase
	}
	return m.Phrase
}

// Scanner matches fragments against compiled phrase disjunctions. It holds no
// per-session state and is safe for concurrent use.
type Scanner struct {
	list     PhraseList
	pressure *regexp.Regexp
	jargon   *regexp.Regexp
}

// Compile builds a Scanner from a phrase list.
func Compile(list PhraseList) (*Scanner, error) {
	if len(list.Pressure) == 0 {
		return nil, fmt.Errorf("compile phrases: pressure list is empty")
	}
	pressure, err := regexp.Compile(`(?i)(` + alternation(list.Pressure) + `)`)
	if err != nil {
		return nil, fmt.Errorf("compile pressure phrases: %w", err)
	}
	s := &Scanner{list: list, pressure: pressure}
	if len(list.Jargon) > 0 {
		// Jargon entries are short words ("apr", "lien"); anchor them so they
		// do not fire inside "april" or "client".
		s.jargon, err = regexp.Compile(`(?i)\b(` + alternation(list.Jargon) + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compile jargon phrases: %w", err)
		}
	}
	return s, nil
}

// MustCompile is Compile that panics on error. Used for the built-in lists.
func MustCompile(list PhraseList) *Scanner {
	s, err := Compile(list)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns a Scanner over the built-in phrase lists.
func Default() *Scanner {
	return MustCompile(DefaultPhrases())
}

// Phrases returns the lists the Scanner was compiled from.
func (s *Scanner) Phrases() PhraseList {
	return PhraseList{
		Pressure: append([]string(nil), s.list.Pressure...),
		Jargon:   append([]string(nil), s.list.Jargon...),
	}
}

// Scan reports the first pressure phrase in text, if any.
func (s *Scanner) Scan(text string) []Match {
	var out []Match
	if m := s.pressure.FindString(text); m != "" {
		out = append(out, Match{Category: CategoryPressure, Phrase: strings.ToLower(m)})
	}
	return out
}

// ScanClarity reports the first pressure phrase, the first jargon term, and a
// multi-part question match when the fragment asks two or more questions.
func (s *Scanner) ScanClarity(text string) []Match {
	out := s.Scan(text)
	if s.jargon != nil {
		if m := s.jargon.FindString(text); m != "" {
			out = append(out, Match{Category: CategoryJargon, Phrase: strings.ToLower(m)})
		}
	}
	if strings.Count(text, "?") >= multiQuestionMarks {
		normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
		out = append(out, Match{Category: CategoryMultiQuestion, Phrase: normalized})
	}
	return out
}

func alternation(phrases []string) string {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(quoted, "|")
}

// Detected is the set of match keys already reported in one call session.
// It is not safe for concurrent use; the owning session serializes access.
type Detected struct {
	seen map[string]struct{}
}

// NewDetected returns an empty set.
func NewDetected() *Detected {
	return &Detected{seen: make(map[string]struct{})}
}

// Add records key and reports whether this is its first occurrence.
func (d *Detected) Add(key string) bool {
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Has reports whether key was already recorded.
func (d *Detected) Has(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Len returns the number of distinct keys recorded.
func (d *Detected) Len() int { return len(d.seen) }
