package scanner

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PhraseList is the set of phrases a Scanner matches against, grouped by
// category. Order matters: within a category the earlier phrase wins when two
// alternatives match at the same position.
type PhraseList struct {
	Pressure []string `yaml:"pressure" json:"pressure"`
	Jargon   []string `yaml:"jargon" json:"jargon"`
}

// DefaultPressurePhrases are the urgency and fear phrases flagged in every mode.
var DefaultPressurePhrases = []string{
	"act now",
	"limited time",
	"only one left",
	"don't wait",
	"offer expires",
	"final notice",
	"your account is suspended",
	"immediate payment",
	"must verify",
	"bank details",
}

// DefaultJargonPhrases are financial and contract terms flagged in clarity mode.
var DefaultJargonPhrases = []string{
	"apr",
	"amortization",
	"annuity",
	"arbitration",
	"balloon payment",
	"compound interest",
	"deductible",
	"early termination fee",
	"escrow",
	"fiduciary",
	"indemnify",
	"lien",
	"prorated",
	"subrogation",
}

// DefaultPhrases returns a copy of the built-in phrase lists.
func DefaultPhrases() PhraseList {
	return PhraseList{
		Pressure: append([]string(nil), DefaultPressurePhrases...),
		Jargon:   append([]string(nil), DefaultJargonPhrases...),
	}
}

// LoadPhrases reads a YAML phrase file. A category that is absent or empty in
// the file falls back to the built-in list for that category.
func LoadPhrases(path string) (PhraseList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PhraseList{}, fmt.Errorf("read phrase file %q: %w", path, err)
	}
	return ParsePhrases(data)
}

// ParsePhrases decodes YAML phrase data. See LoadPhrases.
func ParsePhrases(data []byte) (PhraseList, error) {
	var list PhraseList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return PhraseList{}, fmt.Errorf("decode phrases: %w", err)
	}

	var err error
	if list.Pressure, err = normalizePhrases("pressure", list.Pressure); err != nil {
		return PhraseList{}, err
	}
	if list.Jargon, err = normalizePhrases("jargon", list.Jargon); err != nil {
		return PhraseList{}, err
	}

	defaults := DefaultPhrases()
	if len(list.Pressure) == 0 {
		list.Pressure = defaults.Pressure
	}
	if len(list.Jargon) == 0 {
		list.Jargon = defaults.Jargon
	}
	return list, nil
}

// normalizePhrases lower-cases and trims each phrase and drops duplicates.
// Blank entries are rejected so a stray "-" in the file does not match everything.
func normalizePhrases(category string, phrases []string) ([]string, error) {
	out := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for i, p := range phrases {
		p = strings.ToLower(strings.Join(strings.Fields(p), " "))
		if p == "" {
			return nil, fmt.Errorf("%s phrase %d is empty", category, i+1)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
