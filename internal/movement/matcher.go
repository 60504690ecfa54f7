package movement

import (
	"strings"
	"unicode/utf8"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"lukechampine.com/blake3"
)

// lineKey identifies normalized line content
type lineKey [32]byte

// normalizer decides which lines are worth matching and how they compare
type normalizer struct {
	minLength        int
	ignoreWhitespace bool
}

// normalize returns the comparable form of a line and whether it is long
// enough to be matched. Short lines ("}", blank lines, list bullets) are too
// common to attribute reliably.
func (n normalizer) normalize(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if n.ignoreWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	if s == "" || utf8.RuneCountInString(s) < n.minLength {
		return "", false
	}
	return s, true
}

func keyOf(normalized string) lineKey {
	return lineKey(blake3.Sum256([]byte(normalized)))
}

// matcher finds which wanted contents a scanned line matches
type matcher struct {
	norm       normalizer
	similarity float64
	exact      map[lineKey]bool
	near       []nearCandidate
}

type nearCandidate struct {
	key   lineKey
	runes []rune
}

func newMatcher(norm normalizer, similarity float64) *matcher {
	return &matcher{norm: norm, similarity: similarity, exact: make(map[lineKey]bool)}
}

// want registers content to look for and returns its key
func (m *matcher) want(normalized string) lineKey {
	k := keyOf(normalized)
	if !m.exact[k] {
		m.exact[k] = true
		if m.fuzzy() {
			m.near = append(m.near, nearCandidate{key: k, runes: []rune(normalized)})
		}
	}
	return k
}

func (m *matcher) fuzzy() bool {
	return m.similarity > 0 && m.similarity < 1
}

func (m *matcher) empty() bool {
	return len(m.exact) == 0
}

// match returns the keys of every wanted content the line matches. An exact
// match short-circuits the fuzzy comparison.
func (m *matcher) match(line string) []lineKey {
	s, ok := m.norm.normalize(line)
	if !ok {
		return nil
	}
	k := keyOf(s)
	if m.exact[k] {
		return []lineKey{k}
	}
	if !m.fuzzy() {
		return nil
	}

	runes := []rune(s)
	var hits []lineKey
	for _, c := range m.near {
		if !lengthCompatible(len(runes), len(c.runes), m.similarity) {
			continue
		}
		if levenshtein.RatioForStrings(runes, c.runes, levenshtein.DefaultOptions) >= m.similarity {
			hits = append(hits, c.key)
		}
	}
	return hits
}

// lengthCompatible rejects pairs whose length difference alone rules out
// reaching the similarity ratio
func lengthCompatible(a, b int, similarity float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= (1-similarity)*float64(a+b)
}
