package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// KeywordSet tests text for a list of keywords, ignoring case.
type KeywordSet struct {
	words []string
	res   []*regexp.Regexp
}

// NewKeywordSet anchors each keyword at a word start, so "milestone" also
// matches "milestones".
func NewKeywordSet(words []string) (*KeywordSet, error) {
	return compileKeywords(words, `(?i)\b%s`)
}

// NewHeaderKeywordSet matches whole words with an optional plural suffix:
// "cost" matches "Costs" but not "Costa Rica".
func NewHeaderKeywordSet(words []string) (*KeywordSet, error) {
	return compileKeywords(words, `(?i)\b%s(?:e?s)?\b`)
}

func compileKeywords(words []string, pattern string) (*KeywordSet, error) {
	ks := &KeywordSet{}
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w == "" {
			return nil, errors.New("rules: empty keyword")
		}
		re, err := regexp.Compile(fmt.Sprintf(pattern, regexp.QuoteMeta(w)))
		if err != nil {
			return nil, err
		}
		ks.words = append(ks.words, w)
		ks.res = append(ks.res, re)
	}
	return ks, nil
}

// Len reports how many keywords the set holds.
func (k *KeywordSet) Len() int { return len(k.words) }

// Matches returns the keywords present in text, in table order.
func (k *KeywordSet) Matches(text string) []string {
	var out []string
	for i, re := range k.res {
		if re.MatchString(text) {
			out = append(out, k.words[i])
		}
	}
	return out
}

func (k *KeywordSet) Any(text string) bool {
	for _, re := range k.res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// All reports whether every keyword is present. An empty set is vacuously true.
func (k *KeywordSet) All(text string) bool {
	for _, re := range k.res {
		if !re.MatchString(text) {
			return false
		}
	}
	return true
}
