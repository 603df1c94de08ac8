package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Normalizer collapses superficial description variants — trailing reference
// numbers, card suffixes, stray whitespace, case — so recurring merchants
// converge to one key. The strip patterns are configuration, applied in
// order, each replacing its matches with nothing.
type Normalizer struct {
	strips []*regexp.Regexp
}

// DefaultPatterns is the built-in strip list. It covers the reference-number
// styles seen in the supported exports.
func DefaultPatterns() []string {
	return []string{
		`(?i)\b(ref|reference)[.:#]?\s*\S+\s*$`, // trailing "Ref: 12345"
		`\*{2,}\d+`,                             // masked card numbers "****1234"
		`[#*]\d{3,}`,                            // merchant counters "#123"
		`\b\d{6,}\b`,                            // long bare reference digits
	}
}

func NewNormalizer(patterns []string) (*Normalizer, error) {
	n := &Normalizer{strips: make([]*regexp.Regexp, 0, len(patterns))}
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("normalization pattern %q: %w", pat, err)
		}
		n.strips = append(n.strips, re)
	}
	return n, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Key derives the rule key for a transaction's descriptive fields.
func (n *Normalizer) Key(counterparty, description string) string {
	s := counterparty
	if strings.TrimSpace(s) == "" {
		s = description
	}
	s = strings.ToLower(s)
	for _, re := range n.strips {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
