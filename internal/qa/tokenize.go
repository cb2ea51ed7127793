package qa

import (
	"strings"
	"unicode"
)

// questionStopwords are interrogative and glue words that carry no retrieval
// signal and would otherwise dominate short questions.
var questionStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "this": true, "that": true, "with": true, "from": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"whom": true, "whose": true, "why": true, "how": true, "does": true,
	"did": true, "has": true, "have": true, "had": true, "can": true,
	"could": true, "would": true, "should": true, "please": true,
	"tell": true, "about": true, "document": true, "page": true,
}

// Tokenize lowercases text, splits it into alphanumeric runs, and keeps terms
// of at least three characters that are not stopwords.
func Tokenize(text string) []string {
	var terms []string
	var b strings.Builder
	flush := func() {
		if b.Len() >= 3 {
			term := b.String()
			if !questionStopwords[term] {
				terms = append(terms, term)
			}
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

// termWeight weights longer terms higher: short terms count 1.0, every
// character beyond four adds 0.08 up to a cap of 1.6.
func termWeight(term string) float64 {
	extra := float64(len(term)-4) * 0.08
	if extra < 0 {
		extra = 0
	}
	if extra > 0.6 {
		extra = 0.6
	}
	return 1.0 + extra
}

// WeightedOverlapScore returns the weighted fraction of terms found in text,
// in [0, 1]. Matching is substring based so inflected forms still count.
func WeightedOverlapScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	textLower := strings.ToLower(text)
	var matched, total float64
	for _, term := range terms {
		w := termWeight(term)
		total += w
		if strings.Contains(textLower, term) {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

// OverlapCount counts how many terms appear in text.
func OverlapCount(terms []string, text string) int {
	count := 0
	textLower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(textLower, term) {
			count++
		}
	}
	return count
}

// normalizeMatchText lowercases text and collapses runs of whitespace to a
// single space, for fuzzy comparison.
func normalizeMatchText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
