package qa

import (
	"regexp"
	"strings"
)

// Intent classifies what kind of evidence a question is after. Unrecognized
// questions stay generic and candidate scores are left untouched.
type Intent string

const (
	IntentGeneric   Intent = "generic"
	IntentSignature Intent = "signature"
)

// signatureSignalThreshold is the minimum signal a line needs before the
// signature boost applies.
const signatureSignalThreshold = 0.9

// signatureBoostFactor scales the signal added to a candidate's score.
const signatureBoostFactor = 1.35

// operationalNoiseMarkers are form-boilerplate phrases that look like
// signature lines but describe workflow metadata instead.
var operationalNoiseMarkers = map[string]float64{
	"ordering doctor":    1.35,
	"ordering physician": 1.25,
	"order source":       1.00,
	"order date":         0.85,
	"printed on":         0.75,
}

// timestampOnlyPattern matches lines that are nothing but digits, date and
// time punctuation.
var timestampOnlyPattern = regexp.MustCompile(`^[\d\s:/.\-]+$`)

// DetectIntent classifies the question.
func DetectIntent(question string) Intent {
	q := strings.ToLower(question)
	for _, kw := range []string{"signature", "signed", "signatory", "signer", "sign off", "signed off"} {
		if strings.Contains(q, kw) {
			return IntentSignature
		}
	}
	return IntentGeneric
}

// rescorer adjusts one candidate's combined score for a detected intent.
type rescorer func(c *Candidate)

// rescorers dispatches by intent; absent entries leave scores unchanged.
var rescorers = map[Intent]rescorer{
	IntentSignature: rescoreSignature,
}

// Rescore applies the intent-specific adjustment to every candidate in place.
func Rescore(intent Intent, candidates []*Candidate) {
	fn, ok := rescorers[intent]
	if !ok {
		return
	}
	for _, c := range candidates {
		fn(c)
	}
}

func rescoreSignature(c *Candidate) {
	signal := signatureSignal(c.LineText)
	if signal >= signatureSignalThreshold {
		c.CombinedScore += signal * signatureBoostFactor
	}
	c.CombinedScore -= operationalNoisePenalty(c.LineText)
}

// signatureSignal estimates how strongly a line looks like an actual
// signature line. Exact phrases score highest, then token prefixes, then
// fuzzy matches that survive OCR-style corruption.
func signatureSignal(line string) float64 {
	padded := " " + normalizeAlnum(line) + " "
	var signal float64

	switch {
	case strings.Contains(padded, " signed by ") || strings.Contains(padded, " signature "):
		signal = 2.0
	default:
		for _, token := range strings.Fields(padded) {
			switch {
			case strings.HasPrefix(token, "sig"):
				signal = maxFloat(signal, 1.6)
			case matchRatio(token, "signed") >= 0.8:
				signal = maxFloat(signal, 1.35)
			case matchRatio(token, "electronic") >= 0.8:
				signal = maxFloat(signal, 1.15)
			}
		}
	}

	if signal > 0 && strings.Contains(padded, " by ") {
		signal += 0.25
	}
	return signal
}

// normalizeAlnum lowercases text and replaces every non-alphanumeric rune
// with a space, collapsing the result, so punctuation never hides a phrase.
func normalizeAlnum(line string) string {
	mapped := strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			return r
		}
		return ' '
	}, strings.ToLower(line))
	return strings.Join(strings.Fields(mapped), " ")
}

// operationalNoisePenalty demotes workflow boilerplate and bare timestamps.
func operationalNoisePenalty(line string) float64 {
	normalized := normalizeAlnum(line)
	var penalty float64
	for marker, p := range operationalNoiseMarkers {
		if strings.Contains(normalized, marker) {
			penalty = maxFloat(penalty, p)
		}
	}
	if normalized != "" && timestampOnlyPattern.MatchString(normalized) {
		penalty = maxFloat(penalty, 1.0)
	}
	return penalty
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
