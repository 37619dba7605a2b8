package similarity

import "unicode/utf8"

const DefaultThreshold = 0.85

// Matcher decides whether two transcripts describe the same recognized text.
type Matcher struct {
	Threshold float64
}

func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// IsTextSimilar treats fragments of at most one character as duplicates,
// short-circuits on a folded exact match and otherwise requires a
// Jaro-Winkler score strictly above the threshold.
func (m Matcher) IsTextSimilar(a, b string) bool {
	if utf8.RuneCountInString(a) <= 1 || utf8.RuneCountInString(b) <= 1 {
		return true
	}
	if EqualFold(a, b) {
		return true
	}
	return JaroWinkler(a, b) > m.threshold()
}

func (m Matcher) threshold() float64 {
	if m.Threshold <= 0 || m.Threshold > 1 {
		return DefaultThreshold
	}
	return m.Threshold
}
