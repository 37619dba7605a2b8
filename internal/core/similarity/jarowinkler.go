// Package similarity scores how alike two short recognized text fragments are.
package similarity

const (
	prefixScale     = 0.1
	maxPrefixLength = 4
)

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0, 1].
// Characters match when equal and no further apart than half the length of
// the longer string. Operands are scored in a canonical order so the result
// does not depend on argument order.
func JaroWinkler(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) || (len(short) == len(long) && a > b) {
		short, long = long, short
	}
	if len(long) == 0 {
		return 1
	}
	if len(short) == 0 {
		return 0
	}

	window := len(long) / 2
	shortMatched := make([]bool, len(short))
	longMatched := make([]bool, len(long))

	matches := 0
	for i, r := range short {
		lo := max(0, i-window)
		hi := min(len(long)-1, i+window)
		for j := lo; j <= hi; j++ {
			if longMatched[j] || long[j] != r {
				continue
			}
			shortMatched[i] = true
			longMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	outOfOrder := 0
	k := 0
	for i := range short {
		if !shortMatched[i] {
			continue
		}
		for !longMatched[k] {
			k++
		}
		if short[i] != long[k] {
			outOfOrder++
		}
		k++
	}

	m := float64(matches)
	transpositions := float64(outOfOrder) / 2
	jaro := (m/float64(len(short)) + m/float64(len(long)) + (m-transpositions)/m) / 3

	prefix := 0
	for prefix < len(short) && prefix < maxPrefixLength && short[prefix] == long[prefix] {
		prefix++
	}

	score := jaro + float64(prefix)*prefixScale*(1-jaro)
	return min(1, max(0, score))
}
