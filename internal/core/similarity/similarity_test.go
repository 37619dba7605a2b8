package similarity

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestJaroWinklerKnownValues(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"MARTHA", "MARHTA", 0.9611},
		{"DWAYNE", "DUANE", 0.84},
		{"DIXON", "DICKSONX", 0.8133},
		{"abc", "xyz", 0},
		{"", "", 1},
		{"", "abc", 0},
	}
	for _, tc := range cases {
		got := JaroWinkler(tc.a, tc.b)
		if math.Abs(got-tc.want) > 0.001 {
			t.Fatalf("JaroWinkler(%q, %q) = %.4f, want %.4f", tc.a, tc.b, got, tc.want)
		}
	}
}

func randomString(rng *rand.Rand) string {
	alphabet := []rune("abcdeABé ñ0")
	n := rng.IntN(12)
	out := make([]rune, n)
	for i := range out {
		out[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(out)
}

func TestJaroWinklerProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 2000; i++ {
		a, b := randomString(rng), randomString(rng)

		ab, ba := JaroWinkler(a, b), JaroWinkler(b, a)
		if ab != ba {
			t.Fatalf("not symmetric for %q/%q: %v vs %v", a, b, ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("score out of bounds for %q/%q: %v", a, b, ab)
		}
		if got := JaroWinkler(a, a); got != 1 {
			t.Fatalf("identical strings %q scored %v", a, got)
		}
	}
}

func TestIsTextSimilarShortStringsAreDuplicates(t *testing.T) {
	m := NewMatcher(0)
	for _, pair := range [][2]string{{"", "anything"}, {"a", "zzz"}, {"é", ""}, {"x", "y"}} {
		if !m.IsTextSimilar(pair[0], pair[1]) {
			t.Fatalf("expected %q/%q to be duplicates", pair[0], pair[1])
		}
	}
}

func TestIsTextSimilarFoldedVariantsUseFastPath(t *testing.T) {
	m := NewMatcher(0)
	pairs := [][2]string{
		{"ÉCOLE", "ecole"},
		{"Crème Brûlée", "CREME BRULEE"},
		{"Ångström", "angstrom"},
	}
	for _, pair := range pairs {
		if !EqualFold(pair[0], pair[1]) {
			t.Fatalf("expected %q and %q to fold equal", pair[0], pair[1])
		}
		if !m.IsTextSimilar(pair[0], pair[1]) {
			t.Fatalf("expected %q/%q to be duplicates", pair[0], pair[1])
		}
	}
	// the raw score alone would reject this pair
	if JaroWinkler("ÉCOLE", "ecole") > DefaultThreshold {
		t.Fatalf("expected raw score below threshold")
	}
}

func TestIsTextSimilarThreshold(t *testing.T) {
	m := NewMatcher(0)
	if !m.IsTextSimilar("Invoice number 1234", "Invoice number 1235") {
		t.Fatalf("near-identical OCR lines should be duplicates")
	}
	if m.IsTextSimilar("Invoice number 1234", "Payment due in 30 days") {
		t.Fatalf("different lines must not be duplicates")
	}

	strict := NewMatcher(0.999)
	if strict.IsTextSimilar("Invoice number 1234", "Invoice number 1235") {
		t.Fatalf("strict matcher should reject non-identical lines")
	}
}

func TestNewMatcherFallsBackToDefault(t *testing.T) {
	for _, threshold := range []float64{-1, 0, 1.5} {
		if got := NewMatcher(threshold).Threshold; got != DefaultThreshold {
			t.Fatalf("NewMatcher(%v).Threshold = %v", threshold, got)
		}
	}
}
