package similarity

import "testing"

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}

func TestIdentityAllKernels(t *testing.T) {
	// Unit weights for every token: Levenshtein and Jaro see the same
	// weights as with an empty map, while cosine (which weights missing
	// tokens 0) gets non-zero vectors.
	idf := IDF{"alice": 1.0, "smith": 1.0}
	kernels := map[string]Kernel{"levenshtein": Levenshtein, "jaro": Jaro, "cosine": Cosine}
	for name, k := range kernels {
		got := k("Alice Smith", "Alice Smith", idf)
		if !almostEqual(got, 1.0) {
			t.Errorf("%s(x, x) = %v, want 1.0", name, got)
		}
	}
}

func TestSymmetry(t *testing.T) {
	idf := IDF{"alice": 2.0, "smith": 0.5, "bob": 3.0}
	kernels := map[string]Kernel{"levenshtein": Levenshtein, "jaro": Jaro, "cosine": Cosine}
	pairs := [][2]string{
		{"Alice Smith", "Bob Smith"},
		{"alice bob", "bob alice"},
		{"", "alice"},
	}
	for name, k := range kernels {
		for _, p := range pairs {
			ab := k(p[0], p[1], idf)
			ba := k(p[1], p[0], idf)
			if !almostEqual(ab, ba) {
				t.Errorf("%s(%q,%q)=%v != %s(%q,%q)=%v", name, p[0], p[1], ab, name, p[1], p[0], ba)
			}
		}
	}
}

func TestRangeBounds(t *testing.T) {
	idf := IDF{"alice": 2.0, "smith": 0.5}
	kernels := map[string]Kernel{"levenshtein": Levenshtein, "jaro": Jaro, "cosine": Cosine}
	pairs := [][2]string{
		{"Alice Smith", "Smith Alice"},
		{"alice", "bob carl dave"},
		{"", ""},
		{"", "x"},
	}
	for name, k := range kernels {
		for _, p := range pairs {
			v := k(p[0], p[1], idf)
			if v < 0 || v > 1 {
				t.Errorf("%s(%q,%q) = %v, out of [0,1]", name, p[0], p[1], v)
			}
		}
	}
}

func TestBothEmptyIsOne(t *testing.T) {
	idf := IDF{}
	for name, k := range map[string]Kernel{"levenshtein": Levenshtein, "jaro": Jaro, "cosine": Cosine} {
		if v := k("", "", idf); v != 1 {
			t.Errorf("%s(\"\",\"\") = %v, want 1", name, v)
		}
	}
}

func TestOneEmptyIsZero(t *testing.T) {
	idf := IDF{}
	for name, k := range map[string]Kernel{"levenshtein": Levenshtein, "jaro": Jaro, "cosine": Cosine} {
		if v := k("", "alice", idf); v != 0 {
			t.Errorf("%s(\"\", alice) = %v, want 0", name, v)
		}
	}
}

// Scenario 2 from spec: single-token swap with unit weights (empty IDF).
func TestTokenSwapLevenshtein(t *testing.T) {
	idf := IDF{}
	got := Levenshtein("Alice Smith", "Smith Alice", idf)
	if !almostEqual(got, 0.5) {
		t.Errorf("Levenshtein swap = %v, want 0.5", got)
	}
}

func TestTokenSwapJaroIsZero(t *testing.T) {
	idf := IDF{}
	got := Jaro("Alice Smith", "Smith Alice", idf)
	if !almostEqual(got, 0.0) {
		t.Errorf("Jaro swap = %v, want 0.0 (zero match window)", got)
	}
}

func TestTokenSwapCosineZeroIDF(t *testing.T) {
	idf := IDF{}
	got := Cosine("Alice Smith", "Smith Alice", idf)
	if got != 0.0 {
		t.Errorf("Cosine swap with zero idf = %v, want 0.0", got)
	}
}

func TestMissingIDFDefaultsToOne(t *testing.T) {
	// No entries at all: Levenshtein/Jaro treat every token as weight 1.
	idf := IDF{}
	if idf.Weight("anything") != 1.0 {
		t.Errorf("Weight of unknown token = %v, want 1.0", idf.Weight("anything"))
	}
}

func TestCosineMissingTokenIsZeroWeighted(t *testing.T) {
	idf := IDF{"alice": 1.0}
	// "bob" isn't in idf, so cosine treats it as 0 weight unlike the
	// other two kernels.
	got := Cosine("alice bob", "alice bob", idf)
	if !almostEqual(got, 1.0) {
		t.Errorf("Cosine(x,x) with partial idf = %v, want 1.0 (self-similarity)", got)
	}
}

func TestRepeatedTokensInflateCosineNotJaroMatches(t *testing.T) {
	idf := IDF{}
	// Jaro counts a token match only once per occurrence slot (unlike TF
	// in cosine, which inflates with repetition), so Jaro identity holds
	// for identical repeated strings.
	j := Jaro("alice alice alice", "alice alice alice", idf)
	if !almostEqual(j, 1.0) {
		t.Errorf("Jaro repeated identity = %v, want 1.0", j)
	}
}

func TestJaroOverAdvanceDoesNotPanic(t *testing.T) {
	idf := IDF{}
	// len1 > len2 with several unmatched left tokens exercises the
	// walker's len2 bound.
	got := Jaro("a b c d e f", "a b", idf)
	if got < 0 || got > 1 {
		t.Errorf("Jaro asymmetric lengths = %v, out of range", got)
	}
}
