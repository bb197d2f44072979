// Package similarity implements the three IDF-aware token-sequence
// similarity kernels (token-weighted edit distance, token-weighted
// Jaro, TF-IDF cosine) plus the SimilarityFunction adapter that binds a
// kernel to a record field.
package similarity

import "math"

// Kernel computes a bounded similarity in [0, 1] between two strings
// given an IDF map. All three kernels below satisfy this signature.
type Kernel func(a, b string, idf IDF) float64

// tokenEdge covers the shared empty-input edge case every kernel
// applies before its own logic: both empty → 1, exactly one empty → 0.
// Returns (value, handled).
func tokenEdge(ta, tb []string) (float64, bool) {
	if len(ta) == 0 && len(tb) == 0 {
		return 1, true
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0, true
	}
	return 0, false
}

// Levenshtein computes token-weighted edit distance similarity.
//
// dp[i][j] is the minimum IDF-weighted cost to transform the first i
// tokens of a into the first j tokens of b, with insertion/deletion
// costing the moved token's IDF weight and substitution costing 0 when
// the tokens match, else the max of their two weights.
func Levenshtein(a, b string, idf IDF) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if v, ok := tokenEdge(ta, tb); ok {
		return v
	}

	m, n := len(ta), len(tb)
	wa := make([]float64, m)
	wb := make([]float64, n)
	for i, t := range ta {
		wa[i] = idf.Weight(t)
	}
	for j, t := range tb {
		wb[j] = idf.Weight(t)
	}

	dp := make([][]float64, m+1)
	for i := range dp {
		dp[i] = make([]float64, n+1)
	}
	for i := 1; i <= m; i++ {
		dp[i][0] = dp[i-1][0] + wa[i-1]
	}
	for j := 1; j <= n; j++ {
		dp[0][j] = dp[0][j-1] + wb[j-1]
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			subCost := 0.0
			if ta[i-1] != tb[j-1] {
				subCost = math.Max(wa[i-1], wb[j-1])
			}
			del := dp[i-1][j] + wa[i-1]
			ins := dp[i][j-1] + wb[j-1]
			sub := dp[i-1][j-1] + subCost
			dp[i][j] = math.Min(del, math.Min(ins, sub))
		}
	}

	var sumA, sumB float64
	for _, w := range wa {
		sumA += w
	}
	for _, w := range wb {
		sumB += w
	}
	denom := sumA + sumB
	if denom == 0 {
		return 1
	}
	return 1 - dp[m][n]/denom
}

// Jaro computes token-weighted Jaro similarity.
func Jaro(a, b string, idf IDF) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if v, ok := tokenEdge(ta, tb); ok {
		return v
	}

	m, n := len(ta), len(tb)
	window := maxInt(m, n)/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, m)
	matchedB := make([]bool, n)
	var matchedWeight float64
	var totalA, totalB float64
	for _, t := range ta {
		totalA += idf.Weight(t)
	}
	for _, t := range tb {
		totalB += idf.Weight(t)
	}

	for i := 0; i < m; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > n {
			hi = n
		}
		for j := lo; j < hi; j++ {
			if matchedB[j] || ta[i] != tb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matchedWeight += idf.Weight(ta[i])
			break
		}
	}

	if matchedWeight == 0 {
		return 0
	}

	// Walk matched tokens on both sides in order, counting
	// transpositions by weight. The inner walker stops at len(tb) so it
	// never over-advances past the right side's matched set (spec's
	// documented fix for the over-advance edge case).
	var transpositions float64
	k := 0
	for i := 0; i < m; i++ {
		if !matchedA[i] {
			continue
		}
		for k < n && !matchedB[k] {
			k++
		}
		if k >= n {
			break
		}
		if ta[i] != tb[k] {
			transpositions += idf.Weight(ta[i])
		}
		k++
	}

	matched := matchedWeight
	jaro := (matched/totalA + matched/totalB + (matched-transpositions/2)/matched) / 3
	return jaro
}

// Cosine computes TF-IDF cosine similarity. Unlike Levenshtein and
// Jaro, a missing IDF entry contributes weight 0 here rather than the
// default 1.0 — this kernel differs from the other two by design (see
// spec).
func Cosine(a, b string, idf IDF) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if v, ok := tokenEdge(ta, tb); ok {
		return v
	}

	fa := termFreq(ta)
	fb := termFreq(tb)

	vecA := make(map[string]float64, len(fa))
	for tok, tf := range fa {
		vecA[tok] = tf * idfOrZero(idf, tok)
	}
	vecB := make(map[string]float64, len(fb))
	for tok, tf := range fb {
		vecB[tok] = tf * idfOrZero(idf, tok)
	}

	var dot, normA, normB float64
	for _, k := range sortedUnion(fa, fb) {
		va, vb := vecA[k], vecB[k]
		dot += va * vb
	}
	for _, v := range vecA {
		normA += v * v
	}
	for _, v := range vecB {
		normB += v * v
	}
	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}

func idfOrZero(idf IDF, token string) float64 {
	if idf == nil {
		return 0
	}
	if w, ok := idf[token]; ok {
		return w
	}
	return 0
}

// termFreq returns count/total for each token in tokens.
func termFreq(tokens []string) map[string]float64 {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	total := float64(len(tokens))
	out := make(map[string]float64, len(counts))
	for t, c := range counts {
		out[t] = float64(c) / total
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
