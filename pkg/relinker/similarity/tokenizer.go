package similarity

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// tokenCacheSize bounds the memoized-tokenization LRU. Field values
// repeat heavily across blocking, scoring, and EM passes over the same
// corpus, so a modest cache avoids re-splitting the same string
// thousands of times.
const tokenCacheSize = 4096

// tokenizer splits on a single space and lowercases, memoizing results.
// This is intentionally simpler than a general-purpose text tokenizer:
// the kernels need exact, reproducible token boundaries, not
// search-quality normalization (no stopwords, no stemming, no
// hyphen cleanup).
type tokenizer struct {
	cache *lru.Cache[string, []string]
}

func newTokenizer() *tokenizer {
	c, err := lru.New[string, []string](tokenCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// tokenCacheSize never is.
		panic(err)
	}
	return &tokenizer{cache: c}
}

// tokenize lowercases s and splits on single spaces, dropping empty
// substrings (so repeated spaces collapse rather than producing empty
// tokens).
func (t *tokenizer) tokenize(s string) []string {
	if cached, ok := t.cache.Get(s); ok {
		return cached
	}

	lower := strings.ToLower(s)
	parts := strings.Split(lower, " ")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}

	t.cache.Add(s, tokens)
	return tokens
}

// sharedTokenizer is the package-level tokenizer every kernel uses. It
// is safe for concurrent use (golang-lru/v2 locks internally), matching
// the read-only-during-matching contract of IDF maps and Records.
var sharedTokenizer = newTokenizer()

// Tokenize exposes the kernels' tokenization contract for callers that
// need to build an IDF map over the same token boundaries (see
// BuildIDF).
func Tokenize(s string) []string {
	return sharedTokenizer.tokenize(s)
}
