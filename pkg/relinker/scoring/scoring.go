// Package scoring implements the Fellegi-Sunter log-likelihood-ratio
// match scorer.
package scoring

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cognicore/relinker/pkg/relinker/blocking"
	"github.com/cognicore/relinker/pkg/relinker/record"
	"github.com/cognicore/relinker/pkg/relinker/similarity"
)

// ScoredPair is a record pair with its aggregate log-likelihood ratio.
type ScoredPair struct {
	A, B  record.Record
	Score float64
}

// Scorer holds the field-bound similarity functions and the per-field
// m/u probabilities used to compute each pair's LLR. Scoring only reads
// those captured slices; its one piece of mutable state is the atomic
// Skipped counter, so a single Scorer is safe to reuse and to share
// across goroutines.
type Scorer struct {
	Functions []similarity.Function
	M, U      []float64

	// Skipped counts terms skipped for numerical degeneracy (a
	// non-positive numerator or denominator inside the log), per
	// spec's NumericalDegeneracy policy. Safe for concurrent
	// increment.
	Skipped atomic.Int64
}

// New constructs a Scorer. It does not validate lengths; callers
// validate via the orchestrator's validate_options step.
func New(functions []similarity.Function, m, u []float64) *Scorer {
	return &Scorer{Functions: functions, M: m, U: u}
}

// Score computes the LLR for a single pair. It never panics and never
// returns NaN/Inf: a term whose numerator or denominator is
// non-positive is skipped and Skipped is incremented.
func (s *Scorer) Score(a, b record.Record) float64 {
	var llr float64
	for i, fn := range s.Functions {
		sim := fn.Compute(a, b)
		m, u := s.M[i], s.U[i]

		numerator := m*sim + (1-m)*(1-sim)
		denominator := u*sim + (1-u)*(1-sim)

		if numerator <= 0 || denominator <= 0 {
			s.Skipped.Add(1)
			continue
		}
		llr += math.Log(numerator / denominator)
	}
	return llr
}

// ScorePairs scores every pair, sharding work across GOMAXPROCS workers
// with per-worker result buffers combined at the end — the same
// private-buffer/combine-at-join shape the blocking engine uses.
// Output order is unspecified per spec's concurrency model.
func (s *Scorer) ScorePairs(pairs []blocking.Pair) []ScoredPair {
	nWorkers := runtime.GOMAXPROCS(0)
	if nWorkers > len(pairs) {
		nWorkers = len(pairs)
	}
	if nWorkers <= 1 {
		return s.scoreChunk(pairs)
	}

	chunkSize := (len(pairs) + nWorkers - 1) / nWorkers
	partials := make([][]ScoredPair, nWorkers)
	var wg sync.WaitGroup

	for w := 0; w < nWorkers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(pairs) {
			hi = len(pairs)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(idx int, chunk []blocking.Pair) {
			defer wg.Done()
			partials[idx] = s.scoreChunk(chunk)
		}(w, pairs[lo:hi])
	}
	wg.Wait()

	var total int
	for _, p := range partials {
		total += len(p)
	}
	out := make([]ScoredPair, 0, total)
	for _, p := range partials {
		out = append(out, p...)
	}
	return out
}

func (s *Scorer) scoreChunk(pairs []blocking.Pair) []ScoredPair {
	out := make([]ScoredPair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, ScoredPair{A: p.A, B: p.B, Score: s.Score(p.A, p.B)})
	}
	return out
}
