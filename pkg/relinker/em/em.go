// Package em implements Expectation-Maximization estimation of the
// per-field m/u probabilities for the Fellegi-Sunter model.
package em

import (
	"math"
	"runtime"
	"sync"

	"github.com/cognicore/relinker/pkg/relinker/blocking"
	"github.com/cognicore/relinker/pkg/relinker/similarity"
)

const (
	// epsilon guards zero denominators without biasing early
	// iterations.
	epsilon = 1e-10

	// defaultMaxIter caps the refinement loop absent an explicit limit.
	defaultMaxIter = 20

	// defaultTolerance is safe for n <= 1000 pairs per iteration; larger
	// corpora should grow tau logarithmically (see spec design notes).
	defaultTolerance = 1e-4

	// softenBand is the width of the boundary-softening transition zone
	// around [epsilon, 1-epsilon], re-grounded on the teacher's
	// density-damping smoothstep: near a clamp boundary, a hard min/max
	// produces a kink in the convergence delta; easing into the
	// boundary keeps |m'-m| well-behaved there.
	softenBand = 1e-6
)

// Estimator refines m/u probabilities via EM over a fixed pair set and
// similarity-function list. The zero value runs zero iterations (the
// round-trip law: MaxIter=0 returns the initial m/u unchanged); use New
// to get the documented defaults (MaxIter=20, Tolerance=1e-4).
type Estimator struct {
	Functions    []similarity.Function
	FieldWeights []float64 // defaults to 1.0 per field if nil
	MaxIter      int
	Tolerance    float64 // defaults to 1e-4 when MaxIter > 0 and Tolerance == 0
}

// New constructs an Estimator with the documented defaults: MaxIter=20,
// Tolerance=1e-4.
func New(functions []similarity.Function, fieldWeights []float64) *Estimator {
	return &Estimator{
		Functions:    functions,
		FieldWeights: fieldWeights,
		MaxIter:      defaultMaxIter,
		Tolerance:    defaultTolerance,
	}
}

// Result carries the refined parameters plus enough bookkeeping to
// check the monotonic-log-likelihood property.
type Result struct {
	M, U           []float64
	Iterations     int
	Converged      bool
	LogLikelihood  []float64 // one entry per completed iteration
}

// Estimate runs EM to convergence or MaxIter, starting from m_i=0.9,
// u_i=0.1 for every field. Estimate(pairs, 0 iterations) returns the
// initial m/u unchanged, per spec's round-trip law.
func (e *Estimator) Estimate(pairs []blocking.Pair) Result {
	n := len(e.Functions)
	m := make([]float64, n)
	u := make([]float64, n)
	for i := range m {
		m[i] = 0.9
		u[i] = 0.1
	}

	weights := e.FieldWeights
	if weights == nil {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1.0
		}
	}

	maxIter := e.MaxIter
	tolerance := e.Tolerance
	if maxIter > 0 && tolerance == 0 {
		tolerance = defaultTolerance
	}

	result := Result{M: m, U: u}
	if maxIter <= 0 {
		return result
	}

	sims := precomputeSims(pairs, e.Functions)

	for iter := 0; iter < maxIter; iter++ {
		acc, ll := accumulate(sims, m, u)

		newM := make([]float64, n)
		newU := make([]float64, n)
		converged := true
		for i := 0; i < n; i++ {
			mNum := acc.mNum[i] * weights[i]
			uNum := acc.uNum[i] * weights[i]
			nm := soften(mNum / (acc.mDen + epsilon))
			nu := soften(uNum / (acc.uDen + epsilon))
			if math.Abs(nm-m[i]) > tolerance || math.Abs(nu-u[i]) > tolerance {
				converged = false
			}
			newM[i] = nm
			newU[i] = nu
		}

		m, u = newM, newU
		result.LogLikelihood = append(result.LogLikelihood, ll)
		result.Iterations = iter + 1

		if converged {
			result.Converged = true
			break
		}
	}

	result.M = m
	result.U = u
	return result
}

// soften pulls a raw probability estimate into (0, 1), easing into the
// [epsilon, 1-epsilon] boundary with a Hermite smoothstep rather than a
// bare clamp.
func soften(x float64) float64 {
	lo, hi := epsilon, 1-epsilon
	if x <= lo {
		return lo
	}
	if x >= hi {
		return hi
	}
	if x < lo+softenBand {
		t := (x - lo) / softenBand
		return lo + smoothstep(t)*softenBand
	}
	if x > hi-softenBand {
		t := (hi - x) / softenBand
		return hi - smoothstep(t)*softenBand
	}
	return x
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// pairSims holds the per-function similarities for one pair, computed
// once per EM run since the functions are stateless and the
// similarities don't change across iterations.
type pairSims struct {
	s []float64
}

func precomputeSims(pairs []blocking.Pair, functions []similarity.Function) []pairSims {
	out := make([]pairSims, len(pairs))
	nWorkers := runtime.GOMAXPROCS(0)
	if nWorkers > len(pairs) {
		nWorkers = len(pairs)
	}
	if nWorkers <= 1 {
		for i, p := range pairs {
			out[i] = computeSims(p, functions)
		}
		return out
	}

	chunkSize := (len(pairs) + nWorkers - 1) / nWorkers
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
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				out[i] = computeSims(pairs[i], functions)
			}
		}(lo, hi)
	}
	wg.Wait()
	return out
}

func computeSims(p blocking.Pair, functions []similarity.Function) pairSims {
	s := make([]float64, len(functions))
	for i, fn := range functions {
		s[i] = fn.Compute(p.A, p.B)
	}
	return pairSims{s: s}
}

// accumResult holds the combined E-step accumulators for one iteration.
type accumResult struct {
	mNum, uNum []float64
	mDen, uDen float64
}

func newAccum(n int) accumResult {
	return accumResult{mNum: make([]float64, n), uNum: make([]float64, n)}
}

func (a *accumResult) add(o accumResult) {
	for i := range a.mNum {
		a.mNum[i] += o.mNum[i]
		a.uNum[i] += o.uNum[i]
	}
	a.mDen += o.mDen
	a.uDen += o.uDen
}

// accumulate runs one E-step + accumulation pass over all pairs,
// sharding across GOMAXPROCS workers with per-worker partial
// accumulators combined at the end, per spec's "per-worker partials
// combined at the end of each iteration" policy. It also returns the
// total log-likelihood for this iteration (sum of log(P_match +
// P_unmatch) across pairs), used to check the monotonicity property.
func accumulate(sims []pairSims, m, u []float64) (accumResult, float64) {
	n := len(m)
	nWorkers := runtime.GOMAXPROCS(0)
	if nWorkers > len(sims) {
		nWorkers = len(sims)
	}
	if nWorkers <= 1 {
		return accumulateChunk(sims, m, u, n)
	}

	chunkSize := (len(sims) + nWorkers - 1) / nWorkers
	partials := make([]accumResult, nWorkers)
	lls := make([]float64, nWorkers)
	var wg sync.WaitGroup
	for w := 0; w < nWorkers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(sims) {
			hi = len(sims)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(idx, lo, hi int) {
			defer wg.Done()
			partials[idx], lls[idx] = accumulateChunk(sims[lo:hi], m, u, n)
		}(w, lo, hi)
	}
	wg.Wait()

	total := newAccum(n)
	var totalLL float64
	for i, p := range partials {
		total.add(p)
		totalLL += lls[i]
	}
	return total, totalLL
}

func accumulateChunk(sims []pairSims, m, u []float64, n int) (accumResult, float64) {
	acc := newAccum(n)
	var ll float64
	for _, sp := range sims {
		pMatch := 1.0
		pUnmatch := 1.0
		for i, s := range sp.s {
			pMatch *= m[i]*s + (1-m[i])*(1-s)
			pUnmatch *= u[i]*s + (1-u[i])*(1-s)
		}

		denom := pMatch + pUnmatch
		var w float64
		if denom > 0 {
			w = pMatch / denom
			ll += math.Log(denom)
		}

		for i, s := range sp.s {
			acc.mNum[i] += w * s
			acc.uNum[i] += (1 - w) * s
		}
		acc.mDen += w
		acc.uDen += 1 - w
	}
	return acc, ll
}
