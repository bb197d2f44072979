// Package blocking generates candidate record pairs cheaply, avoiding
// the quadratic cost of comparing every record against every other.
package blocking

import (
	"runtime"
	"sync"

	"github.com/cognicore/relinker/pkg/relinker/record"
)

// Rule is a named, pure blocking key extractor — the BlockingRule
// entity. Two records block together under this rule when KeyFn
// returns the same (non-distinguishing) string for both.
type Rule struct {
	Name  string
	KeyFn func(record.Record) string
}

// FromFields derives one literal-field-value blocking rule per name —
// the one-line adapter the orchestrator's "derive blocking rules from a
// field-name list" step needs. A missing field yields the empty string,
// which only matches other empties; callers are responsible for
// choosing fields with enough cardinality to be useful.
func FromFields(names []string) []Rule {
	rules := make([]Rule, len(names))
	for i, name := range names {
		n := name
		rules[i] = Rule{
			Name:  n,
			KeyFn: func(r record.Record) string { return r.Field(n) },
		}
	}
	return rules
}

// Pair is an unordered candidate pair with a.ID < b.ID.
type Pair struct {
	A, B record.Record
}

// anyRuleAgrees reports whether any rule yields an identical key for a
// and b. A rule whose KeyFn panics is treated as non-matching for that
// record per spec's failure semantics (it neither forces nor forbids
// the pair).
func anyRuleAgrees(rules []Rule, a, b record.Record) (agrees bool) {
	for _, rule := range rules {
		if keyFnAgrees(rule, a, b) {
			return true
		}
	}
	return false
}

func keyFnAgrees(rule Rule, a, b record.Record) (agrees bool) {
	defer func() {
		if recover() != nil {
			agrees = false
		}
	}()
	ka, ok := safeKey(rule, a)
	if !ok {
		return false
	}
	kb, ok := safeKey(rule, b)
	if !ok {
		return false
	}
	return ka == kb
}

func safeKey(rule Rule, r record.Record) (key string, ok bool) {
	defer func() {
		if recover() != nil {
			key, ok = "", false
		}
	}()
	return rule.KeyFn(r), true
}

// Generate produces candidate pairs in contiguous batches of batchSize,
// scanning each batch's records against the full record list. Within a
// batch, pair accumulation is sharded across GOMAXPROCS workers, each
// filling a private slice that is appended to the batch's output in
// worker order once all workers finish — the same per-worker-partial
// shape the engine uses for scoring and EM accumulation. Batches
// themselves are processed strictly in order, so the returned pairs
// preserve batch-sequential ordering; within a batch, pairs follow
// worker (shard) order regardless of which worker finished first.
//
// emit is called once per accepted pair; returning early from emit
// (e.g. to push into a bounded channel) is the caller's responsibility.
func Generate(records []record.Record, rules []Rule, batchSize int, emit func(Pair)) {
	if batchSize <= 0 {
		batchSize = len(records)
	}
	if batchSize <= 0 {
		return
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		for _, p := range processBatch(batch, records, rules) {
			emit(p)
		}
	}
}

// processBatch scans every record in batch against the full record
// list, sharding the batch's records across workers.
func processBatch(batch, all []record.Record, rules []Rule) []Pair {
	nWorkers := runtime.GOMAXPROCS(0)
	if nWorkers > len(batch) {
		nWorkers = len(batch)
	}
	if nWorkers <= 1 {
		return scanChunk(batch, all, rules)
	}

	chunkSize := (len(batch) + nWorkers - 1) / nWorkers
	partials := make([][]Pair, nWorkers)
	var wg sync.WaitGroup

	for w := 0; w < nWorkers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(batch) {
			hi = len(batch)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(idx int, chunk []record.Record) {
			defer wg.Done()
			partials[idx] = scanChunk(chunk, all, rules)
		}(w, batch[lo:hi])
	}
	wg.Wait()

	var total int
	for _, p := range partials {
		total += len(p)
	}
	out := make([]Pair, 0, total)
	for _, p := range partials {
		out = append(out, p...)
	}
	return out
}

// scanChunk compares every record in chunk against every record in all,
// accepting a pair only when a.ID < b.ID and at least one rule agrees.
func scanChunk(chunk, all []record.Record, rules []Rule) []Pair {
	var out []Pair
	for _, a := range chunk {
		for _, b := range all {
			if a.ID >= b.ID {
				continue
			}
			if anyRuleAgrees(rules, a, b) {
				out = append(out, Pair{A: a, B: b})
			}
		}
	}
	return out
}

// Collect runs Generate and returns all pairs as a slice, for callers
// that don't need streaming/backpressure.
func Collect(records []record.Record, rules []Rule, batchSize int) []Pair {
	var out []Pair
	Generate(records, rules, batchSize, func(p Pair) {
		out = append(out, p)
	})
	return out
}
