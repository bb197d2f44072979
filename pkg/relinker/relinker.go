// Package relinker wires blocking, scoring, EM estimation, clustering,
// and reporting into the probabilistic record-linkage pipeline.
package relinker

import (
	"context"
	"fmt"
	"math"

	"github.com/cognicore/relinker/pkg/relinker/blocking"
	"github.com/cognicore/relinker/pkg/relinker/cluster"
	"github.com/cognicore/relinker/pkg/relinker/em"
	"github.com/cognicore/relinker/pkg/relinker/internalerr"
	"github.com/cognicore/relinker/pkg/relinker/loader"
	"github.com/cognicore/relinker/pkg/relinker/record"
	"github.com/cognicore/relinker/pkg/relinker/report"
	"github.com/cognicore/relinker/pkg/relinker/scoring"
	"github.com/cognicore/relinker/pkg/relinker/similarity"
)

// Options configures one linkage run.
type Options struct {
	// BlockingFields names the record fields whose literal value must
	// agree for a pair to become a candidate, one blocking.Rule per
	// field, OR'd together.
	BlockingFields []string

	// Functions are the per-field similarity functions the scorer and
	// EM estimator both operate over. Index i of InitialM/InitialU and
	// FieldWeights (if set) corresponds to Functions[i].
	Functions []similarity.Function

	InitialM, InitialU []float64
	FieldWeights       []float64 // defaults to 1.0 per field if nil

	BatchSize      int // must be positive
	MatchThreshold float64

	EMMaxIter   int
	EMTolerance float64

	Loader loader.Loader
}

// validate checks Options for internal consistency. MatchThreshold is
// accepted as any finite value and is never clamped to [0, 1]: an LLR
// threshold is an unbounded log-odds cutoff, not a probability.
func (o *Options) validate() error {
	if len(o.Functions) == 0 {
		return fmt.Errorf("%w: no similarity functions configured", internalerr.ErrConfigurationInvalid)
	}
	if len(o.InitialM) != len(o.Functions) || len(o.InitialU) != len(o.Functions) {
		return fmt.Errorf("%w: initial m/u length must match function count (got m=%d u=%d functions=%d)",
			internalerr.ErrConfigurationInvalid, len(o.InitialM), len(o.InitialU), len(o.Functions))
	}
	if o.FieldWeights != nil && len(o.FieldWeights) != len(o.Functions) {
		return fmt.Errorf("%w: field weights length must match function count", internalerr.ErrConfigurationInvalid)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", internalerr.ErrConfigurationInvalid)
	}
	if math.IsNaN(o.MatchThreshold) || math.IsInf(o.MatchThreshold, 0) {
		return fmt.Errorf("%w: match threshold must be finite", internalerr.ErrConfigurationInvalid)
	}
	if o.Loader == nil {
		return fmt.Errorf("%w: no loader configured", internalerr.ErrConfigurationInvalid)
	}
	return nil
}

// Engine runs the linkage pipeline over one Options configuration.
type Engine struct {
	opts Options
}

// New validates opts and constructs an Engine.
func New(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// GenerateCandidatePairs loads every record from the configured Loader
// and runs blocking over it, returning the pairs that agree on at
// least one blocking rule.
func (e *Engine) GenerateCandidatePairs(ctx context.Context) ([]blocking.Pair, error) {
	records, err := e.opts.Loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internalerr.ErrLoaderFailure, err)
	}

	rules := blocking.FromFields(e.opts.BlockingFields)
	return blocking.Collect(records, rules, e.opts.BatchSize), nil
}

// ScoreCandidatePairs scores each pair under the configured similarity
// functions and Fellegi-Sunter m/u parameters.
func (e *Engine) ScoreCandidatePairs(pairs []blocking.Pair) []scoring.ScoredPair {
	scorer := scoring.New(e.opts.Functions, e.opts.InitialM, e.opts.InitialU)
	return scorer.ScorePairs(pairs)
}

// EstimateParameters refines the m/u parameters via EM over pairs,
// leaving Options' configured InitialM/InitialU untouched — callers
// decide whether and how to feed the result back into a later run.
func (e *Engine) EstimateParameters(pairs []blocking.Pair) em.Result {
	estimator := &em.Estimator{
		Functions:    e.opts.Functions,
		FieldWeights: e.opts.FieldWeights,
		MaxIter:      e.opts.EMMaxIter,
		Tolerance:    e.opts.EMTolerance,
	}
	return estimator.Estimate(pairs)
}

// LinkRecords runs the full pipeline — block, score, threshold,
// cluster — and returns each cluster's root id mapped to its member
// ids.
func (e *Engine) LinkRecords(ctx context.Context) (map[string][]string, error) {
	_, forest, _, err := e.linkAndCluster(ctx)
	if err != nil {
		return nil, err
	}
	return forest.Snapshot(), nil
}

// LinkRecordsWithDetails runs the full pipeline and additionally
// builds one explainable report.Card per resulting cluster.
func (e *Engine) LinkRecordsWithDetails(ctx context.Context) ([]report.Card, error) {
	matched, forest, _, err := e.linkAndCluster(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := forest.Snapshot()
	builder := report.New()
	return builder.BuildAll(snapshot, matched, e.opts.Functions), nil
}

// LinkRecordsGrouped runs the full pipeline and resolves each cluster's
// member ids back into their full Records, via report.Resolve — the
// "list of lists of Records" view spec.md §4.6 originally described,
// kept alongside the explainable-card view for callers that just want
// the grouped records.
func (e *Engine) LinkRecordsGrouped(ctx context.Context) ([][]record.Record, error) {
	_, forest, records, err := e.linkAndCluster(ctx)
	if err != nil {
		return nil, err
	}
	return report.Resolve(forest.Snapshot(), records), nil
}

// linkAndCluster runs the shared block-score-threshold-cluster prefix
// of LinkRecords, LinkRecordsWithDetails, and LinkRecordsGrouped,
// loading records exactly once and returning the matched pairs, the
// populated cluster forest, and the loaded records so callers don't
// need to load or cluster again.
func (e *Engine) linkAndCluster(ctx context.Context) ([]scoring.ScoredPair, *cluster.Forest, []record.Record, error) {
	records, err := e.opts.Loader.LoadAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", internalerr.ErrLoaderFailure, err)
	}

	rules := blocking.FromFields(e.opts.BlockingFields)
	pairs := blocking.Collect(records, rules, e.opts.BatchSize)

	scorer := scoring.New(e.opts.Functions, e.opts.InitialM, e.opts.InitialU)
	scored := scorer.ScorePairs(pairs)

	forest := &cluster.Forest{}
	for _, r := range records {
		forest.Find(r.ID)
	}

	var matched []scoring.ScoredPair
	for _, sp := range scored {
		if sp.Score > e.opts.MatchThreshold {
			forest.Merge(sp.A.ID, sp.B.ID)
			matched = append(matched, sp)
		}
	}

	return matched, forest, records, nil
}
