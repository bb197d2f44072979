package relinker

import (
	"context"
	"math"
	"testing"

	"github.com/cognicore/relinker/pkg/relinker/loader/memloader"
	"github.com/cognicore/relinker/pkg/relinker/record"
	"github.com/cognicore/relinker/pkg/relinker/similarity"
)

func exactMatch(field string) similarity.Function {
	return similarity.Function{
		FieldName: field,
		Compute: func(a, b record.Record) float64 {
			if a.Field(field) == b.Field(field) {
				return 1.0
			}
			return 0.0
		},
	}
}

func baseOptions(l *memloader.Loader) Options {
	return Options{
		BlockingFields: []string{"city"},
		Functions:      []similarity.Function{exactMatch("name")},
		InitialM:       []float64{0.9},
		InitialU:       []float64{0.1},
		BatchSize:      1000,
		MatchThreshold: 1.0,
		Loader:         l,
	}
}

func TestNewRejectsEmptyFunctions(t *testing.T) {
	l := memloader.New(nil)
	opts := baseOptions(l)
	opts.Functions = nil
	if _, err := New(opts); err == nil {
		t.Error("expected error for empty functions")
	}
}

func TestNewRejectsMismatchedMULength(t *testing.T) {
	l := memloader.New(nil)
	opts := baseOptions(l)
	opts.InitialU = []float64{0.1, 0.1}
	if _, err := New(opts); err == nil {
		t.Error("expected error for mismatched m/u length")
	}
}

func TestNewRejectsNonPositiveBatchSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		l := memloader.New(nil)
		opts := baseOptions(l)
		opts.BatchSize = size
		if _, err := New(opts); err == nil {
			t.Errorf("expected error for batch size %d", size)
		}
	}
}

func TestNewRejectsNonFiniteThreshold(t *testing.T) {
	l := memloader.New(nil)
	opts := baseOptions(l)
	opts.MatchThreshold = math.NaN()
	if _, err := New(opts); err == nil {
		t.Error("expected error for NaN threshold")
	}
}

func TestNewAcceptsNegativeThreshold(t *testing.T) {
	// Open Question resolution: thresholds are unbounded log-odds
	// cutoffs, not probabilities, so negative values are valid.
	l := memloader.New(nil)
	opts := baseOptions(l)
	opts.MatchThreshold = -5.0
	if _, err := New(opts); err != nil {
		t.Errorf("unexpected error for negative threshold: %v", err)
	}
}

func TestNewRejectsNilLoader(t *testing.T) {
	opts := baseOptions(nil)
	opts.Loader = nil
	if _, err := New(opts); err == nil {
		t.Error("expected error for nil loader")
	}
}

func TestLinkRecordsClustersAgreeingPairs(t *testing.T) {
	l := memloader.New([]record.Record{
		{ID: "1", Fields: map[string]string{"city": "nyc", "name": "alice"}},
		{ID: "2", Fields: map[string]string{"city": "nyc", "name": "alice"}},
		{ID: "3", Fields: map[string]string{"city": "nyc", "name": "bob"}},
	})

	e, err := New(baseOptions(l))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshot, err := e.LinkRecords(context.Background())
	if err != nil {
		t.Fatalf("LinkRecords: %v", err)
	}

	root1 := findRoot(snapshot, "1")
	root3 := findRoot(snapshot, "3")
	if root1 != findRoot(snapshot, "2") {
		t.Error("records 1 and 2 should cluster together (matching name)")
	}
	if root1 == root3 {
		t.Error("records 1 and 3 should not cluster together (different name)")
	}
}

func TestLinkRecordsWithDetailsProducesCards(t *testing.T) {
	l := memloader.New([]record.Record{
		{ID: "1", Fields: map[string]string{"city": "nyc", "name": "alice"}},
		{ID: "2", Fields: map[string]string{"city": "nyc", "name": "alice"}},
	})

	e, err := New(baseOptions(l))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cards, err := e.LinkRecordsWithDetails(context.Background())
	if err != nil {
		t.Fatalf("LinkRecordsWithDetails: %v", err)
	}

	found := false
	for _, c := range cards {
		if len(c.Members) == 2 {
			found = true
			if len(c.Pairs) != 1 {
				t.Errorf("Pairs = %d, want 1", len(c.Pairs))
			}
		}
	}
	if !found {
		t.Error("expected a two-member cluster card")
	}
}

func TestLinkRecordsScoreEqualToThresholdIsNotMerged(t *testing.T) {
	// Threshold filter is strictly-greater-than: a pair scoring exactly
	// the threshold (e.g. every term skipped for numerical degeneracy,
	// leaving a score of 0) must not merge.
	l := memloader.New([]record.Record{
		{ID: "1", Fields: map[string]string{"city": "nyc", "name": "alice"}},
		{ID: "2", Fields: map[string]string{"city": "nyc", "name": "bob"}},
	})

	opts := baseOptions(l)
	opts.MatchThreshold = -2.1972245773362196 // exactly the mismatch LLR
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snapshot, err := e.LinkRecords(context.Background())
	if err != nil {
		t.Fatalf("LinkRecords: %v", err)
	}
	if findRoot(snapshot, "1") == findRoot(snapshot, "2") {
		t.Error("pair scoring exactly the threshold must not merge")
	}
}

func TestLinkRecordsGroupedResolvesFullRecords(t *testing.T) {
	l := memloader.New([]record.Record{
		{ID: "1", Fields: map[string]string{"city": "nyc", "name": "alice"}},
		{ID: "2", Fields: map[string]string{"city": "nyc", "name": "alice"}},
	})

	e, err := New(baseOptions(l))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	groups, err := e.LinkRecordsGrouped(context.Background())
	if err != nil {
		t.Fatalf("LinkRecordsGrouped: %v", err)
	}

	found := false
	for _, g := range groups {
		if len(g) == 2 {
			found = true
			for _, r := range g {
				if r.Field("name") != "alice" {
					t.Errorf("resolved record has unexpected name %q", r.Field("name"))
				}
			}
		}
	}
	if !found {
		t.Error("expected a two-record group")
	}
}

func TestGenerateCandidatePairsRespectsBlocking(t *testing.T) {
	l := memloader.New([]record.Record{
		{ID: "1", Fields: map[string]string{"city": "nyc"}},
		{ID: "2", Fields: map[string]string{"city": "nyc"}},
		{ID: "3", Fields: map[string]string{"city": "sf"}},
	})
	e, err := New(baseOptions(l))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pairs, err := e.GenerateCandidatePairs(context.Background())
	if err != nil {
		t.Fatalf("GenerateCandidatePairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("pairs = %d, want 1 (only 1-2 share a city)", len(pairs))
	}
}

func TestEstimateParametersRunsEM(t *testing.T) {
	l := memloader.New(nil)
	opts := baseOptions(l)
	opts.EMMaxIter = 5
	opts.EMTolerance = 1e-4
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pairs, _ := e.GenerateCandidatePairs(context.Background())
	result := e.EstimateParameters(pairs)
	if len(result.M) != 1 || len(result.U) != 1 {
		t.Errorf("unexpected result shape: %+v", result)
	}
}

func findRoot(snapshot map[string][]string, id string) string {
	for root, members := range snapshot {
		for _, m := range members {
			if m == id {
				return root
			}
		}
	}
	return ""
}
