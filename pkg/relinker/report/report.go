// Package report builds explainable cluster cards: a human-readable
// summary of why a set of records was merged, re-purposing the
// teacher's explainable-retrieval-card idea for cluster explanation.
package report

import (
	"crypto/rand"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/relinker/pkg/relinker/record"
	"github.com/cognicore/relinker/pkg/relinker/scoring"
	"github.com/cognicore/relinker/pkg/relinker/similarity"
)

// Builder constructs Cards, tagging each with a sortable unique ID.
type Builder struct {
	entropy *ulid.MonotonicEntropy
}

// New creates a card builder.
func New() *Builder {
	return &Builder{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// PairExplain describes, for one scored pair in a cluster, which
// similarity functions agreed (similarity above agreeThreshold) and the
// pair's aggregate score.
type PairExplain struct {
	AID, BID string
	Score    float64
	Agreed   []string // FieldName of functions scoring above agreeThreshold
}

// Card is an explainable summary of one cluster.
type Card struct {
	ID       string
	Root     string
	Members  []string
	Pairs    []PairExplain
	MeanLLR  float64
}

// agreeThreshold is the per-field similarity above which a function is
// considered to have "agreed" for explanation purposes. This is purely
// presentational — it does not affect clustering or scoring.
const agreeThreshold = 0.5

// Build constructs a Card for one cluster: root id, its members, and a
// per-pair explanation for every scored pair whose two endpoints are
// both in the cluster.
func (b *Builder) Build(root string, members []string, pairs []scoring.ScoredPair, functions []similarity.Function) Card {
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m] = struct{}{}
	}

	sortedMembers := append([]string(nil), members...)
	sort.Strings(sortedMembers)

	card := Card{
		ID:      ulid.MustNew(ulid.Now(), b.entropy).String(),
		Root:    root,
		Members: sortedMembers,
	}

	var llrSum float64
	var pairCount int
	for _, sp := range pairs {
		if _, ok := memberSet[sp.A.ID]; !ok {
			continue
		}
		if _, ok := memberSet[sp.B.ID]; !ok {
			continue
		}

		var agreed []string
		for _, fn := range functions {
			if fn.Compute(sp.A, sp.B) > agreeThreshold {
				agreed = append(agreed, fn.FieldName)
			}
		}

		card.Pairs = append(card.Pairs, PairExplain{
			AID:    sp.A.ID,
			BID:    sp.B.ID,
			Score:  sp.Score,
			Agreed: agreed,
		})
		llrSum += sp.Score
		pairCount++
	}

	if pairCount > 0 {
		card.MeanLLR = llrSum / float64(pairCount)
	}

	return card
}

// BuildAll builds one Card per cluster in snapshot, in sorted root
// order, explaining each cluster from the given scored pairs.
func (b *Builder) BuildAll(snapshot map[string][]string, pairs []scoring.ScoredPair, functions []similarity.Function) []Card {
	roots := make([]string, 0, len(snapshot))
	for root := range snapshot {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	cards := make([]Card, 0, len(roots))
	for _, root := range roots {
		cards = append(cards, b.Build(root, snapshot[root], pairs, functions))
	}
	return cards
}

// recordsByID is a small lookup helper used by Resolve to turn a
// cluster's member ids back into full Records (the list-of-lists-of-
// Records view behind Engine.LinkRecordsGrouped).
func recordsByID(records []record.Record) map[string]record.Record {
	out := make(map[string]record.Record, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out
}

// Resolve turns a cluster snapshot into record groups, dropping any
// member id that isn't present in records (defensive: shouldn't happen
// in a well-formed pipeline).
func Resolve(snapshot map[string][]string, records []record.Record) [][]record.Record {
	byID := recordsByID(records)
	roots := make([]string, 0, len(snapshot))
	for root := range snapshot {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	groups := make([][]record.Record, 0, len(roots))
	for _, root := range roots {
		members := snapshot[root]
		group := make([]record.Record, 0, len(members))
		for _, id := range members {
			if r, ok := byID[id]; ok {
				group = append(group, r)
			}
		}
		groups = append(groups, group)
	}
	return groups
}
