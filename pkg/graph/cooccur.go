package graph

import (
	"sort"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

const DefaultCooccurrenceWindow = 5

// PairKey identifies an undirected concept pair. A is always the smaller label.
type PairKey struct {
	A string
	B string
}

func NewPairKey(x, y string) PairKey {
	if y < x {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

// CooccurrenceAggregator sums co-occurrence weights over the chunks of one
// ingestion. It is not safe for concurrent use.
type CooccurrenceAggregator struct {
	window  int
	weights map[PairKey]float64
}

func NewCooccurrenceAggregator(window int) *CooccurrenceAggregator {
	if window <= 1 {
		window = DefaultCooccurrenceWindow
	}
	return &CooccurrenceAggregator{
		window:  window,
		weights: make(map[PairKey]float64),
	}
}

// Add accumulates the pairs of one chunk's ordered labels. Labels at distance
// d (0 < d < window) contribute 1/d to their pair. Identical labels never
// pair with themselves.
func (a *CooccurrenceAggregator) Add(labels []string) {
	for i := range labels {
		for j := i + 1; j < len(labels) && j < i+a.window; j++ {
			if labels[i] == labels[j] {
				continue
			}
			a.weights[NewPairKey(labels[i], labels[j])] += 1.0 / float64(j-i)
		}
	}
}

// Weight returns the accumulated weight of an unordered pair.
func (a *CooccurrenceAggregator) Weight(x, y string) float64 {
	return a.weights[NewPairKey(x, y)]
}

// Len returns the number of distinct pairs seen.
func (a *CooccurrenceAggregator) Len() int {
	return len(a.weights)
}

// Edges returns one increment per pair, sorted by (source, target). Stores
// apply them in this order so concurrent ingestions lock rows consistently.
func (a *CooccurrenceAggregator) Edges() []common.CoOccurrence {
	out := make([]common.CoOccurrence, 0, len(a.weights))
	for k, w := range a.weights {
		out = append(out, common.CoOccurrence{Source: k.A, Target: k.B, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}
