package graph

import (
	"context"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
)

const (
	DefaultMinConceptChars = 3
	DefaultMaxConceptWords = 5
)

// Concept is a normalized concept found in a chunk.
type Concept struct {
	Label string
	Lemma string
}

// ConceptExtractor normalizes tagger output into per-chunk concept lists.
type ConceptExtractor struct {
	tagger   ai.ConceptTagger
	minChars int
	maxWords int
}

func NewConceptExtractor(tagger ai.ConceptTagger, minChars, maxWords int) *ConceptExtractor {
	if minChars <= 0 {
		minChars = DefaultMinConceptChars
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxConceptWords
	}
	return &ConceptExtractor{tagger: tagger, minChars: minChars, maxWords: maxWords}
}

// Extract returns the concepts of text in first-occurrence order. Labels are
// lowercased and trimmed, too short or too long phrases are dropped, and each
// label appears at most once.
func (e *ConceptExtractor) Extract(ctx context.Context, text string) ([]Concept, error) {
	candidates, err := e.tagger.ExtractConcepts(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.filter(candidates), nil
}

func (e *ConceptExtractor) filter(candidates []ai.ConceptCandidate) []Concept {
	out := make([]Concept, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		words := strings.Fields(strings.ToLower(c.Label))
		if len(words) == 0 || len(words) > e.maxWords {
			continue
		}
		label := strings.Join(words, " ")
		if len([]rune(label)) < e.minChars {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}

		lemma := strings.Join(strings.Fields(strings.ToLower(c.Lemma)), " ")
		if lemma == "" {
			lemma = label
		}
		out = append(out, Concept{Label: label, Lemma: lemma})
	}
	return out
}

// Labels returns the labels of concepts in order.
func Labels(concepts []Concept) []string {
	out := make([]string, len(concepts))
	for i, c := range concepts {
		out[i] = c.Label
	}
	return out
}
