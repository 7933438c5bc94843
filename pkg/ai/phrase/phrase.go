// Package phrase implements a rule based concept tagger. Candidate phrases are
// maximal runs of content words, split at stop words, numbers and
// punctuation. Runs longer than the token limit are dropped. Names are not
// treated specially; a name only becomes a concept when stop words or
// punctuation delimit it.
package phrase

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
)

var tokenPattern = regexp.MustCompile(`\p{L}[\p{L}\p{N}]*(?:['’\-][\p{L}\p{N}]+)*|\p{N}+`)

// Tagger is a stateless ai.ConceptTagger.
type Tagger struct {
	maxTokens int
}

func NewTagger(maxTokens int) *Tagger {
	if maxTokens <= 0 {
		maxTokens = 5
	}
	return &Tagger{maxTokens: maxTokens}
}

func (t *Tagger) ExtractConcepts(ctx context.Context, text string) ([]ai.ConceptCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		out  []ai.ConceptCandidate
		run  []string
		prev = -1
	)
	flush := func() {
		if len(run) > 0 && len(run) <= t.maxTokens {
			out = append(out, ai.ConceptCandidate{
				Label: strings.Join(run, " "),
				Lemma: Lemma(run),
			})
		}
		run = run[:0]
	}

	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		if prev >= 0 && !onlySpace(text[prev:loc[0]]) {
			flush()
		}
		prev = loc[1]

		word := text[loc[0]:loc[1]]
		lower := strings.ToLower(word)
		if ai.IsStopword(lower) || isNumber(word) {
			flush()
			continue
		}
		run = append(run, word)
	}
	flush()

	return out, nil
}

// Lemma lowercases a phrase and reduces its head word to singular.
func Lemma(words []string) string {
	if len(words) == 0 {
		return ""
	}
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}
	last := len(lower) - 1
	lower[last] = singular(lower[last])
	return strings.Join(lower, " ")
}

func singular(w string) string {
	if len([]rune(w)) <= 3 {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case strings.HasSuffix(w, "ies") && w != "series" && w != "species":
		return strings.TrimSuffix(w, "ies") + "y"
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "shes"):
		return strings.TrimSuffix(w, "es")
	case strings.HasSuffix(w, "s") && w != "series" && w != "species":
		return strings.TrimSuffix(w, "s")
	}
	return w
}

func onlySpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
