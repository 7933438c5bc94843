package ai

import (
	"context"
	"fmt"
	"strings"
)

// ConceptResponse is the structured output requested from the model.
type ConceptResponse struct {
	Concepts []ConceptCandidate `json:"concepts" jsonschema:"description=Concepts in the order they appear in the text"`
}

// LLMConceptTagger asks a chat model for concept candidates using structured output.
type LLMConceptTagger struct {
	client    GraphAIClient
	model     string
	maxTokens int
}

func NewLLMConceptTagger(client GraphAIClient, model string, maxTokens int) *LLMConceptTagger {
	if maxTokens <= 0 {
		maxTokens = 5
	}
	return &LLMConceptTagger{client: client, model: model, maxTokens: maxTokens}
}

func (t *LLMConceptTagger) ExtractConcepts(ctx context.Context, text string) ([]ConceptCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(ConceptPrompt, text, t.maxTokens)
	opts := []GenerateOption{WithTemperature(0)}
	if t.model != "" {
		opts = append(opts, WithModel(t.model))
	}

	var res ConceptResponse
	err := t.client.GenerateCompletionWithFormat(
		ctx,
		"concepts",
		"Noun phrases and named entities found in a text",
		prompt,
		&res,
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("concept extraction failed: %w", err)
	}
	return res.Concepts, nil
}
