package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// GenerationOutcome tells the caller whether generated text is usable.
type GenerationOutcome int

const (
	Generated GenerationOutcome = iota
	NeedsFallback
)

// GenerationResult is the outcome of a generative call. When Outcome is
// NeedsFallback, Err carries the reason and Text is empty.
type GenerationResult struct {
	Outcome GenerationOutcome
	Text    string
	Err     error
}

func generated(text string) GenerationResult {
	return GenerationResult{Outcome: Generated, Text: text}
}

func fallback(err error) GenerationResult {
	return GenerationResult{Outcome: NeedsFallback, Err: fmt.Errorf("%w: %w", common.ErrGeneration, err)}
}

// Generator produces free text for a system and user prompt. It never
// returns an error; failures are reported as NeedsFallback.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) GenerationResult
}

// CompletionGenerator adapts a GraphAIClient to Generator with a bounded wait.
type CompletionGenerator struct {
	client      GraphAIClient
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// NewCompletionGeneratorParams configures a CompletionGenerator.
type NewCompletionGeneratorParams struct {
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

func NewCompletionGenerator(client GraphAIClient, params NewCompletionGeneratorParams) *CompletionGenerator {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &CompletionGenerator{
		client:      client,
		model:       params.Model,
		timeout:     timeout,
		maxTokens:   maxTokens,
		temperature: params.Temperature,
	}
}

func (g *CompletionGenerator) Generate(ctx context.Context, system, prompt string) (res GenerationResult) {
	if g == nil || g.client == nil {
		return fallback(errors.New("no generative model configured"))
	}

	defer func() {
		if r := recover(); r != nil {
			res = fallback(fmt.Errorf("generator panic: %v", r))
		}
	}()

	gCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	opts := []GenerateOption{
		WithSystemPrompts(system),
		WithTemperature(g.temperature),
		WithMaxTokens(g.maxTokens),
	}
	if g.model != "" {
		opts = append(opts, WithModel(g.model))
	}

	text, err := g.client.GenerateCompletion(gCtx, prompt, opts...)
	if err != nil {
		return fallback(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback(errors.New("empty completion"))
	}
	return generated(text)
}
