package query

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/ai/hashing"
	"github.com/OFFIS-RIT/kgraph/pkg/ai/phrase"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"
)

const mlSentences = "Machine learning is a field of artificial intelligence. " +
	"Python is the most popular language for machine learning projects. " +
	"Neural networks learn patterns from training data. " +
	"Data scientists use Python libraries such as scikit-learn and PyTorch. " +
	"Supervised learning needs labeled examples for every prediction task. "

type fakeGenerator struct {
	result ai.GenerationResult
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, system, prompt string) ai.GenerationResult {
	f.prompt = prompt
	return f.result
}

func newEmbedder(t *testing.T) *ai.EmbeddingClient {
	t.Helper()
	emb, err := ai.NewEmbeddingClient(hashing.NewEmbedder(64), ai.NewEmbeddingClientParams{Dimension: 64})
	if err != nil {
		t.Fatal(err)
	}
	return emb
}

func ingestML(t *testing.T, s *memory.GraphMemoryStorage, emb *ai.EmbeddingClient) {
	t.Helper()
	var b strings.Builder
	for b.Len() < 3000 {
		b.WriteString(mlSentences)
	}
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Storage:      s,
		Tagger:       phrase.NewTagger(5),
		Embedder:     emb,
		ChunkSize:    graph.DefaultChunkSize,
		ChunkOverlap: graph.DefaultChunkOverlap,
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := client.IngestFile(context.Background(), "ml.txt", []byte(b.String()[:3000]))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if res.ChunksCreated < 1 || res.ConceptsExtracted < 1 {
		t.Fatalf("unexpected ingest result %+v", res)
	}
}

func newComposer(t *testing.T, s *memory.GraphMemoryStorage, emb *ai.EmbeddingClient, gen ai.Generator) *Composer {
	t.Helper()
	c, err := NewComposer(NewComposerParams{
		Retriever: NewRetriever(s, emb),
		Expander:  NewExpander(s),
		Documents: s,
		Generator: gen,
		Alpha:     DefaultAlpha,
	})
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	return c
}

func TestAnswer_EmptyStore(t *testing.T) {
	s := memory.New()
	c := newComposer(t, s, newEmbedder(t), nil)

	ans, err := c.Answer(context.Background(), "What is machine learning?", 10)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !reflect.DeepEqual(ans, EmptyAnswer()) {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if ans.Answer != "I couldn't find any relevant information to answer your question." {
		t.Fatalf("unexpected text %q", ans.Answer)
	}
}

func TestAnswer_EndToEnd(t *testing.T) {
	s := memory.New()
	emb := newEmbedder(t)
	ingestML(t, s, emb)
	c := newComposer(t, s, emb, nil)
	trace := NewQueryTrace()

	ans, err := c.Answer(context.Background(), "What is machine learning?", 10, WithTracer(trace))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(ans.Sources) == 0 || ans.Sources[0].Text == "" {
		t.Fatalf("expected a non-empty source, got %+v", ans.Sources)
	}
	if ans.Sources[0].DocName != "ml.txt" {
		t.Fatalf("source not enriched: %+v", ans.Sources[0])
	}
	if len(ans.NodesUsed) == 0 || len(ans.NodesUsed) > 10 {
		t.Fatalf("unexpected nodes used %v", ans.NodesUsed)
	}
	for _, label := range ans.NodesUsed {
		if _, ok := s.Lookup(label); !ok {
			t.Fatalf("node %q is not a stored concept", label)
		}
	}
	if snap := trace.Snapshot(); snap.Mode != AnswerModeExtractive || len(snap.RetrievedChunkIDs) == 0 {
		t.Fatalf("unexpected trace %+v", snap)
	}
}

func TestAnswer_GenerationFailureFallsBack(t *testing.T) {
	s := memory.New()
	emb := newEmbedder(t)
	ingestML(t, s, emb)

	extractive, err := newComposer(t, s, emb, nil).Answer(context.Background(), "What is machine learning?", 10)
	if err != nil {
		t.Fatal(err)
	}

	gen := &fakeGenerator{result: ai.GenerationResult{
		Outcome: ai.NeedsFallback,
		Err:     errors.New("model unreachable"),
	}}
	trace := NewQueryTrace()
	got, err := newComposer(t, s, emb, gen).Answer(context.Background(), "What is machine learning?", 10, WithTracer(trace))
	if err != nil {
		t.Fatalf("generation failure surfaced: %v", err)
	}
	if !reflect.DeepEqual(got, extractive) {
		t.Fatalf("fallback answer differs from extractive:\n%+v\n%+v", got, extractive)
	}
	if trace.Snapshot().Mode != AnswerModeFallback {
		t.Fatalf("expected fallback mode, got %q", trace.Snapshot().Mode)
	}
}

func TestAnswer_Generative(t *testing.T) {
	s := memory.New()
	emb := newEmbedder(t)
	ingestML(t, s, emb)

	gen := &fakeGenerator{result: ai.GenerationResult{Outcome: ai.Generated, Text: "It is a field of AI [1]."}}
	ans, err := newComposer(t, s, emb, gen).Answer(context.Background(), "What is machine learning?", 10)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "It is a field of AI [1]." {
		t.Fatalf("unexpected answer %q", ans.Answer)
	}
	if len(ans.Sources) == 0 || len(ans.Sources) > 5 {
		t.Fatalf("unexpected sources %d", len(ans.Sources))
	}
	if !strings.Contains(gen.prompt, "Question: What is machine learning?") || !strings.Contains(gen.prompt, "[1] ") {
		t.Fatalf("prompt missing question or citations: %q", gen.prompt)
	}
	if len(ans.NodesUsed) == 0 {
		t.Fatal("expected nodes used")
	}
}

func TestExtractive(t *testing.T) {
	results := []common.ChunkResult{
		{
			Chunk: common.Chunk{ID: "x_0", DocumentID: "x", Text: "Machine learning is a subset of AI. Short one! It learns from data automatically."},
			Score: 1,
		},
		{
			Chunk: common.Chunk{ID: "x_1", DocumentID: "x", Text: "Models generalize from examples to new inputs?"},
			Score: 0.8,
		},
		{
			Chunk: common.Chunk{ID: "y_0", DocumentID: "y", Text: "Python is used widely for data science work"},
			Score: 0.5,
		},
	}

	ans := Extractive(results)
	want := "Machine learning is a subset of AI. It learns from data automatically. " +
		"Models generalize from examples to new inputs. Python is used widely for data science work."
	if ans.Answer != want {
		t.Fatalf("answer = %q\nwant     %q", ans.Answer, want)
	}
	if len(ans.Sources) != 2 || ans.Sources[0].ChunkID != "x_0" || ans.Sources[1].ChunkID != "y_0" {
		t.Fatalf("unexpected sources %+v", ans.Sources)
	}
}

func TestExtractive_NoUsableSentence(t *testing.T) {
	ans := Extractive([]common.ChunkResult{{Chunk: common.Chunk{Text: "Too short. Tiny!"}, Score: 1}})
	if ans.Answer != NoClearAnswer || len(ans.Sources) != 0 {
		t.Fatalf("unexpected answer %+v", ans)
	}
}

func TestExtractive_TruncatesSnippets(t *testing.T) {
	text := strings.Repeat("Graphs describe relations between many concepts ", 10)
	ans := Extractive([]common.ChunkResult{{Chunk: common.Chunk{ID: "a", DocumentID: "a", Text: text}, Score: 1}})
	if len(ans.Sources) != 1 {
		t.Fatalf("expected one source, got %d", len(ans.Sources))
	}
	if got := ans.Sources[0].Text; len([]rune(got)) != 203 || !strings.HasSuffix(got, "...") {
		t.Fatalf("snippet not truncated: %q", got)
	}
}

func TestNewComposer_AlphaUsedAsGiven(t *testing.T) {
	tests := []struct {
		name         string
		alpha        float64
		vectorCalls  int
		keywordCalls int
	}{
		{"keyword only", 0, 0, 1},
		{"vector only", 1, 1, 0},
		{"hybrid", DefaultAlpha, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{vector: []common.ScoredChunk{hit("a", 1)}, keyword: []common.ScoredChunk{hit("b", 1)}}
			c, err := NewComposer(NewComposerParams{
				Retriever: NewRetriever(s, fakeEmbedder{}),
				Expander:  NewExpander(memory.New()),
				Alpha:     tt.alpha,
			})
			if err != nil {
				t.Fatalf("NewComposer() error = %v", err)
			}
			if _, err := c.Search(context.Background(), "q", 5); err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if s.vectorCalls != tt.vectorCalls || s.keywordCalls != tt.keywordCalls {
				t.Fatalf("vector calls %d, keyword calls %d", s.vectorCalls, s.keywordCalls)
			}
		})
	}

	if _, err := NewComposer(NewComposerParams{
		Retriever: NewRetriever(&fakeSearcher{}, fakeEmbedder{}),
		Expander:  NewExpander(memory.New()),
		Alpha:     -0.1,
	}); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewComposer_EncoderLoadedLazily(t *testing.T) {
	s := memory.New()
	emb := newEmbedder(t)
	c, err := NewComposer(NewComposerParams{
		Retriever:     NewRetriever(s, emb),
		Expander:      NewExpander(s),
		TokenEncoder:  "o200k_base",
		ContextTokens: 100,
		Alpha:         DefaultAlpha,
	})
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	if c.encoder != nil {
		t.Fatal("expected encoder to stay unloaded without a generator")
	}

	ingestML(t, s, emb)
	if _, err := c.Answer(context.Background(), "What is machine learning?", 5); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if c.encoder != nil {
		t.Fatal("expected extractive answers not to load the encoder")
	}
}

func TestCapTokens_UnknownEncoderKeepsText(t *testing.T) {
	c := &Composer{tokenEncoder: "no-such-encoding", contextTokens: 3}
	text := "a long background text that would otherwise be capped"
	if got := c.capTokens(text); got != text {
		t.Fatalf("capTokens() = %q", got)
	}
	if c.encoder != nil {
		t.Fatal("expected no encoder")
	}
}
