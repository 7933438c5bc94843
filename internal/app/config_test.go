package app

import (
	"context"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/query"
)

func TestConfig_GenerationEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"local adapter", Config{AIAdapter: "local", ChatModel: "gpt-4o-mini", ChatKey: "k"}, false},
		{"openai without model", Config{AIAdapter: "openai", ChatKey: "k"}, false},
		{"openai without key or url", Config{AIAdapter: "openai", ChatModel: "gpt-4o-mini"}, false},
		{"openai with key", Config{AIAdapter: "openai", ChatModel: "gpt-4o-mini", ChatKey: "k"}, true},
		{"openai with custom endpoint", Config{AIAdapter: "OpenAI", ChatModel: "llama3", ChatURL: "http://localhost:8000/v1"}, true},
		{"ollama without model", Config{AIAdapter: "ollama"}, false},
		{"ollama with model", Config{AIAdapter: "ollama", ChatModel: "llama3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GenerationEnabled(); got != tt.want {
				t.Fatalf("GenerationEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_OpenAIWithoutChatConfigIsExtractive(t *testing.T) {
	t.Setenv("AWS_BUCKET", "")
	a, err := New(context.Background(), Config{
		StoreAdapter:   "memory",
		AIAdapter:      "openai",
		EmbedModel:     "text-embedding-3-small",
		EmbedKey:       "k",
		EmbedDim:       64,
		Tagger:         "phrase",
		AITimeout:      time.Second,
		TokenEncoder:   "o200k_base",
		ContextTokens:  500,
		RetrievalAlpha: query.DefaultAlpha,
		BudgetMB:       100,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()
	if a.AI == nil {
		t.Fatal("expected the openai client to be configured")
	}
	if a.Composer.Generative() {
		t.Fatal("expected extractive answers without a chat model")
	}
}
