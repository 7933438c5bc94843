package app

import (
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/query"
)

// Config is read from the environment by LoadConfig. Zero values fall back
// to the component defaults.
type Config struct {
	Debug     bool
	LogFormat string
	Port      string

	StoreAdapter   string
	DatabaseURL    string
	MigrationsPath string
	Neo4jURI       string
	Neo4jUser      string
	Neo4jPassword  string
	Neo4jDatabase  string

	AIAdapter      string
	EmbedModel     string
	EmbedURL       string
	EmbedKey       string
	EmbedDim       int
	EmbedBatch     int
	ChatModel      string
	ChatURL        string
	ChatKey        string
	Tagger         string
	AITimeout      time.Duration
	AIParallel     int
	TokenEncoder   string
	ContextTokens  int
	RetrievalAlpha float64

	ChunkSize          int
	ChunkOverlap       int
	CooccurrenceWindow int
	BudgetMB           float64

	URLTimeout time.Duration
	MaxURLMB   float64
	FetchRPS   float64

	CommunityDelay    time.Duration
	CommunityInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Debug:     util.GetEnvBool("DEBUG", false),
		LogFormat: util.GetEnvString("LOG_FORMAT", "text"),
		Port:      util.GetEnvString("PORT", "8080"),

		StoreAdapter:   util.GetEnvString("STORE_ADAPTER", "memory"),
		DatabaseURL:    util.GetEnv("DATABASE_URL"),
		MigrationsPath: util.GetEnvString("MIGRATIONS_PATH", "migrations"),
		Neo4jURI:       util.GetEnvString("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:      util.GetEnvString("NEO4J_USER", "neo4j"),
		Neo4jPassword:  util.GetEnv("NEO4J_PASSWORD"),
		Neo4jDatabase:  util.GetEnv("NEO4J_DATABASE"),

		AIAdapter:      util.GetEnvString("AI_ADAPTER", "local"),
		EmbedModel:     util.GetEnv("AI_EMBED_MODEL"),
		EmbedURL:       util.GetEnv("AI_EMBED_URL"),
		EmbedKey:       util.GetEnv("AI_EMBED_KEY"),
		EmbedDim:       int(util.GetEnvNumeric("AI_EMBED_DIM", 384)),
		EmbedBatch:     int(util.GetEnvNumeric("AI_EMBED_BATCH", 64)),
		ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
		ChatURL:        util.GetEnv("AI_CHAT_URL"),
		ChatKey:        util.GetEnv("AI_CHAT_KEY"),
		Tagger:         util.GetEnvString("AI_TAGGER", "phrase"),
		AITimeout:      util.GetEnvDuration("AI_TIMEOUT", 30*time.Second),
		AIParallel:     int(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		TokenEncoder:   util.GetEnvString("AI_TOKEN_ENCODER", "o200k_base"),
		ContextTokens:  int(util.GetEnvNumeric("AI_CONTEXT_TOKENS", 500)),
		RetrievalAlpha: util.GetEnvFloat("RETRIEVAL_ALPHA", query.DefaultAlpha),

		ChunkSize:          int(util.GetEnvNumeric("CHUNK_SIZE", graph.DefaultChunkSize)),
		ChunkOverlap:       int(util.GetEnvNumeric("CHUNK_OVERLAP", graph.DefaultChunkOverlap)),
		CooccurrenceWindow: int(util.GetEnvNumeric("COOCCURRENCE_WINDOW", graph.DefaultCooccurrenceWindow)),
		BudgetMB:           util.GetEnvFloat("DATA_BUDGET_MB", 100),

		URLTimeout: util.GetEnvDuration("URL_TIMEOUT", 30*time.Second),
		MaxURLMB:   util.GetEnvFloat("MAX_URL_SIZE_MB", 5),
		FetchRPS:   util.GetEnvFloat("FETCH_RPS", 2),

		CommunityDelay:    util.GetEnvDuration("COMMUNITY_DELAY", 5*time.Second),
		CommunityInterval: util.GetEnvDuration("COMMUNITY_INTERVAL", 0),
	}
}

// GenerationEnabled reports whether answers should come from a chat model.
// A model name is always needed; the openai adapter also needs a key or a
// custom endpoint.
func (c Config) GenerationEnabled() bool {
	if c.ChatModel == "" {
		return false
	}
	switch strings.ToLower(c.AIAdapter) {
	case "openai":
		return c.ChatKey != "" || c.ChatURL != ""
	case "ollama":
		return true
	default:
		return false
	}
}
