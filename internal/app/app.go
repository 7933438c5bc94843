// Package app wires the graph components from a Config. The server, the
// worker and kgctl share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/storage"
	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/ai/hashing"
	oai "github.com/OFFIS-RIT/kgraph/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/kgraph/pkg/ai/openai"
	"github.com/OFFIS-RIT/kgraph/pkg/ai/phrase"
	"github.com/OFFIS-RIT/kgraph/pkg/community"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/kgraph/pkg/loader/web"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/query"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"
	"github.com/OFFIS-RIT/kgraph/pkg/store/neo4j"
	pgstore "github.com/OFFIS-RIT/kgraph/pkg/store/pgx"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// App holds the wired components. Generator is nil with the local AI
// adapter, in which case answers are extractive.
type App struct {
	Config    Config
	Storage   store.GraphStorage
	AI        ai.GraphAIClient
	Embedder  *ai.EmbeddingClient
	Graph     *graph.GraphClient
	Composer  *query.Composer
	Detector  *community.Detector
	Scheduler *community.Scheduler
	Archive   *storage.DocumentArchive
	// S3 is nil unless AWS_BUCKET is set.
	S3 *s3.Client
}

// New connects the configured backends. Close releases them.
func New(ctx context.Context, cfg Config) (*App, error) {
	a := &App{Config: cfg}

	st, locker, partitioners, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Storage = st

	if err := a.initAI(cfg); err != nil {
		a.Close()
		return nil, err
	}

	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	var archive graph.Archiver
	if s3Client != nil {
		a.S3 = s3Client
		a.Archive = storage.NewDocumentArchive(s3Client, util.GetEnv("AWS_BUCKET"), util.GetEnv("AWS_PREFIX"))
		archive = a.Archive
		logger.Info("[App] Archiving raw documents to S3")
	}

	tagger, err := a.tagger(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := web.NewWebFetcher(web.NewWebFetcherParams{
		Timeout:           cfg.URLTimeout,
		MaxBytes:          int64(cfg.MaxURLMB * 1024 * 1024),
		RequestsPerSecond: cfg.FetchRPS,
	})

	a.Graph, err = graph.NewGraphClient(graph.NewGraphClientParams{
		Storage:            st,
		Tagger:             tagger,
		Embedder:           a.Embedder,
		Budget:             graph.NewBudgetGuardMB(st, cfg.BudgetMB),
		Fetcher:            fetcher,
		Archive:            archive,
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		CooccurrenceWindow: cfg.CooccurrenceWindow,
		ParallelChunks:     cfg.AIParallel,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	var generator ai.Generator
	if a.AI != nil && cfg.GenerationEnabled() {
		generator = ai.NewCompletionGenerator(a.AI, ai.NewCompletionGeneratorParams{
			Model:   cfg.ChatModel,
			Timeout: cfg.AITimeout,
		})
	} else if a.AI != nil {
		logger.Info("[App] No chat model configured, answers are extractive")
	}
	a.Composer, err = query.NewComposer(query.NewComposerParams{
		Retriever:     query.NewRetriever(st, a.Embedder),
		Expander:      query.NewExpander(st),
		Documents:     st,
		Generator:     generator,
		TokenEncoder:  cfg.TokenEncoder,
		ContextTokens: cfg.ContextTokens,
		Alpha:         cfg.RetrievalAlpha,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Detector = community.NewDetector(st, partitioners...)
	a.Scheduler = community.NewScheduler(a.Detector, community.NewSchedulerParams{
		Locker:       locker,
		StartupDelay: cfg.CommunityDelay,
		Interval:     cfg.CommunityInterval,
	})

	return a, nil
}

func openStore(ctx context.Context, cfg Config) (store.GraphStorage, leaselock.Locker, []community.Partitioner, error) {
	louvain := community.NewLouvainPartitioner()

	switch strings.ToLower(cfg.StoreAdapter) {
	case "pgx", "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, nil, errors.New("DATABASE_URL is required for the pgx store")
		}
		if err := Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, nil, nil, err
		}
		pool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("[App] Using postgres graph store")
		st := pgstore.NewGraphDBStorageWithConnection(pool, pgstore.WithCloser(pool.Close))
		return st, leaselock.New(pool), []community.Partitioner{louvain}, nil

	case "neo4j":
		st, err := neo4j.NewGraphNeo4jStorage(ctx, neo4j.NewGraphNeo4jStorageParams{
			URI:       cfg.Neo4jURI,
			User:      cfg.Neo4jUser,
			Password:  cfg.Neo4jPassword,
			Database:  cfg.Neo4jDatabase,
			Dimension: cfg.EmbedDim,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("[App] Using neo4j graph store")
		partitioners := []community.Partitioner{louvain}
		if gds := neo4j.NewGDSPartitioner(st); gds.Available(ctx) {
			logger.Info("[App] Graph Data Science plugin found, using it for communities")
			partitioners = []community.Partitioner{gds, louvain}
		}
		return st, leaselock.NewLocal(), partitioners, nil

	case "memory", "":
		logger.Warn("[App] Using in-memory graph store, data is lost on exit")
		return memory.New(), leaselock.NewLocal(), []community.Partitioner{louvain}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE_ADAPTER %q", cfg.StoreAdapter)
	}
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := util.RetryErrWithBackoff(ctx, 5, time.Second, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the SQL migrations in dir.
func Migrate(databaseURL, dir string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("[App] Database migrated", "version", version, "dirty", dirty)
	return nil
}

func (a *App) initAI(cfg Config) error {
	var embedder ai.Embedder

	switch strings.ToLower(cfg.AIAdapter) {
	case "openai":
		client := gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:        cfg.EmbedModel,
			ChatModel:             cfg.ChatModel,
			EmbedDimensions:       cfg.EmbedDim,
			EmbeddingURL:          cfg.EmbedURL,
			EmbeddingKey:          cfg.EmbedKey,
			ChatURL:               cfg.ChatURL,
			ChatKey:               cfg.ChatKey,
			MaxConcurrentRequests: int64(cfg.AIParallel),
			Timeout:               cfg.AITimeout,
		})
		a.AI = client
		embedder = client
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:        cfg.EmbedModel,
			ChatModel:             cfg.ChatModel,
			BaseURL:               cfg.ChatURL,
			ApiKey:                cfg.ChatKey,
			TokenEncoder:          cfg.TokenEncoder,
			MaxConcurrentRequests: int64(cfg.AIParallel),
			Timeout:               cfg.AITimeout,
		})
		if err != nil {
			return fmt.Errorf("create ollama client: %w", err)
		}
		a.AI = client
		embedder = client
	case "local", "":
		embedder = hashing.NewEmbedder(cfg.EmbedDim)
	default:
		return fmt.Errorf("unknown AI_ADAPTER %q", cfg.AIAdapter)
	}

	client, err := ai.NewEmbeddingClient(embedder, ai.NewEmbeddingClientParams{
		Dimension: cfg.EmbedDim,
		BatchSize: cfg.EmbedBatch,
	})
	if err != nil {
		return err
	}
	a.Embedder = client
	return nil
}

func (a *App) tagger(cfg Config) (ai.ConceptTagger, error) {
	switch strings.ToLower(cfg.Tagger) {
	case "ai", "llm":
		if a.AI == nil {
			return nil, errors.New("AI_TAGGER=ai needs the openai or ollama adapter")
		}
		return ai.NewLLMConceptTagger(a.AI, cfg.ChatModel, graph.DefaultMaxConceptWords), nil
	case "phrase", "":
		return phrase.NewTagger(graph.DefaultMaxConceptWords), nil
	default:
		return nil, fmt.Errorf("unknown AI_TAGGER %q", cfg.Tagger)
	}
}

// Close releases the store connection.
func (a *App) Close() {
	if a.Storage == nil {
		return
	}
	if err := a.Storage.Close(); err != nil {
		logger.Warn("[App] Failed to close graph store", "err", err)
	}
}
