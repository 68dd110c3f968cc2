// Package container wires the retrieval engine's dependencies with
// go.uber.org/dig, grounded on the teacher's internal/container/container.go
// (same must/Provide/Invoke shape), generalized from the teacher's chat
// service graph to this module's Recall/Expand/Rerank pipeline: storage,
// vector store, model clients, cache, and an EngineFactory cmd/retrievalctl
// calls once per search.
package container

import (
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/dig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clueweave/clueweave/internal/cache"
	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/config"
	"github.com/clueweave/clueweave/internal/models/chat"
	"github.com/clueweave/clueweave/internal/models/embedding"
	"github.com/clueweave/clueweave/internal/numeric"
	"github.com/clueweave/clueweave/internal/pipeline"
	esrepo "github.com/clueweave/clueweave/internal/repository/elasticsearch"
	pgrepo "github.com/clueweave/clueweave/internal/repository/postgres"
	"github.com/clueweave/clueweave/internal/tracing"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// EngineFactory builds a fresh pipeline.Engine for one search request.
// The engine and its clue.Tracker are request-scoped (Tracker accumulates
// one search's clue graph), while the repos/clients/pool it closes over
// are shared, long-lived singletons.
type EngineFactory func(cfg *types.SearchConfig) *pipeline.Engine

// BuildContainer registers every dependency the engine needs.
func BuildContainer(container *dig.Container) *dig.Container {
	must(container.Provide(NewResourceCleaner, dig.As(new(interfaces.ResourceCleaner))))

	must(container.Provide(config.LoadConfig))
	must(container.Provide(initTracer))
	must(container.Provide(initDatabase))
	must(container.Provide(initAntsPool))
	must(container.Invoke(registerPoolCleanup))

	must(container.Provide(pgrepo.NewGraphRepo))
	must(container.Provide(initVectorStore))
	must(container.Provide(initEmbeddingClient))
	must(container.Provide(initChatClient))
	must(container.Provide(initTokenizer))
	must(container.Invoke(registerTokenizerCleanup))

	must(container.Provide(NewEngineFactory))

	return container
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// initTracer starts OpenTelemetry per cfg.Tracing.
func initTracer(cfg *config.Config) (*tracing.Tracer, error) {
	return tracing.InitTracer(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	})
}

// initDatabase opens the gorm/postgres connection backing the entity↔
// event graph and (when VectorStore.Driver is "pgvector") the fallback
// vector tables.
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&types.Entity{}, &types.EntityType{},
		&types.Event{}, &types.EventEntity{}, &types.Chunk{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate graph tables: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	maxIdle := cfg.Database.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// vectorStoreBundle groups the three vector repos, returned together
// since both backends (Elasticsearch, pgvector) build all three from
// the same client/connection.
type vectorStoreBundle struct {
	dig.Out

	Entities interfaces.EntityVectorRepo
	Events   interfaces.EventVectorRepo
	Chunks   interfaces.ChunkVectorRepo
}

// initVectorStore builds the entity/event/chunk vector stores per
// cfg.VectorStore.Driver: Elasticsearch (primary) or pgvector (fallback,
// reusing the graph's own postgres connection).
func initVectorStore(cfg *config.Config, db *gorm.DB, graph *pgrepo.GraphRepo) (vectorStoreBundle, error) {
	switch cfg.VectorStore.Driver {
	case "pgvector", "":
		return vectorStoreBundle{
			Entities: pgrepo.NewEntityVectorRepo(db, graph),
			Events:   pgrepo.NewEventVectorRepo(db, graph),
			Chunks:   pgrepo.NewChunkVectorRepo(db, graph),
		}, nil
	case "elasticsearch":
		client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
			Addresses: cfg.VectorStore.Elasticsearch.Addresses,
			Username:  cfg.VectorStore.Elasticsearch.Username,
			Password:  cfg.VectorStore.Elasticsearch.Password,
		})
		if err != nil {
			return vectorStoreBundle{}, fmt.Errorf("create elasticsearch client: %w", err)
		}
		return vectorStoreBundle{
			Entities: esrepo.NewEntityVectorRepo(client, cfg.VectorStore.EntityIndex),
			Events:   esrepo.NewEventVectorRepo(client, cfg.VectorStore.EventIndex),
			Chunks:   esrepo.NewChunkVectorRepo(client, cfg.VectorStore.ChunkIndex),
		}, nil
	default:
		return vectorStoreBundle{}, fmt.Errorf("unsupported vector store driver: %q", cfg.VectorStore.Driver)
	}
}

// initEmbeddingClient builds the OpenAI-compatible embedder, wrapped in
// the query-embedding memoization cache (spec.md §4.1 step 1 runs the
// same query text through up to three legs).
func initEmbeddingClient(cfg *config.Config, pool *ants.Pool) (embedding.EmbeddingClient, error) {
	pooler := embedding.NewBatchEmbedder(pool)
	inner, err := embedding.NewEmbeddingClient(cfg.Embedding, pooler)
	if err != nil {
		return nil, fmt.Errorf("build embedding client: %w", err)
	}

	store, err := cache.NewStore(cache.Config{
		Type:          cfg.Cache.Type,
		RedisAddr:     cfg.Cache.Redis.Address,
		RedisPassword: cfg.Cache.Redis.Password,
		RedisDB:       cfg.Cache.Redis.DB,
		RedisPrefix:   cfg.Cache.Redis.Prefix,
		TTL:           cfg.Cache.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("build embedding cache store: %w", err)
	}
	return cache.NewCachedEmbeddingClient(inner, store), nil
}

func initChatClient(cfg *config.Config) (chat.ChatClient, error) {
	return chat.NewChatClient(cfg.Chat)
}

func initTokenizer() (*numeric.Tokenizer, error) {
	return numeric.NewTokenizer(), nil
}

func registerTokenizerCleanup(tokenizer *numeric.Tokenizer, cleaner interfaces.ResourceCleaner) {
	cleaner.RegisterWithName("Tokenizer", func() error {
		tokenizer.Close()
		return nil
	})
}

// initAntsPool builds the goroutine pool BatchEmbedder fans batches
// across.
func initAntsPool(cfg *config.Config) (*ants.Pool, error) {
	return ants.NewPool(10, ants.WithPreAlloc(true))
}

func registerPoolCleanup(pool *ants.Pool, cleaner interfaces.ResourceCleaner) {
	cleaner.RegisterWithName("AntsPool", func() error {
		pool.Release()
		return nil
	})
}

// NewEngineFactory closes over the shared repos/clients and returns a
// function that assembles a fresh Engine (and clue.Tracker) per search.
func NewEngineFactory(
	graph *pgrepo.GraphRepo,
	entities interfaces.EntityVectorRepo,
	events interfaces.EventVectorRepo,
	chunks interfaces.ChunkVectorRepo,
	embedder embedding.EmbeddingClient,
	chatClient chat.ChatClient,
	tokenizer *numeric.Tokenizer,
) EngineFactory {
	return func(cfg *types.SearchConfig) *pipeline.Engine {
		tracker := clue.NewTracker(cfg)
		return pipeline.NewEngine(
			pipeline.NewRecaller(entities, events, graph, embedder, chatClient, tracker),
			pipeline.NewExpander(graph, events, tracker),
			pipeline.NewEventPageRankReranker(graph, events, tracker),
			pipeline.NewChunkPageRankReranker(graph, chunks, tracker),
			pipeline.NewRRFReranker(graph, events, tokenizer, tracker),
			tracker,
		)
	}
}
