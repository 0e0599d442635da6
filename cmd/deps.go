package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"govrag/src/core/chat"
	"govrag/src/core/ingestion"
	"govrag/src/core/knowledgebase"
	"govrag/src/core/knowledgebase/memstore"
	"govrag/src/core/knowledgebase/redisstore"
	"govrag/src/core/retrieval"
	"govrag/src/fsutil"
	"govrag/src/infrastructure/integrations/langchain"
	"govrag/src/infrastructure/integrations/ollama"
	"govrag/src/infrastructure/job"
	"govrag/src/infrastructure/log"
	"govrag/src/infrastructure/metrics"
	"govrag/src/storage/docsource"
	"govrag/src/storage/elastic"
	"govrag/src/storage/minioctrl"
	"govrag/src/storage/weaviate"
)

const countTimeout = 5 * time.Second

// stringList reads a list key that may come from a comma separated env var
func stringList(key string) []string {
	var out []string
	for _, item := range viper.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func newOllamaClient(timeout time.Duration) *ollama.Client {
	return ollama.NewClient(viper.GetString("ollama.url"), &http.Client{
		Timeout: timeout,
	})
}

// newEmbedder returns nil when vector search is disabled
func newEmbedder() knowledgebase.Embedder {
	if !viper.GetBool("embedding.enabled") {
		return nil
	}
	return ollama.NewEmbedder(newOllamaClient(30*time.Second), viper.GetString("ollama.embedding_model"))
}

// newDocumentStore returns the configured store and the index name it serves
func newDocumentStore(embedder knowledgebase.Embedder) (knowledgebase.DocumentStore, string, error) {
	switch backend := viper.GetString("store.backend"); backend {
	case "elasticsearch":
		index := viper.GetString("elasticsearch.index")
		store, err := elastic.New(elastic.Config{
			Addresses: stringList("elasticsearch.addresses"),
			Username:  viper.GetString("elasticsearch.username"),
			Password:  viper.GetString("elasticsearch.password"),
			Index:     index,
		}, embedder)
		if err != nil {
			return nil, "", err
		}
		return store, index, nil
	case "weaviate":
		wc := weaviateClient.New(weaviateClient.Config{
			Host:   viper.GetString("weaviate.url"),
			Scheme: viper.GetString("weaviate.scheme"),
		})
		class := viper.GetString("weaviate.class")
		return weaviate.NewStore(wc, class, embedder), class, nil
	default:
		return nil, "", fmt.Errorf("unknown store backend %q", backend)
	}
}

func newMinio() (*minioctrl.MinioService, error) {
	return minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
}

// newLoader reads local paths, and s3:// locations when minio is reachable by config
func newLoader() *docsource.Loader {
	objects, err := newMinio()
	if err != nil {
		log.Error(err, "object store unavailable, only local document paths can be loaded")
		return docsource.NewLoader(fsutil.NewLocalFileStore(), nil)
	}
	return docsource.NewLoader(fsutil.NewLocalFileStore(), objects)
}

// newRetrievalEngine uses the live store unless degraded mode is forced or
// the store does not answer a count check. The returned store is nil in
// degraded mode.
func newRetrievalEngine(ctx context.Context, store knowledgebase.DocumentStore, m *metrics.Metrics) (*retrieval.Engine, knowledgebase.DocumentStore) {
	if !viper.GetBool("retrieval.degraded") {
		countCtx, cancel := context.WithTimeout(ctx, countTimeout)
		n, err := store.Count(countCtx)
		cancel()
		if err == nil {
			log.Info("document store online", "documents", n)
			live := retrieval.NewLiveBackend(store, viper.GetDuration("retrieval.timeout"))
			return retrieval.NewEngine(live, m), store
		}
		log.Error(err, "document store unreachable, falling back to local scoring")
	}

	path := viper.GetString("retrieval.corpus_path")
	corpus, err := newLoader().Load(ctx, path)
	if err != nil {
		log.Error(err, "failed to load local corpus, degraded search will return nothing", "path", path)
	}
	log.Info("degraded retrieval enabled", "documents", len(corpus))
	return retrieval.NewEngine(retrieval.NewDegradedBackend(corpus), m), nil
}

func confidenceConfig() chat.ConfidenceConfig {
	return chat.ConfidenceConfig{
		Generated:          viper.GetFloat64("chat.confidence.generated"),
		GeneratedNoDocs:    viper.GetFloat64("chat.confidence.generated_no_docs"),
		Fallback:           viper.GetFloat64("chat.confidence.fallback"),
		Templated:          viper.GetFloat64("chat.confidence.templated"),
		TemplatedNoResults: viper.GetFloat64("chat.confidence.templated_no_results"),
	}
}

func chatConfig() chat.Config {
	return chat.Config{
		MaxMessages:    viper.GetInt("session.max_messages"),
		Expiry:         viper.GetDuration("session.expiry"),
		RetrievalTop:   viper.GetInt("chat.retrieval_top"),
		RelevanceScale: viper.GetFloat64("chat.relevance_scale"),
	}
}

// newComposer returns the composer and the health of its generation backend
func newComposer() (chat.Composer, knowledgebase.HealthCheck, error) {
	timeout := viper.GetDuration("generation.timeout")
	confidence := confidenceConfig()

	switch backend := viper.GetString("generation.backend"); backend {
	case "ollama":
		client := newOllamaClient(timeout)
		health := func(ctx context.Context) knowledgebase.ComponentStatus {
			if err := client.Ping(ctx); err != nil {
				// Answers fall back to templates
				return knowledgebase.StatusDegraded
			}
			return knowledgebase.StatusUp
		}
		gen := ollama.NewChatBackend(client, viper.GetString("ollama.model"))
		return chat.NewLiveComposer(gen, timeout, confidence, 0), health, nil
	case "openai":
		gen, err := langchain.NewOpenAIBackend(
			viper.GetString("openai.api_key"),
			viper.GetString("openai.model"),
			viper.GetString("openai.base_url"),
		)
		if err != nil {
			return nil, nil, err
		}
		return chat.NewLiveComposer(gen, timeout, confidence, 0), knowledgebase.StaticHealthCheck(knowledgebase.StatusUp), nil
	case "templated":
		return chat.NewTemplatedComposer(confidence), knowledgebase.StaticHealthCheck(knowledgebase.StatusDegraded), nil
	default:
		return nil, nil, fmt.Errorf("unknown generation backend %q", backend)
	}
}

type sessionBackend struct {
	store  knowledgebase.SessionStore
	health knowledgebase.HealthCheck
	// memory is set for the in-process store, which needs sweeping
	memory *memstore.Store
	close  func() error
}

func newSessionBackend(ctx context.Context) (*sessionBackend, error) {
	switch kind := viper.GetString("session.store"); kind {
	case "memory":
		mem := memstore.NewStore()
		return &sessionBackend{
			store:  mem,
			health: knowledgebase.StaticHealthCheck(knowledgebase.StatusUp),
			memory: mem,
			close:  func() error { return nil },
		}, nil
	case "redis":
		client, err := redisstore.Connect(ctx,
			viper.GetString("redis.addr"),
			viper.GetString("redis.password"),
			viper.GetInt("redis.db"))
		if err != nil {
			return nil, err
		}
		return &sessionBackend{
			store:  redisstore.NewRedisStore(client, viper.GetDuration("session.expiry")),
			health: redisHealthCheck(client),
			close:  client.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}

func redisHealthCheck(client *redis.Client) knowledgebase.HealthCheck {
	return func(ctx context.Context) knowledgebase.ComponentStatus {
		if err := client.Ping(ctx).Err(); err != nil {
			return knowledgebase.StatusDown
		}
		return knowledgebase.StatusUp
	}
}

func ingestionConfig(index string) ingestion.Config {
	cfg := ingestion.DefaultConfig()
	cfg.IndexName = index
	cfg.BatchSize = viper.GetInt("ingest.batch_size")
	cfg.Concurrency = viper.GetInt("ingest.concurrency")
	cfg.RequestTimeout = viper.GetDuration("ingest.request_timeout")
	cfg.Retry.MaxRetries = viper.GetInt("ingest.max_retries")
	cfg.Retry.Unit = viper.GetDuration("ingest.backoff_unit")
	return cfg
}

// newIngestTask wires the configured store into an ingestion task
func newIngestTask(m *metrics.Metrics) (*job.IngestTask, error) {
	store, index, err := newDocumentStore(newEmbedder())
	if err != nil {
		return nil, err
	}
	return job.NewIngestTask(newLoader(), store, ingestionConfig(index), ingestion.WithMetrics(m)), nil
}

func newDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error(err, "Failed to get underlying *sql.DB")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error(err, "Error closing database connection")
	}
}
