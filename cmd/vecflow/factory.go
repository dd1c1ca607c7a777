package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/embeddings"
	"github.com/viant/vecflow/embeddings/ollama"
	"github.com/viant/vecflow/embeddings/openai"
	inference "github.com/viant/vecflow/embeddings/pinecone"
	"github.com/viant/vecflow/embeddings/vertexai"
	"github.com/viant/vecflow/service"
	"github.com/viant/vecflow/vectordb"
	"github.com/viant/vecflow/vectordb/local"
	"github.com/viant/vecflow/vectordb/pinecone"
)

// newService wires the vector database and embedder selected by cfg.
// A positive queryCache keeps that many query embeddings in memory.
func newService(ctx context.Context, cfg *service.Config, verbose bool, queryCache int) (*service.Service, error) {
	apiKey, err := cfg.ResolveAPIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve api key: %w", err)
	}
	db, err := openVectorDB(ctx, cfg, apiKey, verbose)
	if err != nil {
		return nil, err
	}
	emb, err := selectEmbedder(cfg, apiKey)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	svc, err := service.NewService(
		service.WithVectorDB(db),
		service.WithEmbedder(embeddings.NewCachedEmbedder(emb, queryCache)),
		service.WithReadinessPolicy(cfg.Readiness),
		service.WithRecordRetryPolicy(cfg.RecordRetry),
		service.WithSettleDelay(cfg.SettleDelay),
		service.WithLogf(log.Printf),
	)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	return svc, nil
}

func openVectorDB(ctx context.Context, cfg *service.Config, apiKey string, verbose bool) (vectordb.Service, error) {
	switch cfg.Backend {
	case service.BackendLocal:
		return openLocalStore(ctx, cfg)
	default:
		if strings.TrimSpace(apiKey) == "" {
			return nil, apierr.New(apierr.KindAuthentication, "init", "missing API key: set "+service.EnvAPIKey+", --api-key or credentials.secret")
		}
		opts := []pinecone.Option{
			pinecone.WithControlURL(cfg.ControlURL),
			pinecone.WithHost(cfg.Host),
			pinecone.WithAPIVersion(cfg.APIVersion),
		}
		if verbose {
			opts = append(opts, pinecone.WithLogf(log.Printf))
		}
		return pinecone.New(apiKey, opts...), nil
	}
}

// openLocalStore opens the sqlite index and creates the configured index when missing.
func openLocalStore(ctx context.Context, cfg *service.Config) (*local.Store, error) {
	if dir := filepath.Dir(cfg.Local.DSN); dir != "" && dir != "." && !strings.Contains(cfg.Local.DSN, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("local store: %w", err)
		}
	}
	store, err := local.NewStore(ctx, local.WithDSN(cfg.Local.DSN))
	if err != nil {
		return nil, err
	}
	if _, err := store.CreateIndex(ctx, cfg.Index, cfg.Local.Dimension, cfg.Local.Metric); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func closeDB(db vectordb.Service) {
	if closer, ok := db.(vectordb.Closer); ok {
		_ = closer.Close()
	}
}

// selectEmbedder builds the preferred embedder; failures at embed time fall back to random vectors.
func selectEmbedder(cfg *service.Config, apiKey string) (embeddings.Embedder, error) {
	ec := cfg.Embedder
	switch strings.ToLower(strings.TrimSpace(ec.Provider)) {
	case service.ProviderSimple:
		return embeddings.NewSimpleEmbedder(embedderDimension(cfg)), nil
	case service.ProviderOpenAI:
		return &openai.Embedder{C: openai.NewClient(ec.APIKey, ec.Model, openai.WithBaseURL(ec.BaseURL), openai.WithDimensions(ec.Dimension))}, nil
	case service.ProviderOllama:
		baseURL := ec.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_BASE_URL")
		}
		opts := []ollama.ClientOption{ollama.WithPrefixes(ec.PassagePrefix, ec.QueryPrefix)}
		if baseURL != "" {
			opts = append(opts, ollama.WithBaseURL(baseURL))
		}
		return &ollama.Embedder{C: ollama.NewClientWithOptions(ec.Model, opts...)}, nil
	case service.ProviderVertexAI:
		location := ec.Location
		if location == "" {
			location = os.Getenv("VERTEXAI_LOCATION")
		}
		return &vertexai.Embedder{C: vertexai.New(ec.ProjectID, vertexai.WithModel(ec.Model), vertexai.WithLocation(location), vertexai.WithBaseURL(ec.BaseURL))}, nil
	case service.ProviderPinecone, "":
		key := ec.APIKey
		if key == "" {
			key = apiKey
		}
		baseURL := ec.BaseURL
		if baseURL == "" {
			baseURL = cfg.ControlURL
		}
		opts := []inference.ClientOption{inference.WithBaseURL(baseURL), inference.WithAPIVersion(cfg.APIVersion)}
		if ec.Truncate != "" {
			opts = append(opts, inference.WithTruncate(ec.Truncate))
		}
		return &inference.Embedder{C: inference.NewClient(key, ec.Model, opts...)}, nil
	default:
		return nil, fmt.Errorf("unsupported embedder: %v", ec.Provider)
	}
}

func embedderDimension(cfg *service.Config) int {
	if cfg.Embedder.Dimension > 0 {
		return cfg.Embedder.Dimension
	}
	if cfg.Backend == service.BackendLocal {
		return cfg.Local.Dimension
	}
	return cfg.Emulator.Dimension
}
