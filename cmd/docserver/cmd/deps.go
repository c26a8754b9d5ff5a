package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/docserver/docserver/internal/config"
	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/fetch"
	"github.com/docserver/docserver/internal/ingest"
	"github.com/docserver/docserver/internal/lifecycle"
	"github.com/docserver/docserver/internal/mcp"
	"github.com/docserver/docserver/internal/query"
	"github.com/docserver/docserver/internal/store"
)

// deps bundles the collaborators every command needs, built once from
// config and closed together by Close.
type deps struct {
	cfg      *config.Config
	store    *store.Store
	embedder embed.Embedder
	pipeline *ingest.Pipeline
	engine   *query.Engine
	mcp      *mcp.Server
}

// buildDeps loads config from configDir and wires the store, embedder,
// fetcher, ingestion pipeline, query engine and MCP server the way
// cmd/docserver's subcommands share, mirroring the teacher's root.go
// wiring a single set of collaborators once per invocation.
func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Config{
		BaseDir:    cfg.Store.Path,
		Dimensions: cfg.Store.Dimensions,
		Metric:     cfg.Store.Metric,
	})
	if err != nil {
		return nil, err
	}

	if embed.Provider(cfg.Embedder.Provider) == embed.ProviderOllama {
		manager := lifecycle.NewOllamaManagerWithHost(cfg.Embedder.OllamaHost)
		opts := lifecycle.DefaultEnsureOpts()
		opts.ProgressFunc = lifecycle.CreatePullProgressFunc(opts.Stderr)
		if err := manager.EnsureReady(ctx, cfg.Embedder.Model, opts); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("ollama embedder not ready: %w", err)
		}
	}

	embedder, err := embed.New(ctx, embed.Config{
		Provider:   embed.Provider(cfg.Embedder.Provider),
		Dimensions: cfg.Embedder.Dimensions,
		CacheSize:  cfg.Embedder.CacheSize,
		Ollama: embed.OllamaConfig{
			Host:       cfg.Embedder.OllamaHost,
			Model:      cfg.Embedder.Model,
			Dimensions: cfg.Embedder.Dimensions,
		},
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:         time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxContentBytes: cfg.Fetch.MaxContentBytes,
	})

	pipeline := ingest.New(ingest.Config{
		Fetcher:     fetcher,
		Embedder:    embedder,
		Store:       st,
		Concurrency: cfg.Ingestion.Concurrency,
	})

	var upstream query.UpstreamResolver
	if cfg.Server.UpstreamContext7URL != "" {
		upstream = mcp.NewContext7Resolver("npm")
	}

	engine := query.New(query.Config{Store: st, Embedder: embedder, Upstream: upstream})

	mcpServer := mcp.New(mcp.Config{
		Engine:          engine,
		Store:           st,
		Pipeline:        pipeline,
		UpstreamBaseURL: cfg.Server.UpstreamContext7URL,
	})

	return &deps{cfg: cfg, store: st, embedder: embedder, pipeline: pipeline, engine: engine, mcp: mcpServer}, nil
}

func (d *deps) Close() error {
	return d.store.Close()
}
