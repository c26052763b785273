package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scopeworks/intake/internal/cache"
	"github.com/scopeworks/intake/internal/ledger"
	"github.com/scopeworks/intake/internal/pipeline"
	"github.com/scopeworks/intake/internal/stats"
	anthropicpkg "github.com/scopeworks/intake/pkg/anthropic"
	"github.com/scopeworks/intake/pkg/materials"
	"github.com/scopeworks/intake/pkg/perplexity"
)

// pipelineEnv holds the initialized clients, cache, and pipeline needed by
// the analyze/serve commands.
type pipelineEnv struct {
	Cache    cache.Store
	Ledgers  *ledger.Store
	Counters *stats.Counters
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Cache != nil {
		_ = pe.Cache.Close()
	}
}

// initPipeline sets up the cache backend, API clients, and the pipeline.
// Callers should defer env.Close().
func initPipeline() (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cacheStore, err := initCache()
	if err != nil {
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var perplexityClient perplexity.Client
	if cfg.Perplexity.Key != "" {
		perplexityClient = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	} else {
		zap.L().Debug("INTAKE_PERPLEXITY_KEY not set, secondary notes analyzer disabled")
	}

	var materialsClient materials.Client
	if cfg.Materials.Key != "" {
		materialsClient = materials.NewClient(cfg.Materials.Key,
			materials.WithBaseURL(cfg.Materials.BaseURL),
		)
	} else {
		zap.L().Debug("INTAKE_MATERIALS_KEY not set, supplier availability lookup disabled")
	}

	ledgers := ledger.NewStore()
	counters := stats.New()

	p := pipeline.New(cfg, anthropicClient, perplexityClient, materialsClient, cacheStore, ledgers, counters)

	return &pipelineEnv{
		Cache:    cacheStore,
		Ledgers:  ledgers,
		Counters: counters,
		Pipeline: p,
	}, nil
}

// initCache picks the cache backend from config.
func initCache() (cache.Store, error) {
	switch cfg.Cache.Driver {
	case "", "sqlite":
		st, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite cache")
		}
		return st, nil
	case "memory":
		return cache.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}
