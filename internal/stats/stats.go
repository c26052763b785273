// Package stats tracks usage counters shared across concurrent pipeline
// runs. All methods are safe for concurrent use.
package stats

import (
	"sync"
	"time"

	"github.com/scopeworks/intake/internal/model"
)

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	RunsStarted    int `json:"runs_started"`
	RunsCompleted  int `json:"runs_completed"`
	RunsFailed     int `json:"runs_failed"`
	CacheHits      int `json:"cache_hits"`
	FallbackPasses int `json:"fallback_passes"`

	ProviderErrors map[model.ErrorCategory]int `json:"provider_errors,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// Counters accumulates pipeline usage statistics.
type Counters struct {
	mu             sync.Mutex
	runsStarted    int
	runsCompleted  int
	runsFailed     int
	cacheHits      int
	fallbackPasses int
	providerErrors map[model.ErrorCategory]int
}

// New creates zeroed counters.
func New() *Counters {
	return &Counters{providerErrors: make(map[model.ErrorCategory]int)}
}

// RunStarted records the start of a pipeline run.
func (c *Counters) RunStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsStarted++
}

// RunCompleted records a successful run.
func (c *Counters) RunCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsCompleted++
}

// RunFailed records a run where both passes were exhausted.
func (c *Counters) RunFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsFailed++
}

// CacheHit records a run served from the cache.
func (c *Counters) CacheHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheHits++
}

// FallbackPass records entry into the degraded second pass.
func (c *Counters) FallbackPass() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbackPasses++
}

// ProviderError records a categorized analyzer failure.
func (c *Counters) ProviderError(category model.ErrorCategory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providerErrors[category]++
}

// Snapshot returns a copy of the current counters.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	errs := make(map[model.ErrorCategory]int, len(c.providerErrors))
	for k, v := range c.providerErrors {
		errs[k] = v
	}
	return Snapshot{
		RunsStarted:    c.runsStarted,
		RunsCompleted:  c.runsCompleted,
		RunsFailed:     c.runsFailed,
		CacheHits:      c.cacheHits,
		FallbackPasses: c.fallbackPasses,
		ProviderErrors: errs,
		CollectedAt:    time.Now().UTC(),
	}
}
