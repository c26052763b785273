// Package pipeline implements the resilient multi-stage analysis pipeline:
// it sequences the six stages, retries analyzer calls with backoff, degrades
// to heuristic fallbacks when providers fail, scores the trustworthiness of
// its own output, and caches fully-completed runs.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scopeworks/intake/internal/cache"
	"github.com/scopeworks/intake/internal/config"
	"github.com/scopeworks/intake/internal/ledger"
	"github.com/scopeworks/intake/internal/model"
	"github.com/scopeworks/intake/internal/resilience"
	"github.com/scopeworks/intake/internal/stats"
	"github.com/scopeworks/intake/pkg/anthropic"
	"github.com/scopeworks/intake/pkg/materials"
	"github.com/scopeworks/intake/pkg/perplexity"
)

// Pipeline orchestrates the end-to-end analysis sequence with its
// primary/fallback two-pass strategy.
type Pipeline struct {
	cfg       *config.Config
	ai        anthropic.Client
	secondary perplexity.Client
	materials materials.Client
	cache     cache.Store
	ledgers   *ledger.Store
	counters  *stats.Counters

	visionBreaker *resilience.Breaker
	textBreaker   *resilience.Breaker
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	ai anthropic.Client,
	secondary perplexity.Client,
	mat materials.Client,
	cacheStore cache.Store,
	ledgers *ledger.Store,
	counters *stats.Counters,
) *Pipeline {
	return &Pipeline{
		cfg:           cfg,
		ai:            ai,
		secondary:     secondary,
		materials:     mat,
		cache:         cacheStore,
		ledgers:       ledgers,
		counters:      counters,
		visionBreaker: resilience.NewBreaker(resilience.DefaultBreakerConfig()),
		textBreaker:   resilience.NewBreaker(resilience.DefaultBreakerConfig()),
	}
}

// runState carries stage outputs across the primary and fallback passes so
// a resumed pass reuses completed work instead of re-executing it.
type runState struct {
	prepared   []model.ProjectImage
	images     *ImagesResult
	notes      *model.NotesFinding
	agg        *model.AggregatedFindings
	structured *model.StructuredResult
	usage      anthropic.TokenUsage
}

type passOptions struct {
	resumeFrom model.StageName
	fallback   bool
}

// Analyze executes the full pipeline for one request. Callers always
// receive a StructuredResult (possibly low-confidence, generated with
// fallbacks) unless validation fails or both passes are exhausted, in which
// case a PipelineError citing both causes is returned.
func (p *Pipeline) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.StructuredResult, error) {
	start := time.Now()
	if req.Options.ProcessingID == "" {
		req.Options.ProcessingID = uuid.NewString()
	}
	pid := req.Options.ProcessingID
	log := zap.L().With(zap.String("processing_id", pid))

	p.counters.RunStarted()

	key := cache.Key(req)
	if !req.Options.ForceReprocess {
		if cached, ok, err := p.cache.Get(ctx, key); err != nil {
			log.Warn("pipeline: cache lookup failed", zap.Error(err))
		} else if ok {
			p.counters.CacheHit()
			p.counters.RunCompleted()
			log.Info("pipeline: cache hit")
			out := *cached
			out.Meta.CacheHit = true
			return &out, nil
		}
	}

	led := p.ledgers.Open(pid)
	defer p.ledgers.Discard(pid)

	st := &runState{}
	result, primaryErr := p.runPass(ctx, req, st, led, passOptions{
		resumeFrom: req.Options.ResumeFromStage,
		fallback:   req.Options.FallbackMode,
	})
	if primaryErr != nil {
		var verr *model.ValidationError
		if errors.As(primaryErr, &verr) {
			// Fatal by definition; a second pass cannot fix the request.
			p.counters.RunFailed()
			return nil, primaryErr
		}
		if req.Options.FallbackMode {
			// The caller is already the degraded pass; never recurse deeper.
			p.counters.RunFailed()
			return nil, primaryErr
		}

		resume := model.StageValidation
		if last, ok := led.LastCompletedStage(); ok {
			resume = last
		}
		log.Warn("pipeline: primary pass failed, starting fallback pass",
			zap.String("resume_from", string(resume)),
			zap.Error(primaryErr),
		)
		p.counters.FallbackPass()

		var fallbackErr error
		result, fallbackErr = p.runPass(ctx, req, st, led, passOptions{
			resumeFrom: resume,
			fallback:   true,
		})
		if fallbackErr != nil {
			p.counters.RunFailed()
			log.Error("pipeline: fallback pass failed", zap.Error(fallbackErr))
			return nil, model.NewPipelineError(pid, primaryErr, fallbackErr)
		}
		result.GeneratedWithFallback = true
	}

	completed := led.CompletedStages()
	var merged model.Findings
	var coherenceScore float64
	if st.agg != nil {
		merged = st.agg.Merged
		coherenceScore = st.agg.CoherenceScore
	}

	result.Meta = model.ProcessingMeta{
		ProcessingID:    pid,
		CompletedStages: completed,
		ProcessingTime:  time.Since(start),
		ConfidenceScore: ScoreConfidence(len(completed), model.TotalStages, merged, coherenceScore),
		Warnings:        led.Warnings(),
	}

	if st.usage != (anthropic.TokenUsage{}) {
		st.usage.LogCost(p.cfg.Anthropic.VisionModel, "analysis")
	}

	// Only fully-completed runs are cached; a partial result must not mask
	// a future clean run.
	if len(completed) == model.TotalStages {
		ttl := time.Duration(p.cfg.Cache.TTLHours) * time.Hour
		if err := p.cache.Set(ctx, key, result, ttl); err != nil {
			log.Warn("pipeline: cache write failed", zap.Error(err))
		}
	}

	p.counters.RunCompleted()
	log.Info("pipeline: analysis complete",
		zap.String("project_type", result.ProjectType),
		zap.Int("completed_stages", len(completed)),
		zap.Float64("confidence", result.Meta.ConfidenceScore),
		zap.Bool("fallback", result.GeneratedWithFallback),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// runPass executes the stage sequence once. Stages before the resume point,
// and stages already completed with their output carried in the run state,
// are skipped rather than re-executed — the idempotency decision for
// resumed passes. Only skips backed by a carried output are recorded as
// completed work; a resume with empty state yields a partial, uncacheable
// run.
func (p *Pipeline) runPass(ctx context.Context, req model.AnalysisRequest, st *runState, led *ledger.RunLedger, opts passOptions) (*model.StructuredResult, error) {
	log := zap.L().With(
		zap.String("processing_id", req.Options.ProcessingID),
		zap.Bool("fallback", opts.fallback),
	)

	startIdx := 0
	if opts.resumeFrom != "" {
		if i := model.StageIndex(opts.resumeFrom); i >= 0 {
			startIdx = i
		}
	}

	runStage := func(stage model.StageName, haveOutput bool, fn func() error) error {
		if model.StageIndex(stage) < startIdx {
			// A skipped stage counts toward completion only when its
			// output is actually carried in the run state. An external
			// resume with nothing to reuse leaves the stage unrecorded,
			// which keeps the partial result out of the cache.
			if haveOutput {
				led.MarkSkipped(stage)
			}
			return nil
		}
		if rec, ok := led.Stage(stage); ok && rec.Status == ledger.StageCompleted && haveOutput {
			return nil
		}

		led.StageStarted(stage)
		stageStart := time.Now()
		err := fn()
		duration := time.Since(stageStart)

		if err != nil {
			led.StageFailed(stage, err)
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return err
		}

		led.StageCompleted(stage)
		log.Info("pipeline: stage complete",
			zap.String("stage", string(stage)),
			zap.Duration("duration", duration),
		)
		return nil
	}

	// ===== Stage 1: Validation =====
	if err := runStage(model.StageValidation, st.prepared != nil, func() error {
		if err := ValidateRequest(req); err != nil {
			return err
		}
		prepared, warns, err := PrepareImages(ctx, req.Images)
		for _, w := range warns {
			led.Warn(w)
		}
		if err != nil {
			return model.NewValidationError("no readable images")
		}
		st.prepared = prepared
		return nil
	}); err != nil {
		return nil, err
	}

	// ===== Stages 2+3: Image and notes analysis (independent, concurrent) =====
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runStage(model.StageImageAnalysis, st.images != nil, func() error {
			res, err := p.imageRunner().Run(gCtx, st.prepared, led, opts.fallback)
			if err != nil {
				return err
			}
			st.images = res
			st.usage.Add(res.Usage)
			return nil
		})
	})

	g.Go(func() error {
		return runStage(model.StageNotesAnalysis, st.notes != nil, func() error {
			nf, err := p.notesRunner().Run(gCtx, req.Notes, led, opts.fallback)
			if err != nil {
				return err
			}
			st.notes = &nf
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// ===== Stage 4: Combination =====
	if err := runStage(model.StageCombination, st.agg != nil, func() error {
		var imgs []model.ImageFinding
		if st.images != nil {
			imgs = st.images.Findings
		}
		var nf model.NotesFinding
		if st.notes != nil {
			nf = *st.notes
		}
		agg := Combine(imgs, nf)
		st.agg = &agg
		return nil
	}); err != nil {
		return nil, err
	}

	// ===== Stage 5: Structuring =====
	if err := runStage(model.StageStructuring, st.structured != nil, func() error {
		var agg model.AggregatedFindings
		if st.agg != nil {
			agg = *st.agg
		}
		res, err := Structure(agg)
		if err != nil {
			if opts.fallback {
				return err
			}
			led.Warn("structuring failed, substituting minimal result: " + err.Error())
			st.structured = MinimalResult()
			return nil
		}
		st.structured = res
		return nil
	}); err != nil {
		return nil, err
	}

	// ===== Stage 6: Specialized analysis (optional deep-dive, never fatal) =====
	if err := runStage(model.StageSpecialized, true, func() error {
		if st.structured == nil {
			// Resume point past structuring with no carried output.
			led.Warn("structuring output unavailable after resume, substituting minimal result")
			st.structured = MinimalResult()
		}
		p.specializedRunner().Run(ctx, st.structured, st.prepared, req.Location, led, opts.fallback)
		return nil
	}); err != nil {
		return nil, err
	}

	return st.structured, nil
}

func (p *Pipeline) retryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if p.cfg.Pipeline.MaxAttempts > 0 {
		cfg.MaxAttempts = p.cfg.Pipeline.MaxAttempts
	}
	return cfg
}

func (p *Pipeline) imageRunner() *imageStage {
	batchSize := p.cfg.Pipeline.ImageBatchSize
	if batchSize <= 0 {
		batchSize = 3
	}
	return &imageStage{
		ai:        p.ai,
		model:     p.cfg.Anthropic.VisionModel,
		maxTokens: p.cfg.Anthropic.MaxTokens,
		batchSize: batchSize,
		pause:     time.Duration(p.cfg.Pipeline.BatchPauseMillis) * time.Millisecond,
		retry:     p.retryConfig(),
		breaker:   p.visionBreaker,
		counters:  p.counters,
	}
}

func (p *Pipeline) notesRunner() *notesStage {
	return &notesStage{
		primary:   p.ai,
		secondary: p.secondary,
		model:     p.cfg.Anthropic.TextModel,
		maxTokens: p.cfg.Anthropic.MaxTokens,
		maxChars:  p.cfg.Pipeline.NotesMaxChars,
		retry:     p.retryConfig(),
		breaker:   p.textBreaker,
		counters:  p.counters,
	}
}

func (p *Pipeline) specializedRunner() *specializedStage {
	return &specializedStage{
		ai:        p.ai,
		model:     p.cfg.Anthropic.VisionModel,
		maxTokens: p.cfg.Anthropic.MaxTokens,
		materials: p.materials,
	}
}
