package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scopeworks/intake/internal/ledger"
	"github.com/scopeworks/intake/internal/model"
	"github.com/scopeworks/intake/internal/resilience"
	"github.com/scopeworks/intake/internal/stats"
	"github.com/scopeworks/intake/pkg/anthropic"
	"github.com/scopeworks/intake/pkg/perplexity"
)

const notesPromptTemplate = `You are a construction estimator reading a contractor's project notes. The notes may be in English or Spanish. Extract the project details. Return a single valid JSON object and nothing else:
{"projectType": "<fencing|roofing|deck|windows|painting|flooring|kitchen|bathroom|landscaping|concrete|drywall|unknown>", "projectSubtype": "<optional>", "dimensions": {"<name>": "<value with unit>"}, "materials": ["..."], "conditions": ["..."], "specialConsiderations": ["..."], "demolitionNeeded": <true|false>}

Notes:
%s`

// notesStage bundles the collaborators of the notes analysis stage.
type notesStage struct {
	primary   anthropic.Client
	secondary perplexity.Client
	model     string
	maxTokens int64
	maxChars  int
	retry     resilience.RetryConfig
	breaker   *resilience.Breaker
	counters  *stats.Counters
}

// Run analyzes the free-text notes. Outside fallback mode it always returns
// a finding: primary analyzer, then a one-shot secondary analyzer, then the
// deterministic keyword extractor. In fallback mode analyzer failures
// propagate so the orchestrator can surface them.
func (s *notesStage) Run(ctx context.Context, notes string, led *ledger.RunLedger, fallbackMode bool) (model.NotesFinding, error) {
	if strings.TrimSpace(notes) == "" {
		return model.NotesFinding{IsEmpty: true}, nil
	}
	if s.maxChars > 0 && len(notes) > s.maxChars {
		led.Warn(fmt.Sprintf("notes truncated to %d chars", s.maxChars))
		notes = notes[:s.maxChars]
	}

	prompt := fmt.Sprintf(notesPromptTemplate, notes)

	finding, primaryErr := s.analyzePrimary(ctx, prompt, led)
	if primaryErr == nil {
		return finding, nil
	}

	category := resilience.Categorize(primaryErr)
	s.counters.ProviderError(category)
	zap.L().Warn("notes: primary analyzer failed",
		zap.String("category", string(category)),
		zap.Error(primaryErr),
	)

	if fallbackMode {
		// No AI-based fallbacks in the degraded pass; surface the failure.
		return model.NotesFinding{}, resilience.AsProviderError("anthropic-text", primaryErr)
	}

	led.Warn(fmt.Sprintf("notes: primary analyzer failed (%s), trying secondary", category))

	if s.secondary == nil {
		led.Warn("notes: secondary analyzer not configured, using keyword extraction")
	} else if finding, err := s.analyzeSecondary(ctx, prompt); err == nil {
		return finding, nil
	} else {
		s.counters.ProviderError(resilience.Categorize(err))
		led.Warn("notes: secondary analyzer failed, using keyword extraction")
		zap.L().Warn("notes: secondary analyzer failed", zap.Error(err))
	}

	return model.NotesFinding{
		Findings:   finalizeFindings(keywordFindings(notes)),
		Source:     model.NotesSourceKeyword,
		Confidence: 0.3,
	}, nil
}

func (s *notesStage) analyzePrimary(ctx context.Context, prompt string, led *ledger.RunLedger) (model.NotesFinding, error) {
	cfg := s.retry
	logAttempt := resilience.RetryLogger("anthropic-text", string(model.StageNotesAnalysis))
	cfg.OnAttempt = func(attempt int, err error) {
		led.StageAttempt(model.StageNotesAnalysis, err)
		logAttempt(attempt, err)
	}

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.Guard(ctx, s.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return s.primary.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     s.model,
				MaxTokens: s.maxTokens,
				Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
			})
		})
	})
	if err != nil {
		return model.NotesFinding{}, err
	}

	findings, perr := parseFindings(resp.Text())
	if perr != nil {
		// Parse failure after substring recovery counts as a provider
		// failure: the secondary analyzer gets its shot.
		return model.NotesFinding{}, perr
	}

	return model.NotesFinding{
		Findings:   finalizeFindings(findings),
		Source:     model.NotesSourcePrimary,
		Confidence: 0.8,
	}, nil
}

// analyzeSecondary is a one-shot call to the different-provider analyzer.
// No retry loop: by this point the run has already burned the primary's
// retry budget.
func (s *notesStage) analyzeSecondary(ctx context.Context, prompt string) (model.NotesFinding, error) {
	text, err := s.secondary.Complete(ctx, prompt)
	if err != nil {
		return model.NotesFinding{}, err
	}
	findings, perr := parseFindings(text)
	if perr != nil {
		return model.NotesFinding{}, perr
	}
	return model.NotesFinding{
		Findings:   finalizeFindings(findings),
		Source:     model.NotesSourceSecondary,
		Confidence: 0.6,
	}, nil
}

func finalizeFindings(f model.Findings) model.Findings {
	f.ProjectType = normalizeProjectType(f.ProjectType)
	return f
}
