package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/scopeworks/intake/internal/ledger"
	"github.com/scopeworks/intake/internal/model"
	"github.com/scopeworks/intake/internal/resilience"
	"github.com/scopeworks/intake/internal/stats"
	"github.com/scopeworks/intake/pkg/anthropic"
)

// imageSystemPrompt is shared by every per-image call so the provider-side
// prompt cache warms on the first image of a run.
const imageSystemPrompt = `You are a construction estimator analyzing contractor-submitted project photos. Extract what the photo shows about the project. Always return a single valid JSON object:
{"projectType": "<fencing|roofing|deck|windows|painting|flooring|kitchen|bathroom|landscaping|concrete|drywall|unknown>", "projectSubtype": "<optional>", "dimensions": {"<name>": "<value with unit>"}, "materials": ["..."], "conditions": ["..."], "specialConsiderations": ["..."]}`

var imageTypePrompts = map[model.ImageType]string{
	model.ImageTypeSite:      "This is a photo of the actual job site. Identify the project type, visible measurements or scale cues, existing materials, and site conditions (slope, access, damage, obstructions).",
	model.ImageTypeReference: "This is a reference photo showing the style or product the customer wants. Identify the project type, the desired materials and finish, and any features that affect pricing.",
	model.ImageTypeSketch:    "This is a sketch or drawing of the planned work. Read any written dimensions or labels literally, identify the project type, and note the layout.",
}

// imageConfidenceWeights score a per-image finding by field completeness.
var imageConfidenceWeights = []struct {
	weight  float64
	present func(f model.Findings) bool
}{
	{0.3, func(f model.Findings) bool { return f.ProjectType != "" && f.ProjectType != "unknown" }},
	{0.2, func(f model.Findings) bool { return len(f.Materials) > 0 }},
	{0.3, func(f model.Findings) bool { return len(f.Dimensions) > 0 }},
	{0.1, func(f model.Findings) bool { return len(f.Conditions) > 0 }},
	{0.1, func(f model.Findings) bool { return len(f.SpecialConsiderations) > 0 }},
}

// ImagesResult is the image analysis stage output.
type ImagesResult struct {
	Findings []model.ImageFinding
	Usage    anthropic.TokenUsage
}

// imageStage bundles the collaborators of the image analysis stage.
type imageStage struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
	batchSize int
	pause     time.Duration
	retry     resilience.RetryConfig
	breaker   *resilience.Breaker
	counters  *stats.Counters
}

// Run analyzes the prepared images in fixed-size batches: images within a
// batch run concurrently, batches run sequentially with a pause in between
// as rate-limit courtesy. A single bad image never fails the stage; only an
// empty input does.
func (s *imageStage) Run(ctx context.Context, images []model.ProjectImage, led *ledger.RunLedger, fallbackMode bool) (*ImagesResult, error) {
	if len(images) == 0 {
		return nil, eris.New("images: no images to analyze")
	}

	result := &ImagesResult{
		Findings: make([]model.ImageFinding, len(images)),
	}

	limiter := rate.NewLimiter(rate.Every(s.pause), 1)
	var usage anthropic.TokenUsage

	for start := 0; start < len(images); start += s.batchSize {
		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "images: inter-batch wait")
		}

		end := min(start+s.batchSize, len(images))
		g, gCtx := errgroup.WithContext(ctx)
		batchUsage := make([]anthropic.TokenUsage, end-start)

		for i := start; i < end; i++ {
			g.Go(func() error {
				finding, u := s.analyzeOne(gCtx, images[i], led, fallbackMode)
				result.Findings[i] = finding
				batchUsage[i-start] = u
				return nil
			})
		}
		// Per-image outcomes are aggregated, never raised.
		_ = g.Wait()
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "images: canceled")
		}

		for _, u := range batchUsage {
			usage.Add(u)
		}
	}

	result.Usage = usage
	return result, nil
}

// analyzeOne runs the vision analyzer for a single image and converts the
// outcome — success, partial parse, or terminal provider failure — into an
// ImageFinding.
func (s *imageStage) analyzeOne(ctx context.Context, img model.ProjectImage, led *ledger.RunLedger, fallbackMode bool) (model.ImageFinding, anthropic.TokenUsage) {
	log := zap.L().With(zap.String("image_id", img.ID))

	cfg := s.retry
	logAttempt := resilience.RetryLogger("anthropic-vision", string(model.StageImageAnalysis))
	cfg.OnAttempt = func(attempt int, err error) {
		// Attempts on this stage come from multiple images; attribute
		// each one so the record stays readable.
		led.StageAttempt(model.StageImageAnalysis, eris.Wrapf(err, "image %s", img.ID))
		logAttempt(attempt, err)
	}

	var usage anthropic.TokenUsage
	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.Guard(ctx, s.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return s.ai.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     s.model,
				MaxTokens: s.maxTokens,
				System:    anthropic.BuildCachedSystemBlocks(imageSystemPrompt),
				Messages: []anthropic.Message{{
					Role:    "user",
					Content: imageTypePrompts[img.DeclaredType],
					Images: []anthropic.ImageAttachment{{
						MediaType: img.MimeType,
						Data:      img.Data,
					}},
				}},
			})
		})
	})

	if err != nil {
		category := resilience.Categorize(err)
		s.counters.ProviderError(category)
		led.Warn(fmt.Sprintf("image %s: analyzer failed (%s)", img.ID, category))
		log.Warn("images: analyzer failed terminally",
			zap.String("category", string(category)),
			zap.Error(err),
		)

		finding := model.ImageFinding{ImageID: img.ID, ErrorCategory: category}
		if !fallbackMode {
			finding.Findings = filenameGuess(img)
			finding.Confidence = 0.1
			finding.InferredFromFilename = true
		}
		return finding, usage
	}

	usage = resp.Usage

	findings, perr := parseFindings(resp.Text())
	if perr != nil {
		// Best-effort partial extraction from the non-JSON response.
		led.Warn(fmt.Sprintf("image %s: response was not valid JSON, using partial extraction", img.ID))
		findings = regexFindings(resp.Text())
	}
	findings.ProjectType = normalizeProjectType(findings.ProjectType)

	return model.ImageFinding{
		ImageID:    img.ID,
		Findings:   findings,
		Confidence: imageConfidence(findings),
	}, usage
}

// imageConfidence scores a finding by field completeness.
func imageConfidence(f model.Findings) float64 {
	var score float64
	for _, w := range imageConfidenceWeights {
		if w.present(f) {
			score += w.weight
		}
	}
	return score
}
