package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/scopeworks/intake/internal/config"
	"github.com/scopeworks/intake/internal/model"
	"github.com/scopeworks/intake/pkg/anthropic"
	"github.com/scopeworks/intake/pkg/materials"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Perplexity Mock ---

type mockPerplexityClient struct {
	mock.Mock
}

func (m *mockPerplexityClient) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// --- Materials Mock ---

type mockMaterialsClient struct {
	mock.Mock
}

func (m *mockMaterialsClient) Find(ctx context.Context, req materials.FindRequest) (*materials.FindResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*materials.FindResponse), args.Error(1)
}

// --- Shared helpers ---

// textResponse wraps text as a single-block analyzer response.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

// testConfig returns a config with fast retries and no inter-batch pause.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Anthropic.Key = "sk-test"
	cfg.Anthropic.VisionModel = "claude-sonnet-4-5-20250929"
	cfg.Anthropic.TextModel = "claude-haiku-4-5-20251001"
	cfg.Anthropic.MaxTokens = 1024
	cfg.Cache.TTLHours = 24
	cfg.Pipeline.MaxAttempts = 3
	cfg.Pipeline.ImageBatchSize = 3
	cfg.Pipeline.BatchPauseMillis = 0
	cfg.Pipeline.NotesMaxChars = 8000
	return cfg
}

// testImage builds an inline image whose data never touches the filesystem.
func testImage(path string) model.ProjectImage {
	return model.ProjectImage{
		Path:         path,
		Data:         []byte("fake image bytes"),
		DeclaredType: model.ImageTypeSite,
	}
}
