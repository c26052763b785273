package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeworks/intake/internal/model"
)

func TestValidateRequest_NoImages(t *testing.T) {
	err := ValidateRequest(model.AnalysisRequest{Notes: "build a fence"})
	require.Error(t, err)

	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reason, "no images")
}

func TestValidateRequest_UnsupportedFormatsOnly(t *testing.T) {
	err := ValidateRequest(model.AnalysisRequest{
		Images: []model.ProjectImage{
			{Path: "plans.pdf"},
			{Path: "notes.txt"},
		},
	})
	require.Error(t, err)

	var verr *model.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestValidateRequest_OneSupportedIsEnough(t *testing.T) {
	err := ValidateRequest(model.AnalysisRequest{
		Images: []model.ProjectImage{
			{Path: "plans.pdf"},
			{Path: "site.jpg"},
		},
	})
	assert.NoError(t, err)
}

func TestPrepareImages_InlineData(t *testing.T) {
	imgs, warnings, err := PrepareImages(context.Background(), []model.ProjectImage{
		{Path: "backyard_fence.jpg", Data: []byte("fake image bytes")},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, imgs, 1)

	got := imgs[0]
	assert.Equal(t, "image/jpeg", got.MimeType)
	assert.Len(t, got.ID, 16) // first 8 bytes of the content hash, hex
	assert.Equal(t, model.ImageTypeSite, got.DeclaredType)
}

func TestPrepareImages_StableIDs(t *testing.T) {
	in := []model.ProjectImage{{Path: "a.jpg", Data: []byte("same bytes")}}

	first, _, err := PrepareImages(context.Background(), in)
	require.NoError(t, err)
	second, _, err := PrepareImages(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID, "IDs must be content-derived")
	assert.Empty(t, in[0].ID, "input must not be mutated")
}

func TestPrepareImages_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.png")
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0o644))

	imgs, _, err := PrepareImages(context.Background(), []model.ProjectImage{{Path: path}})
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, []byte("png bytes"), imgs[0].Data)
	assert.Equal(t, "image/png", imgs[0].MimeType)
}

func TestPrepareImages_SkipsUnreadable(t *testing.T) {
	imgs, warnings, err := PrepareImages(context.Background(), []model.ProjectImage{
		{Path: "/nonexistent/missing.jpg"},
		{Path: "ok.jpg", Data: []byte("bytes")},
	})
	require.NoError(t, err)
	assert.Len(t, imgs, 1)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "skipped")
}

func TestPrepareImages_AllUnreadable(t *testing.T) {
	_, warnings, err := PrepareImages(context.Background(), []model.ProjectImage{
		{Path: "/nonexistent/missing.jpg"},
	})
	require.Error(t, err)
	assert.Len(t, warnings, 1)
}

func TestPrepareImages_KeepsDeclaredType(t *testing.T) {
	imgs, _, err := PrepareImages(context.Background(), []model.ProjectImage{
		{Path: "style.jpg", Data: []byte("bytes"), DeclaredType: model.ImageTypeReference},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ImageTypeReference, imgs[0].DeclaredType)
}
