package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scopeworks/intake/internal/model"
)

// supportedMimeTypes are the image formats the vision analyzer accepts.
var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var extensionMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateRequest checks an analysis request before any network call. A
// request with no images, or with no image in a supported format, is fatally
// invalid and never retried.
func ValidateRequest(req model.AnalysisRequest) error {
	if len(req.Images) == 0 {
		return model.NewValidationError("no images supplied")
	}

	supported := 0
	for _, img := range req.Images {
		if img.Path == "" && img.URL == "" && len(img.Data) == 0 {
			continue
		}
		if mimeFor(img) != "" {
			supported++
		}
	}
	if supported == 0 {
		return model.NewValidationError("no image in a supported format (jpeg, png, webp, gif)")
	}

	return nil
}

// PrepareImages produces enhanced copies of the request images with IDs,
// mime types, and pixel data resolved. The originals are never mutated.
// Individual unreadable images are dropped with a warning-level outcome;
// an error is returned only when no image could be prepared.
func PrepareImages(ctx context.Context, images []model.ProjectImage) ([]model.ProjectImage, []string, error) {
	var prepared []model.ProjectImage
	var warnings []string

	for _, img := range images {
		copied := img

		mime := mimeFor(copied)
		if mime == "" {
			warnings = append(warnings, fmt.Sprintf("image %s: unsupported format, skipped", imageLabel(copied)))
			continue
		}
		copied.MimeType = mime

		if len(copied.Data) == 0 {
			data, err := loadImageData(ctx, copied)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("image %s: %v, skipped", imageLabel(copied), err))
				continue
			}
			copied.Data = data
		}

		if copied.ID == "" {
			sum := sha256.Sum256(copied.Data)
			copied.ID = hex.EncodeToString(sum[:8])
		}
		if copied.DeclaredType == "" {
			copied.DeclaredType = model.ImageTypeSite
		}

		prepared = append(prepared, copied)
	}

	if len(prepared) == 0 {
		return nil, warnings, eris.New("prepare: no readable images")
	}
	return prepared, warnings, nil
}

func mimeFor(img model.ProjectImage) string {
	if supportedMimeTypes[img.MimeType] {
		return img.MimeType
	}
	name := img.Path
	if name == "" {
		name = img.URL
	}
	if mime, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	if len(img.Data) > 0 {
		if mime := http.DetectContentType(img.Data); supportedMimeTypes[mime] {
			return mime
		}
	}
	return ""
}

func loadImageData(ctx context.Context, img model.ProjectImage) ([]byte, error) {
	if img.Path != "" {
		data, err := os.ReadFile(img.Path)
		if err != nil {
			return nil, eris.Wrap(err, "read file")
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch url")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fetch url: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	return data, nil
}

func imageLabel(img model.ProjectImage) string {
	switch {
	case img.ID != "":
		return img.ID
	case img.Path != "":
		return filepath.Base(img.Path)
	case img.URL != "":
		return img.URL
	default:
		return "inline"
	}
}
