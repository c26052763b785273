package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scopeworks/intake/internal/ledger"
	"github.com/scopeworks/intake/internal/model"
	"github.com/scopeworks/intake/pkg/anthropic"
	"github.com/scopeworks/intake/pkg/materials"
)

// specializedTypes are the detected project types that get a deep-dive pass
// with a materials availability lookup.
var specializedTypes = map[string]bool{
	"windows":  true,
	"kitchen":  true,
	"bathroom": true,
}

const detailSystemPrompt = `You are a construction estimator doing a detail pass on a project photo. List every element relevant to ordering materials (sizes, counts, styles, hardware). Return a single valid JSON object:
{"dimensions": {"<name>": "<value with unit>"}, "materials": ["..."], "specialConsiderations": ["..."]}`

// specializedStage bundles the deep-dive collaborators.
type specializedStage struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
	materials materials.Client
}

// Run performs the optional deep-dive for specialized project types: an
// additional vision detail pass plus a supplier availability lookup, and a
// derived draft purchase order. Failures here are never fatal; they are
// logged as warnings and the stage still completes, since the deep-dive is
// optional for most project types.
func (s *specializedStage) Run(ctx context.Context, res *model.StructuredResult, images []model.ProjectImage, loc model.Location, led *ledger.RunLedger, fallbackMode bool) {
	if !specializedTypes[res.ProjectType] {
		return
	}

	if !fallbackMode && len(images) > 0 {
		s.detailPass(ctx, res, images[0], led)
	}

	if s.materials != nil {
		s.lookupMaterials(ctx, res, loc, led)
	}
}

// detailPass runs one extra vision call on the first image to enrich the
// detected elements.
func (s *specializedStage) detailPass(ctx context.Context, res *model.StructuredResult, img model.ProjectImage, led *ledger.RunLedger) {
	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    []anthropic.SystemBlock{{Text: detailSystemPrompt}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Detail pass for a %s project.", res.ProjectType),
			Images: []anthropic.ImageAttachment{{
				MediaType: img.MimeType,
				Data:      img.Data,
			}},
		}},
	})
	if err != nil {
		led.Warn(fmt.Sprintf("specialized: detail pass failed: %v", err))
		zap.L().Warn("specialized: detail pass failed", zap.Error(err))
		return
	}

	findings, perr := parseFindings(resp.Text())
	if perr != nil {
		led.Warn("specialized: detail pass returned unparseable response")
		return
	}

	res.DetectedElements = appendUnique(res.DetectedElements, findings.Materials)
	res.DetectedElements = appendUnique(res.DetectedElements, findings.SpecialConsiderations)
	for key, raw := range findings.Dimensions {
		if _, present := res.Dimensions[key]; !present {
			if v, ok := leadingNumber(raw); ok {
				res.Dimensions[key] = v
			}
		}
	}
}

// lookupMaterials queries the supplier catalog and derives a draft purchase
// order from the in-stock recommendations.
func (s *specializedStage) lookupMaterials(ctx context.Context, res *model.StructuredResult, loc model.Location, led *ledger.RunLedger) {
	details := make(map[string]string, len(res.Dimensions))
	for key, v := range res.Dimensions {
		details[key] = trimFloat(v)
	}

	found, err := s.materials.Find(ctx, materials.FindRequest{
		Category: res.ProjectType,
		Details:  details,
		Location: materials.Location{ZIP: loc.ZIP, State: loc.State, City: loc.City},
	})
	if err != nil {
		led.Warn(fmt.Sprintf("specialized: materials lookup failed: %v", err))
		zap.L().Warn("specialized: materials lookup failed", zap.Error(err))
		return
	}

	availability := &model.MaterialAvailability{Availability: found.Availability}
	var recommended []model.Product
	for _, p := range found.Products {
		prod := model.Product{SKU: p.SKU, Name: p.Name, Price: p.Price, InStock: p.InStock}
		availability.Products = append(availability.Products, prod)
		recommended = append(recommended, prod)
	}
	res.MaterialAvailability = availability
	res.RecommendedProducts = recommended
	res.PurchaseOrderDraft = draftPurchaseOrder(res, recommended)
}

// draftPurchaseOrder derives an advisory order from in-stock products.
// Quantity is the unit count for counted projects, otherwise one lot per
// product.
func draftPurchaseOrder(res *model.StructuredResult, products []model.Product) *model.PurchaseOrder {
	if len(products) == 0 {
		return nil
	}

	quantity := 1.0
	unit := "lot"
	if count, ok := res.Dimensions["count"]; ok && count > 0 {
		quantity = count
		unit = "each"
	}

	po := &model.PurchaseOrder{}
	for _, p := range products {
		if !p.InStock {
			continue
		}
		po.Lines = append(po.Lines, model.PurchaseOrderLine{
			SKU:      p.SKU,
			Name:     p.Name,
			Quantity: quantity,
			Unit:     unit,
		})
		po.EstimatedTotal += p.Price * quantity
	}
	if len(po.Lines) == 0 {
		return nil
	}
	return po
}
