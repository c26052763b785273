// Package model defines the shared types for the intake analysis pipeline:
// the analysis request, per-stage findings, the aggregated view, and the
// structured result consumed by downstream pricing.
package model

import (
	"time"
)

// ImageType classifies what a contractor photo is supposed to show.
type ImageType string

const (
	ImageTypeSite      ImageType = "site"
	ImageTypeReference ImageType = "reference"
	ImageTypeSketch    ImageType = "sketch"
)

// ProjectImage is a single contractor-supplied photo. The pipeline never
// mutates the original; preprocessing produces enhanced copies.
type ProjectImage struct {
	ID           string    `json:"id"`
	Path         string    `json:"path,omitempty"`
	URL          string    `json:"url,omitempty"`
	Data         []byte    `json:"data,omitempty"`
	DeclaredType ImageType `json:"declared_type,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`
}

// Location identifies where the project is, for materials availability.
type Location struct {
	ZIP   string `json:"zip"`
	State string `json:"state,omitempty"`
	City  string `json:"city,omitempty"`
}

// RequestOptions tune a single pipeline run.
type RequestOptions struct {
	ProcessingID    string    `json:"processing_id,omitempty"`
	ResumeFromStage StageName `json:"resume_from_stage,omitempty"`
	ForceReprocess  bool      `json:"force_reprocess,omitempty"`
	FallbackMode    bool      `json:"fallback_mode,omitempty"`
}

// AnalysisRequest is the immutable input for one pipeline run.
type AnalysisRequest struct {
	Images   []ProjectImage `json:"images"`
	Notes    string         `json:"notes"`
	Location Location       `json:"location"`
	Options  RequestOptions `json:"options"`
}

// StageName identifies one step of the fixed six-stage pipeline.
type StageName string

const (
	StageValidation    StageName = "validation"
	StageImageAnalysis StageName = "image_analysis"
	StageNotesAnalysis StageName = "notes_analysis"
	StageCombination   StageName = "combination"
	StageStructuring   StageName = "structuring"
	StageSpecialized   StageName = "specialized_analysis"
)

// Stages returns the fixed stage sequence in execution order.
func Stages() []StageName {
	return []StageName{
		StageValidation,
		StageImageAnalysis,
		StageNotesAnalysis,
		StageCombination,
		StageStructuring,
		StageSpecialized,
	}
}

// TotalStages is the number of stages in a complete run.
const TotalStages = 6

// StageIndex returns the position of a stage in the sequence, or -1 if the
// name is not a known stage.
func StageIndex(name StageName) int {
	for i, s := range Stages() {
		if s == name {
			return i
		}
	}
	return -1
}

// Findings is the semi-structured evidence extracted from one source
// (a single image, or the notes). Dimension values are kept as raw text
// until the structuring stage coerces them to numbers.
type Findings struct {
	ProjectType           string            `json:"project_type,omitempty"`
	ProjectSubtype        string            `json:"project_subtype,omitempty"`
	Dimensions            map[string]string `json:"dimensions,omitempty"`
	Materials             []string          `json:"materials,omitempty"`
	Conditions            []string          `json:"conditions,omitempty"`
	SpecialConsiderations []string          `json:"special_considerations,omitempty"`
	DemolitionNeeded      bool              `json:"demolition_needed,omitempty"`
}

// ImageFinding is the analysis outcome for a single image.
type ImageFinding struct {
	ImageID              string        `json:"image_id"`
	Findings             Findings      `json:"findings"`
	Confidence           float64       `json:"confidence"`
	InferredFromFilename bool          `json:"inferred_from_filename,omitempty"`
	ErrorCategory        ErrorCategory `json:"error_category,omitempty"`
}

// NotesSource records which extractor produced the notes finding.
type NotesSource string

const (
	NotesSourcePrimary   NotesSource = "primary"
	NotesSourceSecondary NotesSource = "secondary"
	NotesSourceKeyword   NotesSource = "keyword"
)

// NotesFinding is the analysis outcome for the free-text notes.
type NotesFinding struct {
	Findings   Findings    `json:"findings"`
	IsEmpty    bool        `json:"is_empty,omitempty"`
	Source     NotesSource `json:"source,omitempty"`
	Confidence float64     `json:"confidence"`
}

// AggregatedFindings is the merged pre-structuring view of all evidence
// sources for one run.
type AggregatedFindings struct {
	FromImages     []ImageFinding `json:"from_images"`
	FromNotes      NotesFinding   `json:"from_notes"`
	Merged         Findings       `json:"merged"`
	CoherenceScore float64        `json:"coherence_score"`
}

// Product is a supplier catalog item recommended for the project.
type Product struct {
	SKU     string  `json:"sku"`
	Name    string  `json:"name"`
	Price   float64 `json:"price,omitempty"`
	InStock bool    `json:"in_stock"`
}

// MaterialAvailability summarizes supplier availability near the project.
type MaterialAvailability struct {
	Availability string    `json:"availability"`
	Products     []Product `json:"products,omitempty"`
}

// PurchaseOrderLine is one line of a draft purchase order.
type PurchaseOrderLine struct {
	SKU      string  `json:"sku,omitempty"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

// PurchaseOrder is a draft materials order derived from the specialized
// analysis. It is advisory only.
type PurchaseOrder struct {
	Lines          []PurchaseOrderLine `json:"lines"`
	EstimatedTotal float64             `json:"estimated_total,omitempty"`
}

// ProcessingMeta describes how a result was produced.
type ProcessingMeta struct {
	ProcessingID    string        `json:"processing_id"`
	CompletedStages []StageName   `json:"completed_stages"`
	ProcessingTime  time.Duration `json:"processing_time_ms"`
	ConfidenceScore float64       `json:"confidence_score"`
	CacheHit        bool          `json:"cache_hit"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// StructuredResult is the canonical pipeline output handed to the pricing
// engine. Exactly one StructuredResult or one error is produced per run.
type StructuredResult struct {
	ProjectType           string                `json:"project_type"`
	ProjectSubtype        string                `json:"project_subtype,omitempty"`
	Dimensions            map[string]float64    `json:"dimensions"`
	Options               map[string]any        `json:"options,omitempty"`
	DetectedElements      []string              `json:"detected_elements,omitempty"`
	MaterialAvailability  *MaterialAvailability `json:"material_availability,omitempty"`
	RecommendedProducts   []Product             `json:"recommended_products,omitempty"`
	PurchaseOrderDraft    *PurchaseOrder        `json:"purchase_order_draft,omitempty"`
	GeneratedWithFallback bool                  `json:"generated_with_fallback,omitempty"`
	Meta                  ProcessingMeta        `json:"processing_meta"`
}
