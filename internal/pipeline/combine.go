package pipeline

import (
	"strings"

	"github.com/scopeworks/intake/internal/model"
)

// Combine merges per-image and notes findings into the aggregated view.
// Pure function: no external calls, deterministic given inputs.
//
// Merge rules: project type by majority vote across images (notes break the
// tie and fill the gap), dimension and material keys unioned with notes
// taking precedence on conflicts, demolition flag from any source.
func Combine(images []model.ImageFinding, notes model.NotesFinding) model.AggregatedFindings {
	merged := model.Findings{
		Dimensions: map[string]string{},
	}

	// Majority vote on project type among image findings.
	votes := map[string]int{}
	var voteOrder []string
	for _, img := range images {
		pt := img.Findings.ProjectType
		if pt == "" || pt == "unknown" {
			continue
		}
		if votes[pt] == 0 {
			voteOrder = append(voteOrder, pt)
		}
		votes[pt]++
	}
	for _, pt := range voteOrder {
		if votes[pt] > votes[merged.ProjectType] {
			merged.ProjectType = pt
		}
	}
	notesType := notes.Findings.ProjectType
	if notesType != "" && notesType != "unknown" {
		if merged.ProjectType == "" {
			merged.ProjectType = notesType
		} else if votes[notesType] == votes[merged.ProjectType] && notesType != merged.ProjectType {
			// Tie between image candidates: the notes-declared type wins.
			if votes[notesType] > 0 {
				merged.ProjectType = notesType
			}
		}
	}

	// Subtype: notes first.
	merged.ProjectSubtype = notes.Findings.ProjectSubtype
	if merged.ProjectSubtype == "" {
		for _, img := range images {
			if img.Findings.ProjectSubtype != "" {
				merged.ProjectSubtype = img.Findings.ProjectSubtype
				break
			}
		}
	}

	// Dimensions: first-wins across images in order, then notes override.
	for _, img := range images {
		for k, v := range img.Findings.Dimensions {
			if _, ok := merged.Dimensions[k]; !ok {
				merged.Dimensions[k] = v
			}
		}
	}
	for k, v := range notes.Findings.Dimensions {
		merged.Dimensions[k] = v
	}

	// Materials, conditions, special considerations: ordered union.
	for _, img := range images {
		merged.Materials = appendUnique(merged.Materials, img.Findings.Materials)
		merged.Conditions = appendUnique(merged.Conditions, img.Findings.Conditions)
		merged.SpecialConsiderations = appendUnique(merged.SpecialConsiderations, img.Findings.SpecialConsiderations)
	}
	merged.Materials = appendUnique(merged.Materials, notes.Findings.Materials)
	merged.Conditions = appendUnique(merged.Conditions, notes.Findings.Conditions)
	merged.SpecialConsiderations = appendUnique(merged.SpecialConsiderations, notes.Findings.SpecialConsiderations)

	merged.DemolitionNeeded = notes.Findings.DemolitionNeeded
	for _, img := range images {
		merged.DemolitionNeeded = merged.DemolitionNeeded || img.Findings.DemolitionNeeded
	}

	if len(merged.Dimensions) == 0 {
		merged.Dimensions = nil
	}

	return model.AggregatedFindings{
		FromImages:     images,
		FromNotes:      notes,
		Merged:         merged,
		CoherenceScore: coherence(images, notes),
	}
}

// coherence measures agreement between the image-derived and notes-derived
// findings: 0.5 if the notes-declared type appears among the image-declared
// types, plus 0.5 weighted by the fraction of overlapping dimension keys
// whose values agree within a 20% ratio. A run without notes has no
// cross-source signal and scores a neutral 0.5.
func coherence(images []model.ImageFinding, notes model.NotesFinding) float64 {
	if notes.IsEmpty {
		return 0.5
	}

	var score float64

	notesType := notes.Findings.ProjectType
	if notesType != "" && notesType != "unknown" {
		for _, img := range images {
			if img.Findings.ProjectType == notesType {
				score += 0.5
				break
			}
		}
	}

	var overlapping, agreeing int
	for key, notesRaw := range notes.Findings.Dimensions {
		notesVal, ok := leadingNumber(notesRaw)
		if !ok {
			continue
		}
		for _, img := range images {
			imgRaw, present := img.Findings.Dimensions[key]
			if !present {
				continue
			}
			imgVal, ok := leadingNumber(imgRaw)
			if !ok {
				continue
			}
			overlapping++
			if ratioWithin(notesVal, imgVal, 0.2) {
				agreeing++
			}
			break
		}
	}
	if overlapping > 0 {
		score += 0.5 * float64(agreeing) / float64(overlapping)
	}

	return score
}

func ratioWithin(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	max := a
	if b > max {
		max = b
	}
	if max == 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/max < tolerance
}

func appendUnique(dst []string, src []string) []string {
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		found := false
		for _, existing := range dst {
			if strings.EqualFold(existing, s) {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
