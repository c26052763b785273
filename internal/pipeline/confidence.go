package pipeline

import (
	"github.com/scopeworks/intake/internal/model"
)

// ScoreConfidence computes the overall trust score for a run:
// stage completion carries half the weight, data completeness up to 0.3,
// and cross-source coherence the remaining 0.2. Always in [0, 1].
func ScoreConfidence(completedStages, totalStages int, merged model.Findings, coherence float64) float64 {
	var stagesScore float64
	if totalStages > 0 {
		stagesScore = float64(completedStages) / float64(totalStages)
	}

	var dataQuality float64
	if merged.ProjectType != "" && merged.ProjectType != "unknown" {
		dataQuality += 0.2
	}
	if len(merged.Dimensions) > 0 {
		dataQuality += 0.15
	}
	if len(merged.Materials) > 0 {
		dataQuality += 0.15
	}
	if dataQuality > 0.3 {
		dataQuality = 0.3
	}

	score := stagesScore*0.5 + dataQuality + coherence*0.2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
