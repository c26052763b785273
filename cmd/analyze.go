package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scopeworks/intake/internal/model"
)

var (
	analyzeNotes     string
	analyzeNotesFile string
	analyzeZIP       string
	analyzeState     string
	analyzeCity      string
	analyzeForce     bool
	analyzeFallback  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image files...]",
	Short: "Analyze project photos and notes into a structured specification",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline()
		if err != nil {
			return err
		}
		defer env.Close()

		notes := analyzeNotes
		if analyzeNotesFile != "" {
			data, err := os.ReadFile(analyzeNotesFile)
			if err != nil {
				return eris.Wrap(err, "read notes file")
			}
			notes = string(data)
		}

		req := model.AnalysisRequest{
			Notes: notes,
			Location: model.Location{
				ZIP:   analyzeZIP,
				State: analyzeState,
				City:  analyzeCity,
			},
			Options: model.RequestOptions{
				ForceReprocess: analyzeForce,
				FallbackMode:   analyzeFallback,
			},
		}
		for _, path := range args {
			req.Images = append(req.Images, model.ProjectImage{Path: path})
		}

		result, err := env.Pipeline.Analyze(ctx, req)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("processing_id", result.Meta.ProcessingID),
			zap.String("project_type", result.ProjectType),
			zap.Float64("confidence", result.Meta.ConfidenceScore),
			zap.Int("warnings", len(result.Meta.Warnings)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeNotes, "notes", "", "free-text project notes")
	analyzeCmd.Flags().StringVar(&analyzeNotesFile, "notes-file", "", "read notes from a file")
	analyzeCmd.Flags().StringVar(&analyzeZIP, "zip", "", "project ZIP code")
	analyzeCmd.Flags().StringVar(&analyzeState, "state", "", "project state")
	analyzeCmd.Flags().StringVar(&analyzeCity, "city", "", "project city")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "bypass the result cache")
	analyzeCmd.Flags().BoolVar(&analyzeFallback, "fallback", false, "run in degraded mode (no AI-based fallbacks)")
	rootCmd.AddCommand(analyzeCmd)
}
