package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := initCache()
		if err != nil {
			return err
		}
		defer store.Close()

		count, err := store.Count(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "count cache entries")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"driver":       cfg.Cache.Driver,
			"path":         cfg.Cache.Path,
			"live_entries": count,
		})
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := initCache()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.DeleteExpired(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "purge cache")
		}

		zap.L().Info("cache purged", zap.Int("removed", removed))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
