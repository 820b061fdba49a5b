package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/productimages/internal/pkg/imagesync"
)

var (
	syncRebuild bool
	dryRun      bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <key>",
	Short: "Reconcile one variant directory with the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := services.Engine.SyncDirectory(cmd.Context(), args[0], syncRebuild)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var syncAllCmd = &cobra.Command{
	Use:   "sync-all",
	Short: "Reconcile every variant directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		results := services.Engine.SyncAll(cmd.Context(), syncRebuild)
		if err := printJSON(results); err != nil {
			return err
		}
		failed := 0
		for _, res := range results {
			if res.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d directories failed", failed, len(results))
		}
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <from> <to>",
	Short: "Generate the <to> variant from <from> where it is missing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := services.Engine.RebuildVariant(cmd.Context(), args[0], args[1], imagesync.RebuildOptions{DryRun: dryRun})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncRebuild, "rebuild", false, "re-measure files that are already recorded")
	syncAllCmd.Flags().BoolVar(&syncRebuild, "rebuild", false, "re-measure files that are already recorded")
	rebuildCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list the candidates")
	rootCmd.AddCommand(syncCmd, syncAllCmd, rebuildCmd)
}
