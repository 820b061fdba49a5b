package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/productimages/internal/pkg/storage"
	"github.com/ManuelReschke/productimages/internal/pkg/upload"
)

var ingestName string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Store a file as original and generate every size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := filepath.Base(args[0])
		if ingestName != "" {
			name = ingestName
		}
		name, err := upload.SanitizeFilename(name)
		if err != nil {
			return err
		}

		// the engine moves its input, keep the operator's file
		cfg := services.Engine.Config()
		staged := filepath.Join(cfg.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
		if err := storage.CopyFile(args[0], staged); err != nil {
			return err
		}
		defer func() { _, _ = storage.RemoveIfExists(staged) }()

		res, err := services.Engine.Ingest(cmd.Context(), staged, name)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Remove every variant file and the record of a filename",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := services.Engine.DeleteImage(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <itemCode> <size>",
	Short: "Show which file a lookup returns",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(services.Resolver.ResolveForItem(cmd.Context(), args[0], args[1]))
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <key> <filename>",
	Short: "Download a variant file from the backup bucket and record it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if services.Backup == nil {
			return errors.New("s3 backup is not enabled")
		}
		cfg := services.Engine.Config()
		key, err := cfg.Normalize(args[0])
		if err != nil {
			return err
		}
		path, err := cfg.Resolve(key, args[1])
		if err != nil {
			return err
		}
		if err := services.Backup.Restore(cmd.Context(), key, args[1], path); err != nil {
			return err
		}
		res, err := services.Engine.SyncDirectory(cmd.Context(), key, false)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "store under this filename instead of the source name")
	rootCmd.AddCommand(ingestCmd, deleteCmd, resolveCmd, restoreCmd)
}
