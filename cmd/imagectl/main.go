// Command imagectl runs engine operations from the shell: ingest files,
// reconcile directories, rebuild variants and resolve item lookups.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/productimages/internal/pkg/app"
)

var rootCmd = &cobra.Command{
	Use:           "imagectl",
	Short:         "Maintain the product image store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// services is set by the persistent pre-run of every command
var services *app.Services

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		log.SetLevel(log.LevelWarn)
		svc, err := app.Bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		services = svc
		return nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		stop()
		os.Exit(1)
	}
}

// printJSON writes v to stdout, indented
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
