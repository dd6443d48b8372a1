package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hedspi/phone-assistant/internal/app"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

var (
	envFile string
	logMode string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kgctl",
		Short: "Offline tooling for the phone assistant catalog and entity graph",
		Long: `kgctl loads product catalogs into the configured vector index and
maintains the Neo4j entity graph used for graph expansion at query time.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				_ = godotenv.Load()
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file to load (default .env if present)")
	root.PersistentFlags().StringVar(&logMode, "log-mode", "development", "logger mode")

	root.AddCommand(newIngestCmd(), newBuildGraphCmd(), newImportEmbeddingsCmd())
	return root
}

// withCore builds the shared stores for one command and tears them down after.
func withCore(ctx context.Context, opts app.CoreOptions, fn func(*app.Core) error) error {
	log, err := logger.New(logMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	core, err := app.NewCore(ctx, log, app.LoadConfig(), opts)
	if err != nil {
		return err
	}
	defer core.Close(context.Background())
	return fn(core)
}
