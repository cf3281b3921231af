package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ougirez/areametrics/internal/app"
	"github.com/ougirez/areametrics/internal/pkg/config"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/service/seed"
	"github.com/spf13/cobra"
)

var (
	configFile string
	withDemo   bool
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Creates the schema for the configured database and seeds the metric catalog",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.Flags().BoolVar(&withDemo, "demo", false, "also seed the South Africa demo hierarchy and sample facts")
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err = logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logger.Sync()

	st, closeStore, err := app.OpenStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	if err = st.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", st.Dialect().Name())

	seeder := seed.NewSeedService(st)
	if !withDemo {
		metrics, err := seeder.SeedCatalog(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d metrics\n", len(metrics))
		return nil
	}

	report, err := seeder.SeedDemo(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d metrics, demo: %d new locations, %d new facts\n",
		report.Metrics, report.Locations, report.Facts)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
