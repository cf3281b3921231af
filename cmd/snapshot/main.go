package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ougirez/areametrics/internal/app"
	"github.com/ougirez/areametrics/internal/pkg/config"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/service/acceleration"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	recreate     bool
	noConcurrent bool
)

var rootCmd = &cobra.Command{
	Use:          "snapshot",
	Short:        "Creates or refreshes the latest-metric snapshot",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.Flags().BoolVar(&recreate, "recreate", false, "drop and rebuild the snapshot")
	rootCmd.Flags().BoolVar(&noConcurrent, "no-concurrent", false, "refresh with an exclusive lock")
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

	accel := acceleration.NewAccelerationService(st, acceleration.Config{
		Concurrent: cfg.Snapshot.Concurrent,
		Timeout:    cfg.Snapshot.Timeout,
	})

	opts := acceleration.RefreshOpts{Recreate: recreate}
	if noConcurrent {
		concurrent := false
		opts.Concurrent = &concurrent
	}

	result, err := accel.Refresh(ctx, opts)
	if errors.Is(err, constants.ErrSnapshotUnsupported) {
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot unsupported on %s, nothing to do\n", st.Dialect().Name())
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "actions: %s\nstate: %s\n", strings.Join(result.Actions, ", "), result.State)
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
