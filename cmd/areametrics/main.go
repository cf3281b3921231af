package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ougirez/areametrics/internal/api"
	"github.com/ougirez/areametrics/internal/app"
	"github.com/ougirez/areametrics/internal/pkg/config"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var configFile string

var rootCmd = &cobra.Command{
	Use:          "areametrics",
	Short:        "Serves resolved area metrics over HTTP",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err = logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if supported, err := a.Catalog.MetricsSupported(ctx); err != nil {
		logger.Warnf(ctx, "metrics schema check: %s", err.Error())
	} else if !supported {
		logger.Warnf(ctx, "metrics schema not found, run migrate first")
	}

	server := api.NewAPIService(a.Lookup, api.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		LogLevel:    cfg.Log.Level,
	})

	go server.Serve(cfg.Server.Addr)
	logger.Info(ctx, "server started", "addr", cfg.Server.Addr, "driver", cfg.DB.Driver)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Infof(shutdownCtx, "shutting down")
	return server.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
