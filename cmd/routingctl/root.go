package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/case-routing-api/internal/bootstrap"
	"github.com/noah-isme/case-routing-api/pkg/config"
	"github.com/noah-isme/case-routing-api/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "routingctl",
	Short:         "Operate the case routing engine and SLA clock",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newSLACmd(), newRouteCmd(), newHolidaysCmd(), newWorkingDayCmd())
}

// withContainer loads configuration, connects to storage and hands the services to fn.
func withContainer(ctx context.Context, fn func(c *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	c, err := bootstrap.New(ctx, cfg, logr)
	if err != nil {
		logr.Error("bootstrap failed", zap.Error(err))
		return err
	}
	defer c.Close()
	return fn(c)
}
