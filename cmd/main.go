package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kyz7/hcg-auth/internal/config"
	"github.com/Kyz7/hcg-auth/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hcg-auth",
		Short:        "HCG GIS Portal authentication server",
		Version:      version,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCreateUserCmd())
	cmd.AddCommand(newTestEmailCmd())
	return cmd
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// maskSecret shows only the last four characters of s.
func maskSecret(s string) string {
	if s == "" {
		return "NOT SET"
	}
	if len(s) <= 4 {
		return "****"
	}
	return fmt.Sprintf("***%s", s[len(s)-4:])
}
