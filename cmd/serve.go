package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kyz7/hcg-auth/internal/auth"
	"github.com/Kyz7/hcg-auth/internal/database"
	"github.com/Kyz7/hcg-auth/internal/logging"
	"github.com/Kyz7/hcg-auth/internal/notify"
	"github.com/Kyz7/hcg-auth/internal/resettoken"
	"github.com/Kyz7/hcg-auth/internal/server"
	"github.com/Kyz7/hcg-auth/internal/user"
	"github.com/Kyz7/hcg-auth/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		logging.LogError(log, "configuration error", err)
		return err
	}
	if cfg.ExposeOTPInResponse {
		log.Warn("EXPOSE_OTP_IN_RESPONSE is on: reset codes are returned to clients")
	}

	// ========== DATABASE SETUP ==========
	db, err := database.Connect(cfg)
	if err != nil {
		logging.LogError(log, "database connection failed", err)
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(ctx, db); err != nil {
		logging.LogError(log, "migration failed", err)
		return err
	}
	log.Info("database migrated")

	// ========== SERVICES ==========
	notifier, err := notify.New(cfg.Mail, log)
	if err != nil {
		return err
	}

	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	users := user.NewStore(db)
	tokens := resettoken.NewStore(db, cfg.ResetTokenTTL)
	secret := []byte(cfg.JWTSecret)

	authSvc := auth.NewService(db, users, tokens, hasher, notifier, log, auth.Options{
		JWTSecret:  secret,
		SessionTTL: cfg.JWTExpire,
		ExposeOTP:  cfg.ExposeOTPInResponse,
	})

	deps := server.Deps{
		Auth:        auth.NewHandler(authSvc, log),
		Users:       user.NewHandler(user.NewService(users, hasher), log),
		JWTSecret:   secret,
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	}
	if cfg.GoogleEnabled() {
		deps.Google = auth.NewGoogleAuth(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}, authSvc, users, log)
	}

	// ========== BACKGROUND JOBS ==========
	cleaner := resettoken.NewCleaner(tokens, cfg.CleanupInterval, cfg.ResetTokenRetention, log)
	go cleaner.Run(ctx)

	// ========== START SERVER ==========
	app := server.New(deps)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.ServerAddr),
			zap.String("mail_driver", notifier.Name()),
			zap.Bool("google_sign_in", deps.Google != nil),
		)
		listenErr <- app.Listen(cfg.ServerAddr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			logging.LogError(log, "server stopped", err)
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		logging.LogError(log, "shutdown failed", err)
		return err
	}
	return nil
}
