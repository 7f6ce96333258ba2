package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kyz7/hcg-auth/internal/logging"
	"github.com/Kyz7/hcg-auth/internal/notify"
)

func newTestEmailCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "test-email",
		Short: "Send a test message with the configured mail driver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if to == "" {
				to = cfg.Mail.User
			}
			cmd.Println("Configuration:")
			cmd.Printf("MAIL_DRIVER: %s\n", cfg.Mail.Driver)
			cmd.Printf("EMAIL_USER:  %s\n", cfg.Mail.User)
			cmd.Printf("EMAIL_PASS:  %s\n", maskSecret(cfg.Mail.Password))
			cmd.Printf("EMAIL_FROM:  %s\n", cfg.Mail.From)

			n, err := notify.New(cfg.Mail, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := n.Send(ctx, notify.TestMessage(to)); err != nil {
				logging.LogError(log, "test email failed", err)
				cmd.Println("Common issues: wrong app password, 2-step verification not enabled, spaces in the password.")
				return err
			}

			cmd.Printf("Test email sent to %s via %s.\n", to, n.Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient (defaults to EMAIL_USER)")
	return cmd
}
