package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prilive-com/telegrambot/telegrambot"
)

var (
	dropPending   bool
	serveRegister bool
)

var webhookInfoCmd = &cobra.Command{
	Use:   "webhook-info",
	Short: "Show the current webhook status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		info, err := s.client.GetWebhookInfo(cmd.Context())
		if err != nil {
			return fmt.Errorf("getWebhookInfo failed: %w", err)
		}
		printWebhookInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

var setWebhookCmd = &cobra.Command{
	Use:   "set-webhook",
	Short: "Register the configured webhook URL with Telegram",
	Long: `Call setWebhook with webhook.url, webhook.secret and
polling.allowed_updates from the configuration.`,
	Example: `  TELEGRAM_WEBHOOK__URL=https://bot.example.com/hook tbot set-webhook`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.client.SetWebhookFromConfig(cmd.Context()); err != nil {
			return fmt.Errorf("setWebhook failed: %w", err)
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "webhook set to %s\n", s.client.Config().Webhook.URL)
		return nil
	},
}

var deleteWebhookCmd = &cobra.Command{
	Use:   "delete-webhook",
	Short: "Remove the webhook so getUpdates can be used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.client.DeleteWebhook(cmd.Context(), dropPending); err != nil {
			return fmt.Errorf("deleteWebhook failed: %w", err)
		}
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "webhook deleted")
		return nil
	},
}

var serveWebhookCmd = &cobra.Command{
	Use:   "serve-webhook",
	Short: "Run a webhook server and print incoming updates",
	Long: `Listen on webhook.port and print every update Telegram pushes. Without
TLS paths the server speaks plain HTTP for use behind a TLS-terminating proxy.
With --register the configured webhook URL is registered first.`,
	Example: `  TELEGRAM_WEBHOOK__PORT=8443 TELEGRAM_WEBHOOK__SECRET=s3cret tbot serve-webhook`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if serveRegister {
			if err := s.client.SetWebhookFromConfig(ctx); err != nil {
				return fmt.Errorf("setWebhook failed: %w", err)
			}
		}

		pr := newPrinter(cmd.OutOrStdout())
		handler := s.client.WebhookHandler(telegrambot.DispatcherFunc(func(_ context.Context, u telegrambot.Update) {
			pr.Print(u)
		}))
		if s.metrics != nil {
			handler.SetMetrics(s.metrics)
		}

		cfg := s.client.Config()
		color.New(color.Bold).Fprintf(cmd.ErrOrStderr(), "Serving webhook on :%d (Ctrl+C to stop)\n", cfg.Webhook.Port)
		err = telegrambot.ServeWebhook(ctx, cfg.Webhook, handler, s.client.Logger())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	deleteWebhookCmd.Flags().BoolVar(&dropPending, "drop-pending", false, "Drop all pending updates")
	serveWebhookCmd.Flags().BoolVar(&serveRegister, "register", false, "Call setWebhook before serving")
}

func printWebhookInfo(w io.Writer, info *telegrambot.WebhookInfo) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "Webhook")
	fmt.Fprintln(w, "─────────────────────────────────")
	if info.URL == "" {
		color.New(color.FgYellow).Fprintln(w, "not set (long polling)")
	} else {
		fmt.Fprintf(w, "URL:           %s\n", info.URL)
	}
	fmt.Fprintf(w, "Pending:       %d\n", info.PendingUpdateCount)
	if info.IPAddress != "" {
		fmt.Fprintf(w, "IP address:    %s\n", info.IPAddress)
	}
	if info.MaxConnections > 0 {
		fmt.Fprintf(w, "Connections:   %d\n", info.MaxConnections)
	}
	if len(info.AllowedUpdates) > 0 {
		fmt.Fprintf(w, "Updates:       %v\n", info.AllowedUpdates)
	}
	if info.LastErrorMessage != "" {
		fmt.Fprint(w, "Last error:    ")
		color.New(color.FgRed).Fprintf(w, "%s (%s)\n",
			info.LastErrorMessage,
			time.Unix(info.LastErrorDate, 0).UTC().Format(time.RFC3339))
	}
}
