package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prilive-com/telegrambot/observer"
	"github.com/prilive-com/telegrambot/telegrambot"
)

var (
	configPath string
	botToken   string
	logLevel   string
	withOTel   bool
)

var rootCmd = &cobra.Command{
	Use:   "tbot",
	Short: "tbot - Telegram Bot API from the command line",
	Long: `tbot talks to the Telegram Bot API with the telegrambot library.

Configuration is read from an optional YAML file, then TELEGRAM_* environment
variables, then flags. The bot token comes from --token or TELEGRAM_BOT_TOKEN.`,
	Example: `  # Print incoming updates
  TELEGRAM_BOT_TOKEN=<token> tbot poll

  # Send a message
  tbot send 123456 "hello"

  # Inspect the webhook
  tbot webhook-info`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&botToken, "token", "", "Bot token (overrides TELEGRAM_BOT_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&withOTel, "otel", false, "Export traces and metrics over OTLP (OTEL_* env vars)")

	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sendPhotoCmd)
	rootCmd.AddCommand(webhookInfoCmd)
	rootCmd.AddCommand(setWebhookCmd)
	rootCmd.AddCommand(deleteWebhookCmd)
	rootCmd.AddCommand(serveWebhookCmd)
	rootCmd.AddCommand(triggersCmd)
}

// session is a configured client plus the instrumentation set up for it.
type session struct {
	client   *telegrambot.Client
	metrics  telegrambot.PollMetrics
	shutdown func(context.Context) error
}

func (s *session) Close() {
	if s.shutdown != nil {
		_ = s.shutdown(context.Background())
	}
}

// newSession builds a client from the global flags. CLI logs go to stderr
// as text so stdout stays clean for command output.
func newSession(ctx context.Context, cmd *cobra.Command, extra ...telegrambot.Option) (*session, error) {
	level, err := telegrambot.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts := []telegrambot.Option{telegrambot.WithLogger(logger)}
	if botToken != "" {
		opts = append(opts, telegrambot.WithBotToken(botToken))
	}
	opts = append(opts, extra...)

	client, err := telegrambot.NewFromConfig(configPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure client: %w", err)
	}
	s := &session{client: client}
	if !withOTel {
		return s, nil
	}

	inst, shutdown, err := observer.Init(ctx, "tbot")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	opts = append(opts, telegrambot.WithTransport(observer.WrapTransport(client.Transport(), inst)))
	if s.client, err = telegrambot.NewFromConfig(configPath, opts...); err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to configure client: %w", err)
	}
	s.metrics = observer.NewPollMetrics(inst)
	s.shutdown = shutdown
	return s, nil
}

// parseChatID accepts a numeric chat id or a public @username.
func parseChatID(s string) (telegrambot.ChatID, error) {
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return telegrambot.ChatIDUsername(s), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return telegrambot.ChatID{}, fmt.Errorf("invalid chat %q: want a numeric id or @username", s)
	}
	return telegrambot.ChatIDInt(id), nil
}

// inputFile picks how a photo argument is sent: URLs are fetched by Telegram,
// existing paths are uploaded, anything else is a file id.
func inputFile(arg string) (*telegrambot.InputFile, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return telegrambot.FileURL(arg), nil
	}
	if _, err := os.Stat(arg); err == nil {
		return telegrambot.FilePath(arg)
	}
	return telegrambot.FileID(arg), nil
}
