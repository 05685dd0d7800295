package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prilive-com/telegrambot/observer"
	"github.com/prilive-com/telegrambot/telegrambot"
)

// Webhook bot with OpenTelemetry.
// Run with: go run ./example
//
// Required: TELEGRAM_BOT_TOKEN, TELEGRAM_WEBHOOK__URL (public https URL),
// TELEGRAM_WEBHOOK__SECRET. Optional: TELEGRAM_WEBHOOK__TLS_CERT_PATH and
// TELEGRAM_WEBHOOK__TLS_KEY_PATH, OTEL_EXPORTER_OTLP_ENDPOINT.

func main() {
	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry first so the transport can be wrapped.
	inst, shutdown, err := observer.Init(ctx, "telegrambot-webhook-example")
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	base, err := telegrambot.NewFromConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	client, err := telegrambot.NewFromConfig("config.yaml",
		telegrambot.WithLogger(base.Logger()),
		telegrambot.WithTransport(observer.WrapTransport(base.Transport(), inst)),
	)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	logger := client.Logger()

	router := telegrambot.NewRouter(logger)
	router.OnCommand("ping", "Check the bot is alive", func(ctx context.Context, u *telegrambot.MessageUpdate) error {
		_, err := client.Reply(ctx, u, "pong")
		return err
	})
	router.OnText(func(ctx context.Context, u *telegrambot.MessageUpdate) error {
		_, err := client.Reply(ctx, u, u.Message.Text)
		return err
	})
	router.OnAny(telegrambot.HandlerFunc(func(_ context.Context, u telegrambot.Update) error {
		logger.Info("unrouted update", "update_id", u.UpdateID(), "kind", u.Kind())
		return nil
	}))

	// Register the webhook and the command menu with Telegram.
	if err := client.SetWebhookFromConfig(ctx); err != nil {
		log.Fatalf("Failed to set webhook: %v", err)
	}
	if err := client.SetMyCommands(ctx, &telegrambot.SetMyCommandsRequest{Commands: router.Commands()}); err != nil {
		log.Fatalf("Failed to set commands: %v", err)
	}

	handler := client.WebhookHandler(router)
	handler.SetMetrics(observer.NewPollMetrics(inst))

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cfg := client.Config()
	if err := telegrambot.ServeWebhook(ctx, cfg.Webhook, mux, logger); err != nil {
		logger.Error("Webhook server exited with error", "error", err)
	}

	router.Wait()
	slog.Info("Webhook bot stopped")
}
