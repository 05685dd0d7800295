package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prilive-com/telegrambot/telegrambot"
)

// Echo bot using long polling.
// Run with: go run ./example/polling
//
// Required environment variable: TELEGRAM_BOT_TOKEN
// Optional: config.yaml file in the working directory

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Option 1: Simple programmatic configuration
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable required")
	}

	client, err := telegrambot.New(token,
		telegrambot.WithPolling(30, 100),
		telegrambot.WithPollingMaxErrors(5),
		telegrambot.DevelopmentPreset(),
	)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	// Option 2: Load from config file + env vars + programmatic overrides
	// client, err := telegrambot.NewFromConfig("config.yaml",
	//     telegrambot.WithLogger(customLogger),
	// )

	router := telegrambot.NewRouter(client.Logger())

	router.OnCommand("start", "Say hello", func(ctx context.Context, u *telegrambot.MessageUpdate) error {
		name := "there"
		if from := u.Message.Sender(); from != nil {
			name = from.FirstName
		}
		_, err := client.ReplyWith(ctx, u, &telegrambot.SendMessageRequest{
			Text: "Hi " + name + "! Send me anything and I will echo it.",
			ReplyMarkup: telegrambot.InlineKeyboard([]telegrambot.InlineKeyboardButton{
				{Text: "Shout", CallbackData: "shout"},
				{Text: "Whisper", CallbackData: "whisper"},
			}),
		})
		return err
	})

	router.OnText(func(ctx context.Context, u *telegrambot.MessageUpdate) error {
		_ = client.SendChatAction(ctx, &telegrambot.SendChatActionRequest{
			ChatID: telegrambot.ChatIDInt(u.Message.Chat.ID),
			Action: "typing",
		})
		_, err := client.Reply(ctx, u, u.Message.Text)
		return err
	})

	router.OnPhoto(func(ctx context.Context, u *telegrambot.MessageUpdate) error {
		// Largest size is last.
		photo := u.Message.Photo[len(u.Message.Photo)-1]
		_, err := client.SendPhoto(ctx, &telegrambot.SendPhotoRequest{
			ChatID:  telegrambot.ChatIDInt(u.Message.Chat.ID),
			Photo:   telegrambot.FileID(photo.FileID),
			Caption: u.Message.Caption,
		})
		return err
	})

	router.OnCallbackQuery(func(ctx context.Context, u *telegrambot.CallbackQueryUpdate) error {
		text := "psst"
		if u.Query.Data == "shout" {
			text = "HELLO!"
		}
		return client.AnswerCallback(ctx, u, text, u.Query.Data == "shout")
	})

	poller := client.NewPoller(router)

	slog.Info("Echo bot running. Press Ctrl+C to stop.")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Polling failed: %v", err)
	}
	router.Wait()
	slog.Info("Echo bot stopped")
}
