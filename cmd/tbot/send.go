package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prilive-com/telegrambot/telegrambot"
)

var (
	sendParseMode string
	sendSilent    bool
	sendReplyTo   int64
	photoCaption  string
)

var sendCmd = &cobra.Command{
	Use:   "send <chat> <text...>",
	Short: "Send a text message",
	Long: `Send a text message to a chat given by numeric id or @username.
Remaining arguments are joined with spaces.`,
	Example: `  tbot send 123456 hello there
  tbot send @mychannel "<b>bold</b>" --parse-mode HTML`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chat, err := parseChatID(args[0])
		if err != nil {
			return err
		}

		s, err := newSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		req := &telegrambot.SendMessageRequest{
			ChatID:              chat,
			Text:                strings.Join(args[1:], " "),
			ParseMode:           sendParseMode,
			DisableNotification: sendSilent,
		}
		if sendReplyTo != 0 {
			req.ReplyParameters = &telegrambot.ReplyParameters{MessageID: sendReplyTo}
		}
		msg, err := s.client.SendMessage(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("sendMessage failed: %w", err)
		}
		printSent(cmd.OutOrStdout(), msg)
		return nil
	},
}

var sendPhotoCmd = &cobra.Command{
	Use:   "send-photo <chat> <file|url|file-id>",
	Short: "Send a photo",
	Long: `Send a photo to a chat. An http(s) URL is fetched by Telegram, an
existing local path is uploaded, anything else is treated as a file id.`,
	Example: `  tbot send-photo 123456 ./cat.jpg --caption "a cat"
  tbot send-photo 123456 https://example.com/cat.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chat, err := parseChatID(args[0])
		if err != nil {
			return err
		}
		photo, err := inputFile(args[1])
		if err != nil {
			return err
		}

		s, err := newSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		msg, err := s.client.SendPhoto(cmd.Context(), &telegrambot.SendPhotoRequest{
			ChatID:              chat,
			Photo:               photo,
			Caption:             photoCaption,
			ParseMode:           sendParseMode,
			DisableNotification: sendSilent,
		})
		if err != nil {
			return fmt.Errorf("sendPhoto failed: %w", err)
		}
		printSent(cmd.OutOrStdout(), msg)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{sendCmd, sendPhotoCmd} {
		c.Flags().StringVar(&sendParseMode, "parse-mode", "", "HTML, Markdown or MarkdownV2")
		c.Flags().BoolVar(&sendSilent, "silent", false, "Send without notification")
	}
	sendCmd.Flags().Int64Var(&sendReplyTo, "reply-to", 0, "Message id to reply to")
	sendPhotoCmd.Flags().StringVar(&photoCaption, "caption", "", "Photo caption")
}

func printSent(w io.Writer, msg *telegrambot.Message) {
	color.New(color.FgGreen).Fprint(w, "sent ")
	fmt.Fprintf(w, "message_id=%d chat=%d\n", msg.MessageID, msg.Chat.ID)
}
