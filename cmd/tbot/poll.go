package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prilive-com/telegrambot/telegrambot"
)

var (
	pollEcho  bool
	pollLastN int
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Print incoming updates using long polling",
	Long: `Delete any webhook and print every update received with getUpdates
until interrupted. With --echo, text messages are sent back to their chat.`,
	Example: `  # Print updates
  tbot poll

  # Echo bot that starts from the last 5 pending updates
  tbot poll --echo --last 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var extra []telegrambot.Option
		if pollLastN > 0 {
			extra = append(extra, telegrambot.WithLastNUpdates(pollLastN))
		}
		s, err := newSession(ctx, cmd, extra...)
		if err != nil {
			return err
		}
		defer s.Close()

		pr := newPrinter(cmd.OutOrStdout())
		router := telegrambot.NewRouter(s.client.Logger())
		router.OnAny(telegrambot.HandlerFunc(func(_ context.Context, u telegrambot.Update) error {
			pr.Print(u)
			return nil
		}))
		if pollEcho {
			router.OnText(func(ctx context.Context, u *telegrambot.MessageUpdate) error {
				pr.Print(u)
				_, err := s.client.Reply(ctx, u, u.Message.Text)
				return err
			})
		}

		var opts []telegrambot.PollerOption
		if s.metrics != nil {
			opts = append(opts, telegrambot.WithPollMetrics(s.metrics))
		}
		poller := s.client.NewPoller(router, opts...)

		color.New(color.Bold).Fprintln(cmd.ErrOrStderr(), "Polling for updates (Ctrl+C to stop)")
		err = poller.Run(ctx)
		router.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	pollCmd.Flags().BoolVar(&pollEcho, "echo", false, "Send text messages back to their chat")
	pollCmd.Flags().IntVar(&pollLastN, "last", 0, "Start from the last N pending updates")
}

// printer writes one colored line per update. Safe for concurrent use.
type printer struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, now: time.Now}
}

var (
	kindColor = color.New(color.FgCyan, color.Bold)
	idColor   = color.New(color.FgHiBlack)
	fromColor = color.New(color.FgGreen)
)

func (p *printer) Print(u telegrambot.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "%s ", p.now().Format("15:04:05"))
	kindColor.Fprintf(p.w, "%-20s", u.Kind())
	idColor.Fprintf(p.w, " #%d", u.UpdateID())
	fmt.Fprintln(p.w, describe(u))
}

// describe summarizes the variants people usually look at.
func describe(u telegrambot.Update) string {
	switch u := u.(type) {
	case *telegrambot.MessageUpdate:
		m := u.Message
		out := fmt.Sprintf(" chat=%d", m.Chat.ID)
		if from := m.Sender(); from != nil {
			out += " from=" + fromColor.Sprint(userName(from))
		}
		out += fmt.Sprintf(" [%s]", m.Content())
		if m.Text != "" {
			out += " " + m.Text
		} else if m.Caption != "" {
			out += " " + m.Caption
		}
		return out
	case *telegrambot.CallbackQueryUpdate:
		return fmt.Sprintf(" from=%s data=%q", fromColor.Sprint(userName(u.Query.From)), u.Query.Data)
	case *telegrambot.UnhandledUpdate:
		return fmt.Sprintf(" field=%s", u.Field)
	default:
		return ""
	}
}

func userName(u *telegrambot.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}
