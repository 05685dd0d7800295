package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prilive-com/telegrambot/internal/triggers"
	"github.com/prilive-com/telegrambot/telegrambot"
)

var (
	triggersDSN     string
	triggerChat     int64
	triggerMessage  int64
	triggerResponse string
	dollarAPI       string
)

var triggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "Manage and run regex triggers",
	Long: `Triggers are regular expressions matched against every text message.
A trigger is global or scoped to one chat. When it fires the bot replies with
its response, or forwards a stored message.

--db takes a SQLite file path or a postgres:// URL.`,
}

var triggersAddCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Add a trigger",
	Example: `  tbot triggers add '(?i)\bhello\b' --response "hi!"
  tbot triggers add '^rules$' --chat -1001234 --message 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := triggers.Open(cmd.Context(), triggersDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		t := triggers.Trigger{Pattern: args[0], Response: triggerResponse}
		if triggerChat != 0 {
			t.ChatID = &triggerChat
		}
		if triggerMessage != 0 {
			t.MessageID = &triggerMessage
		}
		t, err = store.Add(cmd.Context(), t)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "added trigger %d\n", t.ID)
		return nil
	},
}

var triggersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List global triggers and those of --chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := triggers.Open(cmd.Context(), triggersDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(cmd.Context(), triggerChat)
		if err != nil {
			return err
		}
		colID, colScope, colPattern := len("ID"), len("SCOPE"), len("PATTERN")
		for _, t := range list {
			colID = max(colID, len(strconv.FormatInt(t.ID, 10)))
			colScope = max(colScope, len(scope(t)))
			colPattern = max(colPattern, len(t.Pattern))
		}

		w := cmd.OutOrStdout()
		header := color.New(color.Bold)
		header.Fprintf(w, "%-*s  %-*s  %-*s  %s\n", colID, "ID", colScope, "SCOPE", colPattern, "PATTERN", "RESPONSE")
		for _, t := range list {
			fmt.Fprintf(w, "%-*d  %-*s  %-*s  %s\n", colID, t.ID, colScope, scope(t), colPattern, t.Pattern, response(t))
		}
		return nil
	},
}

var triggersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a trigger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid trigger id %q", args[0])
		}
		store, err := triggers.Open(cmd.Context(), triggersDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), id); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "deleted trigger %d\n", id)
		return nil
	},
}

var triggersRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trigger bot with long polling",
	Long: `Poll for updates and answer every text message that matches a trigger.
Chat members manage the chat's triggers with /trigger, /triggers and
/untrigger. /dolar replies with the current dollar exchange rates.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := triggers.Open(ctx, triggersDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		s, err := newSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		router := telegrambot.NewRouter(s.client.Logger())
		newTriggerBot(s.client, store).Register(router)
		newDollarBot(s.client, dollarAPI).Register(router)

		var opts []telegrambot.PollerOption
		if s.metrics != nil {
			opts = append(opts, telegrambot.WithPollMetrics(s.metrics))
		}
		color.New(color.Bold).Fprintln(cmd.ErrOrStderr(), "Trigger bot running (Ctrl+C to stop)")
		err = s.client.NewPoller(router, opts...).Run(ctx)
		router.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	dsn := os.Getenv("TBOT_TRIGGERS_DB")
	if dsn == "" {
		dsn = "triggers.db"
	}
	triggersCmd.PersistentFlags().StringVar(&triggersDSN, "db", dsn, "SQLite path or postgres:// URL (TBOT_TRIGGERS_DB)")

	triggersAddCmd.Flags().Int64Var(&triggerChat, "chat", 0, "Scope to one chat (default global)")
	triggersAddCmd.Flags().Int64Var(&triggerMessage, "message", 0, "Message in --chat to forward when the trigger fires")
	triggersAddCmd.Flags().StringVar(&triggerResponse, "response", "", "Reply text")
	triggersListCmd.Flags().Int64Var(&triggerChat, "chat", 0, "Also list the triggers of this chat")
	triggersRunCmd.Flags().StringVar(&dollarAPI, "dolar-api", defaultDollarAPI, "Exchange rate API queried by /dolar")

	triggersCmd.AddCommand(triggersAddCmd)
	triggersCmd.AddCommand(triggersListCmd)
	triggersCmd.AddCommand(triggersDeleteCmd)
	triggersCmd.AddCommand(triggersRunCmd)
}

func scope(t triggers.Trigger) string {
	if t.Global() {
		return "global"
	}
	return strconv.FormatInt(*t.ChatID, 10)
}

func response(t triggers.Trigger) string {
	switch {
	case t.MessageID != nil:
		return fmt.Sprintf("forward #%d", *t.MessageID)
	case t.Response != "":
		return t.Response
	default:
		return "(pattern)"
	}
}
