package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prilive-com/telegrambot/internal/triggers"
	"github.com/prilive-com/telegrambot/telegrambot"
)

// triggerBot answers text messages that match stored triggers and lets chat
// members manage the triggers of their chat.
type triggerBot struct {
	client *telegrambot.Client
	store  triggers.Store
}

func newTriggerBot(client *telegrambot.Client, store triggers.Store) *triggerBot {
	return &triggerBot{client: client, store: store}
}

// Register installs the bot's handlers. Must be called before the router
// starts.
func (b *triggerBot) Register(r *telegrambot.Router) {
	r.OnCommand("trigger", "Add a trigger to this chat, reply to a message to forward it", b.add)
	r.OnCommand("triggers", "List the triggers of this chat", b.list)
	r.OnCommand("untrigger", "Delete one of this chat's triggers by id", b.remove)
	r.OnText(b.match)
}

func (b *triggerBot) add(ctx context.Context, u *telegrambot.MessageUpdate) error {
	_, pattern, _ := u.Message.Command()
	if pattern == "" {
		_, err := b.client.Reply(ctx, u, "Usage: /trigger <regex>")
		return err
	}

	chatID := u.Message.Chat.ID
	t := triggers.Trigger{Pattern: pattern, ChatID: &chatID}
	if reply := u.Message.ReplyToMessage; reply != nil {
		t.MessageID = &reply.MessageID
	}

	t, err := b.store.Add(ctx, t)
	var text string
	switch {
	case errors.Is(err, triggers.ErrDuplicate):
		text = "That trigger already exists."
	case errors.Is(err, triggers.ErrInvalidPattern):
		text = "Invalid pattern: " + err.Error()
	case err != nil:
		return err
	default:
		text = fmt.Sprintf("Trigger %d added.", t.ID)
	}
	_, err = b.client.Reply(ctx, u, text)
	return err
}

func (b *triggerBot) list(ctx context.Context, u *telegrambot.MessageUpdate) error {
	list, err := b.store.List(ctx, u.Message.Chat.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		_, err = b.client.Reply(ctx, u, "No triggers.")
		return err
	}

	var sb strings.Builder
	for _, t := range list {
		fmt.Fprintf(&sb, "#%d %s", t.ID, t.Pattern)
		if t.Global() {
			sb.WriteString(" (global)")
		}
		sb.WriteByte('\n')
	}
	_, err = b.client.Reply(ctx, u, strings.TrimSuffix(sb.String(), "\n"))
	return err
}

func (b *triggerBot) remove(ctx context.Context, u *telegrambot.MessageUpdate) error {
	_, arg, _ := u.Message.Command()
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil {
		_, err = b.client.Reply(ctx, u, "Usage: /untrigger <id>")
		return err
	}

	// Global triggers and other chats' triggers are not deletable from here.
	list, err := b.store.List(ctx, u.Message.Chat.ID)
	if err != nil {
		return err
	}
	owned := false
	for _, t := range list {
		if t.ID == id && !t.Global() {
			owned = true
			break
		}
	}

	text := fmt.Sprintf("Trigger %d deleted.", id)
	if !owned {
		text = fmt.Sprintf("No trigger %d in this chat.", id)
	} else if err := b.store.Delete(ctx, id); err != nil {
		return err
	}
	_, err = b.client.Reply(ctx, u, text)
	return err
}

func (b *triggerBot) match(ctx context.Context, u *telegrambot.MessageUpdate) error {
	chatID := u.Message.Chat.ID
	matched, err := b.store.Match(ctx, chatID, u.Message.Text)
	if err != nil || len(matched) == 0 {
		return err
	}

	var replies []string
	var errs []error
	for _, t := range matched {
		if t.MessageID != nil {
			src := storedMessage{ChatID: telegrambot.ChatIDInt(*t.ChatID), MessageID: *t.MessageID}
			if _, err := b.client.Forward(ctx, src, telegrambot.ChatIDInt(chatID)); err != nil {
				errs = append(errs, fmt.Errorf("trigger %d: %w", t.ID, err))
			}
			continue
		}
		if t.Response != "" {
			replies = append(replies, t.Response)
		} else {
			replies = append(replies, t.Pattern)
		}
	}
	if len(replies) > 0 {
		if _, err := b.client.Reply(ctx, u, strings.Join(replies, "\n")); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// storedMessage is a message saved with a trigger.
type storedMessage telegrambot.MessageRef

func (m storedMessage) ForwardSource() telegrambot.MessageRef {
	return telegrambot.MessageRef(m)
}
