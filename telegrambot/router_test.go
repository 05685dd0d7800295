package telegrambot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func commandUpdate(id int64, source, text string, cmdLen int) *MessageUpdate {
	return &MessageUpdate{ID: id, Source: source, Message: &Message{
		MessageID: id,
		Chat:      &Chat{ID: 1, Type: ChatPrivate},
		Text:      text,
		Entities:  []MessageEntity{{Type: EntityBotCommand, Offset: 0, Length: cmdLen}},
	}}
}

// routeRecorder records which named handler saw an update.
type routeRecorder struct {
	mu   sync.Mutex
	hits map[int64]string
}

func (rr *routeRecorder) message(name string) func(context.Context, *MessageUpdate) error {
	return func(_ context.Context, u *MessageUpdate) error {
		rr.record(u.UpdateID(), name)
		return nil
	}
}

func (rr *routeRecorder) handler(name string) Handler {
	return HandlerFunc(func(_ context.Context, u Update) error {
		rr.record(u.UpdateID(), name)
		return nil
	})
}

func (rr *routeRecorder) record(id int64, name string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.hits[id] = name
}

func TestRouter_Resolution(t *testing.T) {
	router := NewRouter(newTestLogger())
	rr := &routeRecorder{hits: map[int64]string{}}

	router.OnCommand("/Start", "Start the bot", rr.message("start"))
	router.OnText(rr.message("text"))
	router.OnEditedText(rr.message("edited"))
	router.OnMessage(rr.message("message"))
	router.OnCallbackQuery(func(_ context.Context, u *CallbackQueryUpdate) error {
		rr.record(u.UpdateID(), "callback")
		return nil
	})
	router.Handle(KindChatBoost, rr.handler("boost"))
	router.OnUnhandled(func(_ context.Context, u *UnhandledUpdate) error {
		rr.record(u.UpdateID(), "unhandled")
		return nil
	})
	router.OnAny(rr.handler("any"))

	updates := []struct {
		update Update
		want   string
	}{
		{commandUpdate(1, KindMessage, "/start", 6), "start"},
		{commandUpdate(2, KindMessage, "/START@bot now", 10), "start"},
		{commandUpdate(3, KindMessage, "/unknown", 8), "message"},
		{commandUpdate(4, KindEditedMessage, "/start", 6), "any"},
		{&MessageUpdate{ID: 5, Source: KindMessage, Message: &Message{Text: "hi"}}, "text"},
		{&MessageUpdate{ID: 6, Source: KindEditedMessage, Message: &Message{Text: "hi"}}, "edited"},
		{&MessageUpdate{ID: 7, Source: KindMessage, Message: &Message{Sticker: &Sticker{}}}, "message"},
		{&MessageUpdate{ID: 8, Source: KindChannelPost, Message: &Message{Text: "news"}}, "any"},
		{&CallbackQueryUpdate{ID: 9, Query: &CallbackQuery{ID: "q"}}, "callback"},
		{&UnhandledUpdate{ID: 10, Field: KindChatBoost}, "boost"},
		{&UnhandledUpdate{ID: 11, Field: KindRemovedChatBoost}, "unhandled"},
		{&PollUpdate{ID: 12, Poll: &Poll{ID: "p"}}, "any"},
	}

	for _, u := range updates {
		router.Dispatch(context.Background(), u.update)
	}
	router.Wait()

	for _, u := range updates {
		if got := rr.hits[u.update.UpdateID()]; got != u.want {
			t.Errorf("update %d routed to %q, want %q", u.update.UpdateID(), got, u.want)
		}
	}
}

func TestRouter_NoHandler(t *testing.T) {
	router := NewRouter(newTestLogger())
	// Must not panic or block.
	router.Dispatch(context.Background(), &PollUpdate{ID: 1, Poll: &Poll{ID: "p"}})
	router.Wait()
}

func TestRouter_RecoversPanicsAndLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: &buf, mu: &mu}, nil))
	router := NewRouter(logger)

	router.OnText(func(context.Context, *MessageUpdate) error {
		panic("boom")
	})
	router.OnPoll(func(context.Context, *PollUpdate) error {
		return errors.New("handler exploded")
	})

	router.Dispatch(context.Background(), &MessageUpdate{ID: 1, Source: KindMessage, Message: &Message{Text: "x"}})
	router.Dispatch(context.Background(), &PollUpdate{ID: 2, Poll: &Poll{ID: "p"}})
	router.Wait()

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	if !strings.Contains(out, "handler panicked") || !strings.Contains(out, "boom") {
		t.Errorf("panic was not logged: %s", out)
	}
	if !strings.Contains(out, "handler exploded") {
		t.Errorf("handler error was not logged: %s", out)
	}
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestRouter_Commands(t *testing.T) {
	router := NewRouter(nil)
	noop := func(context.Context, *MessageUpdate) error { return nil }

	router.OnCommand("start", "Start the bot", noop)
	router.OnCommand("secret", "", noop)
	router.OnCommand("/Help", "Show help", noop)

	cmds := router.Commands()
	if len(cmds) != 2 || cmds[0].Command != "start" || cmds[1].Command != "help" {
		t.Fatalf("Commands() = %+v", cmds)
	}

	cmds[0].Command = "mutated"
	if router.Commands()[0].Command != "start" {
		t.Error("Commands() must return a copy")
	}
}

func TestRouter_FrozenPanics(t *testing.T) {
	router := NewRouter(nil)
	router.Freeze()

	defer func() {
		if r := recover(); r != ErrRouterFrozen {
			t.Errorf("expected ErrRouterFrozen panic, got %v", r)
		}
	}()
	router.OnText(func(context.Context, *MessageUpdate) error { return nil })
}

func TestMessageRoute(t *testing.T) {
	if got := MessageRoute(KindChannelPost, ContentPhoto); got != "channel_post:photo" {
		t.Errorf("MessageRoute() = %q", got)
	}
}
