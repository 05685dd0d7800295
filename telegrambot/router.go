package telegrambot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// Route tags. Message routes are "<source>:<content>", e.g. "message:photo";
// commands are "command:<name>".
const (
	RouteAny       = "*"
	RouteUnhandled = "unhandled"
	routeCommand   = "command:"
)

// MessageRoute returns the tag of messages from source with the given content.
func MessageRoute(source string, content ContentKind) string {
	return source + ":" + string(content)
}

// Router is the handler registry. Every update goes to the most specific
// matching handler, or to the RouteAny handler when nothing matched.
// Handlers run in their own goroutines; a panic is recovered and logged.
//
// Register everything before the Router is handed to a Poller or webhook:
// registration after Freeze panics with ErrRouterFrozen.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	routes   map[string]Handler
	commands []BotCommand
	frozen   atomic.Bool

	inflight sync.WaitGroup
}

// NewRouter creates an empty router. A nil logger uses slog.Default().
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger: logger,
		routes: make(map[string]Handler),
	}
}

// Handle registers h for a route tag, replacing any earlier handler.
func (r *Router) Handle(tag string, h Handler) {
	if r.frozen.Load() {
		panic(ErrRouterFrozen)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[tag] = h
}

// Freeze forbids further registration.
func (r *Router) Freeze() {
	r.frozen.Store(true)
}

// Commands returns the commands registered with a description, in
// registration order. The Poller publishes them with setMyCommands.
func (r *Router) Commands() []BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BotCommand, len(r.commands))
	copy(out, r.commands)
	return out
}

// typed adapts a handler for one variant. Any other variant is an error.
func typed[T Update](h func(ctx context.Context, u T) error) Handler {
	return HandlerFunc(func(ctx context.Context, u Update) error {
		v, ok := u.(T)
		if !ok {
			return fmt.Errorf("handler expects %T, got %T", v, u)
		}
		return h(ctx, v)
	})
}

// OnCommand registers h for "/name". A non-empty description adds the
// command to the bot menu.
func (r *Router) OnCommand(name, description string, h func(ctx context.Context, u *MessageUpdate) error) {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	r.Handle(routeCommand+name, typed(h))
	if description == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, BotCommand{Command: name, Description: description})
}

func (r *Router) OnText(h func(ctx context.Context, u *MessageUpdate) error) {
	r.Handle(MessageRoute(KindMessage, ContentText), typed(h))
}

func (r *Router) OnEditedText(h func(ctx context.Context, u *MessageUpdate) error) {
	r.Handle(MessageRoute(KindEditedMessage, ContentText), typed(h))
}

func (r *Router) OnPhoto(h func(ctx context.Context, u *MessageUpdate) error) {
	r.Handle(MessageRoute(KindMessage, ContentPhoto), typed(h))
}

func (r *Router) OnDocument(h func(ctx context.Context, u *MessageUpdate) error) {
	r.Handle(MessageRoute(KindMessage, ContentDocument), typed(h))
}

// OnMessage receives new messages no more specific route matched.
func (r *Router) OnMessage(h func(ctx context.Context, u *MessageUpdate) error) {
	r.Handle(KindMessage, typed(h))
}

func (r *Router) OnCallbackQuery(h func(ctx context.Context, u *CallbackQueryUpdate) error) {
	r.Handle(KindCallbackQuery, typed(h))
}

func (r *Router) OnInlineQuery(h func(ctx context.Context, u *InlineQueryUpdate) error) {
	r.Handle(KindInlineQuery, typed(h))
}

func (r *Router) OnPoll(h func(ctx context.Context, u *PollUpdate) error) {
	r.Handle(KindPoll, typed(h))
}

func (r *Router) OnPollAnswer(h func(ctx context.Context, u *PollAnswerUpdate) error) {
	r.Handle(KindPollAnswer, typed(h))
}

func (r *Router) OnChatMember(h func(ctx context.Context, u *ChatMemberUpdate) error) {
	r.Handle(KindChatMember, typed(h))
}

func (r *Router) OnMyChatMember(h func(ctx context.Context, u *ChatMemberUpdate) error) {
	r.Handle(KindMyChatMember, typed(h))
}

func (r *Router) OnChatJoinRequest(h func(ctx context.Context, u *ChatJoinRequestUpdate) error) {
	r.Handle(KindChatJoinRequest, typed(h))
}

func (r *Router) OnReaction(h func(ctx context.Context, u *MessageReactionUpdate) error) {
	r.Handle(KindMessageReaction, typed(h))
}

// OnUnhandled receives recognized kinds that have no typed variant.
func (r *Router) OnUnhandled(h func(ctx context.Context, u *UnhandledUpdate) error) {
	r.Handle(RouteUnhandled, typed(h))
}

// OnAny receives every update no other route matched.
func (r *Router) OnAny(h Handler) {
	r.Handle(RouteAny, h)
}

// candidates lists route tags from most to least specific.
func candidates(u Update) []string {
	switch v := u.(type) {
	case *MessageUpdate:
		var tags []string
		if name, _, ok := v.Message.Command(); ok && !v.Edited() {
			tags = append(tags, routeCommand+strings.ToLower(name))
		}
		return append(tags, MessageRoute(v.Source, v.Message.Content()), v.Source, RouteAny)
	case *UnhandledUpdate:
		return []string{v.Field, RouteUnhandled, RouteAny}
	default:
		return []string{u.Kind(), RouteAny}
	}
}

func (r *Router) resolve(u Update) (string, Handler) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tag := range candidates(u) {
		if h, ok := r.routes[tag]; ok {
			return tag, h
		}
	}
	return "", nil
}

// Dispatch implements Dispatcher. It never blocks on the handler.
func (r *Router) Dispatch(ctx context.Context, u Update) {
	tag, h := r.resolve(u)
	if h == nil {
		r.logger.Debug("no handler for update",
			"update_id", u.UpdateID(),
			"kind", u.Kind(),
		)
		return
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("handler panicked",
					"update_id", u.UpdateID(),
					"route", tag,
					"panic", p,
					"stack", string(debug.Stack()),
				)
			}
		}()

		if err := h.HandleUpdate(ctx, u); err != nil {
			r.logger.Error("handler failed",
				"update_id", u.UpdateID(),
				"route", tag,
				"error", err,
			)
		}
	}()
}

// Wait blocks until all running handlers have returned.
func (r *Router) Wait() {
	r.inflight.Wait()
}
