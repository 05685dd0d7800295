package telegrambot

import (
	"encoding/json"
	"slices"
	"strings"
)

// Payload field names of an update object.
// See https://core.telegram.org/bots/api#update
const (
	KindMessage               = "message"
	KindEditedMessage         = "edited_message"
	KindChannelPost           = "channel_post"
	KindEditedChannelPost     = "edited_channel_post"
	KindBusinessMessage       = "business_message"
	KindEditedBusinessMessage = "edited_business_message"
	KindCallbackQuery         = "callback_query"
	KindInlineQuery           = "inline_query"
	KindChosenInlineResult    = "chosen_inline_result"
	KindShippingQuery         = "shipping_query"
	KindPreCheckoutQuery      = "pre_checkout_query"
	KindPoll                  = "poll"
	KindPollAnswer            = "poll_answer"
	KindMyChatMember          = "my_chat_member"
	KindChatMember            = "chat_member"
	KindChatJoinRequest       = "chat_join_request"
	KindMessageReaction       = "message_reaction"

	KindMessageReactionCount    = "message_reaction_count"
	KindBusinessConnection      = "business_connection"
	KindDeletedBusinessMessages = "deleted_business_messages"
	KindChatBoost               = "chat_boost"
	KindRemovedChatBoost        = "removed_chat_boost"
	KindPurchasedPaidMedia      = "purchased_paid_media"
)

// Update is one inbound event. The set of implementations is closed: use a
// type switch over the *XxxUpdate types of this package.
type Update interface {
	// UpdateID is the sequence number Telegram assigned to the update.
	UpdateID() int64
	// Kind is the payload field the update was decoded from.
	Kind() string

	isUpdate()
}

// MessageUpdate carries a new or edited message, channel post or business
// message. Source tells which.
type MessageUpdate struct {
	ID      int64
	Source  string
	Message *Message
}

func (u *MessageUpdate) UpdateID() int64 { return u.ID }
func (u *MessageUpdate) Kind() string    { return u.Source }
func (*MessageUpdate) isUpdate()         {}

// Edited reports whether the update is an edit of an earlier message.
func (u *MessageUpdate) Edited() bool {
	switch u.Source {
	case KindEditedMessage, KindEditedChannelPost, KindEditedBusinessMessage:
		return true
	}
	return false
}

// CallbackQueryUpdate carries a press on an inline keyboard button.
type CallbackQueryUpdate struct {
	ID    int64
	Query *CallbackQuery
}

func (u *CallbackQueryUpdate) UpdateID() int64 { return u.ID }
func (u *CallbackQueryUpdate) Kind() string    { return KindCallbackQuery }
func (*CallbackQueryUpdate) isUpdate()         {}

type InlineQueryUpdate struct {
	ID    int64
	Query *InlineQuery
}

func (u *InlineQueryUpdate) UpdateID() int64 { return u.ID }
func (u *InlineQueryUpdate) Kind() string    { return KindInlineQuery }
func (*InlineQueryUpdate) isUpdate()         {}

type ChosenInlineResultUpdate struct {
	ID     int64
	Result *ChosenInlineResult
}

func (u *ChosenInlineResultUpdate) UpdateID() int64 { return u.ID }
func (u *ChosenInlineResultUpdate) Kind() string    { return KindChosenInlineResult }
func (*ChosenInlineResultUpdate) isUpdate()         {}

type ShippingQueryUpdate struct {
	ID    int64
	Query *ShippingQuery
}

func (u *ShippingQueryUpdate) UpdateID() int64 { return u.ID }
func (u *ShippingQueryUpdate) Kind() string    { return KindShippingQuery }
func (*ShippingQueryUpdate) isUpdate()         {}

type PreCheckoutQueryUpdate struct {
	ID    int64
	Query *PreCheckoutQuery
}

func (u *PreCheckoutQueryUpdate) UpdateID() int64 { return u.ID }
func (u *PreCheckoutQueryUpdate) Kind() string    { return KindPreCheckoutQuery }
func (*PreCheckoutQueryUpdate) isUpdate()         {}

// PollUpdate carries a new state of a poll the bot sent or a stopped poll.
type PollUpdate struct {
	ID   int64
	Poll *Poll
}

func (u *PollUpdate) UpdateID() int64 { return u.ID }
func (u *PollUpdate) Kind() string    { return KindPoll }
func (*PollUpdate) isUpdate()         {}

type PollAnswerUpdate struct {
	ID     int64
	Answer *PollAnswer
}

func (u *PollAnswerUpdate) UpdateID() int64 { return u.ID }
func (u *PollAnswerUpdate) Kind() string    { return KindPollAnswer }
func (*PollAnswerUpdate) isUpdate()         {}

// ChatMemberUpdate reports a member status change. Mine is set for changes
// of the bot's own status (my_chat_member).
type ChatMemberUpdate struct {
	ID     int64
	Mine   bool
	Change *ChatMemberUpdated
}

func (u *ChatMemberUpdate) UpdateID() int64 { return u.ID }
func (u *ChatMemberUpdate) Kind() string {
	if u.Mine {
		return KindMyChatMember
	}
	return KindChatMember
}
func (*ChatMemberUpdate) isUpdate() {}

type ChatJoinRequestUpdate struct {
	ID      int64
	Request *ChatJoinRequest
}

func (u *ChatJoinRequestUpdate) UpdateID() int64 { return u.ID }
func (u *ChatJoinRequestUpdate) Kind() string    { return KindChatJoinRequest }
func (*ChatJoinRequestUpdate) isUpdate()         {}

type MessageReactionUpdate struct {
	ID       int64
	Reaction *MessageReactionUpdated
}

func (u *MessageReactionUpdate) UpdateID() int64 { return u.ID }
func (u *MessageReactionUpdate) Kind() string    { return KindMessageReaction }
func (*MessageReactionUpdate) isUpdate()         {}

// UnhandledUpdate carries a payload kind that is recognized but has no typed
// variant. Payload is the raw JSON value of the field.
type UnhandledUpdate struct {
	ID      int64
	Field   string
	Payload json.RawMessage
}

func (u *UnhandledUpdate) UpdateID() int64 { return u.ID }
func (u *UnhandledUpdate) Kind() string    { return u.Field }
func (*UnhandledUpdate) isUpdate()         {}

// payloadDecoder maps the raw value of one payload field to a variant.
type payloadDecoder func(id int64, kind string, raw json.RawMessage) (Update, error)

// updateKinds is the declarative payload table. A field missing from it is
// an unknown kind.
var updateKinds = map[string]payloadDecoder{
	KindMessage:               payloadOf(newMessageUpdate),
	KindEditedMessage:         payloadOf(newMessageUpdate),
	KindChannelPost:           payloadOf(newMessageUpdate),
	KindEditedChannelPost:     payloadOf(newMessageUpdate),
	KindBusinessMessage:       payloadOf(newMessageUpdate),
	KindEditedBusinessMessage: payloadOf(newMessageUpdate),

	KindCallbackQuery: payloadOf(func(id int64, _ string, v *CallbackQuery) Update {
		return &CallbackQueryUpdate{ID: id, Query: v}
	}),
	KindInlineQuery: payloadOf(func(id int64, _ string, v *InlineQuery) Update {
		return &InlineQueryUpdate{ID: id, Query: v}
	}),
	KindChosenInlineResult: payloadOf(func(id int64, _ string, v *ChosenInlineResult) Update {
		return &ChosenInlineResultUpdate{ID: id, Result: v}
	}),
	KindShippingQuery: payloadOf(func(id int64, _ string, v *ShippingQuery) Update {
		return &ShippingQueryUpdate{ID: id, Query: v}
	}),
	KindPreCheckoutQuery: payloadOf(func(id int64, _ string, v *PreCheckoutQuery) Update {
		return &PreCheckoutQueryUpdate{ID: id, Query: v}
	}),
	KindPoll: payloadOf(func(id int64, _ string, v *Poll) Update {
		return &PollUpdate{ID: id, Poll: v}
	}),
	KindPollAnswer: payloadOf(func(id int64, _ string, v *PollAnswer) Update {
		return &PollAnswerUpdate{ID: id, Answer: v}
	}),
	KindMyChatMember: payloadOf(newChatMemberUpdate),
	KindChatMember:   payloadOf(newChatMemberUpdate),
	KindChatJoinRequest: payloadOf(func(id int64, _ string, v *ChatJoinRequest) Update {
		return &ChatJoinRequestUpdate{ID: id, Request: v}
	}),
	KindMessageReaction: payloadOf(func(id int64, _ string, v *MessageReactionUpdated) Update {
		return &MessageReactionUpdate{ID: id, Reaction: v}
	}),

	KindMessageReactionCount:    decodeUnhandled,
	KindBusinessConnection:      decodeUnhandled,
	KindDeletedBusinessMessages: decodeUnhandled,
	KindChatBoost:               decodeUnhandled,
	KindRemovedChatBoost:        decodeUnhandled,
	KindPurchasedPaidMedia:      decodeUnhandled,
}

// KnownKinds returns every payload field the decoder recognizes, sorted.
// Useful as allowed_updates.
func KnownKinds() []string {
	kinds := make([]string, 0, len(updateKinds))
	for k := range updateKinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func payloadOf[T any](build func(id int64, kind string, v *T) Update) payloadDecoder {
	return func(id int64, kind string, raw json.RawMessage) (Update, error) {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, err
		}
		if err := validateStruct(v); err != nil {
			return nil, err
		}
		return build(id, kind, v), nil
	}
}

func newMessageUpdate(id int64, kind string, m *Message) Update {
	return &MessageUpdate{ID: id, Source: kind, Message: m}
}

func newChatMemberUpdate(id int64, kind string, c *ChatMemberUpdated) Update {
	return &ChatMemberUpdate{ID: id, Mine: kind == KindMyChatMember, Change: c}
}

func decodeUnhandled(id int64, kind string, raw json.RawMessage) (Update, error) {
	return &UnhandledUpdate{ID: id, Field: kind, Payload: raw}, nil
}

// DecodeUpdate maps one element of a getUpdates result (or a webhook body)
// to exactly one Update variant. Every failure is a *DecodeError; unknown
// extra fields next to a single known payload are ignored.
func DecodeUpdate(raw json.RawMessage) (Update, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}

	var id int64
	idRaw, ok := fields["update_id"]
	if !ok || string(idRaw) == "null" || json.Unmarshal(idRaw, &id) != nil {
		return nil, &DecodeError{Raw: raw, Err: ErrMissingUpdateID}
	}
	delete(fields, "update_id")

	var known, unknown []string
	for key := range fields {
		if _, ok := updateKinds[key]; ok {
			known = append(known, key)
		} else {
			unknown = append(unknown, key)
		}
	}

	switch {
	case len(known) == 1:
	case len(known) > 1:
		slices.Sort(known)
		return nil, &DecodeError{UpdateID: id, HasID: true, Kind: strings.Join(known, ","), Raw: raw, Err: ErrMultiplePayloads}
	case len(unknown) > 0:
		slices.Sort(unknown)
		return nil, &DecodeError{UpdateID: id, HasID: true, Kind: unknown[0], Raw: raw, Err: ErrUnknownKind}
	default:
		return nil, &DecodeError{UpdateID: id, HasID: true, Raw: raw, Err: ErrNoPayload}
	}

	kind := known[0]
	update, err := updateKinds[kind](id, kind, fields[kind])
	if err != nil {
		return nil, &DecodeError{UpdateID: id, HasID: true, Kind: kind, Raw: raw, Err: err}
	}
	return update, nil
}

// DecodeUpdates decodes a batch in order. Updates that fail to decode are
// returned separately and do not stop the rest of the batch.
func DecodeUpdates(raws []json.RawMessage) ([]Update, []*DecodeError) {
	updates := make([]Update, 0, len(raws))
	var failures []*DecodeError
	for _, raw := range raws {
		u, err := DecodeUpdate(raw)
		if err != nil {
			failures = append(failures, err.(*DecodeError))
			continue
		}
		updates = append(updates, u)
	}
	return updates, failures
}
