package telegrambot

import "errors"

// MessageRef addresses one message in one chat. A zero MessageID means the
// chat itself.
type MessageRef struct {
	ChatID    ChatID
	MessageID int64
}

// IsZero reports whether the reference points nowhere.
func (r MessageRef) IsZero() bool {
	return r.ChatID.IsZero()
}

var errNoMessage = errors.New("update does not reference a message")

// Replyable is implemented by updates the bot can answer in a chat.
type Replyable interface {
	ReplyTarget() MessageRef
}

// Deletable is implemented by updates that carry a message the bot may delete.
type Deletable interface {
	DeleteTarget() MessageRef
}

// Pinnable is implemented by updates that carry a message the bot may pin.
type Pinnable interface {
	PinTarget() MessageRef
}

// Forwardable is implemented by updates that carry a message the bot may forward.
type Forwardable interface {
	ForwardSource() MessageRef
}

// CallbackAnswerable is implemented by updates that expect answerCallbackQuery.
type CallbackAnswerable interface {
	CallbackQueryID() string
}

var (
	_ Replyable   = (*MessageUpdate)(nil)
	_ Deletable   = (*MessageUpdate)(nil)
	_ Pinnable    = (*MessageUpdate)(nil)
	_ Forwardable = (*MessageUpdate)(nil)

	_ Replyable          = (*CallbackQueryUpdate)(nil)
	_ Deletable          = (*CallbackQueryUpdate)(nil)
	_ CallbackAnswerable = (*CallbackQueryUpdate)(nil)

	_ Replyable = (*MessageReactionUpdate)(nil)
	_ Pinnable  = (*MessageReactionUpdate)(nil)

	_ Replyable = (*ChatJoinRequestUpdate)(nil)
)

func (u *MessageUpdate) ReplyTarget() MessageRef   { return u.Message.Ref() }
func (u *MessageUpdate) DeleteTarget() MessageRef  { return u.Message.Ref() }
func (u *MessageUpdate) PinTarget() MessageRef     { return u.Message.Ref() }
func (u *MessageUpdate) ForwardSource() MessageRef { return u.Message.Ref() }

// ReplyTarget is the message that carried the button. It is zero for
// buttons on inline messages.
func (u *CallbackQueryUpdate) ReplyTarget() MessageRef  { return u.Query.Message.Ref() }
func (u *CallbackQueryUpdate) DeleteTarget() MessageRef { return u.Query.Message.Ref() }
func (u *CallbackQueryUpdate) CallbackQueryID() string  { return u.Query.ID }

func (u *MessageReactionUpdate) ReplyTarget() MessageRef { return u.reacted() }
func (u *MessageReactionUpdate) PinTarget() MessageRef   { return u.reacted() }

func (u *MessageReactionUpdate) reacted() MessageRef {
	return MessageRef{ChatID: ChatIDInt(u.Reaction.Chat.ID), MessageID: u.Reaction.MessageID}
}

// ReplyTarget is the private chat with the applicant.
func (u *ChatJoinRequestUpdate) ReplyTarget() MessageRef {
	return MessageRef{ChatID: ChatIDInt(u.Request.UserChatID)}
}
