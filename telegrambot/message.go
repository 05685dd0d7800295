package telegrambot

import "strings"

// ContentKind classifies what a message carries.
type ContentKind string

const (
	ContentText            ContentKind = "text"
	ContentCommand         ContentKind = "command"
	ContentPhoto           ContentKind = "photo"
	ContentVideo           ContentKind = "video"
	ContentAnimation       ContentKind = "animation"
	ContentAudio           ContentKind = "audio"
	ContentDocument        ContentKind = "document"
	ContentSticker         ContentKind = "sticker"
	ContentVoice           ContentKind = "voice"
	ContentVideoNote       ContentKind = "video_note"
	ContentContact         ContentKind = "contact"
	ContentLocation        ContentKind = "location"
	ContentVenue           ContentKind = "venue"
	ContentPoll            ContentKind = "poll"
	ContentDice            ContentKind = "dice"
	ContentNewChatMembers  ContentKind = "new_chat_members"
	ContentLeftChatMember  ContentKind = "left_chat_member"
	ContentNewChatTitle    ContentKind = "new_chat_title"
	ContentNewChatPhoto    ContentKind = "new_chat_photo"
	ContentDeleteChatPhoto ContentKind = "delete_chat_photo"
	ContentPinnedMessage   ContentKind = "pinned_message"
	ContentMigrate         ContentKind = "migrate"
	ContentUnknown         ContentKind = "unknown"
)

// contentKinds is checked in order, the first match wins. Animations also
// carry a document and venues also carry a location, so they come first.
var contentKinds = []struct {
	kind  ContentKind
	match func(m *Message) bool
}{
	{ContentCommand, func(m *Message) bool { return m.IsCommand() }},
	{ContentText, func(m *Message) bool { return m.Text != "" }},
	{ContentPhoto, func(m *Message) bool { return len(m.Photo) > 0 }},
	{ContentVideo, func(m *Message) bool { return m.Video != nil }},
	{ContentAnimation, func(m *Message) bool { return m.Animation != nil }},
	{ContentAudio, func(m *Message) bool { return m.Audio != nil }},
	{ContentDocument, func(m *Message) bool { return m.Document != nil }},
	{ContentSticker, func(m *Message) bool { return m.Sticker != nil }},
	{ContentVoice, func(m *Message) bool { return m.Voice != nil }},
	{ContentVideoNote, func(m *Message) bool { return m.VideoNote != nil }},
	{ContentContact, func(m *Message) bool { return m.Contact != nil }},
	{ContentVenue, func(m *Message) bool { return m.Venue != nil }},
	{ContentLocation, func(m *Message) bool { return m.Location != nil }},
	{ContentPoll, func(m *Message) bool { return m.Poll != nil }},
	{ContentDice, func(m *Message) bool { return m.Dice != nil }},
	{ContentNewChatMembers, func(m *Message) bool { return len(m.NewChatMembers) > 0 }},
	{ContentLeftChatMember, func(m *Message) bool { return m.LeftChatMember != nil }},
	{ContentNewChatTitle, func(m *Message) bool { return m.NewChatTitle != "" }},
	{ContentNewChatPhoto, func(m *Message) bool { return len(m.NewChatPhoto) > 0 }},
	{ContentDeleteChatPhoto, func(m *Message) bool { return m.DeleteChatPhoto }},
	{ContentPinnedMessage, func(m *Message) bool { return m.PinnedMessage != nil }},
	{ContentMigrate, func(m *Message) bool { return m.MigrateToChatID != 0 || m.MigrateFromChatID != 0 }},
}

// Content returns the kind of content the message carries.
func (m *Message) Content() ContentKind {
	for _, ck := range contentKinds {
		if ck.match(m) {
			return ck.kind
		}
	}
	return ContentUnknown
}

// IsCommand reports whether the message text starts with a bot command.
func (m *Message) IsCommand() bool {
	_, _, ok := m.Command()
	return ok
}

// Command splits a "/name@bot args" message into the command name (without
// slash or bot mention) and the trimmed arguments.
func (m *Message) Command() (name, args string, ok bool) {
	if len(m.Entities) == 0 {
		return "", "", false
	}
	e := m.Entities[0]
	// Commands are ASCII, so the UTF-16 length equals the byte length.
	if e.Type != EntityBotCommand || e.Offset != 0 || e.Length < 2 || e.Length > len(m.Text) {
		return "", "", false
	}

	name, _, _ = strings.Cut(m.Text[1:e.Length], "@")
	return name, strings.TrimSpace(m.Text[e.Length:]), true
}

// Sender returns the user who sent the message, if any.
func (m *Message) Sender() *User {
	return m.From
}

// Ref addresses the message for replies, edits and deletes.
func (m *Message) Ref() MessageRef {
	if m == nil || m.Chat == nil {
		return MessageRef{}
	}
	return MessageRef{ChatID: ChatIDInt(m.Chat.ID), MessageID: m.MessageID}
}
