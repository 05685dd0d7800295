package telegrambot

import (
	"encoding/json"
	"strconv"
)

// User represents a Telegram user or bot.
// See https://core.telegram.org/bots/api#user
type User struct {
	ID           int64  `json:"id" validate:"required"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`

	// Returned only in getMe.
	CanJoinGroups           bool `json:"can_join_groups,omitempty"`
	CanReadAllGroupMessages bool `json:"can_read_all_group_messages,omitempty"`
	SupportsInlineQueries   bool `json:"supports_inline_queries,omitempty"`
}

// Chat types.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Chat represents a Telegram chat.
// See https://core.telegram.org/bots/api#chat
type Chat struct {
	ID        int64  `json:"id" validate:"required"`
	Type      string `json:"type" validate:"required"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsForum   bool   `json:"is_forum,omitempty"`
}

// Message represents a Telegram message.
// See https://core.telegram.org/bots/api#message
type Message struct {
	MessageID            int64  `json:"message_id" validate:"required"`
	MessageThreadID      int64  `json:"message_thread_id,omitempty"`
	From                 *User  `json:"from,omitempty"`
	SenderChat           *Chat  `json:"sender_chat,omitempty"`
	Chat                 *Chat  `json:"chat" validate:"required"`
	Date                 int64  `json:"date"`
	EditDate             int64  `json:"edit_date,omitempty"`
	BusinessConnectionID string `json:"business_connection_id,omitempty"`
	MediaGroupID         string `json:"media_group_id,omitempty"`
	AuthorSignature      string `json:"author_signature,omitempty"`

	ReplyToMessage *Message `json:"reply_to_message,omitempty"`

	Text            string          `json:"text,omitempty"`
	Entities        []MessageEntity `json:"entities,omitempty"`
	Caption         string          `json:"caption,omitempty"`
	CaptionEntities []MessageEntity `json:"caption_entities,omitempty"`

	Photo     []PhotoSize `json:"photo,omitempty"`
	Video     *Video      `json:"video,omitempty"`
	Animation *Animation  `json:"animation,omitempty"`
	Audio     *Audio      `json:"audio,omitempty"`
	Document  *Document   `json:"document,omitempty"`
	Sticker   *Sticker    `json:"sticker,omitempty"`
	Voice     *Voice      `json:"voice,omitempty"`
	VideoNote *VideoNote  `json:"video_note,omitempty"`
	Contact   *Contact    `json:"contact,omitempty"`
	Location  *Location   `json:"location,omitempty"`
	Venue     *Venue      `json:"venue,omitempty"`
	Poll      *Poll       `json:"poll,omitempty"`
	Dice      *Dice       `json:"dice,omitempty"`

	NewChatMembers    []User      `json:"new_chat_members,omitempty"`
	LeftChatMember    *User       `json:"left_chat_member,omitempty"`
	NewChatTitle      string      `json:"new_chat_title,omitempty"`
	NewChatPhoto      []PhotoSize `json:"new_chat_photo,omitempty"`
	DeleteChatPhoto   bool        `json:"delete_chat_photo,omitempty"`
	PinnedMessage     *Message    `json:"pinned_message,omitempty"`
	MigrateToChatID   int64       `json:"migrate_to_chat_id,omitempty"`
	MigrateFromChatID int64       `json:"migrate_from_chat_id,omitempty"`
}

// Entity types used by the router.
const (
	EntityBotCommand = "bot_command"
	EntityMention    = "mention"
	EntityURL        = "url"
)

// MessageEntity represents a special entity in a text message (hashtag, URL, etc.).
// See https://core.telegram.org/bots/api#messageentity
type MessageEntity struct {
	Type     string `json:"type"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	URL      string `json:"url,omitempty"`
	User     *User  `json:"user,omitempty"`
	Language string `json:"language,omitempty"`
}

// PhotoSize represents one size of a photo or file/sticker thumbnail.
// See https://core.telegram.org/bots/api#photosize
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Document represents a general file.
// See https://core.telegram.org/bots/api#document
type Document struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id"`
	Thumbnail    *PhotoSize `json:"thumbnail,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
}

// Video represents a video file.
type Video struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     int    `json:"duration"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Animation represents a GIF or H.264/MPEG-4 AVC video without sound.
type Animation struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     int    `json:"duration"`
	FileName     string `json:"file_name,omitempty"`
}

// Audio represents an audio file to be treated as music.
type Audio struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Duration     int    `json:"duration"`
	Performer    string `json:"performer,omitempty"`
	Title        string `json:"title,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Sticker represents a sticker.
type Sticker struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Type         string `json:"type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Emoji        string `json:"emoji,omitempty"`
	SetName      string `json:"set_name,omitempty"`
}

// Voice represents a voice note.
type Voice struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Duration     int    `json:"duration"`
	MimeType     string `json:"mime_type,omitempty"`
}

// VideoNote represents a rounded video message.
type VideoNote struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Length       int    `json:"length"`
	Duration     int    `json:"duration"`
}

// Contact represents a phone contact.
// See https://core.telegram.org/bots/api#contact
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
	VCard       string `json:"vcard,omitempty"`
}

// Location represents a point on the map.
// See https://core.telegram.org/bots/api#location
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Venue represents a venue.
type Venue struct {
	Location Location `json:"location"`
	Title    string   `json:"title"`
	Address  string   `json:"address"`
}

// Poll contains information about a poll.
// See https://core.telegram.org/bots/api#poll
type Poll struct {
	ID                    string       `json:"id" validate:"required"`
	Question              string       `json:"question"`
	Options               []PollOption `json:"options"`
	TotalVoterCount       int          `json:"total_voter_count"`
	IsClosed              bool         `json:"is_closed"`
	IsAnonymous           bool         `json:"is_anonymous"`
	Type                  string       `json:"type"`
	AllowsMultipleAnswers bool         `json:"allows_multiple_answers"`
}

// PollOption contains information about one answer option in a poll.
type PollOption struct {
	Text       string `json:"text"`
	VoterCount int    `json:"voter_count"`
}

// PollAnswer represents an answer of a user in a non-anonymous poll.
type PollAnswer struct {
	PollID    string `json:"poll_id" validate:"required"`
	VoterChat *Chat  `json:"voter_chat,omitempty"`
	User      *User  `json:"user,omitempty"`
	OptionIDs []int  `json:"option_ids"`
}

// Dice represents an animated emoji that displays a random value.
type Dice struct {
	Emoji string `json:"emoji"`
	Value int    `json:"value"`
}

// CallbackQuery represents an incoming callback query from a callback button.
// See https://core.telegram.org/bots/api#callbackquery
type CallbackQuery struct {
	ID              string   `json:"id" validate:"required"`
	From            *User    `json:"from" validate:"required"`
	Message         *Message `json:"message,omitempty"`
	InlineMessageID string   `json:"inline_message_id,omitempty"`
	ChatInstance    string   `json:"chat_instance"`
	Data            string   `json:"data,omitempty"`
	GameShortName   string   `json:"game_short_name,omitempty"`
}

// InlineQuery represents an incoming inline query.
// See https://core.telegram.org/bots/api#inlinequery
type InlineQuery struct {
	ID       string    `json:"id" validate:"required"`
	From     *User     `json:"from" validate:"required"`
	Query    string    `json:"query"`
	Offset   string    `json:"offset"`
	ChatType string    `json:"chat_type,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// ChosenInlineResult is an inline result chosen by a user and sent to
// their chat partner.
type ChosenInlineResult struct {
	ResultID        string `json:"result_id" validate:"required"`
	From            *User  `json:"from" validate:"required"`
	InlineMessageID string `json:"inline_message_id,omitempty"`
	Query           string `json:"query"`
}

// ShippingAddress represents a shipping address.
type ShippingAddress struct {
	CountryCode string `json:"country_code"`
	State       string `json:"state"`
	City        string `json:"city"`
	StreetLine1 string `json:"street_line1"`
	StreetLine2 string `json:"street_line2"`
	PostCode    string `json:"post_code"`
}

// ShippingQuery contains information about an incoming shipping query.
type ShippingQuery struct {
	ID              string          `json:"id" validate:"required"`
	From            *User           `json:"from" validate:"required"`
	InvoicePayload  string          `json:"invoice_payload"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

// PreCheckoutQuery contains information about an incoming pre-checkout query.
type PreCheckoutQuery struct {
	ID               string `json:"id" validate:"required"`
	From             *User  `json:"from" validate:"required"`
	Currency         string `json:"currency"`
	TotalAmount      int    `json:"total_amount"`
	InvoicePayload   string `json:"invoice_payload"`
	ShippingOptionID string `json:"shipping_option_id,omitempty"`
}

// ChatMember holds the fields shared by all chat member statuses.
// See https://core.telegram.org/bots/api#chatmember
type ChatMember struct {
	Status      string `json:"status"`
	User        *User  `json:"user" validate:"required"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	CustomTitle string `json:"custom_title,omitempty"`
	UntilDate   int64  `json:"until_date,omitempty"`
}

// ChatInviteLink represents an invite link for a chat.
type ChatInviteLink struct {
	InviteLink string `json:"invite_link"`
	Creator    *User  `json:"creator,omitempty"`
	Name       string `json:"name,omitempty"`
	IsPrimary  bool   `json:"is_primary"`
	IsRevoked  bool   `json:"is_revoked"`
}

// ChatMemberUpdated represents changes in the status of a chat member.
type ChatMemberUpdated struct {
	Chat          *Chat           `json:"chat" validate:"required"`
	From          *User           `json:"from" validate:"required"`
	Date          int64           `json:"date"`
	OldChatMember ChatMember      `json:"old_chat_member"`
	NewChatMember ChatMember      `json:"new_chat_member"`
	InviteLink    *ChatInviteLink `json:"invite_link,omitempty"`
}

// ChatJoinRequest represents a join request sent to a chat.
type ChatJoinRequest struct {
	Chat       *Chat           `json:"chat" validate:"required"`
	From       *User           `json:"from" validate:"required"`
	UserChatID int64           `json:"user_chat_id"`
	Date       int64           `json:"date"`
	Bio        string          `json:"bio,omitempty"`
	InviteLink *ChatInviteLink `json:"invite_link,omitempty"`
}

// ReactionType describes a reaction: an emoji, a custom emoji or paid.
type ReactionType struct {
	Type          string `json:"type"`
	Emoji         string `json:"emoji,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

// MessageReactionUpdated represents a change of a reaction on a message
// performed by a user.
type MessageReactionUpdated struct {
	Chat        *Chat          `json:"chat" validate:"required"`
	MessageID   int64          `json:"message_id" validate:"required"`
	User        *User          `json:"user,omitempty"`
	ActorChat   *Chat          `json:"actor_chat,omitempty"`
	Date        int64          `json:"date"`
	OldReaction []ReactionType `json:"old_reaction"`
	NewReaction []ReactionType `json:"new_reaction"`
}

// BotCommand represents a bot command shown in the client menu.
type BotCommand struct {
	Command     string `json:"command" validate:"required,max=32"`
	Description string `json:"description" validate:"required,max=256"`
}

// File represents a file ready to be downloaded with DownloadFile.
// See https://core.telegram.org/bots/api#file
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// WebhookInfo contains information about the current status of a webhook.
// See https://core.telegram.org/bots/api#webhookinfo
type WebhookInfo struct {
	URL                          string   `json:"url"`
	HasCustomCertificate         bool     `json:"has_custom_certificate"`
	PendingUpdateCount           int      `json:"pending_update_count"`
	IPAddress                    string   `json:"ip_address,omitempty"`
	LastErrorDate                int64    `json:"last_error_date,omitempty"`
	LastErrorMessage             string   `json:"last_error_message,omitempty"`
	LastSynchronizationErrorDate int64    `json:"last_synchronization_error_date,omitempty"`
	MaxConnections               int      `json:"max_connections,omitempty"`
	AllowedUpdates               []string `json:"allowed_updates,omitempty"`
}

// ChatID addresses a chat either by numeric id or by @username of a public
// channel or supergroup. It encodes as a JSON number or string.
type ChatID struct {
	ID       int64
	Username string
}

// ChatIDInt addresses a chat by numeric id.
func ChatIDInt(id int64) ChatID {
	return ChatID{ID: id}
}

// ChatIDUsername addresses a public chat by its @username.
func ChatIDUsername(username string) ChatID {
	return ChatID{Username: username}
}

// IsZero reports whether no chat was set. Used by omitempty and validation.
func (c ChatID) IsZero() bool {
	return c.ID == 0 && c.Username == ""
}

func (c ChatID) String() string {
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// MarshalJSON implements json.Marshaler.
func (c ChatID) MarshalJSON() ([]byte, error) {
	if c.Username != "" {
		return json.Marshal(c.Username)
	}
	return []byte(strconv.FormatInt(c.ID, 10)), nil
}

// UnmarshalJSON accepts both a number and a string.
func (c *ChatID) UnmarshalJSON(data []byte) error {
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*c = ChatID{ID: id}
		return nil
	}
	var username string
	if err := json.Unmarshal(data, &username); err != nil {
		return err
	}
	*c = ChatID{Username: username}
	return nil
}
