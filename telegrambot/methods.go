package telegrambot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Parse modes for message text and captions.
const (
	ParseModeHTML       = "HTML"
	ParseModeMarkdownV2 = "MarkdownV2"
)

// ReplyParameters describes the message being replied to.
type ReplyParameters struct {
	MessageID                int64  `json:"message_id" validate:"required"`
	ChatID                   ChatID `json:"chat_id,omitzero"`
	AllowSendingWithoutReply bool   `json:"allow_sending_without_reply,omitempty"`
}

// InlineKeyboardButton is one button of an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text" validate:"required"`
	URL          string `json:"url,omitempty" validate:"omitempty,url"`
	CallbackData string `json:"callback_data,omitempty" validate:"omitempty,max=64"`
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard" validate:"dive,dive"`
}

// InlineKeyboard builds a markup from rows of buttons.
func InlineKeyboard(rows ...[]InlineKeyboardButton) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// BotCommandScope selects the users a command list applies to.
// See https://core.telegram.org/bots/api#botcommandscope
type BotCommandScope struct {
	Type   string `json:"type" validate:"required,oneof=default all_private_chats all_group_chats all_chat_administrators chat chat_administrators chat_member"`
	ChatID ChatID `json:"chat_id,omitzero"`
	UserID int64  `json:"user_id,omitempty"`
}

// GetUpdatesRequest is the body of getUpdates. A zero Offset is omitted.
type GetUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty" validate:"omitempty,gte=1,lte=100"`
	Timeout        int      `json:"timeout,omitempty" validate:"gte=0"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type SetMyCommandsRequest struct {
	Commands     []BotCommand     `json:"commands" validate:"max=100,dive"`
	Scope        *BotCommandScope `json:"scope,omitempty"`
	LanguageCode string           `json:"language_code,omitempty"`
}

// MyCommandsRequest selects the command list read or deleted by
// getMyCommands and deleteMyCommands.
type MyCommandsRequest struct {
	Scope        *BotCommandScope `json:"scope,omitempty"`
	LanguageCode string           `json:"language_code,omitempty"`
}

// SendMessageRequest sends a text message.
// See https://core.telegram.org/bots/api#sendmessage
type SendMessageRequest struct {
	ChatID               ChatID                `json:"chat_id" validate:"required"`
	BusinessConnectionID string                `json:"business_connection_id,omitempty"`
	MessageThreadID      int64                 `json:"message_thread_id,omitempty"`
	Text                 string                `json:"text" validate:"required,max=4096"`
	ParseMode            string                `json:"parse_mode,omitempty"`
	Entities             []MessageEntity       `json:"entities,omitempty"`
	DisableNotification  bool                  `json:"disable_notification,omitempty"`
	ProtectContent       bool                  `json:"protect_content,omitempty"`
	ReplyParameters      *ReplyParameters      `json:"reply_parameters,omitempty"`
	ReplyMarkup          *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendPhotoRequest sends a photo by upload, file id or URL.
type SendPhotoRequest struct {
	ChatID              ChatID                `json:"chat_id" validate:"required"`
	MessageThreadID     int64                 `json:"message_thread_id,omitempty"`
	Photo               *InputFile            `json:"photo" validate:"required"`
	Caption             string                `json:"caption,omitempty" validate:"max=1024"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	HasSpoiler          bool                  `json:"has_spoiler,omitempty"`
	DisableNotification bool                  `json:"disable_notification,omitempty"`
	ProtectContent      bool                  `json:"protect_content,omitempty"`
	ReplyParameters     *ReplyParameters      `json:"reply_parameters,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Files implements Uploader.
func (r *SendPhotoRequest) Files() []Attachment {
	return []Attachment{{Field: "photo", File: r.Photo}}
}

// SendDocumentRequest sends a general file.
type SendDocumentRequest struct {
	ChatID              ChatID                `json:"chat_id" validate:"required"`
	MessageThreadID     int64                 `json:"message_thread_id,omitempty"`
	Document            *InputFile            `json:"document" validate:"required"`
	Thumbnail           *InputFile            `json:"thumbnail,omitempty"`
	Caption             string                `json:"caption,omitempty" validate:"max=1024"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	DisableNotification bool                  `json:"disable_notification,omitempty"`
	ProtectContent      bool                  `json:"protect_content,omitempty"`
	ReplyParameters     *ReplyParameters      `json:"reply_parameters,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Files implements Uploader.
func (r *SendDocumentRequest) Files() []Attachment {
	return []Attachment{
		{Field: "document", File: r.Document},
		{Field: "thumbnail", File: r.Thumbnail},
	}
}

// InputMedia is one element of a media group or the new media of an edit.
// See https://core.telegram.org/bots/api#inputmedia
type InputMedia struct {
	Type      string     `json:"type" validate:"required,oneof=photo video document audio animation"`
	Media     *InputFile `json:"media" validate:"required"`
	Caption   string     `json:"caption,omitempty" validate:"max=1024"`
	ParseMode string     `json:"parse_mode,omitempty"`
}

// SendMediaGroupRequest sends 2 to 10 photos, videos, documents or audios as
// an album.
type SendMediaGroupRequest struct {
	ChatID              ChatID           `json:"chat_id" validate:"required"`
	MessageThreadID     int64            `json:"message_thread_id,omitempty"`
	Media               []InputMedia     `json:"media" validate:"min=2,max=10,dive"`
	DisableNotification bool             `json:"disable_notification,omitempty"`
	ProtectContent      bool             `json:"protect_content,omitempty"`
	ReplyParameters     *ReplyParameters `json:"reply_parameters,omitempty"`
}

// Files implements Uploader. Nested uploads are referenced from the JSON
// "media" part, so their markers must differ from top-level field names.
func (r *SendMediaGroupRequest) Files() []Attachment {
	files := make([]Attachment, 0, len(r.Media))
	for i, m := range r.Media {
		files = append(files, Attachment{Field: "file" + strconv.Itoa(i), File: m.Media})
	}
	return files
}

// EditMessageTextRequest edits a message sent by the bot, or an inline
// message when InlineMessageID is set.
type EditMessageTextRequest struct {
	ChatID          ChatID                `json:"chat_id,omitzero" validate:"required_without=InlineMessageID"`
	MessageID       int64                 `json:"message_id,omitempty" validate:"required_without=InlineMessageID"`
	InlineMessageID string                `json:"inline_message_id,omitempty"`
	Text            string                `json:"text" validate:"required,max=4096"`
	ParseMode       string                `json:"parse_mode,omitempty"`
	Entities        []MessageEntity       `json:"entities,omitempty"`
	ReplyMarkup     *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageMediaRequest replaces the media of a message.
type EditMessageMediaRequest struct {
	ChatID          ChatID                `json:"chat_id,omitzero" validate:"required_without=InlineMessageID"`
	MessageID       int64                 `json:"message_id,omitempty" validate:"required_without=InlineMessageID"`
	InlineMessageID string                `json:"inline_message_id,omitempty"`
	Media           InputMedia            `json:"media"`
	ReplyMarkup     *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Files implements Uploader.
func (r *EditMessageMediaRequest) Files() []Attachment {
	return []Attachment{{Field: "new_media", File: r.Media.Media}}
}

type ForwardMessageRequest struct {
	ChatID              ChatID `json:"chat_id" validate:"required"`
	MessageThreadID     int64  `json:"message_thread_id,omitempty"`
	FromChatID          ChatID `json:"from_chat_id" validate:"required"`
	MessageID           int64  `json:"message_id" validate:"required"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	ProtectContent      bool   `json:"protect_content,omitempty"`
}

type DeleteMessageRequest struct {
	ChatID    ChatID `json:"chat_id" validate:"required"`
	MessageID int64  `json:"message_id" validate:"required"`
}

type PinChatMessageRequest struct {
	ChatID              ChatID `json:"chat_id" validate:"required"`
	MessageID           int64  `json:"message_id" validate:"required"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

type AnswerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id" validate:"required"`
	Text            string `json:"text,omitempty" validate:"max=200"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
	URL             string `json:"url,omitempty" validate:"omitempty,url"`
	CacheTime       int    `json:"cache_time,omitempty" validate:"gte=0"`
}

// Chat actions for SendChatAction.
const (
	ActionTyping         = "typing"
	ActionUploadPhoto    = "upload_photo"
	ActionUploadDocument = "upload_document"
	ActionRecordVoice    = "record_voice"
)

type SendChatActionRequest struct {
	ChatID          ChatID `json:"chat_id" validate:"required"`
	MessageThreadID int64  `json:"message_thread_id,omitempty"`
	Action          string `json:"action" validate:"required,oneof=typing upload_photo record_video upload_video record_voice upload_voice upload_document choose_sticker find_location record_video_note upload_video_note"`
}

type GetFileRequest struct {
	FileID string `json:"file_id" validate:"required"`
}

// editResult is a Message for chat messages and true for inline messages.
type editResult struct {
	message *Message
}

func (r *editResult) UnmarshalJSON(data []byte) error {
	if string(data) == "true" {
		return nil
	}
	r.message = new(Message)
	return json.Unmarshal(data, r.message)
}

/* ---------- client methods ---------- */

// GetMe returns basic information about the bot.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	me, err := CallMethod[User](ctx, c, "getMe", nil)
	if err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates fetches one batch of raw updates. Use DecodeUpdate on each
// element, or let a Poller do both.
func (c *Client) GetUpdates(ctx context.Context, req *GetUpdatesRequest) ([]json.RawMessage, error) {
	return CallMethod[[]json.RawMessage](ctx, c, "getUpdates", req)
}

// SetMyCommands replaces the bot's command list for the given scope.
func (c *Client) SetMyCommands(ctx context.Context, req *SetMyCommandsRequest) error {
	if req.Commands == nil {
		req.Commands = []BotCommand{}
	}
	_, err := CallMethod[bool](ctx, c, "setMyCommands", req)
	return err
}

func (c *Client) GetMyCommands(ctx context.Context, req *MyCommandsRequest) ([]BotCommand, error) {
	return CallMethod[[]BotCommand](ctx, c, "getMyCommands", req)
}

func (c *Client) DeleteMyCommands(ctx context.Context, req *MyCommandsRequest) error {
	_, err := CallMethod[bool](ctx, c, "deleteMyCommands", req)
	return err
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*Message, error) {
	return callMessage(ctx, c, "sendMessage", req)
}

// SendPhoto sends a photo. Uploads are sent as multipart/form-data.
func (c *Client) SendPhoto(ctx context.Context, req *SendPhotoRequest) (*Message, error) {
	return callMessage(ctx, c, "sendPhoto", req)
}

// SendDocument sends a general file.
func (c *Client) SendDocument(ctx context.Context, req *SendDocumentRequest) (*Message, error) {
	return callMessage(ctx, c, "sendDocument", req)
}

// SendMediaGroup sends an album and returns its messages.
func (c *Client) SendMediaGroup(ctx context.Context, req *SendMediaGroupRequest) ([]Message, error) {
	return CallMethod[[]Message](ctx, c, "sendMediaGroup", req)
}

// EditMessageText edits the text of a message. The returned message is nil
// for inline messages.
func (c *Client) EditMessageText(ctx context.Context, req *EditMessageTextRequest) (*Message, error) {
	res, err := CallMethod[editResult](ctx, c, "editMessageText", req)
	return res.message, err
}

// EditMessageMedia replaces the media of a message. The returned message is
// nil for inline messages.
func (c *Client) EditMessageMedia(ctx context.Context, req *EditMessageMediaRequest) (*Message, error) {
	res, err := CallMethod[editResult](ctx, c, "editMessageMedia", req)
	return res.message, err
}

func (c *Client) ForwardMessage(ctx context.Context, req *ForwardMessageRequest) (*Message, error) {
	return callMessage(ctx, c, "forwardMessage", req)
}

func (c *Client) DeleteMessage(ctx context.Context, req *DeleteMessageRequest) error {
	_, err := CallMethod[bool](ctx, c, "deleteMessage", req)
	return err
}

func (c *Client) PinChatMessage(ctx context.Context, req *PinChatMessageRequest) error {
	_, err := CallMethod[bool](ctx, c, "pinChatMessage", req)
	return err
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, req *AnswerCallbackQueryRequest) error {
	_, err := CallMethod[bool](ctx, c, "answerCallbackQuery", req)
	return err
}

func (c *Client) SendChatAction(ctx context.Context, req *SendChatActionRequest) error {
	_, err := CallMethod[bool](ctx, c, "sendChatAction", req)
	return err
}

// GetFile prepares a file for download. The link is valid for at least an hour.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	f, err := CallMethod[File](ctx, c, "getFile", &GetFileRequest{FileID: fileID})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

var errNoDownloader = errors.New("transport cannot download files")

// DownloadFile fetches a file by the path returned from GetFile.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	d, ok := c.transport.(FileDownloader)
	if !ok {
		return nil, errNoDownloader
	}
	return d.Download(ctx, c.token, filePath)
}

// DownloadFileByID resolves fileID with GetFile and downloads it.
func (c *Client) DownloadFileByID(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("file %s has no download path", fileID)
	}
	return c.DownloadFile(ctx, f.FilePath)
}

func callMessage(ctx context.Context, c *Client, method string, req any) (*Message, error) {
	msg, err := CallMethod[Message](ctx, c, method, req)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

/* ---------- capability shortcuts ---------- */

// Reply sends text to the chat of target, quoting its message when there is one.
func (c *Client) Reply(ctx context.Context, target Replyable, text string) (*Message, error) {
	return c.ReplyWith(ctx, target, &SendMessageRequest{Text: text})
}

// ReplyWith fills the chat and reply parameters of req from target and sends it.
func (c *Client) ReplyWith(ctx context.Context, target Replyable, req *SendMessageRequest) (*Message, error) {
	ref := target.ReplyTarget()
	if ref.IsZero() {
		return nil, errNoMessage
	}
	req.ChatID = ref.ChatID
	if ref.MessageID != 0 && req.ReplyParameters == nil {
		req.ReplyParameters = &ReplyParameters{MessageID: ref.MessageID}
	}
	return c.SendMessage(ctx, req)
}

// Delete deletes the message carried by target.
func (c *Client) Delete(ctx context.Context, target Deletable) error {
	ref := target.DeleteTarget()
	if ref.IsZero() || ref.MessageID == 0 {
		return errNoMessage
	}
	return c.DeleteMessage(ctx, &DeleteMessageRequest{ChatID: ref.ChatID, MessageID: ref.MessageID})
}

// Pin pins the message carried by target in its chat.
func (c *Client) Pin(ctx context.Context, target Pinnable, silent bool) error {
	ref := target.PinTarget()
	if ref.IsZero() || ref.MessageID == 0 {
		return errNoMessage
	}
	return c.PinChatMessage(ctx, &PinChatMessageRequest{
		ChatID:              ref.ChatID,
		MessageID:           ref.MessageID,
		DisableNotification: silent,
	})
}

// Forward forwards the message carried by target to another chat.
func (c *Client) Forward(ctx context.Context, target Forwardable, to ChatID) (*Message, error) {
	ref := target.ForwardSource()
	if ref.IsZero() || ref.MessageID == 0 {
		return nil, errNoMessage
	}
	return c.ForwardMessage(ctx, &ForwardMessageRequest{
		ChatID:     to,
		FromChatID: ref.ChatID,
		MessageID:  ref.MessageID,
	})
}

// AnswerCallback acknowledges a button press, optionally with a notification.
func (c *Client) AnswerCallback(ctx context.Context, target CallbackAnswerable, text string, alert bool) error {
	return c.AnswerCallbackQuery(ctx, &AnswerCallbackQueryRequest{
		CallbackQueryID: target.CallbackQueryID(),
		Text:            text,
		ShowAlert:       alert,
	})
}
