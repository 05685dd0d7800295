package telegrambot

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

var (
	testChat = `{"id":-100,"type":"supergroup","title":"G"}`
	testUser = `{"id":7,"is_bot":false,"first_name":"Ann"}`
)

func TestDecodeUpdate_Variants(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind string
		check    func(t *testing.T, u Update)
	}{
		{
			name:     "message",
			raw:      `{"update_id":1,"message":{"message_id":10,"date":1,"chat":` + testChat + `,"text":"hi"}}`,
			wantKind: KindMessage,
			check: func(t *testing.T, u Update) {
				m := u.(*MessageUpdate)
				if m.Edited() || m.Message.Text != "hi" || m.Message.Chat.ID != -100 {
					t.Errorf("unexpected message update %+v", m.Message)
				}
			},
		},
		{
			name:     "edited channel post",
			raw:      `{"update_id":2,"edited_channel_post":{"message_id":11,"date":1,"chat":{"id":-5,"type":"channel"},"text":"x"}}`,
			wantKind: KindEditedChannelPost,
			check: func(t *testing.T, u Update) {
				if !u.(*MessageUpdate).Edited() {
					t.Error("expected Edited() for edited_channel_post")
				}
			},
		},
		{
			name:     "callback query",
			raw:      `{"update_id":3,"callback_query":{"id":"cb1","from":` + testUser + `,"chat_instance":"ci","data":"yes"}}`,
			wantKind: KindCallbackQuery,
			check: func(t *testing.T, u Update) {
				if cb := u.(*CallbackQueryUpdate); cb.Query.Data != "yes" || cb.CallbackQueryID() != "cb1" {
					t.Errorf("unexpected callback %+v", cb.Query)
				}
			},
		},
		{
			name:     "inline query",
			raw:      `{"update_id":4,"inline_query":{"id":"iq","from":` + testUser + `,"query":"cats","offset":""}}`,
			wantKind: KindInlineQuery,
		},
		{
			name:     "chosen inline result",
			raw:      `{"update_id":5,"chosen_inline_result":{"result_id":"r","from":` + testUser + `,"query":"q"}}`,
			wantKind: KindChosenInlineResult,
		},
		{
			name:     "poll",
			raw:      `{"update_id":6,"poll":{"id":"p","question":"?","options":[{"text":"a","voter_count":1}]}}`,
			wantKind: KindPoll,
		},
		{
			name:     "poll answer",
			raw:      `{"update_id":7,"poll_answer":{"poll_id":"p","user":` + testUser + `,"option_ids":[0]}}`,
			wantKind: KindPollAnswer,
		},
		{
			name: "my chat member",
			raw: `{"update_id":8,"my_chat_member":{"chat":` + testChat + `,"from":` + testUser + `,"date":1,` +
				`"old_chat_member":{"status":"left","user":` + testUser + `},"new_chat_member":{"status":"member","user":` + testUser + `}}}`,
			wantKind: KindMyChatMember,
			check: func(t *testing.T, u Update) {
				if !u.(*ChatMemberUpdate).Mine {
					t.Error("expected Mine for my_chat_member")
				}
			},
		},
		{
			name:     "chat join request",
			raw:      `{"update_id":9,"chat_join_request":{"chat":` + testChat + `,"from":` + testUser + `,"user_chat_id":7,"date":1}}`,
			wantKind: KindChatJoinRequest,
		},
		{
			name:     "message reaction",
			raw:      `{"update_id":10,"message_reaction":{"chat":` + testChat + `,"message_id":3,"date":1,"old_reaction":[],"new_reaction":[{"type":"emoji","emoji":"👍"}]}}`,
			wantKind: KindMessageReaction,
		},
		{
			name:     "recognized but unmapped kind",
			raw:      `{"update_id":11,"chat_boost":{"chat":` + testChat + `}}`,
			wantKind: KindChatBoost,
			check: func(t *testing.T, u Update) {
				un := u.(*UnhandledUpdate)
				if un.Field != KindChatBoost || !json.Valid(un.Payload) {
					t.Errorf("unexpected unhandled update %+v", un)
				}
			},
		},
		{
			name:     "unknown sibling field is ignored",
			raw:      `{"update_id":12,"poll":{"id":"p"},"brand_new_field":true}`,
			wantKind: KindPoll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := DecodeUpdate(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("DecodeUpdate() error = %v", err)
			}
			if u.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", u.Kind(), tt.wantKind)
			}
			if u.UpdateID() == 0 {
				t.Error("UpdateID() should be set")
			}
			if tt.check != nil {
				tt.check(t, u)
			}
		})
	}
}

func TestDecodeUpdate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  error
		wantID   int64
		wantKind string
	}{
		{"not json", `{"update_id":`, nil, 0, ""},
		{"array", `[1]`, nil, 0, ""},
		{"missing update_id", `{"message":{}}`, ErrMissingUpdateID, 0, ""},
		{"null update_id", `{"update_id":null,"message":{}}`, ErrMissingUpdateID, 0, ""},
		{"string update_id", `{"update_id":"5","message":{}}`, ErrMissingUpdateID, 0, ""},
		{"no payload", `{"update_id":5}`, ErrNoPayload, 5, ""},
		{"unknown kind with id 0", `{"update_id":0,"zeta":{}}`, ErrUnknownKind, 0, "zeta"},
		{"unknown kind", `{"update_id":6,"zeta":{},"alpha":{}}`, ErrUnknownKind, 6, "alpha"},
		{"two payloads", `{"update_id":7,"poll":{"id":"p"},"message":{}}`, ErrMultiplePayloads, 7, "message,poll"},
		{"invalid payload", `{"update_id":8,"message":{"message_id":1}}`, nil, 8, KindMessage},
		{"wrong payload shape", `{"update_id":9,"callback_query":"nope"}`, nil, 9, KindCallbackQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUpdate(json.RawMessage(tt.raw))
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if decErr.UpdateID != tt.wantID {
				t.Errorf("UpdateID = %d, want %d", decErr.UpdateID, tt.wantID)
			}
			// Only syntax errors and a missing id leave HasID unset.
			wantHasID := tt.wantErr != ErrMissingUpdateID && (tt.wantErr != nil || tt.wantID != 0)
			if decErr.HasID != wantHasID {
				t.Errorf("HasID = %v, want %v", decErr.HasID, wantHasID)
			}
			if decErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", decErr.Kind, tt.wantKind)
			}
			if string(decErr.Raw) != tt.raw {
				t.Errorf("Raw = %s", decErr.Raw)
			}
		})
	}
}

func TestDecodeUpdates_KeepsOrderAndSkipsFailures(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"update_id":1,"poll":{"id":"a"}}`),
		json.RawMessage(`{"update_id":2}`),
		json.RawMessage(`{"update_id":3,"poll":{"id":"c"}}`),
	}

	updates, failures := DecodeUpdates(raws)
	if len(updates) != 2 || updates[0].UpdateID() != 1 || updates[1].UpdateID() != 3 {
		t.Errorf("unexpected updates %v", updates)
	}
	if len(failures) != 1 || failures[0].UpdateID != 2 {
		t.Errorf("unexpected failures %v", failures)
	}
}

func TestKnownKinds(t *testing.T) {
	kinds := KnownKinds()
	if !slices.IsSorted(kinds) {
		t.Error("KnownKinds() should be sorted")
	}
	for _, k := range []string{KindMessage, KindCallbackQuery, KindMessageReaction, KindChatBoost} {
		if !slices.Contains(kinds, k) {
			t.Errorf("KnownKinds() is missing %s", k)
		}
	}
}

func TestChatID_JSON(t *testing.T) {
	tests := []struct {
		id   ChatID
		want string
	}{
		{ChatIDInt(-1001), `-1001`},
		{ChatIDUsername("@channel"), `"@channel"`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.id)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(b) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.id, b, tt.want)
		}
		var back ChatID
		if err := json.Unmarshal(b, &back); err != nil || back != tt.id {
			t.Errorf("Unmarshal(%s) = %v, %v", b, back, err)
		}
	}
	if !(ChatID{}).IsZero() {
		t.Error("zero ChatID should report IsZero")
	}
}
