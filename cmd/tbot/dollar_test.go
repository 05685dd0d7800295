package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prilive-com/telegrambot/telegrambot"
)

func newTestDollarBot(t *testing.T, handler http.HandlerFunc) (*dollarBot, *recordingTransport) {
	t.Helper()
	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	tr := &recordingTransport{}
	client, err := telegrambot.New(testToken,
		telegrambot.WithTransport(tr),
		telegrambot.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return newDollarBot(client, api.URL), tr
}

func TestDollarBotQuotes(t *testing.T) {
	bot, tr := newTestDollarBot(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"moneda":"USD","casa":"oficial","nombre":"Oficial","compra":1005.5,"venta":1045,"fechaActualizacion":"2024-05-02T14:00:00.000Z"},
			{"moneda":"USD","casa":"blue","nombre":"Blue","compra":1180,"venta":1200,"fechaActualizacion":"2024-05-02T14:05:00.000Z"}
		]`))
	})

	if err := bot.quote(context.Background(), groupMessage(1, "/dolar", nil)); err != nil {
		t.Fatalf("quote: %v", err)
	}

	want := "Dollar Oficial\nBuy: 1005.5\nSell: 1045\nUpdated: 2024-05-02T14:00:00.000Z\n\n" +
		"Dollar Blue\nBuy: 1180\nSell: 1200\nUpdated: 2024-05-02T14:05:00.000Z"
	calls := tr.take()
	if got := replyText(t, calls); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	if chat, _ := calls[0].Body["chat_id"].(float64); chat != 10 {
		t.Errorf("chat_id = %v, want 10", calls[0].Body["chat_id"])
	}
}

func TestDollarBotAPIFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusBadGateway)
			},
			want: "Could not reach the exchange rate API",
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>maintenance</html>"))
			},
			want: "Could not reach the exchange rate API",
		},
		{
			name: "no quotes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			},
			want: "no quotes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, tr := newTestDollarBot(t, tt.handler)
			if err := bot.quote(context.Background(), groupMessage(1, "/dolar", nil)); err != nil {
				t.Fatalf("quote: %v", err)
			}
			if got := replyText(t, tr.take()); !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestDollarBotRegistersCommand(t *testing.T) {
	bot, _ := newTestDollarBot(t, func(w http.ResponseWriter, r *http.Request) {})
	r := telegrambot.NewRouter(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	bot.Register(r)

	cmds := r.Commands()
	if len(cmds) != 1 || cmds[0].Command != "dolar" {
		t.Errorf("commands = %+v, want /dolar", cmds)
	}
}
