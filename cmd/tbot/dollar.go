package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prilive-com/telegrambot/telegrambot"
)

const defaultDollarAPI = "https://dolarapi.com/v1/dolares"

// dollarRate is one quote returned by the exchange rate API.
type dollarRate struct {
	Name      string  `json:"nombre"`
	Buy       float64 `json:"compra"`
	Sell      float64 `json:"venta"`
	UpdatedAt string  `json:"fechaActualizacion"`
}

// dollarBot answers /dolar with the current dollar quotes.
type dollarBot struct {
	client *telegrambot.Client
	api    string
	http   *http.Client
	logger *slog.Logger
}

func newDollarBot(client *telegrambot.Client, api string) *dollarBot {
	if api == "" {
		api = defaultDollarAPI
	}
	return &dollarBot{
		client: client,
		api:    api,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: client.Logger(),
	}
}

// Register installs the /dolar command.
func (b *dollarBot) Register(r *telegrambot.Router) {
	r.OnCommand("dolar", "Current dollar exchange rates", b.quote)
}

func (b *dollarBot) quote(ctx context.Context, u *telegrambot.MessageUpdate) error {
	text := "Could not reach the exchange rate API, try again later."
	rates, err := b.fetch(ctx)
	switch {
	case err != nil:
		b.logger.Error("failed to fetch dollar rates", "api", b.api, "error", err)
	case len(rates) == 0:
		text = "The exchange rate API returned no quotes."
	default:
		text = formatRates(rates)
	}

	_, err = b.client.SendMessage(ctx, &telegrambot.SendMessageRequest{
		ChatID: telegrambot.ChatIDInt(u.Message.Chat.ID),
		Text:   text,
	})
	return err
}

func (b *dollarBot) fetch(ctx context.Context) ([]dollarRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.api, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange rate API returned %s", resp.Status)
	}
	var rates []dollarRate
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return nil, fmt.Errorf("decode exchange rates: %w", err)
	}
	return rates, nil
}

func formatRates(rates []dollarRate) string {
	var sb strings.Builder
	for i, r := range rates {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Dollar %s\nBuy: %s\nSell: %s\nUpdated: %s",
			r.Name, formatPrice(r.Buy), formatPrice(r.Sell), r.UpdatedAt)
	}
	return sb.String()
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
