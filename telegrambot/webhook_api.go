package telegrambot

import "context"

// SetWebhookRequest registers a webhook URL with Telegram.
// See https://core.telegram.org/bots/api#setwebhook
type SetWebhookRequest struct {
	URL string `json:"url" validate:"required,url"`
	// Certificate uploads a self-signed public key certificate.
	Certificate        *InputFile `json:"certificate,omitempty"`
	IPAddress          string     `json:"ip_address,omitempty" validate:"omitempty,ip"`
	MaxConnections     int        `json:"max_connections,omitempty" validate:"omitempty,gte=1,lte=100"`
	AllowedUpdates     []string   `json:"allowed_updates,omitempty"`
	DropPendingUpdates bool       `json:"drop_pending_updates,omitempty"`
	SecretToken        string     `json:"secret_token,omitempty" validate:"omitempty,max=256"`
}

// Files implements Uploader.
func (r *SetWebhookRequest) Files() []Attachment {
	return []Attachment{{Field: "certificate", File: r.Certificate}}
}

// DeleteWebhookRequest removes the webhook so getUpdates can be used.
type DeleteWebhookRequest struct {
	DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
}

// SetWebhook registers a webhook URL with Telegram.
func (c *Client) SetWebhook(ctx context.Context, req *SetWebhookRequest) error {
	_, err := CallMethod[bool](ctx, c, "setWebhook", req)
	return err
}

// SetWebhookFromConfig registers the configured webhook URL and secret.
func (c *Client) SetWebhookFromConfig(ctx context.Context) error {
	return c.SetWebhook(ctx, &SetWebhookRequest{
		URL:            c.config.Webhook.URL,
		SecretToken:    c.config.Webhook.Secret,
		MaxConnections: 40, // Telegram default
		AllowedUpdates: c.config.Polling.AllowedUpdates,
	})
}

// DeleteWebhook removes the current webhook from Telegram.
// This must be done before long polling; the Poller does it on setup.
func (c *Client) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	_, err := CallMethod[bool](ctx, c, "deleteWebhook", &DeleteWebhookRequest{
		DropPendingUpdates: dropPendingUpdates,
	})
	return err
}

// GetWebhookInfo retrieves information about the current webhook configuration.
// Useful for diagnostics and verifying webhook status.
func (c *Client) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	info, err := CallMethod[WebhookInfo](ctx, c, "getWebhookInfo", nil)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
