package telegrambot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newServerClient returns a client whose default transport talks to an
// httptest server running handler.
func newServerClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithLogger(newTestLogger()),
		WithAPIBaseURL(server.URL),
		WithHTTPClientOption(server.Client()),
		WithRateLimit(0, 0),
	}, opts...)
	client, err := New(testToken, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func TestSetWebhook(t *testing.T) {
	tests := []struct {
		name        string
		handler     func(w http.ResponseWriter, r *http.Request)
		wantErr     bool
		errContains string
	}{
		{
			name: "successful webhook registration",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if !strings.HasSuffix(r.URL.Path, "/setWebhook") {
					t.Errorf("expected setWebhook in path, got %s", r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("expected JSON body, got %s", ct)
				}

				body, _ := io.ReadAll(r.Body)
				var req SetWebhookRequest
				json.Unmarshal(body, &req)

				if req.URL != "https://example.com/webhook" {
					t.Errorf("expected URL https://example.com/webhook, got %s", req.URL)
				}
				if req.SecretToken != "secret123" {
					t.Errorf("expected secret token secret123, got %s", req.SecretToken)
				}

				json.NewEncoder(w).Encode(map[string]any{
					"ok":     true,
					"result": true,
				})
			},
			wantErr: false,
		},
		{
			name: "telegram API error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]any{
					"ok":          false,
					"error_code":  400,
					"description": "Bad Request: invalid URL",
				})
			},
			wantErr:     true,
			errContains: "invalid URL",
		},
		{
			name: "unauthorized error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"ok":          false,
					"error_code":  401,
					"description": "Unauthorized",
				})
			},
			wantErr:     true,
			errContains: "Unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServerClient(t, tt.handler)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := client.SetWebhook(ctx, &SetWebhookRequest{
				URL:         "https://example.com/webhook",
				SecretToken: "secret123",
			})

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error containing %q, got %q", tt.errContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSetWebhook_Validation(t *testing.T) {
	tr := &fakeTransport{}
	client := newTestClient(t, tr)

	err := client.SetWebhook(context.Background(), &SetWebhookRequest{URL: "not a url"})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(tr.Calls("")) != 0 {
		t.Error("invalid request must not be sent")
	}
}

func TestSetWebhook_CertificateUpload(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("expected multipart body, got %q", r.Header.Get("Content-Type"))
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		fields := map[string]string{}
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(part)
			fields[part.FormName()] = string(data)
		}

		if fields["url"] != "https://example.com/hook" {
			t.Errorf("url field = %q", fields["url"])
		}
		if fields["certificate"] != "-----BEGIN CERTIFICATE-----" {
			t.Errorf("certificate part = %q", fields["certificate"])
		}
		w.Write(okResult(true))
	})

	err := client.SetWebhook(context.Background(), &SetWebhookRequest{
		URL:         "https://example.com/hook",
		Certificate: FileBytes("cert.pem", []byte("-----BEGIN CERTIFICATE-----")),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWebhookFromConfig(t *testing.T) {
	tr := &fakeTransport{}
	client := newTestClient(t, tr,
		WithWebhook(8443, "cfg-secret"),
		WithWebhookURL("https://bot.example.com/hook"),
		WithAllowedUpdates("message"),
	)

	if err := client.SetWebhookFromConfig(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := tr.Calls("setWebhook")
	if len(calls) != 1 {
		t.Fatalf("expected one setWebhook call, got %d", len(calls))
	}
	want := `{"url":"https://bot.example.com/hook","max_connections":40,"allowed_updates":["message"],"secret_token":"cfg-secret"}`
	if string(calls[0].Body) != want {
		t.Errorf("body = %s\nwant  %s", calls[0].Body, want)
	}
}

func TestDeleteWebhook(t *testing.T) {
	tests := []struct {
		name        string
		dropPending bool
		wantBody    string
		response    []byte
		wantErr     bool
	}{
		{
			name:     "keeps pending updates",
			wantBody: `{}`,
			response: okResult(true),
		},
		{
			name:        "drops pending updates",
			dropPending: true,
			wantBody:    `{"drop_pending_updates":true}`,
			response:    okResult(true),
		},
		{
			name:     "API error",
			wantBody: `{}`,
			response: apiError(401, "Unauthorized", nil),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{respond: func(context.Context, fakeCall) ([]byte, error) {
				return tt.response, nil
			}}
			client := newTestClient(t, tr)

			err := client.DeleteWebhook(context.Background(), tt.dropPending)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeleteWebhook() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := string(tr.Calls("deleteWebhook")[0].Body); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestGetWebhookInfo(t *testing.T) {
	tests := []struct {
		name        string
		handler     func(w http.ResponseWriter, r *http.Request)
		wantInfo    *WebhookInfo
		wantErr     bool
		errContains string
	}{
		{
			name: "webhook configured",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"ok": true,
					"result": map[string]any{
						"url":                    "https://example.com/webhook",
						"has_custom_certificate": false,
						"pending_update_count":   5,
						"max_connections":        40,
						"ip_address":             "1.2.3.4",
					},
				})
			},
			wantInfo: &WebhookInfo{
				URL:                "https://example.com/webhook",
				PendingUpdateCount: 5,
				MaxConnections:     40,
				IPAddress:          "1.2.3.4",
			},
		},
		{
			name: "no webhook configured",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"ok": true,
					"result": map[string]any{
						"url":                  "",
						"pending_update_count": 0,
					},
				})
			},
			wantInfo: &WebhookInfo{},
		},
		{
			name: "webhook with error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"ok": true,
					"result": map[string]any{
						"url":                  "https://example.com/webhook",
						"pending_update_count": 100,
						"last_error_date":      1700000000,
						"last_error_message":   "Connection refused",
					},
				})
			},
			wantInfo: &WebhookInfo{
				URL:                "https://example.com/webhook",
				PendingUpdateCount: 100,
				LastErrorDate:      1700000000,
				LastErrorMessage:   "Connection refused",
			},
		},
		{
			name: "maintenance page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				io.WriteString(w, "<html><body>502 Bad Gateway</body></html>")
			},
			wantErr:     true,
			errContains: "out of service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServerClient(t, tt.handler)

			info, err := client.GetWebhookInfo(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error containing %q, got %q", tt.errContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.URL != tt.wantInfo.URL ||
				info.PendingUpdateCount != tt.wantInfo.PendingUpdateCount ||
				info.MaxConnections != tt.wantInfo.MaxConnections ||
				info.IPAddress != tt.wantInfo.IPAddress ||
				info.LastErrorDate != tt.wantInfo.LastErrorDate ||
				info.LastErrorMessage != tt.wantInfo.LastErrorMessage {
				t.Errorf("GetWebhookInfo() = %+v, want %+v", info, tt.wantInfo)
			}
		})
	}
}
