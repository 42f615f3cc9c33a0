package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MenuOption is one row of an interactive list message.
type MenuOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Client pushes outbound messages. The webhook itself never carries a
// reply; everything the officer sees goes through this interface.
type Client interface {
	SendText(ctx context.Context, to, body string) error
	SendMenu(ctx context.Context, to, header string, options []MenuOption) error
}

// HTTPClient talks to the WhatsApp Business API messages endpoint.
type HTTPClient struct {
	apiURL string
	token  string
	http   *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an outbound message client.
func NewHTTPClient(apiURL, token string) *HTTPClient {
	return &HTTPClient{
		apiURL: apiURL,
		token:  token,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) SendText(ctx context.Context, to, body string) error {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	})
}

func (c *HTTPClient) SendMenu(ctx context.Context, to, header string, options []MenuOption) error {
	rows := make([]map[string]string, 0, len(options))
	for _, o := range options {
		rows = append(rows, map[string]string{"id": o.ID, "title": o.Title})
	}
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type": "list",
			"body": map[string]string{"text": header},
			"action": map[string]any{
				"button":   "Choose",
				"sections": []map[string]any{{"rows": rows}},
			},
		},
	})
}

func (c *HTTPClient) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("messaging api returned %s", resp.Status)
	}
	return nil
}
