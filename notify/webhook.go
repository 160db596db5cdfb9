package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Webhook posts embeds to Discord webhook URLs
type Webhook struct {
	client *http.Client
}

// NewWebhook creates a webhook sender with a per-request timeout
func NewWebhook(timeout time.Duration) *Webhook {
	return &Webhook{client: &http.Client{Timeout: timeout}}
}

// Send posts the embeds to url. Any non-2xx answer is an error.
func (wh *Webhook) Send(ctx context.Context, url string, embeds ...*discordgo.MessageEmbed) error {
	body, err := json.Marshal(&discordgo.WebhookParams{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := wh.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post webhook: status code %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
