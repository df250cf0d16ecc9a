// Package dispatch delivers reply chunks through the messaging-channel
// provider API.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/vincent-petithory/dataurl"
)

// Client sends outbound messages for a connection. Calls are sequential so
// multi-chunk replies arrive in order.
type Client struct {
	httpClient *resty.Client
	chunkDelay time.Duration
}

func NewClient(baseURL string, chunkDelay time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &Client{httpClient: httpClient, chunkDelay: chunkDelay}
}

// Pace sleeps the configured inter-chunk delay, honoring cancellation.
func (c *Client) Pace(ctx context.Context) {
	if c.chunkDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.chunkDelay):
	}
}

// InlineAudio wraps raw audio bytes as a data URL for providers that accept
// inline media, used when no object storage is configured for the tenant.
func InlineAudio(data []byte, mimeType string) string {
	return dataurl.New(data, mimeType).String()
}

func (c *Client) post(ctx context.Context, path, apiKey string, body interface{}) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("apikey", apiKey).
		SetBody(body).
		Post(path)

	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send error: status %s, body: %s", resp.Status(), resp.String())
	}
	return nil
}

// SendText delivers one text chunk.
func (c *Client) SendText(ctx context.Context, instance, apiKey, number, text string) error {
	err := c.post(ctx, fmt.Sprintf("/message/sendText/%s", instance), apiKey, map[string]interface{}{
		"number": number,
		"text":   text,
	})
	if err != nil {
		return err
	}
	log.Debug().Str("instance", instance).Str("number", number).Int("chars", len(text)).Msg("Sent text chunk")
	return nil
}

// SendImage delivers an image with its caption.
func (c *Client) SendImage(ctx context.Context, instance, apiKey, number, mediaURL, caption string) error {
	err := c.post(ctx, fmt.Sprintf("/message/sendMedia/%s", instance), apiKey, map[string]interface{}{
		"number":    number,
		"mediatype": "image",
		"media":     mediaURL,
		"caption":   caption,
	})
	if err != nil {
		return err
	}
	log.Debug().Str("instance", instance).Str("number", number).Msg("Sent image chunk")
	return nil
}

// SendAudio delivers a voice note. audioRef may be a public URL or a data URL.
func (c *Client) SendAudio(ctx context.Context, instance, apiKey, number, audioRef string) error {
	err := c.post(ctx, fmt.Sprintf("/message/sendWhatsAppAudio/%s", instance), apiKey, map[string]interface{}{
		"number": number,
		"audio":  audioRef,
	})
	if err != nil {
		return err
	}
	log.Debug().Str("instance", instance).Str("number", number).Msg("Sent audio reply")
	return nil
}

// SendDocument delivers a document attachment.
func (c *Client) SendDocument(ctx context.Context, instance, apiKey, number, documentURL, fileName string) error {
	err := c.post(ctx, fmt.Sprintf("/message/sendMedia/%s", instance), apiKey, map[string]interface{}{
		"number":    number,
		"mediatype": "document",
		"media":     documentURL,
		"fileName":  fileName,
	})
	if err != nil {
		return err
	}
	log.Debug().Str("instance", instance).Str("number", number).Str("fileName", fileName).Msg("Sent document")
	return nil
}
