// Package tts wraps the speech-synthesis provider API.
package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client talks to the synthesis provider. The per-tenant provider key is
// passed on each call because every tenant brings its own account.
type Client struct {
	httpClient *resty.Client
}

func NewClient(baseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &Client{httpClient: httpClient}
}

type agentResponse struct {
	ConversationConfig struct {
		TTS struct {
			VoiceID string `json:"voice_id"`
		} `json:"tts"`
	} `json:"conversation_config"`
}

// ResolveVoice fetches the concrete voice id behind a conversational-agent id.
func (c *Client) ResolveVoice(ctx context.Context, providerKey, agentID string) (string, error) {
	var result agentResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("xi-api-key", providerKey).
		SetResult(&result).
		Get(fmt.Sprintf("/v1/convai/agents/%s", agentID))

	if err != nil {
		return "", fmt.Errorf("agent lookup request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("agent lookup error: status %s, body: %s", resp.Status(), resp.String())
	}

	voiceID := result.ConversationConfig.TTS.VoiceID
	log.Debug().Str("agentID", agentID).Str("voiceID", voiceID).Msg("Resolved agent voice")
	return voiceID, nil
}

type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings map[string]any `json:"voice_settings,omitempty"`
}

// Synthesize converts text to speech and returns the audio bytes.
func (c *Client) Synthesize(ctx context.Context, providerKey, voiceID, text string) ([]byte, string, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("xi-api-key", providerKey).
		SetHeader("Accept", "audio/mpeg").
		SetBody(synthesisRequest{
			Text:    text,
			ModelID: "eleven_multilingual_v2",
		}).
		Post(fmt.Sprintf("/v1/text-to-speech/%s", voiceID))

	if err != nil {
		return nil, "", fmt.Errorf("synthesis request failed: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("synthesis error: status %s, body: %s", resp.Status(), resp.String())
	}

	log.Debug().Str("voiceID", voiceID).Int("bytes", len(resp.Body())).Msg("Synthesized audio reply")
	return resp.Body(), "audio/mpeg", nil
}
