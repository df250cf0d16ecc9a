// Package audio decides whether a reply goes out as voice and produces the
// synthesized artifact when it does.
package audio

import (
	"context"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

const agentVoicePrefix = "agent_"

// TTS is the synthesis collaborator. ResolveVoice maps an agent identifier to
// a concrete voice id; Synthesize returns raw audio bytes plus the mime type.
type TTS interface {
	ResolveVoice(ctx context.Context, providerKey, agentID string) (string, error)
	Synthesize(ctx context.Context, providerKey, voiceID, text string) ([]byte, string, error)
}

// Engine applies the per-tenant voice policy.
type Engine struct {
	tts          TTS
	defaultVoice string
	draw         func() int
}

// NewEngine wires the synthesis client. defaultVoice backs agent-bound voices
// that fail to resolve. The percentage draw is injectable for tests.
func NewEngine(tts TTS, defaultVoice string, draw func() int) *Engine {
	if draw == nil {
		draw = func() int { return rand.Intn(100) + 1 }
	}
	return &Engine{tts: tts, defaultVoice: defaultVoice, draw: draw}
}

// Decide returns whether this reply should be synthesized as audio. The
// inbound modality wins over every partial mode: a voice message always gets
// a voice answer when audio is enabled at all.
func (e *Engine) Decide(voice models.VoiceConfig, wasInboundAudio bool) bool {
	if !voice.Enabled || voice.ProviderKey == "" {
		return false
	}
	if wasInboundAudio {
		return true
	}
	switch voice.ResponseType {
	case "audio_only":
		// Reserved for inbound audio; text conversations stay textual.
		return false
	case "percentage":
		return e.draw() <= voice.ResponsePercentage
	default:
		return true
	}
}

// Synthesize produces the voice artifact for a reply. scriptText takes
// precedence over displayText when the model provided a spoken script.
func (e *Engine) Synthesize(ctx context.Context, voice models.VoiceConfig, displayText, scriptText string) ([]byte, string, error) {
	text := strings.TrimSpace(scriptText)
	if text == "" {
		text = strings.TrimSpace(displayText)
	}

	voiceID := voice.VoiceID
	if strings.HasPrefix(voiceID, agentVoicePrefix) {
		resolved, err := e.tts.ResolveVoice(ctx, voice.ProviderKey, voiceID)
		if err != nil || resolved == "" {
			log.Warn().Err(err).Str("agentID", voiceID).Msg("Voice resolution failed, falling back to default voice")
			resolved = e.defaultVoice
		}
		voiceID = resolved
	}
	if voiceID == "" {
		voiceID = e.defaultVoice
	}

	return e.tts.Synthesize(ctx, voice.ProviderKey, voiceID, text)
}
