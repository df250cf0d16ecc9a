// Package services wires the webhook pipeline end to end: normalize, dedup,
// isolate, orchestrate, postprocess and dispatch.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/adapters/dispatch"
	"github.com/HugoGarcez/agentpromp-sub000/internal/adapters/rabbitmq"
	"github.com/HugoGarcez/agentpromp-sub000/internal/audio"
	"github.com/HugoGarcez/agentpromp-sub000/internal/dedup"
	"github.com/HugoGarcez/agentpromp-sub000/internal/followup"
	"github.com/HugoGarcez/agentpromp-sub000/internal/isolation"
	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
	"github.com/HugoGarcez/agentpromp-sub000/internal/normalizer"
	"github.com/HugoGarcez/agentpromp-sub000/internal/orchestrator"
	"github.com/HugoGarcez/agentpromp-sub000/internal/postprocess"
)

// Pipeline statuses reported per webhook delivery.
const (
	StatusReceived         = "received"
	StatusSentViaAPI       = "sent_via_api"
	StatusInsufficientData = "ignored_insufficient_data"
	StatusDuplicate        = "ignored_duplicate"
)

// apologyReply goes out whenever the agent cannot produce a real answer. The
// contact always gets a response; silence is reserved for dropped messages.
const apologyReply = "Desculpe, estou com uma instabilidade no momento. Pode tentar novamente em alguns instantes?"

// ErrUnknownToken maps to 404 at the HTTP layer.
var ErrUnknownToken = errors.New("unknown webhook token")

// TenantSource resolves tenants by webhook token.
type TenantSource interface {
	GetByToken(ctx context.Context, token string) (*models.TenantConfig, error)
}

// HistoryStore persists and recalls conversation turns.
type HistoryStore interface {
	Recent(ctx context.Context, companyID, remoteJID string, limit int) ([]models.ConversationTurn, error)
	Append(ctx context.Context, companyID, remoteJID, role, content string) error
}

// Replier produces the draft answer for one inbound message.
type Replier interface {
	Reply(ctx context.Context, tenant *models.TenantConfig, apiKey string, env models.MessageEnvelope, history []models.ConversationTurn) (string, error)
}

// Dispatcher delivers reply parts through the channel provider.
type Dispatcher interface {
	Pace(ctx context.Context)
	SendText(ctx context.Context, instance, apiKey, number, text string) error
	SendImage(ctx context.Context, instance, apiKey, number, mediaURL, caption string) error
	SendAudio(ctx context.Context, instance, apiKey, number, audioRef string) error
	SendDocument(ctx context.Context, instance, apiKey, number, documentURL, fileName string) error
}

// AudioUploader stores synthesized audio and returns a fetchable URL.
type AudioUploader interface {
	UploadAudio(ctx context.Context, companyID string, settings models.S3Settings, remoteJID, messageID string, data []byte, mimeType string) (string, error)
}

// Processor runs the whole pipeline for one webhook delivery.
type Processor struct {
	tenants      TenantSource
	guard        *dedup.Guard
	isolator     *isolation.Isolator
	tracker      *followup.Tracker
	history      HistoryStore
	replier      Replier
	audio        *audio.Engine
	uploader     AudioUploader
	dispatcher   Dispatcher
	events       *rabbitmq.Publisher
	historyLimit int
}

func NewProcessor(
	tenants TenantSource,
	guard *dedup.Guard,
	isolator *isolation.Isolator,
	tracker *followup.Tracker,
	history HistoryStore,
	replier Replier,
	audioEngine *audio.Engine,
	uploader AudioUploader,
	dispatcher Dispatcher,
	events *rabbitmq.Publisher,
	historyLimit int,
) *Processor {
	return &Processor{
		tenants:      tenants,
		guard:        guard,
		isolator:     isolator,
		tracker:      tracker,
		history:      history,
		replier:      replier,
		audio:        audioEngine,
		uploader:     uploader,
		dispatcher:   dispatcher,
		events:       events,
		historyLimit: historyLimit,
	}
}

// Process handles one raw webhook body addressed to the tenant behind token.
// The returned status is reported back to the provider; errors are reserved
// for requests that could not be attributed to a tenant at all.
func (p *Processor) Process(ctx context.Context, token string, raw []byte) (string, error) {
	tenant, err := p.tenants.GetByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownToken, err)
	}

	env, ok := normalizer.Normalize(raw)
	if !ok {
		log.Debug().Str("companyID", tenant.CompanyID).Msg("Payload carries no usable message")
		return StatusInsufficientData, nil
	}

	if !p.guard.ShouldProcess(env.ExternalID) {
		log.Debug().Str("companyID", tenant.CompanyID).Str("messageID", env.ExternalID).Msg("Duplicate delivery suppressed")
		return StatusDuplicate, nil
	}

	decision := p.isolator.Evaluate(ctx, env, tenant)
	if !decision.Proceed {
		log.Info().
			Str("companyID", tenant.CompanyID).
			Str("reason", string(decision.Reason)).
			Str("messageID", env.ExternalID).
			Msg("Message dropped by isolation checks")
		p.publish("message_dropped", tenant, env.SenderJID, "ignored_"+string(decision.Reason), nil)
		return "ignored_" + string(decision.Reason), nil
	}

	if env.IsFromMe {
		return p.handleManualOutbound(ctx, tenant, env)
	}

	return p.handleInbound(ctx, tenant, env)
}

// handleManualOutbound covers messages the owner typed from their own device:
// they arm the follow-up timer toward the contact and are never answered.
func (p *Processor) handleManualOutbound(ctx context.Context, tenant *models.TenantConfig, env models.MessageEnvelope) (string, error) {
	if err := p.tracker.HandleOutbound(ctx, tenant, env.SenderJID); err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to arm follow-up after manual outbound")
	}
	return StatusReceived, nil
}

func (p *Processor) handleInbound(ctx context.Context, tenant *models.TenantConfig, env models.MessageEnvelope) (string, error) {
	// The contact answered, whatever follow-up was armed is now stale.
	if err := p.tracker.HandleInbound(ctx, tenant.CompanyID, env.SenderJID); err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to clear follow-up timer")
	}

	if tenant.ModelAPIKey == "" && tenant.SystemPrompt == "" {
		log.Warn().Str("companyID", tenant.CompanyID).Msg("Tenant has no agent configuration, sending fallback reply")
		p.deliverText(ctx, tenant, env, apologyReply)
		return StatusSentViaAPI, nil
	}

	history, err := p.history.Recent(ctx, tenant.CompanyID, env.SenderJID, p.historyLimit)
	if err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to load conversation history")
		history = nil
	}
	history = orchestrator.TrimHistory(history, p.historyLimit)

	draft, err := p.replier.Reply(ctx, tenant, tenant.ModelAPIKey, env, history)
	if err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Model reply failed, sending fallback")
		draft = ""
	}
	if draft == "" {
		draft = apologyReply
	}

	result := postprocess.Process(draft, tenant.Catalog)
	if len(result.Chunks) == 0 && result.Document == nil {
		result.Chunks = []models.ResponseChunk{{Kind: models.ChunkText, Content: apologyReply}}
		result.DisplayText = apologyReply
	}

	p.deliver(ctx, tenant, env, result)
	p.persistTurns(ctx, tenant, env, result.DisplayText)

	if err := p.tracker.HandleOutbound(ctx, tenant, env.SenderJID); err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to arm follow-up after reply")
	}

	p.publish("message_answered", tenant, env.SenderJID, StatusSentViaAPI, map[string]interface{}{
		"chunks":   len(result.Chunks),
		"document": result.Document != nil,
		"wasAudio": env.WasAudio(),
	})
	return StatusSentViaAPI, nil
}

// deliver sends the postprocessed reply. When the audio policy elects voice,
// the synthesized note replaces the text chunks; images and the document are
// still delivered so visual directives survive the modality switch.
func (p *Processor) deliver(ctx context.Context, tenant *models.TenantConfig, env models.MessageEnvelope, result postprocess.Result) {
	instance := tenant.ConnectionID
	apiKey := tenant.Token
	number := env.SenderJID

	audioRef := ""
	if p.audio != nil && p.audio.Decide(tenant.Voice, env.WasAudio()) {
		audioRef = p.synthesize(ctx, tenant, env, result)
	}

	sentAny := false
	send := func(fn func() error, kind string) {
		if sentAny {
			p.dispatcher.Pace(ctx)
		}
		if err := fn(); err != nil {
			log.Error().Err(err).
				Str("companyID", tenant.CompanyID).
				Str("kind", kind).
				Msg("Failed to deliver reply part")
			return
		}
		sentAny = true
	}

	if audioRef != "" {
		send(func() error { return p.dispatcher.SendAudio(ctx, instance, apiKey, number, audioRef) }, "audio")
	}

	for _, chunk := range result.Chunks {
		switch chunk.Kind {
		case models.ChunkText:
			if audioRef != "" {
				continue
			}
			text := chunk.Content
			send(func() error { return p.dispatcher.SendText(ctx, instance, apiKey, number, text) }, "text")
		case models.ChunkImage:
			img := chunk
			send(func() error {
				return p.dispatcher.SendImage(ctx, instance, apiKey, number, img.URL, img.Caption)
			}, "image")
		}
	}

	if result.Document != nil {
		doc := result.Document
		send(func() error {
			return p.dispatcher.SendDocument(ctx, instance, apiKey, number, doc.URL, doc.FileName)
		}, "document")
	}
}

// synthesize produces the voice artifact and returns a reference the provider
// can play. Any failure falls back to text delivery.
func (p *Processor) synthesize(ctx context.Context, tenant *models.TenantConfig, env models.MessageEnvelope, result postprocess.Result) string {
	data, mimeType, err := p.audio.Synthesize(ctx, tenant.Voice, result.DisplayText, result.ScriptText)
	if err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Audio synthesis failed, falling back to text")
		return ""
	}

	if tenant.S3.Enabled && p.uploader != nil {
		messageID := env.ExternalID
		if messageID == "" {
			messageID = uuid.NewString()
		}
		url, err := p.uploader.UploadAudio(ctx, tenant.CompanyID, tenant.S3, env.SenderJID, messageID, data, mimeType)
		if err == nil {
			return url
		}
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Audio upload failed, sending inline")
	}
	return dispatch.InlineAudio(data, mimeType)
}

func (p *Processor) deliverText(ctx context.Context, tenant *models.TenantConfig, env models.MessageEnvelope, text string) {
	if err := p.dispatcher.SendText(ctx, tenant.ConnectionID, tenant.Token, env.SenderJID, text); err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to deliver fallback reply")
	}
}

func (p *Processor) persistTurns(ctx context.Context, tenant *models.TenantConfig, env models.MessageEnvelope, reply string) {
	if env.Text != "" {
		if err := p.history.Append(ctx, tenant.CompanyID, env.SenderJID, "user", env.Text); err != nil {
			log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to persist user turn")
		}
	}
	if reply != "" {
		if err := p.history.Append(ctx, tenant.CompanyID, env.SenderJID, "assistant", reply); err != nil {
			log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Failed to persist assistant turn")
		}
	}
}

func (p *Processor) publish(eventType string, tenant *models.TenantConfig, remoteJID, status string, data map[string]interface{}) {
	p.events.Publish(eventType, tenant.CompanyID, remoteJID, status, data)
}
