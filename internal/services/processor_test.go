package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoGarcez/agentpromp-sub000/internal/audio"
	"github.com/HugoGarcez/agentpromp-sub000/internal/dedup"
	"github.com/HugoGarcez/agentpromp-sub000/internal/followup"
	"github.com/HugoGarcez/agentpromp-sub000/internal/isolation"
	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

type fakeTenants struct {
	tenant *models.TenantConfig
}

func (f *fakeTenants) GetByToken(ctx context.Context, token string) (*models.TenantConfig, error) {
	if f.tenant != nil && f.tenant.Token == token {
		return f.tenant, nil
	}
	return nil, errors.New("not found")
}

type fakeHistory struct {
	turns    []models.ConversationTurn
	appended []models.ConversationTurn
}

func (f *fakeHistory) Recent(ctx context.Context, companyID, remoteJID string, limit int) ([]models.ConversationTurn, error) {
	return f.turns, nil
}

func (f *fakeHistory) Append(ctx context.Context, companyID, remoteJID, role, content string) error {
	f.appended = append(f.appended, models.ConversationTurn{Role: role, Content: content})
	return nil
}

type fakeReplier struct {
	reply string
	err   error
}

func (f *fakeReplier) Reply(ctx context.Context, tenant *models.TenantConfig, apiKey string, env models.MessageEnvelope, history []models.ConversationTurn) (string, error) {
	return f.reply, f.err
}

type sentPart struct {
	kind    string
	payload string
}

type fakeDispatcher struct {
	sent  []sentPart
	paced int
}

func (f *fakeDispatcher) Pace(ctx context.Context) { f.paced++ }

func (f *fakeDispatcher) SendText(ctx context.Context, instance, apiKey, number, text string) error {
	f.sent = append(f.sent, sentPart{kind: "text", payload: text})
	return nil
}

func (f *fakeDispatcher) SendImage(ctx context.Context, instance, apiKey, number, mediaURL, caption string) error {
	f.sent = append(f.sent, sentPart{kind: "image", payload: mediaURL + "|" + caption})
	return nil
}

func (f *fakeDispatcher) SendAudio(ctx context.Context, instance, apiKey, number, audioRef string) error {
	f.sent = append(f.sent, sentPart{kind: "audio", payload: audioRef})
	return nil
}

func (f *fakeDispatcher) SendDocument(ctx context.Context, instance, apiKey, number, documentURL, fileName string) error {
	f.sent = append(f.sent, sentPart{kind: "document", payload: documentURL + "|" + fileName})
	return nil
}

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) UploadAudio(ctx context.Context, companyID string, settings models.S3Settings, remoteJID, messageID string, data []byte, mimeType string) (string, error) {
	return f.url, f.err
}

type fakeContacts struct {
	active      []models.ContactState
	deactivated int
}

func (f *fakeContacts) UpsertActive(ctx context.Context, state models.ContactState) error {
	f.active = append(f.active, state)
	return nil
}

func (f *fakeContacts) Deactivate(ctx context.Context, companyID, remoteJID string) error {
	f.deactivated++
	return nil
}

type fakeChannelLookup struct{ owner string }

func (f *fakeChannelLookup) LookupOwner(ctx context.Context, apiKey, ownerNumber string) (string, error) {
	return f.owner, nil
}

type fakeTTS struct{ data []byte }

func (f *fakeTTS) ResolveVoice(ctx context.Context, providerKey, agentID string) (string, error) {
	return "voice-1", nil
}

func (f *fakeTTS) Synthesize(ctx context.Context, providerKey, voiceID, text string) ([]byte, string, error) {
	return f.data, "audio/mpeg", nil
}

type pipelineFixture struct {
	processor  *Processor
	tenant     *models.TenantConfig
	dispatcher *fakeDispatcher
	history    *fakeHistory
	contacts   *fakeContacts
	replier    *fakeReplier
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	tenant := &models.TenantConfig{
		CompanyID:     "comp-1",
		Token:         "tok-1",
		IdentityPhone: "5511999990000",
		ConnectionID:  "conn-1",
		ModelAPIKey:   "sk-tenant",
		SystemPrompt:  "Você é a assistente.",
		FollowUp: models.FollowUpConfig{
			Enabled:  true,
			Attempts: []models.FollowUpAttempt{{Unit: "hours", Value: 4}},
		},
		Catalog: []models.ProductEntry{
			{ID: "prod-1", CompanyID: "comp-1", Name: "Tênis Runner", Kind: "produto", Price: 299.9, Active: true, Image: "https://cdn.example.com/r.jpg"},
		},
	}

	dispatcher := &fakeDispatcher{}
	history := &fakeHistory{}
	contacts := &fakeContacts{}
	replier := &fakeReplier{reply: "Olá! Posso ajudar?"}

	processor := NewProcessor(
		&fakeTenants{tenant: tenant},
		dedup.NewGuard(15*time.Second),
		isolation.NewIsolator(&fakeChannelLookup{owner: "conn-1"}),
		followup.NewTracker(contacts),
		history,
		replier,
		audio.NewEngine(&fakeTTS{data: []byte("voice-bytes")}, "default-voice", nil),
		&fakeUploader{url: "https://bucket.example.com/audio.mp3"},
		dispatcher,
		nil,
		20,
	)

	return &pipelineFixture{
		processor:  processor,
		tenant:     tenant,
		dispatcher: dispatcher,
		history:    history,
		contacts:   contacts,
		replier:    replier,
	}
}

func inboundBody(id string) []byte {
	return []byte(fmt.Sprintf(`{
		"instanceId": "conn-1",
		"owner": "5511999990000@s.whatsapp.net",
		"data": {
			"key": {"id": %q, "remoteJid": "5511988887777@s.whatsapp.net", "fromMe": false},
			"message": {"conversation": "oi, tem tênis?"},
			"messageType": "conversation"
		}
	}`, id))
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture(t)

	status, err := f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusSentViaAPI, status)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "text", f.dispatcher.sent[0].kind)
	assert.Equal(t, "Olá! Posso ajudar?", f.dispatcher.sent[0].payload)

	// Both turns persisted, follow-up armed, timer cleared on arrival.
	require.Len(t, f.history.appended, 2)
	assert.Equal(t, "user", f.history.appended[0].Role)
	assert.Equal(t, "assistant", f.history.appended[1].Role)
	assert.Equal(t, 1, f.contacts.deactivated)
	require.Len(t, f.contacts.active, 1)
	assert.Equal(t, "5511988887777@s.whatsapp.net", f.contacts.active[0].RemoteJID)
}

func TestProcessUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.processor.Process(context.Background(), "tok-wrong", inboundBody("MSG-1"))
	assert.ErrorIs(t, err, ErrUnknownToken)
	assert.Empty(t, f.dispatcher.sent)
}

func TestProcessInsufficientData(t *testing.T) {
	f := newFixture(t)

	status, err := f.processor.Process(context.Background(), "tok-1", []byte(`{"event":"presence.update"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficientData, status)
	assert.Empty(t, f.dispatcher.sent)
}

func TestProcessDuplicateDelivery(t *testing.T) {
	f := newFixture(t)

	status, err := f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusSentViaAPI, status)

	status, err = f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, status)
	assert.Len(t, f.dispatcher.sent, 1)
}

func TestProcessDropsAPIEchoSilently(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
		"instanceId": "conn-1",
		"owner": "5511999990000@s.whatsapp.net",
		"fromApi": true,
		"data": {"key": {"id": "MSG-2", "remoteJid": "5511988887777@s.whatsapp.net"}}
	}`)

	status, err := f.processor.Process(context.Background(), "tok-1", body)
	require.NoError(t, err)
	assert.Equal(t, "ignored_loop_protection", status)
	assert.Empty(t, f.dispatcher.sent)
	assert.Empty(t, f.history.appended)
}

func TestProcessDropsGroupMessage(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
		"instanceId": "conn-1",
		"owner": "5511999990000@s.whatsapp.net",
		"data": {"key": {"id": "MSG-3", "remoteJid": "12036304@g.us"}, "message": {"conversation": "oi"}}
	}`)

	status, err := f.processor.Process(context.Background(), "tok-1", body)
	require.NoError(t, err)
	assert.Equal(t, "ignored_filtered_kind", status)
	assert.Empty(t, f.dispatcher.sent)
}

func TestProcessManualOutboundArmsFollowUpWithoutReply(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
		"instanceId": "conn-1",
		"owner": "5511999990000@s.whatsapp.net",
		"data": {
			"key": {"id": "MSG-4", "remoteJid": "5511988887777@s.whatsapp.net", "fromMe": true},
			"message": {"conversation": "oi, vi seu interesse"}
		}
	}`)

	status, err := f.processor.Process(context.Background(), "tok-1", body)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, status)
	assert.Empty(t, f.dispatcher.sent)
	assert.Empty(t, f.history.appended)
	require.Len(t, f.contacts.active, 1)
	assert.True(t, f.contacts.active[0].IsActive)
}

func TestProcessModelFailureSendsApology(t *testing.T) {
	f := newFixture(t)
	f.replier.err = errors.New("rate limited")
	f.replier.reply = ""

	status, err := f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-5"))
	require.NoError(t, err)
	assert.Equal(t, StatusSentViaAPI, status)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, apologyReply, f.dispatcher.sent[0].payload)
}

func TestProcessUnconfiguredTenantSendsApology(t *testing.T) {
	f := newFixture(t)
	f.tenant.ModelAPIKey = ""
	f.tenant.SystemPrompt = ""

	status, err := f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-6"))
	require.NoError(t, err)
	assert.Equal(t, StatusSentViaAPI, status)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, apologyReply, f.dispatcher.sent[0].payload)
}

func TestProcessImageDirectiveSendsChunksInOrder(t *testing.T) {
	f := newFixture(t)
	f.replier.reply = "Temos sim! [SHOW_IMAGE: prod-1] Quer reservar?"

	status, err := f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-7"))
	require.NoError(t, err)
	assert.Equal(t, StatusSentViaAPI, status)

	require.Len(t, f.dispatcher.sent, 3)
	assert.Equal(t, "text", f.dispatcher.sent[0].kind)
	assert.Equal(t, "image", f.dispatcher.sent[1].kind)
	assert.True(t, strings.HasPrefix(f.dispatcher.sent[1].payload, "https://cdn.example.com/r.jpg|"))
	assert.Equal(t, "text", f.dispatcher.sent[2].kind)
	assert.Equal(t, 2, f.dispatcher.paced)
}

func TestProcessVoiceReplyReplacesTextKeepsImages(t *testing.T) {
	f := newFixture(t)
	f.tenant.Voice = models.VoiceConfig{
		Enabled:      true,
		ProviderKey:  "prov-key",
		VoiceID:      "voice-1",
		ResponseType: "always",
	}
	f.tenant.S3 = models.S3Settings{Enabled: true, Bucket: "bucket", Region: "us-east-1", AccessKey: "a", SecretKey: "b"}
	f.replier.reply = "Temos sim! [SHOW_IMAGE: prod-1] Quer reservar?"

	status, err := f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-8"))
	require.NoError(t, err)
	assert.Equal(t, StatusSentViaAPI, status)

	require.Len(t, f.dispatcher.sent, 2)
	assert.Equal(t, "audio", f.dispatcher.sent[0].kind)
	assert.Equal(t, "https://bucket.example.com/audio.mp3", f.dispatcher.sent[0].payload)
	assert.Equal(t, "image", f.dispatcher.sent[1].kind)
}

func TestProcessVoiceReplyInlineWhenNoStorage(t *testing.T) {
	f := newFixture(t)
	f.tenant.Voice = models.VoiceConfig{
		Enabled:      true,
		ProviderKey:  "prov-key",
		VoiceID:      "voice-1",
		ResponseType: "always",
	}

	status, err := f.processor.Process(context.Background(), "tok-1", inboundBody("MSG-9"))
	require.NoError(t, err)
	assert.Equal(t, StatusSentViaAPI, status)

	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "audio", f.dispatcher.sent[0].kind)
	assert.True(t, strings.HasPrefix(f.dispatcher.sent[0].payload, "data:audio/mpeg"))
}
