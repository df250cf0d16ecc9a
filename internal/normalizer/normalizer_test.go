package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNestedProviderShape(t *testing.T) {
	raw := []byte(`{
		"instanceId": "conn-1",
		"owner": "5511999990000@s.whatsapp.net",
		"data": {
			"key": {"id": "MSG-1", "remoteJid": "5511988887777@s.whatsapp.net", "fromMe": false},
			"message": {"conversation": "oi, tudo bem?"},
			"messageType": "conversation"
		}
	}`)

	env, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "MSG-1", env.ExternalID)
	assert.Equal(t, "5511988887777@s.whatsapp.net", env.SenderJID)
	assert.Equal(t, "5511999990000@s.whatsapp.net", env.OwnerNumber)
	assert.Equal(t, "conn-1", env.ConnectionID)
	assert.Equal(t, "oi, tudo bem?", env.Text)
	assert.False(t, env.IsFromMe)
	assert.False(t, env.IsGroup)
}

func TestNormalizeFlatProviderShape(t *testing.T) {
	raw := []byte(`{
		"messageId": "MSG-2",
		"sender": "5511988887777@s.whatsapp.net",
		"text": "quero ver o catálogo",
		"type": "conversation",
		"fromMe": false
	}`)

	env, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "MSG-2", env.ExternalID)
	assert.Equal(t, "quero ver o catálogo", env.Text)
	assert.Equal(t, "conversation", env.MessageType)
}

func TestNormalizeEquivalentShapesProduceSameEnvelope(t *testing.T) {
	nested := []byte(`{"data": {"key": {"id": "X", "remoteJid": "551122@s.whatsapp.net"}, "message": {"conversation": "olá"}}}`)
	flat := []byte(`{"messageId": "X", "sender": "551122@s.whatsapp.net", "text": "olá"}`)

	a, ok := Normalize(nested)
	require.True(t, ok)
	b, ok := Normalize(flat)
	require.True(t, ok)
	assert.Equal(t, a.ExternalID, b.ExternalID)
	assert.Equal(t, a.SenderJID, b.SenderJID)
	assert.Equal(t, a.Text, b.Text)
}

func TestNormalizeArrayTakesFirstElement(t *testing.T) {
	raw := []byte(`[{"sender": "1@s.whatsapp.net", "text": "primeiro"}, {"sender": "2@s.whatsapp.net", "text": "segundo"}]`)

	env, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "1@s.whatsapp.net", env.SenderJID)
	assert.Equal(t, "primeiro", env.Text)
}

func TestNormalizeJIDSuffixImpliesGroupAndBroadcast(t *testing.T) {
	env, ok := Normalize([]byte(`{"sender": "12036304@g.us", "text": "grupo"}`))
	require.True(t, ok)
	assert.True(t, env.IsGroup)

	env, ok = Normalize([]byte(`{"sender": "status@broadcast"}`))
	require.True(t, ok)
	assert.True(t, env.IsBroadcast)
}

func TestNormalizeRejectsPayloadWithoutSender(t *testing.T) {
	_, ok := Normalize([]byte(`{"text": "sem remetente"}`))
	assert.False(t, ok)

	_, ok = Normalize([]byte(`not json`))
	assert.False(t, ok)

	_, ok = Normalize([]byte(`[]`))
	assert.False(t, ok)
}

func TestNormalizeBoolFromString(t *testing.T) {
	env, ok := Normalize([]byte(`{"sender": "551122@s.whatsapp.net", "fromApi": "true"}`))
	require.True(t, ok)
	assert.True(t, env.FromAPI)
}

func TestNormalizeAudioMessage(t *testing.T) {
	raw := []byte(`{
		"data": {
			"key": {"id": "A-1", "remoteJid": "551133@s.whatsapp.net"},
			"message": {"audioMessage": {"url": "https://cdn.example.com/a.ogg"}},
			"messageType": "audioMessage"
		}
	}`)

	env, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.ogg", env.MediaURL)
	assert.True(t, env.WasAudio())
}
