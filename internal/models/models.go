package models

import (
	"strconv"
	"time"
)

// MessageEnvelope is the canonical form of an inbound webhook payload.
// It is built per request by the normalizer and never persisted.
type MessageEnvelope struct {
	ExternalID   string
	SenderJID    string
	OwnerNumber  string
	ConnectionID string
	CompanyID    string
	Text         string
	MediaURL     string
	MessageType  string
	IsFromMe     bool
	IsGroup      bool
	IsBroadcast  bool
	FromAPI      bool
}

// WasAudio reports whether the inbound message originated as a voice note.
func (e MessageEnvelope) WasAudio() bool {
	switch e.MessageType {
	case "audioMessage", "audio", "ptt":
		return true
	}
	return false
}

// FollowUpAttempt is a single configured nudge delay.
type FollowUpAttempt struct {
	Unit  string `json:"unit" db:"unit"` // minutes | hours | days
	Value int    `json:"value" db:"value"`
}

// Delay converts the attempt into a duration.
func (a FollowUpAttempt) Delay() time.Duration {
	switch a.Unit {
	case "minutes":
		return time.Duration(a.Value) * time.Minute
	case "days":
		return time.Duration(a.Value) * 24 * time.Hour
	default:
		return time.Duration(a.Value) * time.Hour
	}
}

// FollowUpConfig is the tenant's follow-up schedule.
type FollowUpConfig struct {
	Enabled  bool              `json:"enabled"`
	Attempts []FollowUpAttempt `json:"attempts"`
}

// VoiceConfig controls spoken replies for a tenant.
type VoiceConfig struct {
	Enabled            bool   `json:"enabled"`
	ProviderKey        string `json:"providerKey"`
	VoiceID            string `json:"voiceId"`
	ResponseType       string `json:"responseType"` // always | audio_only | percentage
	ResponsePercentage int    `json:"responsePercentage"`
}

// S3Settings enables per-tenant storage of synthesized audio artifacts.
type S3Settings struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	PathStyle bool   `json:"pathStyle"`
	PublicURL string `json:"publicUrl"`
}

// TenantConfig is an isolated customer account. Read-only for the pipeline;
// ownership and CRUD live in an external admin surface.
type TenantConfig struct {
	CompanyID     string
	Token         string
	IdentityPhone string
	ConnectionID  string
	ModelAPIKey   string
	ModelName     string
	SystemPrompt  string
	KnowledgeBase string
	FollowUp      FollowUpConfig
	Voice         VoiceConfig
	S3            S3Settings
	Catalog       []ProductEntry
}

// VariantEntry is a variation of a catalog product (color/size/price).
type VariantEntry struct {
	ID    string   `db:"id"`
	Name  string   `db:"name"`
	Color string   `db:"color"`
	Size  string   `db:"size"`
	Price *float64 `db:"price"`
	Image string   `db:"image"`
}

// ProductEntry is one catalog item owned by a tenant.
type ProductEntry struct {
	ID          string  `db:"id"`
	CompanyID   string  `db:"company_id"`
	Name        string  `db:"name"`
	Kind        string  `db:"kind"` // produto | servico
	Price       float64 `db:"price"`
	Active      bool    `db:"active"`
	Image       string  `db:"image"`
	PDF         string  `db:"pdf"`
	PaymentLink string  `db:"payment_link"`
	PriceHidden bool    `db:"price_hidden"`
	Variants    []VariantEntry
}

// FormatPrice renders a price the way captions and prompts expect:
// no trailing zeros (49.9 stays "49.9", 50 stays "50").
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// ContactState tracks the follow-up timer for one contact of one tenant.
// Invariant: at most one row per (company_id, remote_jid).
type ContactState struct {
	CompanyID    string     `db:"company_id"`
	RemoteJID    string     `db:"remote_jid"`
	IsActive     bool       `db:"is_active"`
	AttemptIndex int        `db:"attempt_index"`
	LastOutbound time.Time  `db:"last_outbound"`
	NextFollowUp *time.Time `db:"next_follow_up"`
}

// ConversationTurn is one persisted turn of a conversation.
type ConversationTurn struct {
	Role    string `db:"role"` // user | assistant
	Content string `db:"content"`
}

// ChunkKind discriminates response chunk variants.
type ChunkKind string

const (
	ChunkText  ChunkKind = "text"
	ChunkImage ChunkKind = "image"
)

// ResponseChunk is one ordered deliverable part of a reply.
type ResponseChunk struct {
	Kind    ChunkKind
	Content string // text content for ChunkText
	URL     string // image URL for ChunkImage
	Caption string // image caption for ChunkImage
}

// DocumentArtifact is a PDF detached from the reply by the postprocessor.
type DocumentArtifact struct {
	URL      string
	FileName string
}

// Appointment is a booked calendar event persisted for the tenant.
type Appointment struct {
	ID              string    `db:"id"`
	CompanyID       string    `db:"company_id"`
	RemoteJID       string    `db:"remote_jid"`
	StartTime       time.Time `db:"start_time"`
	CustomerName    string    `db:"customer_name"`
	CustomerPhone   string    `db:"customer_phone"`
	SpecialistID    string    `db:"specialist_id"`
	TypeID          string    `db:"type_id"`
	Notes           string    `db:"notes"`
	ExternalEventID string    `db:"external_event_id"`
	ExternalLink    string    `db:"external_link"`
	CreatedAt       time.Time `db:"created_at"`
}
