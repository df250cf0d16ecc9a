// Package followup maintains the per-contact follow-up timer state. The
// pipeline only toggles rows; the escalation send belongs to an external
// periodic scheduler that scans active rows whose next_follow_up is due.
package followup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// ContactStore persists ContactState rows, one per (companyID, remoteJID).
type ContactStore interface {
	UpsertActive(ctx context.Context, state models.ContactState) error
	Deactivate(ctx context.Context, companyID, remoteJID string) error
}

// Tracker applies the two events that drive contact state.
type Tracker struct {
	store ContactStore
	now   func() time.Time
}

func NewTracker(store ContactStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// HandleOutbound records that the agent messaged a contact. When follow-up is
// enabled and at least one attempt is configured, the first nudge is scheduled
// at now + attempts[0].delay. Messages to the tenant's own number are ignored.
func (t *Tracker) HandleOutbound(ctx context.Context, tenant *models.TenantConfig, remoteJID string) error {
	if !tenant.FollowUp.Enabled || len(tenant.FollowUp.Attempts) == 0 {
		return nil
	}
	if sameNumber(remoteJID, tenant.IdentityPhone) {
		return nil
	}

	now := t.now()
	next := now.Add(tenant.FollowUp.Attempts[0].Delay())
	state := models.ContactState{
		CompanyID:    tenant.CompanyID,
		RemoteJID:    remoteJID,
		IsActive:     true,
		AttemptIndex: 0,
		LastOutbound: now,
		NextFollowUp: &next,
	}

	if err := t.store.UpsertActive(ctx, state); err != nil {
		return err
	}
	log.Debug().
		Str("companyID", tenant.CompanyID).
		Str("remoteJid", remoteJID).
		Time("nextFollowUp", next).
		Msg("Follow-up scheduled")
	return nil
}

// HandleInbound clears the follow-up timer: the contact answered.
func (t *Tracker) HandleInbound(ctx context.Context, companyID, remoteJID string) error {
	return t.store.Deactivate(ctx, companyID, remoteJID)
}

func sameNumber(a, b string) bool {
	return digits(a) != "" && digits(a) == digits(b)
}

func digits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '@' {
			break
		}
		if c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	return string(out)
}
