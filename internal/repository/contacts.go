package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// ContactRepo stores the follow-up timer per (company, contact) pair.
type ContactRepo struct {
	conn *sqlx.DB
}

func NewContactRepo(conn *sqlx.DB) *ContactRepo {
	return &ContactRepo{conn: conn}
}

// UpsertActive arms or re-arms the follow-up timer for a contact. The unique
// key guarantees at most one row per pair.
func (r *ContactRepo) UpsertActive(ctx context.Context, state models.ContactState) error {
	_, err := r.conn.ExecContext(ctx, `INSERT INTO contact_state
		(company_id, remote_jid, is_active, attempt_index, last_outbound, next_follow_up)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, remote_jid) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			attempt_index = EXCLUDED.attempt_index,
			last_outbound = EXCLUDED.last_outbound,
			next_follow_up = EXCLUDED.next_follow_up`,
		state.CompanyID, state.RemoteJID, state.IsActive, state.AttemptIndex,
		state.LastOutbound, state.NextFollowUp)
	if err != nil {
		return fmt.Errorf("failed to upsert contact state: %w", err)
	}
	return nil
}

// Deactivate disarms the follow-up timer when the contact replies. A missing
// row is not an error.
func (r *ContactRepo) Deactivate(ctx context.Context, companyID, remoteJID string) error {
	_, err := r.conn.ExecContext(ctx, `UPDATE contact_state
		SET is_active = FALSE, next_follow_up = NULL
		WHERE company_id = $1 AND remote_jid = $2`, companyID, remoteJID)
	if err != nil {
		return fmt.Errorf("failed to deactivate contact state: %w", err)
	}
	return nil
}

// ListActive returns the contacts with an armed follow-up timer for a tenant.
func (r *ContactRepo) ListActive(ctx context.Context, companyID string) ([]models.ContactState, error) {
	var states []models.ContactState
	err := r.conn.SelectContext(ctx, &states, `SELECT company_id, remote_jid, is_active,
		attempt_index, last_outbound, next_follow_up
		FROM contact_state
		WHERE company_id = $1 AND is_active = TRUE
		ORDER BY next_follow_up`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active contacts: %w", err)
	}
	return states, nil
}
