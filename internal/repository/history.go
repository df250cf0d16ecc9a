package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// HistoryRepo persists conversation turns per tenant and contact.
type HistoryRepo struct {
	conn *sqlx.DB
}

func NewHistoryRepo(conn *sqlx.DB) *HistoryRepo {
	return &HistoryRepo{conn: conn}
}

// Recent returns up to limit turns in chronological order.
func (r *HistoryRepo) Recent(ctx context.Context, companyID, remoteJID string, limit int) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := r.conn.SelectContext(ctx, &turns, `SELECT role, content FROM (
			SELECT role, content, created_at FROM conversation_turns
			WHERE company_id = $1 AND remote_jid = $2
			ORDER BY created_at DESC LIMIT $3
		) recent ORDER BY created_at ASC`, companyID, remoteJID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	return turns, nil
}

// Append stores one turn.
func (r *HistoryRepo) Append(ctx context.Context, companyID, remoteJID, role, content string) error {
	_, err := r.conn.ExecContext(ctx, `INSERT INTO conversation_turns
		(id, company_id, remote_jid, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), companyID, remoteJID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}
