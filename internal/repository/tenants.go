// Package repository implements the persistence layer on top of sqlx.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// ErrTenantNotFound is returned when no tenant matches the webhook token.
var ErrTenantNotFound = errors.New("tenant not found")

type tenantRow struct {
	CompanyID      string `db:"company_id"`
	Token          string `db:"token"`
	IdentityPhone  string `db:"identity_phone"`
	ConnectionID   string `db:"connection_id"`
	ModelAPIKey    string `db:"model_api_key"`
	ModelName      string `db:"model_name"`
	SystemPrompt   string `db:"system_prompt"`
	KnowledgeBase  string `db:"knowledge_base"`
	FollowUpConfig string `db:"follow_up_config"`
	VoiceConfig    string `db:"voice_config"`
	S3Config       string `db:"s3_config"`
}

// TenantRepo loads tenant configuration by webhook token, with a short-lived
// cache in front so a burst of messages does not hammer the database.
type TenantRepo struct {
	conn  *sqlx.DB
	cache *gocache.Cache
}

func NewTenantRepo(conn *sqlx.DB, cache *gocache.Cache) *TenantRepo {
	return &TenantRepo{conn: conn, cache: cache}
}

// GetByToken resolves the tenant owning a webhook token, catalog included.
func (r *TenantRepo) GetByToken(ctx context.Context, token string) (*models.TenantConfig, error) {
	if cached, found := r.cache.Get(token); found {
		return cached.(*models.TenantConfig), nil
	}

	var row tenantRow
	err := r.conn.GetContext(ctx, &row, `SELECT company_id, token, identity_phone, connection_id,
		model_api_key, model_name, system_prompt, knowledge_base,
		follow_up_config, voice_config, s3_config
		FROM tenants WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	tenant := &models.TenantConfig{
		CompanyID:     row.CompanyID,
		Token:         row.Token,
		IdentityPhone: row.IdentityPhone,
		ConnectionID:  row.ConnectionID,
		ModelAPIKey:   row.ModelAPIKey,
		ModelName:     row.ModelName,
		SystemPrompt:  row.SystemPrompt,
		KnowledgeBase: row.KnowledgeBase,
	}
	decodeJSONColumn(row.FollowUpConfig, &tenant.FollowUp, "follow_up_config", row.CompanyID)
	decodeJSONColumn(row.VoiceConfig, &tenant.Voice, "voice_config", row.CompanyID)
	decodeJSONColumn(row.S3Config, &tenant.S3, "s3_config", row.CompanyID)

	catalog, err := r.loadCatalog(ctx, row.CompanyID)
	if err != nil {
		return nil, err
	}
	tenant.Catalog = catalog

	r.cache.Set(token, tenant, gocache.DefaultExpiration)
	return tenant, nil
}

// Invalidate drops the cached entry for a token, used after admin updates.
func (r *TenantRepo) Invalidate(token string) {
	r.cache.Delete(token)
}

func (r *TenantRepo) loadCatalog(ctx context.Context, companyID string) ([]models.ProductEntry, error) {
	var products []models.ProductEntry
	err := r.conn.SelectContext(ctx, &products, `SELECT id, company_id, name, kind, price, active,
		image, pdf, payment_link, price_hidden
		FROM products WHERE company_id = $1 ORDER BY name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	for i := range products {
		var variants []models.VariantEntry
		err := r.conn.SelectContext(ctx, &variants, `SELECT id, name, color, size, price, image
			FROM product_variants WHERE product_id = $1 ORDER BY name`, products[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load variants: %w", err)
		}
		products[i].Variants = variants
	}
	return products, nil
}

func decodeJSONColumn(raw string, target interface{}, column, companyID string) {
	if raw == "" || raw == "{}" {
		return
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		log.Warn().Err(err).Str("companyID", companyID).Str("column", column).Msg("Ignoring malformed tenant config column")
	}
}
