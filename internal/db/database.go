// Package db opens the service database and applies the schema.
package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Connect opens the database selected by the DSN. A postgres:// DSN uses
// PostgreSQL, anything else is treated as a SQLite file path.
func Connect(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("driver", driver).Msg("Database connection established")
	return conn, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		company_id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		identity_phone TEXT NOT NULL DEFAULT '',
		connection_id TEXT NOT NULL DEFAULT '',
		model_api_key TEXT NOT NULL DEFAULT '',
		model_name TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL DEFAULT '',
		knowledge_base TEXT NOT NULL DEFAULT '',
		follow_up_config TEXT NOT NULL DEFAULT '{}',
		voice_config TEXT NOT NULL DEFAULT '{}',
		s3_config TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'produto',
		price REAL NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		image TEXT NOT NULL DEFAULT '',
		pdf TEXT NOT NULL DEFAULT '',
		payment_link TEXT NOT NULL DEFAULT '',
		price_hidden BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS product_variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		size TEXT NOT NULL DEFAULT '',
		price REAL,
		image TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS contact_state (
		company_id TEXT NOT NULL,
		remote_jid TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		attempt_index INTEGER NOT NULL DEFAULT 0,
		last_outbound TIMESTAMP NOT NULL,
		next_follow_up TIMESTAMP,
		PRIMARY KEY (company_id, remote_jid)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_turns (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		remote_jid TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		remote_jid TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		customer_name TEXT NOT NULL,
		customer_phone TEXT NOT NULL,
		specialist_id TEXT NOT NULL DEFAULT '',
		type_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		external_event_id TEXT NOT NULL DEFAULT '',
		external_link TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_company ON products (company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_variants_product ON product_variants (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns (company_id, remote_jid, created_at)`,
}

// Migrate applies the idempotent schema.
func Migrate(conn *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	log.Info().Msg("Database schema is up to date")
	return nil
}
