package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/vineeth-0509/open-llm/internal/shared/apikeys"
	"github.com/vineeth-0509/open-llm/internal/shared/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	credits BIGINT NOT NULL DEFAULT 0,
	credits_consumed BIGINT NOT NULL DEFAULT 0,
	disabled BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS api_keys (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	key_hash TEXT NOT NULL UNIQUE,
	key_prefix TEXT NOT NULL,
	name TEXT NOT NULL,
	disabled BOOLEAN NOT NULL DEFAULT false,
	deleted BOOLEAN NOT NULL DEFAULT false,
	credits_consumed BIGINT NOT NULL DEFAULT 0,
	last_used_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS llm_models (
	id BIGSERIAL PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	company TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_offerings (
	id BIGSERIAL PRIMARY KEY,
	model_id BIGINT NOT NULL REFERENCES llm_models(id),
	provider TEXT NOT NULL,
	input_token_cost BIGINT NOT NULL,
	output_token_cost BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_offerings_model ON provider_offerings(model_id);

CREATE TABLE IF NOT EXISTS usage_events (
	id BIGSERIAL PRIMARY KEY,
	api_key_id BIGINT NOT NULL REFERENCES api_keys(id),
	offering_id BIGINT NOT NULL REFERENCES provider_offerings(id),
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_usage_key_time ON usage_events(api_key_id, created_at);

CREATE TABLE IF NOT EXISTS topup_transactions (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	amount BIGINT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// LookupCredential resolves a raw API key to its key record and owning
// account. Disabled and soft-deleted keys are filtered out by the query, so
// they surface as ErrNotFound and can never authorize a charge.
func (db *DB) LookupCredential(ctx context.Context, rawKey string) (*models.APIKey, *models.Account, error) {
	keyHash := apikeys.Hash(rawKey)

	query := `
		SELECT k.id, k.account_id, k.key_hash, k.key_prefix, k.name, k.disabled, k.deleted,
		       k.credits_consumed, k.last_used_at, k.created_at,
		       a.id, a.email, a.credits, a.credits_consumed, a.disabled, a.created_at
		FROM api_keys k
		JOIN accounts a ON a.id = k.account_id
		WHERE k.key_hash = $1 AND k.disabled = false AND k.deleted = false AND a.disabled = false
	`

	var key models.APIKey
	var account models.Account
	err := db.conn.QueryRowContext(ctx, query, keyHash).Scan(
		&key.ID,
		&key.AccountID,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Name,
		&key.Disabled,
		&key.Deleted,
		&key.CreditsConsumed,
		&key.LastUsedAt,
		&key.CreatedAt,
		&account.ID,
		&account.Email,
		&account.Credits,
		&account.CreditsConsumed,
		&account.Disabled,
		&account.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	return &key, &account, nil
}

// GetModelBySlug retrieves a model by its canonical slug
func (db *DB) GetModelBySlug(ctx context.Context, slug string) (*models.Model, error) {
	query := `SELECT id, slug, name, company FROM llm_models WHERE slug = $1`

	var m models.Model
	err := db.conn.QueryRowContext(ctx, query, slug).Scan(&m.ID, &m.Slug, &m.Name, &m.Company)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &m, nil
}

// ListModels returns all models in the catalog
func (db *DB) ListModels(ctx context.Context) ([]models.Model, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, slug, name, company FROM llm_models ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var result []models.Model
	for rows.Next() {
		var m models.Model
		if err := rows.Scan(&m.ID, &m.Slug, &m.Name, &m.Company); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// ListOfferings returns all provider offerings for a model
func (db *DB) ListOfferings(ctx context.Context, modelID int64) ([]models.ProviderOffering, error) {
	query := `
		SELECT id, model_id, provider, input_token_cost, output_token_cost
		FROM provider_offerings
		WHERE model_id = $1
	`

	rows, err := db.conn.QueryContext(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()

	var offerings []models.ProviderOffering
	for rows.Next() {
		var o models.ProviderOffering
		if err := rows.Scan(&o.ID, &o.ModelID, &o.Provider, &o.InputTokenCost, &o.OutputTokenCost); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

// Charge debits an account and attributes the usage to an API key as a
// single transaction: decrement account balance, bump lifetime consumption
// on both account and key, stamp last-used, insert the usage event. The
// decrement is unconditional (bill-after-use): the upstream cost has already
// been incurred, so the balance is allowed to go negative rather than
// failing the call.
func (db *DB) Charge(ctx context.Context, accountID, apiKeyID, offeringID int64, inputTokens, outputTokens int, amount int64) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin charge: %w", err)
	}
	defer tx.Rollback()

	var newBalance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts SET credits = credits - $1, credits_consumed = credits_consumed + $1 WHERE id = $2 RETURNING credits`,
		amount, accountID,
	).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("debit account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE api_keys SET credits_consumed = credits_consumed + $1, last_used_at = NOW() WHERE id = $2`,
		amount, apiKeyID,
	)
	if err != nil {
		return 0, fmt.Errorf("attribute usage to key: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_events (api_key_id, offering_id, input_tokens, output_tokens, cost) VALUES ($1, $2, $3, $4, $5)`,
		apiKeyID, offeringID, inputTokens, outputTokens, amount,
	)
	if err != nil {
		return 0, fmt.Errorf("record usage event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit charge: %w", err)
	}
	return newBalance, nil
}

// TopUp credits an account and records the transaction atomically
func (db *DB) TopUp(ctx context.Context, accountID, amount int64) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin topup: %w", err)
	}
	defer tx.Rollback()

	var newBalance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts SET credits = credits + $1 WHERE id = $2 RETURNING credits`,
		amount, accountID,
	).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO topup_transactions (account_id, amount, status) VALUES ($1, $2, 'completed')`,
		accountID, amount,
	)
	if err != nil {
		return 0, fmt.Errorf("record topup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit topup: %w", err)
	}
	return newBalance, nil
}

// GetAccount retrieves an account by id
func (db *DB) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	query := `SELECT id, email, credits, credits_consumed, disabled, created_at FROM accounts WHERE id = $1`

	var a models.Account
	err := db.conn.QueryRowContext(ctx, query, accountID).Scan(
		&a.ID, &a.Email, &a.Credits, &a.CreditsConsumed, &a.Disabled, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &a, nil
}

// CreateAPIKey stores a new key. The raw key never touches the database;
// callers pass the hash and display prefix.
func (db *DB) CreateAPIKey(ctx context.Context, accountID int64, name, keyHash, keyPrefix string) (*models.APIKey, error) {
	query := `
		INSERT INTO api_keys (account_id, name, key_hash, key_prefix)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_id, key_hash, key_prefix, name, disabled, deleted, credits_consumed, last_used_at, created_at
	`

	var key models.APIKey
	err := db.conn.QueryRowContext(ctx, query, accountID, name, keyHash, keyPrefix).Scan(
		&key.ID,
		&key.AccountID,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Name,
		&key.Disabled,
		&key.Deleted,
		&key.CreditsConsumed,
		&key.LastUsedAt,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all non-deleted keys for an account
func (db *DB) ListAPIKeys(ctx context.Context, accountID int64) ([]models.APIKey, error) {
	query := `
		SELECT id, account_id, key_hash, key_prefix, name, disabled, deleted, credits_consumed, last_used_at, created_at
		FROM api_keys
		WHERE account_id = $1 AND deleted = false
		ORDER BY created_at DESC
	`

	rows, err := db.conn.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var key models.APIKey
		if err := rows.Scan(
			&key.ID, &key.AccountID, &key.KeyHash, &key.KeyPrefix, &key.Name,
			&key.Disabled, &key.Deleted, &key.CreditsConsumed, &key.LastUsedAt, &key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SetAPIKeyDisabled flips the enabled/disabled flag on a key
func (db *DB) SetAPIKeyDisabled(ctx context.Context, apiKeyID int64, disabled bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE api_keys SET disabled = $1 WHERE id = $2 AND deleted = false`,
		disabled, apiKeyID,
	)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteAPIKey marks a key deleted; rows are never removed
func (db *DB) SoftDeleteAPIKey(ctx context.Context, apiKeyID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE api_keys SET deleted = true WHERE id = $1`,
		apiKeyID,
	)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
