package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// ProviderConfigRepository provides data access methods for the
// provider_config table. The table holds at most one row; the stored token
// is already fernet-encrypted by the service layer.
type ProviderConfigRepository struct {
	db *sql.DB
}

// NewProviderConfigRepository creates a new ProviderConfigRepository with
// the provided database connection.
func NewProviderConfigRepository(db *sql.DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

// GetProviderConfig retrieves the provider configuration.
func (r *ProviderConfigRepository) GetProviderConfig(ctx context.Context) (model.ProviderConfig, error) {
	query := `
		SELECT id, api_token, rate_limit_per_minute, enabled, created_at, updated_at
		FROM provider_config
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var cfg model.ProviderConfig
	var createdAt, updatedAt sql.NullString
	err := r.db.QueryRowContext(ctx, query).
		Scan(&cfg.ID, &cfg.APIToken, &cfg.RateLimitPerMinute, &cfg.Enabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProviderConfig{}, apperrors.ErrProviderConfigNotFound
	}
	if err != nil {
		return model.ProviderConfig{}, fmt.Errorf("failed to query provider_config table: %w", err)
	}
	if createdAt.Valid {
		if t, err := parseTimestamp(createdAt.String); err == nil {
			cfg.CreatedAt = t
		}
	}
	if updatedAt.Valid {
		if t, err := parseTimestamp(updatedAt.String); err == nil {
			cfg.UpdatedAt = t
		}
	}
	return cfg, nil
}

// UpsertProviderConfig stores the provider configuration, replacing any
// existing row.
func (r *ProviderConfigRepository) UpsertProviderConfig(ctx context.Context, cfg model.ProviderConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	// Single-row table: clear then insert inside one transaction.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM provider_config`); err != nil {
		return fmt.Errorf("failed to clear provider_config table: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO provider_config (id, api_token, rate_limit_per_minute, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, cfg.ID, cfg.APIToken, cfg.RateLimitPerMinute, cfg.Enabled, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert provider_config row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit provider_config update: %w", err)
	}
	return nil
}
