package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/database"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/repository"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/version"
)

// SystemService handles system-level operations: health, version
// information, and the encrypted provider configuration.
type SystemService struct {
	db           *sql.DB
	providerRepo *repository.ProviderConfigRepository
	fernetKeys   []*fernet.Key
}

// NewSystemService creates a new SystemService. The fernet key may be empty,
// which disables provider token storage.
func NewSystemService(db *sql.DB, providerRepo *repository.ProviderConfigRepository, fernetKey string) (*SystemService, error) {
	s := &SystemService{db: db, providerRepo: providerRepo}
	if fernetKey != "" {
		keys, err := fernet.DecodeKeys(fernetKey)
		if err != nil {
			return nil, fmt.Errorf("invalid provider secret key: %w", err)
		}
		s.fernetKeys = keys
	}
	return s, nil
}

// CheckHealth checks the health of the system.
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// GetVersionInfo reports the application and schema versions.
func (s *SystemService) GetVersionInfo(ctx context.Context) (model.VersionInfo, error) {
	dbVersion, err := database.SchemaVersion(ctx, s.db)
	if err != nil {
		return model.VersionInfo{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToGetVersionInfo, err)
	}
	return model.VersionInfo{
		AppVersion: version.Version,
		DbVersion:  fmt.Sprintf("%d", dbVersion),
	}, nil
}

// SetProviderToken encrypts and stores the market-data vendor token.
func (s *SystemService) SetProviderToken(ctx context.Context, token string, rateLimitPerMinute int, enabled bool) error {
	if len(s.fernetKeys) == 0 {
		return fmt.Errorf("no provider secret key configured: %w", apperrors.ErrFailedToStoreProvider)
	}

	encrypted, err := fernet.EncryptAndSign([]byte(token), s.fernetKeys[0])
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrFailedToStoreProvider, err)
	}
	return s.providerRepo.UpsertProviderConfig(ctx, model.ProviderConfig{
		APIToken:           string(encrypted),
		RateLimitPerMinute: rateLimitPerMinute,
		Enabled:            enabled,
	})
}

// GetProviderConfig retrieves the provider configuration with the token
// decrypted.
func (s *SystemService) GetProviderConfig(ctx context.Context) (model.ProviderConfig, error) {
	cfg, err := s.providerRepo.GetProviderConfig(ctx)
	if err != nil {
		return model.ProviderConfig{}, err
	}
	if len(s.fernetKeys) == 0 {
		return model.ProviderConfig{}, apperrors.ErrFailedToDecryptProvider
	}

	// TTL zero: stored tokens never expire.
	plain := fernet.VerifyAndDecrypt([]byte(cfg.APIToken), 0, s.fernetKeys)
	if plain == nil {
		return model.ProviderConfig{}, apperrors.ErrFailedToDecryptProvider
	}
	cfg.APIToken = string(plain)
	return cfg, nil
}
