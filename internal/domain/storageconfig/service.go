package storageconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mediastore/internal/domain/provider"
	"mediastore/internal/pkg/validator"
	"mediastore/internal/pkg/vault"
	"mediastore/internal/storage"
)

// ConnectivityTester validates a candidate config against the live backend
// before it is persisted. Implemented by storage.Gateway.
type ConnectivityTester interface {
	TestConnection(ctx context.Context, cfg *storage.ResolvedConfig) error
}

// PoolInvalidator evicts the cached client handle for a config whose
// credentials changed. Implemented by storage.Pool.
type PoolInvalidator interface {
	Invalidate(cfg *storage.ResolvedConfig)
}

// ActivateInput is the tenant administrator's requested configuration.
type ActivateInput struct {
	Provider        string `json:"provider" binding:"required" validate:"required"`
	Bucket          string `json:"bucket" binding:"required" validate:"required"`
	Region          string `json:"region" binding:"required" validate:"required"`
	Endpoint        string `json:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	PublicBaseURL   string `json:"public_base_url" validate:"omitempty,url"`
	UsePathStyle    bool   `json:"use_path_style"`
}

// Service resolves and activates per-organization storage configuration.
// Resolved (decrypted) configs are cached; Activate invalidates the cache
// entry and the client pool synchronously so in-flight operations never see
// a stale credential after a successful rotation.
type Service struct {
	repo       Repository
	vault      *vault.Vault
	tester     ConnectivityTester
	pool       PoolInvalidator
	defaultCfg storage.ResolvedConfig

	mu    sync.RWMutex
	cache map[int64]*storage.ResolvedConfig
}

func NewService(repo Repository, v *vault.Vault, tester ConnectivityTester, pool PoolInvalidator, defaultCfg storage.ResolvedConfig) *Service {
	return &Service{
		repo:       repo,
		vault:      v,
		tester:     tester,
		pool:       pool,
		defaultCfg: defaultCfg,
		cache:      make(map[int64]*storage.ResolvedConfig),
	}
}

// Resolve returns the organization's active configuration with credentials
// decrypted, or the process-wide default when the org has none. A decryption
// failure surfaces as ErrTenantConfigCorrupt rather than falling back.
func (s *Service) Resolve(ctx context.Context, orgID int64) (*storage.ResolvedConfig, error) {
	s.mu.RLock()
	cached, ok := s.cache[orgID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	row, err := s.repo.GetActiveByOrg(ctx, orgID)
	if errors.Is(err, ErrConfigNotFound) {
		cfg := s.defaultCfg
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}

	resolved, err := s.decrypt(row)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[orgID] = resolved
	s.mu.Unlock()
	return resolved, nil
}

// Activate validates the requested configuration with a live connectivity
// test, then atomically replaces the organization's active config. On any
// validation failure nothing is mutated.
func (s *Service) Activate(ctx context.Context, orgID int64, in ActivateInput) (*StorageConfig, error) {
	// Struct-level validation runs here too, not only at the HTTP binding
	// layer, so internal callers get the same checks.
	if fieldErrs := validator.Validate(in); fieldErrs != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, fieldErrs)
	}

	p, ok := provider.ByID(in.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfigurationInvalid, in.Provider)
	}
	if !provider.ValidateRegion(in.Provider, in.Region) {
		return nil, fmt.Errorf("%w: region %q is not supported by %s", ErrConfigurationInvalid, in.Region, in.Provider)
	}
	if p.RequiresEndpoint && in.Endpoint == "" {
		return nil, fmt.Errorf("%w: provider %s requires a custom endpoint", ErrConfigurationInvalid, in.Provider)
	}

	candidate := &storage.ResolvedConfig{
		Provider:        in.Provider,
		Bucket:          in.Bucket,
		Region:          in.Region,
		Endpoint:        in.Endpoint,
		AccessKeyID:     in.AccessKeyID,
		SecretAccessKey: in.SecretAccessKey,
		PublicBaseURL:   in.PublicBaseURL,
		UsePathStyle:    in.UsePathStyle,
	}

	if err := s.tester.TestConnection(ctx, candidate); err != nil {
		// The backend's literal detail is kept so the administrator can fix
		// credentials ("access denied", "bucket not found", ...).
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}

	// Capture the outgoing active row: a rotation may move the org to a
	// different (provider,bucket,region) triple, and the old triple's pooled
	// client must be evicted too or it lingers until process exit.
	prev, err := s.repo.GetActiveByOrg(ctx, orgID)
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	row := &StorageConfig{
		OrgID:         orgID,
		Provider:      in.Provider,
		Bucket:        in.Bucket,
		Region:        in.Region,
		Endpoint:      in.Endpoint,
		AccessKeyEnc:  s.vault.Encrypt(in.AccessKeyID),
		SecretKeyEnc:  s.vault.Encrypt(in.SecretAccessKey),
		PublicBaseURL: in.PublicBaseURL,
		UsePathStyle:  in.UsePathStyle,
	}
	if err := s.repo.Activate(ctx, row); err != nil {
		return nil, err
	}

	// Rotation must be visible immediately: drop the decrypted cache entry
	// and the pooled client before returning.
	s.mu.Lock()
	delete(s.cache, orgID)
	s.mu.Unlock()
	if s.pool != nil {
		s.pool.Invalidate(candidate)
		if prev != nil {
			s.pool.Invalidate(&storage.ResolvedConfig{
				Provider: prev.Provider,
				Bucket:   prev.Bucket,
				Region:   prev.Region,
			})
		}
	}

	return row, nil
}

// Active returns the organization's active row without decrypting anything,
// for the admin surface. ErrConfigNotFound when the org uses the default.
func (s *Service) Active(ctx context.Context, orgID int64) (*StorageConfig, error) {
	return s.repo.GetActiveByOrg(ctx, orgID)
}

// History lists all rows for the organization, newest first.
func (s *Service) History(ctx context.Context, orgID int64) ([]*StorageConfig, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

// Test runs the connectivity probe against a candidate configuration without
// persisting anything.
func (s *Service) Test(ctx context.Context, in ActivateInput) error {
	return s.tester.TestConnection(ctx, &storage.ResolvedConfig{
		Provider:        in.Provider,
		Bucket:          in.Bucket,
		Region:          in.Region,
		Endpoint:        in.Endpoint,
		AccessKeyID:     in.AccessKeyID,
		SecretAccessKey: in.SecretAccessKey,
		UsePathStyle:    in.UsePathStyle,
	})
}

func (s *Service) decrypt(row *StorageConfig) (*storage.ResolvedConfig, error) {
	accessKey, err := s.vault.Decrypt(row.AccessKeyEnc)
	if err != nil {
		return nil, fmt.Errorf("%w: access key for org %d: %v", ErrTenantConfigCorrupt, row.OrgID, err)
	}
	secretKey, err := s.vault.Decrypt(row.SecretKeyEnc)
	if err != nil {
		return nil, fmt.Errorf("%w: secret key for org %d: %v", ErrTenantConfigCorrupt, row.OrgID, err)
	}

	return &storage.ResolvedConfig{
		Provider:        row.Provider,
		Bucket:          row.Bucket,
		Region:          row.Region,
		Endpoint:        row.Endpoint,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		PublicBaseURL:   row.PublicBaseURL,
		UsePathStyle:    row.UsePathStyle,
	}, nil
}
