package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const (
	defaultJWTAccessTTL     = "15m"
	defaultJWTSecret        = "change-me-jwt-secret"
	defaultVaultPassphrase  = "change-me-vault-passphrase"
	defaultSessionTTL       = "24h"
	defaultSweepInterval    = "15m"
	defaultStorageOpTimeout = "30s"
	defaultChunkSizeBytes   = 10 * 1024 * 1024
	defaultProviderID       = "default"
	defaultRegion           = "eu-central-1"
)

// StorageRuntimeConfig is everything the API and sweep binaries read from the
// environment at startup.
type StorageRuntimeConfig struct {
	AppEnv       string
	Port         string
	JWTSecret    string
	JWTAccessTTL time.Duration

	// VaultPassphrase derives the key that encrypts tenant credentials at
	// rest. Rotating it invalidates every stored credential.
	VaultPassphrase string

	// Platform default storage, used by organizations without a custom
	// configuration.
	DefaultProvider      string
	DefaultBucket        string
	DefaultRegion        string
	DefaultEndpoint      string
	DefaultPublicBaseURL string

	ChunkSize        int64
	UploadSessionTTL time.Duration
	SweepInterval    time.Duration
	StorageOpTimeout time.Duration
}

func LoadStorageRuntimeConfig() (*StorageRuntimeConfig, error) {
	cfg := &StorageRuntimeConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", "8080"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.VaultPassphrase = strings.TrimSpace(getEnv("VAULT_PASSPHRASE", defaultVaultPassphrase))

	cfg.DefaultProvider = strings.TrimSpace(getEnv("DEFAULT_STORAGE_PROVIDER", defaultProviderID))
	cfg.DefaultBucket = strings.TrimSpace(getEnv("DEFAULT_STORAGE_BUCKET", "mediastore-shared"))
	cfg.DefaultRegion = strings.TrimSpace(getEnv("DEFAULT_STORAGE_REGION", defaultRegion))
	cfg.DefaultEndpoint = strings.TrimSpace(os.Getenv("DEFAULT_STORAGE_ENDPOINT"))
	cfg.DefaultPublicBaseURL = strings.TrimSpace(os.Getenv("DEFAULT_STORAGE_PUBLIC_URL"))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.UploadSessionTTL, err = parseDurationEnv("UPLOAD_SESSION_TTL", defaultSessionTTL)
	if err != nil {
		return nil, err
	}
	cfg.SweepInterval, err = parseDurationEnv("UPLOAD_SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return nil, err
	}
	cfg.StorageOpTimeout, err = parseDurationEnv("STORAGE_OP_TIMEOUT", defaultStorageOpTimeout)
	if err != nil {
		return nil, err
	}

	cfg.ChunkSize = defaultChunkSizeBytes
	if raw := strings.TrimSpace(os.Getenv("UPLOAD_CHUNK_SIZE")); raw != "" {
		var size int64
		if _, err := fmt.Sscanf(raw, "%d", &size); err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid UPLOAD_CHUNK_SIZE value %q", raw)
		}
		cfg.ChunkSize = size
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("storage config: default_provider=%s default_bucket=%s session_ttl=%s sweep=%s",
		cfg.DefaultProvider, cfg.DefaultBucket, cfg.UploadSessionTTL, cfg.SweepInterval)

	return cfg, nil
}

func validateConfig(cfg *StorageRuntimeConfig) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.UploadSessionTTL <= 0 {
		return fmt.Errorf("UPLOAD_SESSION_TTL must be > 0")
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("UPLOAD_SWEEP_INTERVAL must be > 0")
	}
	if cfg.StorageOpTimeout <= 0 {
		return fmt.Errorf("STORAGE_OP_TIMEOUT must be > 0")
	}
	if cfg.DefaultBucket == "" {
		return fmt.Errorf("DEFAULT_STORAGE_BUCKET must not be empty")
	}
	if cfg.DefaultRegion == "" {
		return fmt.Errorf("DEFAULT_STORAGE_REGION must not be empty")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.VaultPassphrase, defaultVaultPassphrase) {
			return fmt.Errorf("in prod/release VAULT_PASSPHRASE must be set and not default")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
