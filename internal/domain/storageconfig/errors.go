package storageconfig

import "errors"

var (
	ErrConfigNotFound = errors.New("no active storage config for organization")
	// ErrTenantConfigCorrupt means the stored credentials failed decryption.
	// This is never masked by a fallback to defaults: silently using the
	// wrong bucket would be a data-isolation bug, not a recoverable state.
	ErrTenantConfigCorrupt = errors.New("tenant storage config is corrupt")
	// ErrConfigurationInvalid is an activation-time validation failure; it
	// wraps the backend's literal error detail for the tenant administrator.
	ErrConfigurationInvalid = errors.New("storage configuration is invalid")
)
