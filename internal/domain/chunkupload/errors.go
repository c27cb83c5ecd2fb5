package chunkupload

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("upload session not found")
	ErrSessionNotActive = errors.New("upload session is not active")
	// ErrSessionExpired wraps ErrSessionNotActive: an expired session is a
	// specific way of being not active, and callers matching the broader
	// error keep working.
	ErrSessionExpired = fmt.Errorf("upload session has expired: %w", ErrSessionNotActive)

	ErrChunkIndexInvalid     = errors.New("chunk index out of range")
	ErrChunkAlreadyConfirmed = errors.New("chunk already confirmed")
	// ErrChunkConflict means a chunk was re-confirmed with a different
	// integrity tag than previously recorded, which would let a stale retry
	// overwrite a newer upload of the same part.
	ErrChunkConflict = errors.New("chunk confirmed with conflicting integrity tag")

	ErrIntegrityTagRequired = errors.New("integrity tag is required")
	ErrInvalidFileSize      = errors.New("file size must be positive")
	ErrFileTooLarge         = errors.New("file exceeds maximum chunked upload size")
)
