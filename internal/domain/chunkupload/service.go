package chunkupload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mediastore/internal/pkg/storagekey"
	"mediastore/internal/storage"
)

const (
	// DefaultChunkSize is the target size for every chunk but the last,
	// which is the remainder.
	DefaultChunkSize = int64(10 * 1024 * 1024)
	// DefaultSessionTTL is how long a session may stay open before the
	// sweeper reclaims it.
	DefaultSessionTTL = 24 * time.Hour

	// maxChunks mirrors the S3 part-count ceiling.
	maxChunks = 10000
)

// Gateway is the slice of the storage gateway the coordinator drives.
type Gateway interface {
	CreateMultipartUpload(ctx context.Context, orgID int64, key, contentType string) (string, error)
	PresignUploadPart(ctx context.Context, orgID int64, key, uploadID string, partNumber int32, ttl time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, orgID int64, key, uploadID string, parts []storage.CompletedPart) (*storage.UploadResult, error)
	AbortMultipartUpload(ctx context.Context, orgID int64, key, uploadID string) error
}

// ConfirmResult reports the session state after a confirmation. Completed is
// set once, on the confirmation that covered the final chunk, and then
// carries the finished upload in the same shape a direct upload returns.
type ConfirmResult struct {
	Session   *Session              `json:"session"`
	Completed bool                  `json:"completed"`
	Upload    *storage.UploadResult `json:"upload,omitempty"`
}

// SessionStatus is a session with its per-chunk confirmation map.
type SessionStatus struct {
	Session   *Session `json:"session"`
	Confirmed []bool   `json:"confirmed"`
}

// Service coordinates chunked uploads of large files. Clients upload chunks
// directly to presigned part URLs in any order; the coordinator tracks
// confirmations and finalizes the backend multipart upload once every index
// is covered. The coordinator performs no retries itself — confirmation
// idempotency is what makes client retries safe.
type Service struct {
	repo       Repository
	gateway    Gateway
	chunkSize  int64
	sessionTTL time.Duration
}

func NewService(repo Repository, gateway Gateway, chunkSize int64, sessionTTL time.Duration) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Service{repo: repo, gateway: gateway, chunkSize: chunkSize, sessionTTL: sessionTTL}
}

// Initialize derives the final storage key, opens a backend multipart upload
// and records a new active session with every chunk pending.
func (s *Service) Initialize(ctx context.Context, orgID, uploaderID int64, fileName string, fileSize int64, mimeType string) (*Session, error) {
	if fileSize <= 0 {
		return nil, ErrInvalidFileSize
	}
	totalChunks := int((fileSize + s.chunkSize - 1) / s.chunkSize)
	if totalChunks > maxChunks {
		return nil, ErrFileTooLarge
	}

	key, err := storagekey.ForUpload(orgID, fileName, uploaderID)
	if err != nil {
		return nil, err
	}

	uploadID, err := s.gateway.CreateMultipartUpload(ctx, orgID, key, mimeType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:              uuid.NewString(),
		OrgID:           orgID,
		UploaderID:      uploaderID,
		FileName:        fileName,
		MimeType:        mimeType,
		StorageKey:      key,
		FileSize:        fileSize,
		ChunkSize:       s.chunkSize,
		TotalChunks:     totalChunks,
		BackendUploadID: uploadID,
		Status:          StatusActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.sessionTTL),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		// The backend upload was already opened; reclaim it rather than
		// leaving an orphan for the sweeper.
		if abortErr := s.gateway.AbortMultipartUpload(ctx, orgID, key, uploadID); abortErr != nil {
			log.Printf("chunkupload: abort after failed session create: %v", abortErr)
		}
		return nil, err
	}
	return session, nil
}

// ChunkUploadURL issues a presigned URL scoped to one pending chunk of an
// active session. Chunk indices are 0-based; backend part numbers are
// 1-based.
func (s *Service) ChunkUploadURL(ctx context.Context, orgID int64, sessionID string, index int) (string, error) {
	session, err := s.loadLive(ctx, orgID, sessionID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= session.TotalChunks {
		return "", fmt.Errorf("%w: %d of %d", ErrChunkIndexInvalid, index, session.TotalChunks)
	}
	if _, err := s.repo.GetChunk(ctx, sessionID, index); err == nil {
		return "", ErrChunkAlreadyConfirmed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	return s.gateway.PresignUploadPart(ctx, session.OrgID, session.StorageKey, session.BackendUploadID, int32(index+1), storage.DefaultUploadTTL)
}

// ConfirmChunk records the integrity tag for one chunk. Re-confirming the
// same index with the same tag is a no-op; a different tag is a conflict.
// The confirmation that covers the final index completes the session and
// finalizes the backend multipart upload.
func (s *Service) ConfirmChunk(ctx context.Context, orgID int64, sessionID string, index int, etag string) (*ConfirmResult, error) {
	if etag == "" {
		return nil, ErrIntegrityTagRequired
	}

	session, err := s.loadLive(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= session.TotalChunks {
		return nil, fmt.Errorf("%w: %d of %d", ErrChunkIndexInvalid, index, session.TotalChunks)
	}

	inserted, err := s.repo.InsertChunk(ctx, &Chunk{
		SessionID:   sessionID,
		Index:       index,
		ETag:        etag,
		ConfirmedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if !inserted {
		existing, err := s.repo.GetChunk(ctx, sessionID, index)
		if err != nil {
			return nil, err
		}
		if existing.ETag != etag {
			return nil, fmt.Errorf("%w: chunk %d", ErrChunkConflict, index)
		}
		// Idempotent replay of an earlier confirmation. When every chunk is
		// already recorded and the session is still active, this replay is the
		// retry of a failed finalize; re-attempt completion instead of leaving
		// the session stuck.
		if session.ConfirmedChunks >= session.TotalChunks {
			return s.complete(ctx, session)
		}
		return &ConfirmResult{Session: session}, nil
	}

	confirmed, err := s.repo.IncrementConfirmed(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.ConfirmedChunks = confirmed

	if confirmed < session.TotalChunks {
		return &ConfirmResult{Session: session}, nil
	}
	return s.complete(ctx, session)
}

// complete transitions the session to completed and finalizes the backend
// upload. The status CAS picks a single finalizer when confirmations race.
func (s *Service) complete(ctx context.Context, session *Session) (*ConfirmResult, error) {
	won, err := s.repo.TransitionStatus(ctx, session.ID, []Status{StatusActive}, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another confirmation finalized concurrently.
		current, err := s.repo.Get(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Session: current, Completed: current.Status == StatusCompleted}, nil
	}

	chunks, err := s.repo.ListChunks(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	parts := make([]storage.CompletedPart, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, storage.CompletedPart{PartNumber: int32(c.Index + 1), ETag: c.ETag})
	}

	result, err := s.gateway.CompleteMultipartUpload(ctx, session.OrgID, session.StorageKey, session.BackendUploadID, parts)
	if err != nil {
		// Roll the status back so the client's retried confirmation can
		// trigger completion again.
		if _, revertErr := s.repo.TransitionStatus(ctx, session.ID, []Status{StatusCompleted}, StatusActive); revertErr != nil {
			log.Printf("chunkupload: revert completion of %s: %v", session.ID, revertErr)
		}
		return nil, err
	}

	session.Status = StatusCompleted
	return &ConfirmResult{Session: session, Completed: true, Upload: result}, nil
}

// Cancel aborts the backend upload and terminates the session. Valid from
// initializing or active only.
func (s *Service) Cancel(ctx context.Context, orgID int64, sessionID string) error {
	session, err := s.loadLive(ctx, orgID, sessionID)
	if err != nil {
		return err
	}

	won, err := s.repo.TransitionStatus(ctx, sessionID, []Status{StatusInitializing, StatusActive}, StatusCancelled)
	if err != nil {
		return err
	}
	if !won {
		return ErrSessionNotActive
	}

	if session.BackendUploadID != "" {
		if err := s.gateway.AbortMultipartUpload(ctx, session.OrgID, session.StorageKey, session.BackendUploadID); err != nil {
			// The sweep will retry orphaned backend uploads; cancellation
			// itself has already taken effect.
			log.Printf("chunkupload: abort backend upload for %s: %v", sessionID, err)
		}
	}
	return nil
}

// Status returns the session and its chunk confirmation map.
func (s *Service) Status(ctx context.Context, orgID int64, sessionID string) (*SessionStatus, error) {
	session, err := s.load(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.repo.ListChunks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	confirmed := make([]bool, session.TotalChunks)
	for _, c := range chunks {
		if c.Index >= 0 && c.Index < session.TotalChunks {
			confirmed[c.Index] = true
		}
	}
	return &SessionStatus{Session: session, Confirmed: confirmed}, nil
}

// SweepExpired marks overdue non-terminal sessions expired and aborts their
// backend uploads so orphaned partial uploads stop accruing storage charges.
// Returns the number of sessions reclaimed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, session := range expired {
		won, err := s.repo.TransitionStatus(ctx, session.ID, []Status{StatusInitializing, StatusActive}, StatusExpired)
		if err != nil {
			return swept, err
		}
		if !won {
			continue
		}
		if session.BackendUploadID != "" {
			if err := s.gateway.AbortMultipartUpload(ctx, session.OrgID, session.StorageKey, session.BackendUploadID); err != nil {
				log.Printf("chunkupload: sweep abort for %s: %v", session.ID, err)
			}
		}
		swept++
	}
	return swept, nil
}

// load fetches a session, enforces org ownership and lazily expires it when
// past its deadline. A foreign org's session reads as not found so session
// ids leak nothing across tenants.
func (s *Service) load(ctx context.Context, orgID int64, sessionID string) (*Session, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OrgID != orgID {
		return nil, ErrSessionNotFound
	}

	if !session.IsTerminal() && session.IsPastDeadline(time.Now()) {
		won, err := s.repo.TransitionStatus(ctx, sessionID, []Status{StatusInitializing, StatusActive}, StatusExpired)
		if err != nil {
			return nil, err
		}
		if won && session.BackendUploadID != "" {
			if err := s.gateway.AbortMultipartUpload(ctx, session.OrgID, session.StorageKey, session.BackendUploadID); err != nil {
				log.Printf("chunkupload: lazy-expire abort for %s: %v", sessionID, err)
			}
		}
		session.Status = StatusExpired
	}
	return session, nil
}

// loadLive is load restricted to sessions that can still make progress.
func (s *Service) loadLive(ctx context.Context, orgID int64, sessionID string) (*Session, error) {
	session, err := s.load(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case StatusActive, StatusInitializing:
		return session, nil
	case StatusExpired:
		return nil, ErrSessionExpired
	default:
		return nil, ErrSessionNotActive
	}
}
