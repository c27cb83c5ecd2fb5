package chunkupload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"mediastore/internal/storage"
)

type fakeGateway struct {
	mu        sync.Mutex
	created   int
	completed int
	aborted   []string
	parts     []storage.CompletedPart

	createErr   error
	completeErr error
}

func (f *fakeGateway) CreateMultipartUpload(ctx context.Context, orgID int64, key, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return fmt.Sprintf("upload-%d", f.created), nil
}

func (f *fakeGateway) PresignUploadPart(ctx context.Context, orgID int64, key, uploadID string, partNumber int32, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://backend.test/%s?uploadId=%s&partNumber=%d", key, uploadID, partNumber), nil
}

func (f *fakeGateway) CompleteMultipartUpload(ctx context.Context, orgID int64, key, uploadID string, parts []storage.CompletedPart) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.completed++
	f.parts = parts
	return &storage.UploadResult{Key: key, URL: "https://backend.test/" + key}, nil
}

func (f *fakeGateway) AbortMultipartUpload(ctx context.Context, orgID int64, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func setupTestService(t *testing.T, gw *fakeGateway) (*Service, Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:chunkupload_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Chunk{}); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	// Serialize writers; sqlite cannot take concurrent write transactions.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	repo := NewRepository(db)
	return NewService(repo, gw, DefaultChunkSize, DefaultSessionTTL), repo
}

func TestInitializeSplitsFileIntoChunks(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := setupTestService(t, gw)

	// 22 MB over 10 MiB chunks: two full chunks plus a remainder.
	session, err := svc.Initialize(context.Background(), 1, 42, "movie.mp4", 22*1000*1000, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if session.TotalChunks != 3 {
		t.Fatalf("expected 3 chunks, got %d", session.TotalChunks)
	}
	if session.Status != StatusActive {
		t.Fatalf("expected active session, got %s", session.Status)
	}
	if session.BackendUploadID == "" {
		t.Fatal("expected backend upload to be opened")
	}
	if gw.created != 1 {
		t.Fatalf("expected one backend upload, got %d", gw.created)
	}
}

func TestInitializeRejectsInvalidSize(t *testing.T) {
	svc, _ := setupTestService(t, &fakeGateway{})

	if _, err := svc.Initialize(context.Background(), 1, 42, "f.bin", 0, ""); !errors.Is(err, ErrInvalidFileSize) {
		t.Fatalf("expected ErrInvalidFileSize, got %v", err)
	}
	if _, err := svc.Initialize(context.Background(), 1, 42, "f.bin", -5, ""); !errors.Is(err, ErrInvalidFileSize) {
		t.Fatalf("expected ErrInvalidFileSize, got %v", err)
	}
}

func TestInitializeAbortsBackendOnPersistFailure(t *testing.T) {
	gw := &fakeGateway{}
	dsn := fmt.Sprintf("file:chunkupload_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	// Deliberately skip migration so the insert fails.
	svc := NewService(NewRepository(db), gw, DefaultChunkSize, DefaultSessionTTL)

	if _, err := svc.Initialize(context.Background(), 1, 42, "f.bin", 100, ""); err == nil {
		t.Fatal("expected persist failure")
	}
	if len(gw.aborted) != 1 {
		t.Fatalf("expected orphaned backend upload to be aborted, got %v", gw.aborted)
	}
}

func TestChunkUploadURLBounds(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := setupTestService(t, gw)
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 25*1024*1024, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	url, err := svc.ChunkUploadURL(ctx, 1, session.ID, 2)
	if err != nil {
		t.Fatalf("ChunkUploadURL: %v", err)
	}
	// Chunk index 2 maps to backend part number 3.
	if want := "partNumber=3"; !strings.Contains(url, want) {
		t.Fatalf("expected %q in %q", want, url)
	}

	if _, err := svc.ChunkUploadURL(ctx, 1, session.ID, -1); !errors.Is(err, ErrChunkIndexInvalid) {
		t.Fatalf("expected ErrChunkIndexInvalid for -1, got %v", err)
	}
	if _, err := svc.ChunkUploadURL(ctx, 1, session.ID, session.TotalChunks); !errors.Is(err, ErrChunkIndexInvalid) {
		t.Fatalf("expected ErrChunkIndexInvalid past end, got %v", err)
	}
}

func TestChunkUploadURLHiddenAcrossOrgs(t *testing.T) {
	svc, _ := setupTestService(t, &fakeGateway{})
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 100, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := svc.ChunkUploadURL(ctx, 2, session.ID, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign org, got %v", err)
	}
	if _, err := svc.Status(ctx, 2, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign org status, got %v", err)
	}
}

func TestConfirmOutOfOrderCompletesOnLastChunk(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := setupTestService(t, gw)
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 25*1024*1024, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if session.TotalChunks != 3 {
		t.Fatalf("fixture expects 3 chunks, got %d", session.TotalChunks)
	}

	for i, idx := range []int{2, 0} {
		res, err := svc.ConfirmChunk(ctx, 1, session.ID, idx, fmt.Sprintf("etag-%d", idx))
		if err != nil {
			t.Fatalf("ConfirmChunk(%d): %v", idx, err)
		}
		if res.Completed {
			t.Fatalf("completed after %d confirmations", i+1)
		}
	}
	if gw.completed != 0 {
		t.Fatal("backend finalized before all chunks confirmed")
	}

	res, err := svc.ConfirmChunk(ctx, 1, session.ID, 1, "etag-1")
	if err != nil {
		t.Fatalf("final ConfirmChunk: %v", err)
	}
	if !res.Completed {
		t.Fatal("expected completion on the final confirmation")
	}
	if res.Upload == nil || res.Upload.Key != session.StorageKey {
		t.Fatalf("expected upload result for %q, got %+v", session.StorageKey, res.Upload)
	}
	if gw.completed != 1 {
		t.Fatalf("expected exactly one backend finalize, got %d", gw.completed)
	}

	// Parts must be handed to the backend ordered by part number.
	for i, p := range gw.parts {
		if p.PartNumber != int32(i+1) {
			t.Fatalf("part %d has number %d", i, p.PartNumber)
		}
		if p.ETag != fmt.Sprintf("etag-%d", i) {
			t.Fatalf("part %d has tag %q", i, p.ETag)
		}
	}

	status, err := svc.Status(ctx, 1, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Session.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", status.Session.Status)
	}
}

func TestConfirmChunkIdempotentReplay(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := setupTestService(t, gw)
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 25*1024*1024, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := svc.ConfirmChunk(ctx, 1, session.ID, 0, "etag-0"); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}

	// A retried confirmation with the same tag is a no-op.
	res, err := svc.ConfirmChunk(ctx, 1, session.ID, 0, "etag-0")
	if err != nil {
		t.Fatalf("replayed confirmation: %v", err)
	}
	if res.Completed {
		t.Fatal("replay must not complete the session")
	}

	status, err := svc.Status(ctx, 1, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Session.ConfirmedChunks != 1 {
		t.Fatalf("replay inflated the counter to %d", status.Session.ConfirmedChunks)
	}

	// A different tag for the same index is a conflict, not an overwrite.
	if _, err := svc.ConfirmChunk(ctx, 1, session.ID, 0, "etag-other"); !errors.Is(err, ErrChunkConflict) {
		t.Fatalf("expected ErrChunkConflict, got %v", err)
	}
}

func TestConfirmChunkRequiresTag(t *testing.T) {
	svc, _ := setupTestService(t, &fakeGateway{})
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 100, "")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := svc.ConfirmChunk(ctx, 1, session.ID, 0, ""); !errors.Is(err, ErrIntegrityTagRequired) {
		t.Fatalf("expected ErrIntegrityTagRequired, got %v", err)
	}
}

func TestBackendCompletionFailureAllowsRetry(t *testing.T) {
	gw := &fakeGateway{completeErr: errors.New("backend unavailable")}
	svc, _ := setupTestService(t, gw)
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "small.bin", 100, "")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := svc.ConfirmChunk(ctx, 1, session.ID, 0, "etag-0"); err == nil {
		t.Fatal("expected finalize failure to surface")
	}

	// The failed finalize rolls the session back to active, so the retried
	// confirmation of the already-recorded chunk finalizes once the backend
	// recovers.
	gw.completeErr = nil
	res, err := svc.ConfirmChunk(ctx, 1, session.ID, 0, "etag-0")
	if err != nil {
		t.Fatalf("retried confirmation: %v", err)
	}
	if !res.Completed {
		t.Fatalf("expected retry to complete, got %+v", res)
	}
	if res.Upload == nil {
		t.Fatal("expected upload result on the completing retry")
	}
	if gw.completed != 1 {
		t.Fatalf("expected exactly one successful finalize, got %d", gw.completed)
	}

	status, err := svc.Status(ctx, 1, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Session.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", status.Session.Status)
	}
}

func TestCancelledSessionRejectsFurtherWork(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := setupTestService(t, gw)
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 25*1024*1024, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := svc.Cancel(ctx, 1, session.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(gw.aborted) != 1 {
		t.Fatalf("expected backend abort on cancel, got %v", gw.aborted)
	}

	if _, err := svc.ChunkUploadURL(ctx, 1, session.ID, 0); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if _, err := svc.ConfirmChunk(ctx, 1, session.ID, 0, "etag-0"); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if err := svc.Cancel(ctx, 1, session.ID); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}

	// Status stays readable on terminal sessions.
	status, err := svc.Status(ctx, 1, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Session.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", status.Session.Status)
	}
}

func TestExpiredSessionLazilyReclaimed(t *testing.T) {
	gw := &fakeGateway{}
	svc, repo := setupTestService(t, gw)
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 25*1024*1024, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	backdateExpiry(t, repo, session.ID)

	_, err = svc.ChunkUploadURL(ctx, 1, session.ID, 0)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	// Expiry is a flavor of not-active; broad matching keeps working.
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatal("ErrSessionExpired should match ErrSessionNotActive")
	}
	if len(gw.aborted) != 1 {
		t.Fatalf("expected lazy expiry to abort backend upload, got %v", gw.aborted)
	}

	status, err := svc.Status(ctx, 1, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Session.Status != StatusExpired {
		t.Fatalf("expected expired, got %s", status.Session.Status)
	}
}

func TestSweepExpiredReclaimsAndAborts(t *testing.T) {
	gw := &fakeGateway{}
	svc, repo := setupTestService(t, gw)
	ctx := context.Background()

	stale, err := svc.Initialize(ctx, 1, 42, "stale.mp4", 100, "")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	fresh, err := svc.Initialize(ctx, 1, 42, "fresh.mp4", 100, "")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	backdateExpiry(t, repo, stale.ID)

	swept, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept session, got %d", swept)
	}
	if len(gw.aborted) != 1 || gw.aborted[0] != stale.BackendUploadID {
		t.Fatalf("expected abort of %s, got %v", stale.BackendUploadID, gw.aborted)
	}

	status, err := svc.Status(ctx, 1, fresh.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Session.Status != StatusActive {
		t.Fatalf("sweep touched a live session: %s", status.Session.Status)
	}
}

func TestConcurrentConfirmationsCompleteOnce(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := setupTestService(t, gw)
	ctx := context.Background()

	session, err := svc.Initialize(ctx, 1, 42, "movie.mp4", 95*1024*1024, "video/mp4")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, session.TotalChunks)
	for i := 0; i < session.TotalChunks; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := svc.ConfirmChunk(ctx, 1, session.ID, idx, fmt.Sprintf("etag-%d", idx)); err != nil {
				errs <- fmt.Errorf("chunk %d: %w", idx, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ConfirmChunk: %v", err)
	}

	if gw.completed != 1 {
		t.Fatalf("expected exactly one backend finalize, got %d", gw.completed)
	}
}

func backdateExpiry(t *testing.T, repo Repository, sessionID string) {
	t.Helper()
	r, ok := repo.(*repository)
	if !ok {
		t.Fatalf("unexpected repository type %T", repo)
	}
	err := r.db.Model(&Session{}).
		Where("id = ?", sessionID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("backdate expiry: %v", err)
	}
}
