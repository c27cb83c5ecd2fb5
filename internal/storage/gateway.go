package storage

import (
	"bytes"
	"context"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	DefaultUploadTTL   = 10 * time.Minute
	DefaultDownloadTTL = 15 * time.Minute
	maxPresignTTL      = time.Hour

	defaultOpTimeout = 30 * time.Second

	// probeKey is the sentinel used by connectivity tests. It is expected to
	// be absent; only reachability and credentials are being validated.
	probeKey = ".mediastore-connectivity-probe"
)

// ConfigResolver resolves an organization's active backend configuration.
// Implemented by the storageconfig service.
type ConfigResolver interface {
	Resolve(ctx context.Context, orgID int64) (*ResolvedConfig, error)
}

// UploadResult is the shape of a finished whole-object or multipart upload.
type UploadResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	ETag string `json:"etag"`
}

// StatResult is the outcome of an existence/metadata probe.
type StatResult struct {
	Exists       bool       `json:"exists"`
	Size         int64      `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	ContentType  string     `json:"content_type,omitempty"`
	ETag         string     `json:"etag,omitempty"`
}

// DownloadResult holds a lazy byte stream. The caller must drain or close it.
type DownloadResult struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// CompletedPart identifies one confirmed part of a multipart upload.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// Gateway executes storage operations for an organization. Every operation
// resolves the org's configuration, obtains a pooled client and talks to the
// backend under a bounded timeout. The gateway performs no retries: presigned
// URLs and chunk uploads are retried by the calling client, and the
// coordinator's confirmation idempotency makes those retries safe.
type Gateway struct {
	resolver  ConfigResolver
	pool      *Pool
	opTimeout time.Duration
}

func NewGateway(resolver ConfigResolver, pool *Pool, opTimeout time.Duration) *Gateway {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Gateway{resolver: resolver, pool: pool, opTimeout: opTimeout}
}

func (g *Gateway) clientFor(ctx context.Context, orgID int64) (*s3.Client, *ResolvedConfig, error) {
	cfg, err := g.resolver.Resolve(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	client, err := g.pool.Get(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

func clampTTL(ttl, fallback time.Duration) time.Duration {
	if ttl <= 0 {
		return fallback
	}
	if ttl > maxPresignTTL {
		return maxPresignTTL
	}
	return ttl
}

// PresignUpload issues a time-limited single-object PUT URL. Nothing is
// recorded server-side; expiry is enforced by the URL signature alone.
func (g *Gateway) PresignUpload(ctx context.Context, orgID int64, key, contentType string, ttl time.Duration) (string, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s3.NewPresignClient(client).PresignPutObject(ctx, input,
		s3.WithPresignExpires(clampTTL(ttl, DefaultUploadTTL)))
	if err != nil {
		return "", newBackendError("presign-upload", err)
	}
	return req.URL, nil
}

// PresignDownload issues a time-limited single-object GET URL.
func (g *Gateway) PresignDownload(ctx context.Context, orgID int64, key string, ttl time.Duration) (string, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return "", err
	}

	req, err := s3.NewPresignClient(client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(clampTTL(ttl, DefaultDownloadTTL)))
	if err != nil {
		return "", newBackendError("presign-download", err)
	}
	return req.URL, nil
}

// Upload puts a whole object synchronously.
func (g *Gateway) Upload(ctx context.Context, orgID int64, key string, data []byte, contentType string, metadata map[string]string) (*UploadResult, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	out, err := client.PutObject(opCtx, input)
	if err != nil {
		return nil, newBackendError("upload", err)
	}

	return &UploadResult{
		Key:  key,
		URL:  cfg.PublicURL(key),
		Size: int64(len(data)),
		ETag: aws.ToString(out.ETag),
	}, nil
}

// Download returns a lazy stream of the object. No operation timeout is
// applied to the body itself; the caller owns draining or aborting it.
func (g *Gateway) Download(ctx context.Context, orgID int64, key string) (*DownloadResult, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, newBackendError("download", err)
	}

	return &DownloadResult{
		Body:          out.Body,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
	}, nil
}

// Delete removes the object, best-effort. Failures are logged and reported as
// false, never raised: deletion is always followed by a metadata soft-delete,
// which must not be blocked by a storage-side race.
func (g *Gateway) Delete(ctx context.Context, orgID int64, key string) bool {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		log.Printf("storage delete %q: resolve failed: %v", key, err)
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	if _, err := client.DeleteObject(opCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		log.Printf("storage delete %q: %v", key, err)
		return false
	}
	return true
}

// Stat probes the object. A not-found response is the one benign backend
// error here: it translates to Exists:false instead of propagating.
func (g *Gateway) Stat(ctx context.Context, orgID int64, key string) (*StatResult, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	out, err := client.HeadObject(opCtx, &s3.HeadObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return &StatResult{Exists: false}, nil
		}
		return nil, newBackendError("stat", err)
	}

	return &StatResult{
		Exists:       true,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: out.LastModified,
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
	}, nil
}

// TestConnection validates that the configured bucket is reachable with the
// given credentials using a metadata probe on a sentinel key. The sentinel is
// expected to be absent, so a not-found response counts as success.
func (g *Gateway) TestConnection(ctx context.Context, cfg *ResolvedConfig) error {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return newBackendError("test-connection", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	_, err = client.HeadObject(opCtx, &s3.HeadObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(probeKey),
	})
	if err != nil && !IsNotFound(err) {
		return newBackendError("test-connection", err)
	}
	return nil
}

// CreateMultipartUpload opens a backend multipart upload and returns its id.
func (g *Gateway) CreateMultipartUpload(ctx context.Context, orgID int64, key, contentType string) (string, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return "", err
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	out, err := client.CreateMultipartUpload(opCtx, input)
	if err != nil {
		return "", newBackendError("create-multipart", err)
	}
	return aws.ToString(out.UploadId), nil
}

// PresignUploadPart issues a presigned URL scoped to one part of an open
// multipart upload.
func (g *Gateway) PresignUploadPart(ctx context.Context, orgID int64, key, uploadID string, partNumber int32, ttl time.Duration) (string, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return "", err
	}

	req, err := s3.NewPresignClient(client).PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(cfg.Bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(clampTTL(ttl, DefaultUploadTTL)))
	if err != nil {
		return "", newBackendError("presign-part", err)
	}
	return req.URL, nil
}

// CompleteMultipartUpload finalizes the upload, producing the same result
// shape as Upload.
func (g *Gateway) CompleteMultipartUpload(ctx context.Context, orgID int64, key, uploadID string, parts []CompletedPart) (*UploadResult, error) {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	completed := make([]types.CompletedPart, 0, len(parts))
	var size int64
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	out, err := client.CompleteMultipartUpload(opCtx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return nil, newBackendError("complete-multipart", err)
	}

	if head, statErr := g.Stat(ctx, orgID, key); statErr == nil && head.Exists {
		size = head.Size
	}

	return &UploadResult{
		Key:  key,
		URL:  cfg.PublicURL(key),
		Size: size,
		ETag: aws.ToString(out.ETag),
	}, nil
}

// AbortMultipartUpload aborts an open multipart upload so partial parts do
// not accrue storage charges.
func (g *Gateway) AbortMultipartUpload(ctx context.Context, orgID int64, key, uploadID string) error {
	client, cfg, err := g.clientFor(ctx, orgID)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	if _, err := client.AbortMultipartUpload(opCtx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}); err != nil {
		return newBackendError("abort-multipart", err)
	}
	return nil
}
