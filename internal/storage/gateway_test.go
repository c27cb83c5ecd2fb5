package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

type staticResolver struct {
	cfg *ResolvedConfig
}

func (r staticResolver) Resolve(ctx context.Context, orgID int64) (*ResolvedConfig, error) {
	return r.cfg, nil
}

func newTestGateway(cfg *ResolvedConfig) *Gateway {
	return NewGateway(staticResolver{cfg: cfg}, NewPool(), 5*time.Second)
}

// Presigning is pure SigV4 computation; no network is involved, so the signed
// URL form can be verified offline.
func TestPresignUploadProducesSignedURL(t *testing.T) {
	g := newTestGateway(testConfig())

	signed, err := g.PresignUpload(context.Background(), 1, "orgs/1/170-ab-cat.png", "image/png", 5*time.Minute)
	if err != nil {
		t.Fatalf("PresignUpload returned error: %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("presigned URL does not parse: %v", err)
	}
	if !strings.Contains(u.Path, "orgs/1/170-ab-cat.png") {
		t.Fatalf("expected object key in path, got %q", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Signature") == "" {
		t.Fatal("expected X-Amz-Signature in query")
	}
	if q.Get("X-Amz-Expires") != "300" {
		t.Fatalf("expected 300s expiry, got %q", q.Get("X-Amz-Expires"))
	}
}

func TestPresignDownloadDefaultTTL(t *testing.T) {
	g := newTestGateway(testConfig())

	signed, err := g.PresignDownload(context.Background(), 1, "orgs/1/file.bin", 0)
	if err != nil {
		t.Fatalf("PresignDownload returned error: %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("presigned URL does not parse: %v", err)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "900" {
		t.Fatalf("expected default 900s expiry, got %q", got)
	}
}

func TestPresignUploadPartScopesPartNumber(t *testing.T) {
	g := newTestGateway(testConfig())

	signed, err := g.PresignUploadPart(context.Background(), 1, "orgs/1/big.mov", "upload-123", 3, time.Minute)
	if err != nil {
		t.Fatalf("PresignUploadPart returned error: %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("presigned URL does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("partNumber") != "3" {
		t.Fatalf("expected partNumber=3, got %q", q.Get("partNumber"))
	}
	if q.Get("uploadId") != "upload-123" {
		t.Fatalf("expected uploadId=upload-123, got %q", q.Get("uploadId"))
	}
}

func TestClampTTL(t *testing.T) {
	if got := clampTTL(0, DefaultUploadTTL); got != DefaultUploadTTL {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := clampTTL(-time.Minute, DefaultDownloadTTL); got != DefaultDownloadTTL {
		t.Fatalf("expected fallback for negative ttl, got %v", got)
	}
	if got := clampTTL(3*time.Hour, DefaultUploadTTL); got != maxPresignTTL {
		t.Fatalf("expected ttl cap, got %v", got)
	}
	if got := clampTTL(2*time.Minute, DefaultUploadTTL); got != 2*time.Minute {
		t.Fatalf("expected caller ttl, got %v", got)
	}
}

func TestPublicURLForms(t *testing.T) {
	cases := []struct {
		name string
		cfg  ResolvedConfig
		want string
	}{
		{
			name: "canonical aws form",
			cfg:  ResolvedConfig{Bucket: "assets", Region: "eu-west-1"},
			want: "https://assets.s3.eu-west-1.amazonaws.com/orgs/1/a.png",
		},
		{
			name: "custom public domain wins",
			cfg:  ResolvedConfig{Bucket: "assets", Region: "eu-west-1", PublicBaseURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/orgs/1/a.png",
		},
		{
			name: "custom endpoint uses path style",
			cfg:  ResolvedConfig{Bucket: "assets", Region: "us-east-1", Endpoint: "http://minio.internal:9000"},
			want: "http://minio.internal:9000/assets/orgs/1/a.png",
		},
	}
	for _, c := range cases {
		if got := c.cfg.PublicURL("orgs/1/a.png"); got != c.want {
			t.Fatalf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}
