// Package storage is the operation surface against tenant object-storage
// backends: client pooling, presigned URLs, direct transfer, existence
// probes and the multipart primitives the chunked-upload coordinator builds
// on. Tenant resolution itself lives in the storageconfig domain; this
// package only consumes the resolved form.
package storage

import (
	"fmt"
	"strings"
)

// ResolvedConfig describes one reachable backend with credentials already
// decrypted. Instances are transient: they are built per resolution and never
// persisted.
type ResolvedConfig struct {
	Provider        string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL rewrites returned object URLs through a tenant CDN or
	// custom domain when set.
	PublicBaseURL string
	UsePathStyle  bool
}

// cacheKey identifies the client handle for this config in the pool.
// Credentials are deliberately not part of the key; a credential rotation
// must invalidate the entry instead (see Pool.Invalidate).
func (c *ResolvedConfig) cacheKey() string {
	return c.Provider + "|" + c.Bucket + "|" + c.Region
}

// PublicURL returns the browser-resolvable URL for a key under this config.
func (c *ResolvedConfig) PublicURL(key string) string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/") + "/" + key
	}
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.Bucket, c.Region, key)
}
