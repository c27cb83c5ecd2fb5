package storage

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Pool caches one S3 client per (provider, bucket, region) triple so repeated
// operations reuse connections. It is an injectable object, not a package
// singleton, so tests get isolated instances.
//
// Construct-once semantics: a race to create the same key may build two
// clients, but only one is kept; the loser is discarded, never returned.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*s3.Client
}

func NewPool() *Pool {
	return &Pool{clients: make(map[string]*s3.Client)}
}

// Get returns the cached client for the config's triple, constructing and
// caching one on first use.
func (p *Pool) Get(ctx context.Context, cfg *ResolvedConfig) (*s3.Client, error) {
	key := cfg.cacheKey()

	p.mu.RLock()
	client, ok := p.clients[key]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	built, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[key]; ok {
		return existing, nil
	}
	p.clients[key] = built
	return built, nil
}

// Invalidate evicts the handle for the config's triple. Must be called
// whenever a tenant's credentials are rotated so in-flight resolutions never
// reuse a client built with the old credentials.
func (p *Pool) Invalidate(cfg *ResolvedConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, cfg.cacheKey())
}

// Len reports the number of live handles.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

func newClient(ctx context.Context, cfg *ResolvedConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}
