package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"mediastore/internal/config"
	"mediastore/internal/database"
	"mediastore/internal/domain/chunkupload"
	"mediastore/internal/domain/storageconfig"
	"mediastore/internal/pkg/vault"
	"mediastore/internal/storage"
)

// One-shot sweep of expired upload sessions, for running from cron instead
// of the in-process sweeper.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadStorageRuntimeConfig()
	if err != nil {
		log.Fatal(err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	v, err := vault.New(cfg.VaultPassphrase)
	if err != nil {
		log.Fatalf("vault init failed: %v", err)
	}

	pool := storage.NewPool()
	holder := &resolverHolder{}
	gateway := storage.NewGateway(holder, pool, cfg.StorageOpTimeout)
	holder.svc = storageconfig.NewService(
		storageconfig.NewRepository(db),
		v,
		gateway,
		pool,
		storage.ResolvedConfig{
			Provider:      cfg.DefaultProvider,
			Bucket:        cfg.DefaultBucket,
			Region:        cfg.DefaultRegion,
			Endpoint:      cfg.DefaultEndpoint,
			PublicBaseURL: cfg.DefaultPublicBaseURL,
		},
	)

	service := chunkupload.NewService(
		chunkupload.NewRepository(db),
		gateway,
		cfg.ChunkSize,
		cfg.UploadSessionTTL,
	)

	swept, err := service.SweepExpired(context.Background())
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
	log.Printf("sweep completed: sessions=%d", swept)
}

type resolverHolder struct {
	svc *storageconfig.Service
}

func (r *resolverHolder) Resolve(ctx context.Context, orgID int64) (*storage.ResolvedConfig, error) {
	return r.svc.Resolve(ctx, orgID)
}
