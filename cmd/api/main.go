package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mediastore/internal/config"
	"mediastore/internal/database"
	"mediastore/internal/domain/chunkupload"
	"mediastore/internal/domain/files"
	"mediastore/internal/domain/provider"
	"mediastore/internal/domain/storageconfig"
	"mediastore/internal/middleware"
	jwtsvc "mediastore/internal/pkg/jwt"
	"mediastore/internal/pkg/vault"
	"mediastore/internal/storage"
)

// resolverHolder defers the gateway's config resolver to the storage config
// service, which itself needs the gateway for connectivity probes. The
// holder breaks the construction cycle; it is filled before any request runs.
type resolverHolder struct {
	svc *storageconfig.Service
}

func (r *resolverHolder) Resolve(ctx context.Context, orgID int64) (*storage.ResolvedConfig, error) {
	return r.svc.Resolve(ctx, orgID)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadStorageRuntimeConfig()
	if err != nil {
		log.Fatal(err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	v, err := vault.New(cfg.VaultPassphrase)
	if err != nil {
		log.Fatalf("vault init failed: %v", err)
	}

	pool := storage.NewPool()
	holder := &resolverHolder{}
	gateway := storage.NewGateway(holder, pool, cfg.StorageOpTimeout)

	configService := storageconfig.NewService(
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
	holder.svc = configService

	uploadService := chunkupload.NewService(
		chunkupload.NewRepository(db),
		gateway,
		cfg.ChunkSize,
		cfg.UploadSessionTTL,
	)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	providerHandler := provider.NewHandler()
	configHandler := storageconfig.NewHandler(configService)
	filesHandler := files.NewHandler(gateway)
	uploadHandler := chunkupload.NewHandler(uploadService)
	uploadWSHandler := chunkupload.NewWSHandler(uploadService, j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go chunkupload.NewSweeper(uploadService, cfg.SweepInterval).Run(ctx)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		// WebSocket authenticates via query token inside the handler.
		chunkupload.RegisterWSRoutes(v1, uploadWSHandler)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			provider.RegisterRoutes(protected, providerHandler)
			storageconfig.RegisterRoutes(protected, configHandler)
			files.RegisterRoutes(protected, filesHandler)
			chunkupload.RegisterRoutes(protected, uploadHandler)
		}
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
