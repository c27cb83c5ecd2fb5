package chunkupload

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically reclaims expired sessions. Presigned URLs self-expire
// through their signatures, but an abandoned backend multipart upload keeps
// its parts until explicitly aborted, so the sweep is what prevents orphaned
// storage charges.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{service: service, interval: interval}
}

// Run sweeps on the configured interval until ctx is cancelled. Intended to
// be started as a goroutine from main.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	start := time.Now()
	swept, err := w.service.SweepExpired(ctx)
	if err != nil {
		log.Printf("chunkupload sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("chunkupload sweep reclaimed %d expired sessions in %v", swept, time.Since(start))
	}
}
