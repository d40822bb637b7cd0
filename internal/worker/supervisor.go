package worker

import (
	"context"
	"time"

	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/interfaces"
)

// Checkpoint is invoked by the upload supervisor every CheckpointInterval,
// or whenever the pool goes idle, to serialize and re-upload the manifest
// (§4.5). A failure is logged, never fatal to the run.
type Checkpoint func(ctx context.Context) error

// Interrupt is a single-producer-single-consumer channel of process-wide
// interrupt notifications (e.g. an operating-system signal translated
// upstream by cmd/retain).
type Interrupt <-chan struct{}

// UploadSupervisor polls interrupt and the pool's idle state every
// SupervisorPollInterval. It checkpoints on a fixed interval or whenever
// the pool goes idle, and on interrupt persists the manifest locally,
// skips the remote checkpoint, and asks the pool to stop (§4.5, §5
// cancellation semantics).
func UploadSupervisor(ctx context.Context, pool *Pool, interrupt Interrupt, logger interfaces.Logger, checkpoint Checkpoint, localSave func() error) {
	ticker := time.NewTicker(config.SupervisorPollInterval)
	defer ticker.Stop()

	lastCheckpoint := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-interrupt:
			logger.Info("interrupt received, persisting manifest locally and aborting upload")
			if err := localSave(); err != nil {
				logger.Error("failed to persist manifest on interrupt", "error", err)
			}
			pool.RequestStop()
			return
		case <-ticker.C:
			idle := pool.Idle()
			due := time.Since(lastCheckpoint) >= config.CheckpointInterval
			if !idle && !due {
				continue
			}
			if err := checkpoint(ctx); err != nil {
				logger.Error("manifest checkpoint failed, rerun upload to retry", "error", err)
			} else {
				lastCheckpoint = time.Now()
			}
			if idle {
				pool.RequestStop()
				return
			}
		}
	}
}

// DownloadSupervisor polls identically to UploadSupervisor. On interrupt it
// stops the pool from opening new items, waits for in-flight writes to
// drain (pool.OpenFiles reaching zero), then returns so the caller can
// abort cleanly with no half-written output files (§4.5).
func DownloadSupervisor(ctx context.Context, pool *Pool, interrupt Interrupt, logger interfaces.Logger) {
	ticker := time.NewTicker(config.SupervisorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-interrupt:
			logger.Info("interrupt received, draining in-flight downloads")
			pool.RequestStop()
			for pool.OpenFiles() > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
			}
			return
		case <-ticker.C:
			if pool.Idle() {
				pool.RequestStop()
				return
			}
		}
	}
}
