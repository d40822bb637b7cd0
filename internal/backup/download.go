package backup

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/coldvault/coldvault-agent/internal/cipher"
	"github.com/coldvault/coldvault-agent/internal/colorutil"
	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/manifest"
	"github.com/coldvault/coldvault-agent/internal/model"
	"github.com/coldvault/coldvault-agent/internal/queue"
	"github.com/coldvault/coldvault-agent/internal/worker"
)

// Download implements §4.7: fetch the remote manifest, replacing the local
// one with rollback on failure, then fetch every entry that is missing or
// stale locally.
func (e *Engine) Download(ctx context.Context, interrupt worker.Interrupt) error {
	cfg := e.Config.Get()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	bucketID, err := e.authenticate(ctx)
	if err != nil {
		return err
	}

	m, err := e.fetchManifest(ctx, bucketID)
	if err != nil {
		return err
	}

	q, err := queue.NewQueue(newQueueConfig(ManifestPath + ".queue"))
	if err != nil {
		return fmt.Errorf("backup: create queue: %w", err)
	}
	for _, entry := range m.Entries() {
		item := model.NewItem(model.OperationDownload, entry.Path, entry.RemoteName)
		item.ModTimeMillis = entry.Timestamp
		if err := q.Enqueue(item); err != nil {
			return fmt.Errorf("backup: enqueue %s: %w", entry.Path, err)
		}
	}
	colorutil.Statusf(colorutil.Yellow, "queued %d entries for download", q.Size())

	var pool *worker.Pool
	pool = worker.NewPool(config.WorkerPoolSize, q, e.Logger, e.downloadHandler(cfg, &pool))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(done)
	}()
	worker.DownloadSupervisor(runCtx, pool, interrupt, e.Logger)
	<-done

	colorutil.Status(colorutil.Green, "download finished")
	return nil
}

// downloadHandler closes over a pointer to the pool that will own it: the
// handler and the pool it brackets open-file accounting against are
// mutually referential, so the pool variable is filled in by the caller
// only after NewPool returns, before Run is ever invoked.
func (e *Engine) downloadHandler(cfg *config.Config, pool **worker.Pool) worker.Handler {
	return func(ctx context.Context, item *model.Item) error {
		return e.downloadOne(ctx, cfg, *pool, item)
	}
}

func (e *Engine) downloadOne(ctx context.Context, cfg *config.Config, pool *worker.Pool, item *model.Item) error {
	localInfo, statErr := os.Stat(item.LocalPath)
	if statErr == nil && localInfo.ModTime().UnixMilli() >= item.ModTimeMillis {
		return nil
	}

	body, err := e.Storage.DownloadByName(ctx, cfg.Bucket, item.RemoteName)
	if err != nil {
		return fmt.Errorf("download %s: %w", item.RemoteName, err)
	}
	defer body.Close()

	if err := ensureParentDir(item.LocalPath); err != nil {
		return fmt.Errorf("create parent directories for %s: %w", item.LocalPath, err)
	}

	out, err := os.OpenFile(item.LocalPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644) // #nosec G304 - destination recorded in our own manifest
	if err != nil {
		return fmt.Errorf("create %s: %w", item.LocalPath, err)
	}
	pool.BeginFile()
	defer pool.EndFile()
	defer out.Close()

	if cfg.EncryptionEnabled {
		dw, err := cipher.NewDecryptingWriter(out, e.Key.Bytes())
		if err != nil {
			return fmt.Errorf("start decryption for %s: %w", item.LocalPath, err)
		}
		if _, err := io.Copy(dw, body); err != nil {
			return fmt.Errorf("decrypt %s: %w", item.LocalPath, err)
		}
		if err := dw.Close(); err != nil {
			return fmt.Errorf("finalize decryption for %s: %w", item.LocalPath, err)
		}
	} else {
		if _, err := io.Copy(out, body); err != nil {
			return fmt.Errorf("write %s: %w", item.LocalPath, err)
		}
	}

	colorutil.Statusf(colorutil.Green, "downloaded %s", item.LocalPath)
	return nil
}

// fetchManifest implements §4.7 step 3: download the remote manifest,
// rotating the existing local copy to manifest.json.old so a failure can
// be rolled back.
func (e *Engine) fetchManifest(ctx context.Context, bucketID string) (*manifest.Manifest, error) {
	cfg := e.Config.Get()
	oldPath := ManifestPath + ".old"

	hadExisting := false
	if _, err := os.Stat(ManifestPath); err == nil {
		hadExisting = true
		if err := os.Rename(ManifestPath, oldPath); err != nil {
			return nil, fmt.Errorf("backup: rotate existing manifest: %w", err)
		}
	}

	restore := func(cause error) (*manifest.Manifest, error) {
		if hadExisting {
			if rerr := os.Rename(oldPath, ManifestPath); rerr != nil {
				return nil, fmt.Errorf("backup: restore manifest.json.old after %v failed: %w", cause, rerr)
			}
			if m, lerr := manifest.Load(ManifestPath, cfg.EncryptionEnabled); lerr == nil {
				return m, nil
			}
		}
		return nil, fmt.Errorf("backup: download remote manifest and restore failed: %w", cause)
	}

	body, err := e.Storage.DownloadByName(ctx, cfg.Bucket, config.RemoteManifestName)
	if err != nil {
		return restore(err)
	}
	defer body.Close()

	out, err := os.OpenFile(ManifestPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644) // #nosec G304 - fixed, local manifest path
	if err != nil {
		return restore(err)
	}

	var copyErr error
	if cfg.EncryptionEnabled {
		dw, dwErr := cipher.NewDecryptingWriter(out, e.Key.Bytes())
		if dwErr != nil {
			copyErr = dwErr
		} else {
			if _, err := io.Copy(dw, body); err != nil {
				copyErr = err
			} else {
				copyErr = dw.Close()
			}
		}
	} else {
		_, copyErr = io.Copy(out, body)
	}
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return restore(copyErr)
	}

	m, err := manifest.Load(ManifestPath, cfg.EncryptionEnabled)
	if err != nil {
		return restore(err)
	}
	return m, nil
}
