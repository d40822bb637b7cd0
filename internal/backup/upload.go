package backup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coldvault/coldvault-agent/internal/cipher"
	"github.com/coldvault/coldvault-agent/internal/colorutil"
	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/manifest"
	"github.com/coldvault/coldvault-agent/internal/model"
	"github.com/coldvault/coldvault-agent/internal/queue"
	"github.com/coldvault/coldvault-agent/internal/storage"
	"github.com/coldvault/coldvault-agent/internal/worker"
	"github.com/dustin/go-humanize"
)

// Upload implements §4.6: evaluate the backup list against the manifest,
// upload every new or changed file, and checkpoint the manifest
// periodically while running.
func (e *Engine) Upload(ctx context.Context, interrupt worker.Interrupt) error {
	cfg := e.Config.Get()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	m, err := e.loadManifest()
	if err != nil {
		return fmt.Errorf("backup: load manifest: %w", err)
	}

	entries, err := e.evaluateFileList()
	if err != nil {
		return err
	}

	bucketID, err := e.authenticate(ctx)
	if err != nil {
		return err
	}

	authPool, err := newUploadAuthPool(ctx, e.Storage, bucketID, config.WorkerPoolSize)
	if err != nil {
		return fmt.Errorf("backup: obtain upload endpoints: %w", err)
	}

	q, err := queue.NewQueue(newQueueConfig(ManifestPath + ".queue"))
	if err != nil {
		return fmt.Errorf("backup: create queue: %w", err)
	}
	for _, entry := range entries {
		item := model.NewItem(model.OperationUpload, entry.Path, "")
		item.FileSize = entry.Size
		item.ModTimeMillis = entry.ModTime
		if err := q.Enqueue(item); err != nil {
			return fmt.Errorf("backup: enqueue %s: %w", entry.Path, err)
		}
	}
	colorutil.Statusf(colorutil.Yellow, "queued %d candidate files", q.Size())

	handler := e.uploadHandler(m, authPool, bucketID)
	pool := worker.NewPool(config.WorkerPoolSize, q, e.Logger, handler)

	checkpoint := func(ctx context.Context) error {
		return e.checkpointManifest(ctx, m, authPool)
	}
	localSave := func() error { return m.Save(ManifestPath) }

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(done)
	}()
	worker.UploadSupervisor(runCtx, pool, interrupt, e.Logger, checkpoint, localSave)
	<-done

	select {
	case <-interrupt:
		return fmt.Errorf("backup: upload interrupted; manifest saved locally, remote checkpoint skipped")
	default:
	}

	colorutil.Status(colorutil.Green, "upload finished, performing final checkpoint")
	if err := e.checkpointManifest(ctx, m, authPool); err != nil {
		colorutil.Statusf(colorutil.Red, "final manifest checkpoint failed: %v; re-run upload and then clean", err)
		return fmt.Errorf("backup: final checkpoint: %w", err)
	}
	return nil
}

func (e *Engine) uploadHandler(m *manifest.Manifest, auths *uploadAuthPool, bucketID string) worker.Handler {
	cfg := e.Config.Get()
	return func(ctx context.Context, item *model.Item) error {
		storedTS, _, _ := m.Lookup(item.LocalPath)
		if storedTS >= item.ModTimeMillis && storedTS != 0 {
			return nil
		}

		f, err := os.Open(item.LocalPath) // #nosec G304 - path comes from the operator's own backup list
		if err != nil {
			return fmt.Errorf("open %s: %w", item.LocalPath, err)
		}
		defer f.Close()

		_, remoteName, err := m.GetOrCreate(item.LocalPath, item.ModTimeMillis)
		if err != nil {
			return fmt.Errorf("allocate remote name for %s: %w", item.LocalPath, err)
		}

		var reader interface {
			Read([]byte) (int, error)
		}
		declaredSize := item.FileSize

		if cfg.EncryptionEnabled {
			reserved := cipher.NoncesRequired(item.FileSize)
			start, err := cfg.ConsumeNonces(uint64(reserved))
			if err != nil {
				return fmt.Errorf("reserve nonces for %s: %w", item.LocalPath, err)
			}
			enc, err := cipher.NewEncryptingReader(f, e.Key.Bytes(), start, reserved)
			if err != nil {
				return fmt.Errorf("start encryption for %s: %w", item.LocalPath, err)
			}
			reader = enc
			declaredSize = cipher.EncryptedSize(item.FileSize)
		} else {
			reader = f
		}

		auth := auths.borrow(ctx)
		defer auths.release(auth)

		req := storage.UploadRequest{
			Reader:        storage.NewSHA1SuffixReader(reader),
			FilePath:      remoteName,
			FileSize:      declaredSize,
			LastModMillis: item.ModTimeMillis,
		}
		if _, err := e.Storage.Upload(ctx, auth, req); err != nil {
			return fmt.Errorf("upload %s: %w", item.LocalPath, err)
		}

		m.UpdateTimestamp(item.LocalPath, item.ModTimeMillis)
		colorutil.Statusf(colorutil.Green, "uploaded %s (%s)", item.LocalPath, humanize.Bytes(uint64(item.FileSize)))
		return nil
	}
}

// checkpointManifest implements the supervisor's periodic checkpoint
// (§4.5): serialize locally, delete the previous remote copy, upload the
// new one through the normal encryption pipeline, and record the returned
// object id.
func (e *Engine) checkpointManifest(ctx context.Context, m *manifest.Manifest, auths *uploadAuthPool) error {
	cfg := e.Config.Get()

	if err := m.Save(ManifestPath); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	if prev := m.RemoteID(); prev != "" {
		if err := e.Storage.DeleteFileVersion(ctx, config.RemoteManifestName, prev); err != nil {
			e.Logger.Error("failed to delete previous manifest checkpoint", "error", err)
		}
	}

	f, err := os.Open(ManifestPath) // #nosec G304 - fixed, local manifest path
	if err != nil {
		return fmt.Errorf("reopen manifest: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat manifest: %w", err)
	}
	size := info.Size()

	var reader interface {
		Read([]byte) (int, error)
	}
	declaredSize := size

	if cfg.EncryptionEnabled {
		reserved := cipher.NoncesRequired(size)
		start, err := cfg.ConsumeNonces(uint64(reserved))
		if err != nil {
			return fmt.Errorf("reserve nonces for manifest: %w", err)
		}
		enc, err := cipher.NewEncryptingReader(f, e.Key.Bytes(), start, reserved)
		if err != nil {
			return fmt.Errorf("start manifest encryption: %w", err)
		}
		reader = enc
		declaredSize = cipher.EncryptedSize(size)
	} else {
		reader = f
	}

	auth := auths.borrow(ctx)
	defer auths.release(auth)

	req := storage.UploadRequest{
		Reader:        storage.NewSHA1SuffixReader(reader),
		FilePath:      config.RemoteManifestName,
		FileSize:      declaredSize,
		LastModMillis: time.Now().UnixMilli(),
	}
	fileID, err := e.Storage.Upload(ctx, auth, req)
	if err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	m.SetRemoteID(fileID)
	return m.Save(ManifestPath)
}

// uploadAuthPool hands out the per-worker upload endpoints §4.6 step 5
// describes: each endpoint is borrowed for the duration of one upload and
// returned to the pool afterward.
type uploadAuthPool struct {
	ch chan storage.UploadAuth
}

func newUploadAuthPool(ctx context.Context, client storage.Client, bucketID string, n int) (*uploadAuthPool, error) {
	ch := make(chan storage.UploadAuth, n)
	for i := 0; i < n; i++ {
		auth, err := client.GetUploadURL(ctx, bucketID)
		if err != nil {
			return nil, err
		}
		ch <- auth
	}
	return &uploadAuthPool{ch: ch}, nil
}

func (p *uploadAuthPool) borrow(ctx context.Context) storage.UploadAuth {
	select {
	case auth := <-p.ch:
		return auth
	case <-ctx.Done():
		return storage.UploadAuth{}
	}
}

func (p *uploadAuthPool) release(auth storage.UploadAuth) {
	select {
	case p.ch <- auth:
	default:
	}
}
