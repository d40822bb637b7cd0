// Package backup composes the nonce ledger, stream cipher, manifest,
// file-list evaluator, queue and worker pool into the three operations
// exposed on the command line: upload, download and clean (§4.6-§4.8).
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/filelist"
	"github.com/coldvault/coldvault-agent/internal/interfaces"
	"github.com/coldvault/coldvault-agent/internal/key"
	"github.com/coldvault/coldvault-agent/internal/manifest"
	"github.com/coldvault/coldvault-agent/internal/queue"
	"github.com/coldvault/coldvault-agent/internal/storage"
)

// ManifestPath is the local filename the manifest is read from and written
// to, matching the remote object name so checkpoint/restore stay aligned.
const ManifestPath = config.DefaultManifestPath

// Engine holds everything the three pipelines share: configuration, the
// remote store, logging and (when encryption is enabled) the symmetric
// key.
type Engine struct {
	Config  *config.Manager
	Storage storage.Client
	Logger  interfaces.Logger
	Key     *key.Key // nil when encryption is disabled
}

// New constructs an Engine, loading the key from disk when the active
// config has encryption enabled.
func New(cfgMgr *config.Manager, store storage.Client, logger interfaces.Logger) (*Engine, error) {
	cfg := cfgMgr.Get()
	e := &Engine{Config: cfgMgr, Storage: store, Logger: logger}

	if cfg.EncryptionEnabled {
		k, err := key.Load(cfg.KeyFilePath)
		if err != nil {
			return nil, fmt.Errorf("backup: load key: %w", err)
		}
		e.Key = k
	}
	return e, nil
}

// Close releases the key material, if any.
func (e *Engine) Close() {
	if e.Key != nil {
		e.Key.Destroy()
	}
}

// authenticate exchanges configured credentials for a session token and
// resolves the configured bucket name to its id.
func (e *Engine) authenticate(ctx context.Context) (bucketID string, err error) {
	cfg := e.Config.Get()
	if err := e.Storage.Authorize(ctx, cfg.RemoteKeyID, cfg.RemoteKey); err != nil {
		return "", fmt.Errorf("backup: authenticate: %w", err)
	}
	buckets, err := e.Storage.ListBuckets(ctx, cfg.Bucket)
	if err != nil {
		return "", fmt.Errorf("backup: resolve bucket: %w", err)
	}
	for _, b := range buckets {
		if b.Name == cfg.Bucket {
			return b.ID, nil
		}
	}
	return "", fmt.Errorf("backup: bucket %q not found", cfg.Bucket)
}

// loadManifest loads the local manifest file. Fresh manifests are only ever
// produced by init (§4.6 step 2): upload and clean both require one to
// already exist.
func (e *Engine) loadManifest() (*manifest.Manifest, error) {
	cfg := e.Config.Get()
	return manifest.Load(ManifestPath, cfg.EncryptionEnabled)
}

// evaluateFileList verifies and expands the configured backup list.
func (e *Engine) evaluateFileList() ([]filelist.Entry, error) {
	cfg := e.Config.Get()
	if err := filelist.Validate(cfg.BackupListPath); err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	return filelist.Evaluate(cfg.BackupListPath)
}

// newQueueConfig returns the fixed-backoff retry policy §4.6/§4.7 mandate:
// up to DefaultMaxRetries attempts, DefaultBaseDelay apart, every time.
func newQueueConfig(statePath string) *queue.Config {
	return &queue.Config{
		MaxRetries: config.DefaultMaxRetries,
		BaseDelay:  config.DefaultBaseDelay,
		MaxDelay:   config.DefaultBaseDelay,
		StatePath:  statePath,
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
