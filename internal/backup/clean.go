package backup

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/coldvault/coldvault-agent/internal/colorutil"
	"github.com/coldvault/coldvault-agent/internal/config"
	"github.com/coldvault/coldvault-agent/internal/manifest"
	"github.com/coldvault/coldvault-agent/internal/storage"
)

// CleanMode selects hard delete vs. soft hide for objects no longer
// tracked by the manifest (§4.8).
type CleanMode int

const (
	ModeHide CleanMode = iota
	ModeDelete
)

// CleanOptions are the --force/--fast flags from the command line.
type CleanOptions struct {
	Mode  CleanMode
	Force bool
	Fast  bool
}

// Clean implements §4.8: drop manifest entries whose local file is gone,
// reconcile the remote object set against what remains, and checkpoint.
func (e *Engine) Clean(ctx context.Context, opts CleanOptions) error {
	if opts.Fast && opts.Mode == ModeDelete {
		return fmt.Errorf("backup: --fast is incompatible with delete mode")
	}

	cfg := e.Config.Get()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	bucketID, err := e.authenticate(ctx)
	if err != nil {
		return err
	}

	m, err := e.loadManifest()
	if err != nil {
		return fmt.Errorf("backup: load manifest: %w", err)
	}

	if !opts.Force {
		if err := e.guardAgainstNewerRemoteManifest(ctx); err != nil {
			return err
		}
	}

	entries, err := e.evaluateFileList()
	if err != nil {
		return err
	}
	inFileList := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		inFileList[entry.Path] = struct{}{}
	}

	var removedNames []string
	for _, fe := range m.Entries() {
		_, listed := inFileList[fe.Path]
		_, statErr := os.Stat(fe.Path)
		if listed && statErr == nil {
			continue
		}
		if m.RemoveByPath(fe.Path) {
			removedNames = append(removedNames, fe.RemoteName)
		}
	}
	if err := m.Save(ManifestPath); err != nil {
		return fmt.Errorf("backup: save manifest: %w", err)
	}
	colorutil.Statusf(colorutil.Yellow, "dropped %d entries no longer in the backup set", len(removedNames))

	if opts.Fast {
		e.reconcileNames(ctx, bucketID, removedNames, opts.Mode)
	} else {
		if err := e.reconcileFull(ctx, bucketID, m, opts.Mode); err != nil {
			return err
		}
	}

	authPool, err := newUploadAuthPool(ctx, e.Storage, bucketID, 1)
	if err != nil {
		return fmt.Errorf("backup: obtain upload endpoint for checkpoint: %w", err)
	}
	if err := e.checkpointManifest(ctx, m, authPool); err != nil {
		return fmt.Errorf("backup: checkpoint manifest: %w", err)
	}

	colorutil.Status(colorutil.Green, "clean finished")
	return nil
}

// guardAgainstNewerRemoteManifest implements §4.8 step 1: refuse to
// proceed if the remote manifest object was modified more recently than
// our local copy, since that means another run is ahead of us
// (ConcurrentModification in §7's error taxonomy).
func (e *Engine) guardAgainstNewerRemoteManifest(ctx context.Context) error {
	local, err := os.Stat(ManifestPath)
	if err != nil {
		return fmt.Errorf("backup: stat local manifest: %w", err)
	}

	m, err := e.loadManifest()
	if err != nil {
		return fmt.Errorf("backup: load manifest: %w", err)
	}
	remoteID := m.RemoteID()
	if remoteID == "" {
		return nil
	}

	info, err := e.Storage.GetFileInfo(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("backup: fetch remote manifest metadata: %w", err)
	}
	if info.ModifiedMillis > local.ModTime().UnixMilli() {
		return fmt.Errorf("backup: remote manifest is newer than local; re-run download or pass --force")
	}
	return nil
}

// reconcileNames hides every just-evicted remote name concurrently
// (§4.8 step 3, fast mode).
func (e *Engine) reconcileNames(ctx context.Context, bucketID string, names []string, mode CleanMode) {
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := e.Storage.Hide(ctx, bucketID, name); err != nil {
				e.Logger.Error("failed to hide evicted object", "name", name, "error", err)
			}
		}(name)
	}
	wg.Wait()
}

// reconcileFull implements §4.8 step 4: list every remote object, exclude
// the manifest itself, and hide/delete anything not in the current
// manifest's mask set.
func (e *Engine) reconcileFull(ctx context.Context, bucketID string, m *manifest.Manifest, mode CleanMode) error {
	objects, err := e.Storage.ListAll(ctx, bucketID, config.RemoteListPageSize)
	if err != nil {
		return fmt.Errorf("backup: list remote objects: %w", err)
	}

	masks := m.RemoteNames()

	var wg sync.WaitGroup
	for _, obj := range objects {
		if obj.Name == config.RemoteManifestName {
			continue
		}
		if inSortedSet(masks, obj.Name) {
			continue
		}
		wg.Add(1)
		go func(obj storage.ObjectInfo) {
			defer wg.Done()
			var err error
			if mode == ModeDelete {
				err = e.Storage.DeleteFileVersion(ctx, obj.Name, obj.FileID)
			} else {
				err = e.Storage.Hide(ctx, bucketID, obj.Name)
			}
			if err != nil {
				e.Logger.Error("failed to reconcile orphaned object", "name", obj.Name, "error", err)
			}
		}(obj)
	}
	wg.Wait()
	return nil
}

func inSortedSet(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}
