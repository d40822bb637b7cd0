// Package manifest implements the sorted local index mapping backed-up
// paths to their remote names and last-known modification times (§4.4).
package manifest

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MaskSize is the length of a randomly generated masked remote name.
const MaskSize = 64

const maskAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// FileEntry is one tracked local path.
type FileEntry struct {
	Path       string `json:"path"`
	Timestamp  int64  `json:"timestamp"`
	RemoteName string `json:"mask"`
}

// document is the on-disk JSON shape. mask (whether names are randomized)
// is supplied by config at load time and deliberately not serialized
// in-band, matching §4.4's "established at initialization time" rule.
type document struct {
	Files    []FileEntry `json:"files"`
	RemoteID string      `json:"remote_id"`
}

// Manifest is the exclusively-owned, sorted-by-path index of backed-up
// files. All mutating operations are safe for concurrent use by workers
// sharing a single Manifest instance (§4.5).
type Manifest struct {
	mu sync.Mutex

	mask     bool
	remoteID string
	entries  []FileEntry // sorted by Path
}

// New creates an empty manifest. mask controls whether GetOrCreate
// generates random opaque names (encryption on) or path-derived ones
// (encryption off).
func New(mask bool) *Manifest {
	return &Manifest{mask: mask}
}

// Load reads a manifest from disk. mask is re-supplied by the caller (from
// config), never read from the file.
func Load(path string, mask bool) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-controlled manifest path
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	sort.Slice(doc.Files, func(i, j int) bool { return doc.Files[i].Path < doc.Files[j].Path })
	return &Manifest{mask: mask, remoteID: doc.RemoteID, entries: doc.Files}, nil
}

// Save writes the manifest to path as indented JSON.
func (m *Manifest) Save(path string) error {
	m.mu.Lock()
	doc := document{Files: append([]FileEntry(nil), m.entries...), RemoteID: m.remoteID}
	m.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("manifest: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("manifest: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("manifest: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("manifest: rename into place: %w", err)
	}
	return nil
}

// RemoteID returns the object id of this manifest's own last uploaded copy,
// empty before the first checkpoint.
func (m *Manifest) RemoteID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remoteID
}

// SetRemoteID records the object id returned by the most recent manifest
// checkpoint upload.
func (m *Manifest) SetRemoteID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteID = id
}

func (m *Manifest) search(path string) (int, bool) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Path >= path })
	if i < len(m.entries) && m.entries[i].Path == path {
		return i, true
	}
	return i, false
}

// GetOrCreate returns the stored (timestamp, remoteName) for path, creating
// a new entry with ts and a freshly generated remote name if one does not
// already exist.
func (m *Manifest) GetOrCreate(path string, ts int64) (storedTS int64, remoteName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.search(path)
	if ok {
		return m.entries[i].Timestamp, m.entries[i].RemoteName, nil
	}

	name, err := m.newRemoteName(path)
	if err != nil {
		return 0, "", err
	}
	entry := FileEntry{Path: path, Timestamp: ts, RemoteName: name}
	m.entries = append(m.entries, FileEntry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = entry
	return ts, name, nil
}

func (m *Manifest) newRemoteName(path string) (string, error) {
	if !m.mask {
		return pathAsRemoteName(path), nil
	}
	return randomMask()
}

// pathAsRemoteName normalizes a local path to the remote namespace: forward
// slashes, with a leading '/' stripped on POSIX so B2-shaped stores emulate
// folders instead of refusing the absolute-path name.
func pathAsRemoteName(path string) string {
	p := filepath.ToSlash(path)
	return strings.TrimPrefix(p, "/")
}

func randomMask() (string, error) {
	b := make([]byte, MaskSize)
	n := big.NewInt(int64(len(maskAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("manifest: generate random mask: %w", err)
		}
		b[i] = maskAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// Lookup returns the stored (timestamp, remoteName) for path, if present.
func (m *Manifest) Lookup(path string) (ts int64, remoteName string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, found := m.search(path)
	if !found {
		return 0, "", false
	}
	return m.entries[i].Timestamp, m.entries[i].RemoteName, true
}

// UpdateTimestamp sets the modified-time recorded for path. The path must
// already be present (callers call GetOrCreate first).
func (m *Manifest) UpdateTimestamp(path string, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.search(path); ok {
		m.entries[i].Timestamp = ts
	}
}

// RemoveByPath deletes the entry for path, if present, returning whether it
// was found.
func (m *Manifest) RemoveByPath(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.search(path)
	if !ok {
		return false
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return true
}

// RemoveByRemoteName deletes the entry whose remote name matches name. Only
// used by cleanup, so a linear scan is acceptable (§4.4).
func (m *Manifest) RemoveByRemoteName(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.RemoteName == name {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// LookupByRemoteName finds the entry whose remote name matches name via a
// linear scan.
func (m *Manifest) LookupByRemoteName(name string) (FileEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.RemoteName == name {
			return e, true
		}
	}
	return FileEntry{}, false
}

// Entries returns a snapshot copy of every tracked entry, sorted by path.
func (m *Manifest) Entries() []FileEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FileEntry(nil), m.entries...)
}

// RemoteNames returns a sorted slice of every tracked remote name, for
// cleanup's mask-set lookups (§4.8).
func (m *Manifest) RemoteNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.RemoteName
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tracked entries.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
