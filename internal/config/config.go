// Package config loads, validates and persists the agent's on-disk
// configuration, including the synchronously-persisted nonce ledger that
// guarantees cipher nonces are never reused across crashes.
package config

import (
	"sync"

	"github.com/coldvault/coldvault-agent/internal/cipher"
)

// Config is the top-level, self-describing (JSON) configuration document.
// The symmetric key itself is never stored here; it lives in a separate
// keyfile named by KeyFilePath.
type Config struct {
	RemoteKeyID       string `json:"remote_key_id"`
	RemoteKey         string `json:"remote_key"`
	Bucket            string `json:"bucket"`
	BackupListPath    string `json:"backup_list_path"`
	EncryptionEnabled bool   `json:"encryption_enabled"`
	KeyFilePath       string `json:"keyfile_path"`

	// NonceAlloc is the persisted high-water mark of the nonce ledger: every
	// counter below it has been durably reserved for this key, even if never
	// consumed. See ConsumeNonces.
	NonceAlloc cipher.Uint128 `json:"nonce_alloc"`

	// nonceCtr is the next nonce to hand out. It is transient: on load it is
	// reset to NonceAlloc (§4.1's crash-recovery rule), never serialized.
	nonceCtr cipher.Uint128

	path string
	mu   sync.Mutex
}

// NoncePreallocAmount (B in §4.1) is the size of each nonce pre-allocation
// block persisted to disk.
const NoncePreallocAmount = 65536

// Path returns the on-disk location this Config was loaded from or will be
// saved to.
func (c *Config) Path() string {
	return c.path
}

// SetDefaults fills in zero-value fields with their defaults. Unlike the
// teacher's HCL-era config, there are few of these: the wire contract (§6)
// keeps the document small and every field is operator-supplied.
func (c *Config) SetDefaults() {
	if c.KeyFilePath == "" {
		c.KeyFilePath = "retain-rs-key"
	}
}
