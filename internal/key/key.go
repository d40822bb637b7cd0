// Package key loads, generates and zeroizes the 32-byte symmetric secret
// that is the sole authority for encryption (spec.md §1: "No server-side
// key management"). The key never appears in Config; it lives in its own
// keyfile.
package key

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/coldvault/coldvault-agent/internal/crypto"
)

// Size is the length in bytes of the symmetric secret (XChaCha20-Poly1305
// key size).
const Size = 32

// Key wraps a loaded symmetric secret in a SecureBuffer so callers can
// zeroize it deterministically instead of relying on garbage collection.
type Key struct {
	buf *crypto.SecureBuffer
}

// Load reads exactly Size bytes from path and wraps them in a locked,
// zeroizable buffer.
func Load(path string) (*Key, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - operator-supplied keyfile path
	if err != nil {
		return nil, crypto.NewEncryptionError("load_key", path, err)
	}
	defer crypto.SecureZero(raw)

	if len(raw) != Size {
		return nil, crypto.NewEncryptionError("load_key", path, fmt.Errorf("must contain exactly %d bytes, got %d", Size, len(raw)))
	}

	buf, err := crypto.NewSecureBufferFromBytes(raw)
	if err != nil {
		return nil, crypto.NewEncryptionError("load_key", path, err)
	}
	return &Key{buf: buf}, nil
}

// Generate creates Size bytes of cryptographically random key material and
// writes them to path. It refuses to overwrite an existing keyfile: init
// (§6) must never silently clobber a key that protects already-uploaded
// data.
func Generate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return crypto.NewEncryptionError("generate_key", path, fmt.Errorf("refusing to overwrite existing keyfile"))
	} else if !os.IsNotExist(err) {
		return crypto.NewEncryptionError("generate_key", path, err)
	}

	raw := make([]byte, Size)
	if _, err := rand.Read(raw); err != nil {
		return crypto.NewEncryptionError("generate_key", path, err)
	}
	defer crypto.SecureZero(raw)

	if err := os.WriteFile(path, raw, 0600); err != nil { // #nosec G306 - secret keyfile
		return crypto.NewEncryptionError("generate_key", path, err)
	}
	return nil
}

// Bytes returns the underlying key material. The slice must not be retained
// beyond the lifetime of the Key.
func (k *Key) Bytes() []byte {
	return k.buf.Data()
}

// Destroy securely zeros the key material. Safe to call multiple times.
func (k *Key) Destroy() {
	k.buf.Destroy()
}
