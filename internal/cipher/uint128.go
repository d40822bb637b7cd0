// Package cipher implements the streaming authenticated-encryption frame and
// the persistent nonce ledger that backs it.
package cipher

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Uint128 is a 128-bit unsigned counter, big-endian throughout. It backs both
// the nonce ledger's high-water marks and the per-object starting nonce.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Add returns u + n, wrapping on overflow the same way a native uint128 would.
func (u Uint128) Add(n uint64) Uint128 {
	lo := u.Lo + n
	hi := u.Hi
	if lo < u.Lo { // carry
		hi++
	}
	return Uint128{Hi: hi, Lo: lo}
}

// Cmp returns -1, 0 or 1 as u is less than, equal to, or greater than v.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

// Bytes16 renders u as a 16-byte big-endian array, the on-wire header format
// used both as the ciphertext's initial-counter header and as the frame nonce
// source.
func (u Uint128) Bytes16() [16]byte {
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], u.Hi)
	binary.BigEndian.PutUint64(out[8:16], u.Lo)
	return out
}

// Uint128FromBytes16 parses a 16-byte big-endian counter value.
func Uint128FromBytes16(b []byte) (Uint128, error) {
	if len(b) != 16 {
		return Uint128{}, fmt.Errorf("cipher: counter header must be 16 bytes, got %d", len(b))
	}
	return Uint128{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// String renders u in hex, used for log lines and error messages.
func (u Uint128) String() string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}

// IsZero reports whether u is the zero counter.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// MarshalJSON renders u as a hex string so config and manifest files stay
// self-describing text rather than nested {"hi":...,"lo":...} objects.
func (u Uint128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses the hex string produced by MarshalJSON.
func (u *Uint128) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) != 32 {
		return fmt.Errorf("cipher: nonce counter must be a 32-character hex string, got %q", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("cipher: invalid nonce counter hex: %w", err)
	}
	parsed, err := Uint128FromBytes16(raw)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
