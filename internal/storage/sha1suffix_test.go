package storage

import (
	"crypto/sha1" // #nosec G501 - test verifies the same non-security digest the production reader emits
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA1SuffixReaderAppendsDigest(t *testing.T) {
	payload := "the quick brown fox jumps over the lazy dog"
	r := NewSHA1SuffixReader(strings.NewReader(payload))

	out, err := io.ReadAll(r)
	require.NoError(t, err)

	sum := sha1.Sum([]byte(payload)) // #nosec G401 - wire contract requires SHA-1, not used for security
	wantDigest := hex.EncodeToString(sum[:])

	require.Equal(t, payload+wantDigest, string(out))
}

func TestSHA1SuffixReaderHandlesEmptyInput(t *testing.T) {
	r := NewSHA1SuffixReader(strings.NewReader(""))
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	sum := sha1.Sum(nil) // #nosec G401 - wire contract requires SHA-1, not used for security
	require.Equal(t, hex.EncodeToString(sum[:]), string(out))
}

func TestSHA1SuffixReaderSmallBuffer(t *testing.T) {
	payload := "abcdefghijklmnopqrstuvwxyz"
	r := NewSHA1SuffixReader(strings.NewReader(payload))

	var out []byte
	buf := make([]byte, 3)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	sum := sha1.Sum([]byte(payload)) // #nosec G401 - wire contract requires SHA-1, not used for security
	require.Equal(t, payload+hex.EncodeToString(sum[:]), string(out))
}
