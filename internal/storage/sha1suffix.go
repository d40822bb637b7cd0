package storage

import (
	"crypto/sha1" // #nosec G501 - required by the storage wire contract, not used for security
	"encoding/hex"
	"hash"
	"io"
)

// SHA1SuffixReader wraps an io.Reader so that, once the wrapped reader is
// exhausted, it emits the 40-hex-character SHA-1 digest of everything read
// so far. This is the streaming adapter the upload endpoint requires (§6):
// "the reader must emit exactly file_size bytes followed by a 40-hex
// SHA-1 of those bytes", grounded on the rolling per-chunk hashing pattern
// used for Backblaze large-file uploads.
type SHA1SuffixReader struct {
	src    io.Reader
	sum    hash.Hash
	digest []byte
	done   bool
}

// NewSHA1SuffixReader wraps src.
func NewSHA1SuffixReader(src io.Reader) *SHA1SuffixReader {
	return &SHA1SuffixReader{src: src, sum: sha1.New()}
}

func (r *SHA1SuffixReader) Read(p []byte) (int, error) {
	if r.done {
		if len(r.digest) == 0 {
			return 0, io.EOF
		}
		n := copy(p, r.digest)
		r.digest = r.digest[n:]
		if len(r.digest) == 0 {
			return n, io.EOF
		}
		return n, nil
	}

	n, err := r.src.Read(p)
	if n > 0 {
		r.sum.Write(p[:n])
	}
	if err == io.EOF {
		r.done = true
		r.digest = []byte(hex.EncodeToString(r.sum.Sum(nil)))
		if n > 0 {
			return n, nil
		}
		return r.Read(p)
	}
	if err != nil {
		return n, err
	}
	return n, nil
}
