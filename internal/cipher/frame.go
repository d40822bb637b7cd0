package cipher

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// BlockLength is the size in bytes of one ciphertext frame (payload + tag).
// DataLength is the plaintext capacity of one frame.
const (
	BlockLength = 8192
	DataLength  = BlockLength - chacha20poly1305.Overhead // 8176

	headerLength = 16
)

// NoncesRequired returns the number of frame nonces an object of plaintext
// length L will consume.
func NoncesRequired(length int64) int64 {
	if length < 0 {
		length = 0
	}
	return ceilDiv(length+4, DataLength)
}

// EncryptedSize returns the exact number of ciphertext bytes the encrypting
// reader will emit for a plaintext of the given length, including the header.
func EncryptedSize(length int64) int64 {
	return headerLength + NoncesRequired(length)*BlockLength
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

var (
	// ErrNonceExhausted is returned when an encrypting reader would need to
	// advance past the range reserved for it through the nonce ledger.
	ErrNonceExhausted = errors.New("cipher: nonce range exhausted")
	// ErrAuthFailed is returned when a ciphertext frame fails AEAD verification.
	ErrAuthFailed = errors.New("cipher: authentication failed")
	// ErrMalformedTail is returned when the ciphertext stream's final bytes
	// are not a valid 1- or 2-frame tail.
	ErrMalformedTail = errors.New("cipher: malformed ciphertext tail")
)

func newAEAD(key []byte) (aeadCipher, error) {
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: init aead: %w", err)
	}
	return a, nil
}

// aeadCipher is the subset of cipher.AEAD this package relies on; named here
// so callers never need to import golang.org/x/crypto directly.
type aeadCipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

func frameNonce(counter Uint128) [chacha20poly1305.NonceSizeX]byte {
	var nonce [chacha20poly1305.NonceSizeX]byte
	b := counter.Bytes16()
	copy(nonce[8:], b[:])
	return nonce
}

// EncryptingReader wraps a plaintext io.Reader, emitting the framed
// ciphertext described in the streaming encryption format: a 16-byte
// initial-counter header followed by BlockLength-sized AEAD frames.
type EncryptingReader struct {
	src   io.Reader
	aead  aeadCipher
	start Uint128
	limit Uint128 // one past the last nonce this reader may use
	next  Uint128 // next frame counter to emit

	out    []byte // pending output not yet returned to the caller
	outPos int

	headerSent bool
	eof        bool
	chunk      [DataLength]byte
}

// NewEncryptingReader constructs an encrypting reader. start is the first
// nonce counter reserved for this object via the nonce ledger; reserved is
// the number of nonces reserved (from NoncesRequired), used only to detect a
// reservation that is too small for the input actually produced.
func NewEncryptingReader(src io.Reader, key []byte, start Uint128, reserved int64) (*EncryptingReader, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if reserved < 1 {
		return nil, fmt.Errorf("cipher: must reserve at least one nonce")
	}
	return &EncryptingReader{
		src:   src,
		aead:  aead,
		start: start,
		limit: start.Add(uint64(reserved)),
		next:  start,
	}, nil
}

func (r *EncryptingReader) Read(p []byte) (int, error) {
	total := 0
	for {
		if r.outPos < len(r.out) {
			n := copy(p[total:], r.out[r.outPos:])
			r.outPos += n
			total += n
			if total == len(p) {
				return total, nil
			}
			continue
		}
		if r.eof {
			if total > 0 {
				return total, nil
			}
			return 0, io.EOF
		}
		if !r.headerSent {
			header := r.start.Bytes16()
			r.out = append(r.out[:0], header[:]...)
			r.outPos = 0
			r.headerSent = true
			continue
		}
		if err := r.produceFrame(); err != nil {
			if total > 0 {
				// deliver what we have together with the error; later
				// calls report io.EOF
				r.out = nil
				r.eof = true
				return total, err
			}
			return 0, err
		}
	}
}

// produceFrame reads the next plaintext chunk and appends its ciphertext (or
// the terminal frame(s)) to r.out.
func (r *EncryptingReader) produceFrame() error {
	r.out = r.out[:0]
	r.outPos = 0
	n, err := io.ReadFull(r.src, r.chunk[:])
	switch {
	case err == nil:
		// Full, non-final chunk.
		if err := r.sealOne(r.chunk[:]); err != nil {
			return err
		}
		return nil
	case errors.Is(err, io.EOF):
		// n == 0: the stream ended exactly on a chunk boundary (or was empty).
		return r.sealFinal(0)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return r.sealFinal(n)
	default:
		return fmt.Errorf("cipher: read plaintext: %w", err)
	}
}

func (r *EncryptingReader) sealOne(plaintext []byte) error {
	if r.next.Cmp(r.limit) >= 0 {
		return ErrNonceExhausted
	}
	nonce := frameNonce(r.next)
	r.next = r.next.Add(1)
	r.out = r.aead.Seal(r.out, nonce[:], plaintext, nil)
	return nil
}

// sealFinal handles the terminal chunk of length n (0 <= n < DataLength),
// emitting one or two frames per the padding rule.
func (r *EncryptingReader) sealFinal(n int) error {
	pad := DataLength - n
	var frame [DataLength]byte
	copy(frame[:n], r.chunk[:n])

	if pad >= 4 {
		putPadMarker(frame[:], n, pad)
		if err := r.sealOne(frame[:]); err != nil {
			return err
		}
		r.eof = true
		return nil
	}

	// pad in {1,2,3}: this frame holds real payload plus zero fill, no marker.
	if err := r.sealOne(frame[:]); err != nil {
		return err
	}
	var marker [DataLength]byte
	putPadMarker(marker[:], 0, DataLength+pad)
	if err := r.sealOne(marker[:]); err != nil {
		return err
	}
	r.eof = true
	return nil
}

// putPadMarker zero-fills frame[payloadLen:DataLength-4] and writes
// be32(padValue) into the last four bytes.
func putPadMarker(frame []byte, payloadLen, padValue int) {
	for i := payloadLen; i < DataLength-4; i++ {
		frame[i] = 0
	}
	binary.BigEndian.PutUint32(frame[DataLength-4:], uint32(padValue))
}

// DecryptingWriter consumes a framed ciphertext stream and writes the
// recovered plaintext to dst. Call Close (or Write(nil)) exactly once after
// the final ciphertext byte has been written.
type DecryptingWriter struct {
	dst  io.Writer
	aead aeadCipher

	header    []byte // accumulates the 16-byte counter header
	headerSet bool
	start     Uint128
	next      Uint128 // nonce counter of the oldest buffered frame

	buf    []byte
	closed bool
}

// NewDecryptingWriter constructs a decrypting writer over dst.
func NewDecryptingWriter(dst io.Writer, key []byte) (*DecryptingWriter, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return &DecryptingWriter{dst: dst, aead: aead, header: make([]byte, 0, headerLength)}, nil
}

func (w *DecryptingWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("cipher: write after close")
	}
	if len(p) == 0 {
		return 0, w.finish()
	}

	total := len(p)
	if !w.headerSet {
		need := headerLength - len(w.header)
		take := min(need, len(p))
		w.header = append(w.header, p[:take]...)
		p = p[take:]
		if len(w.header) == headerLength {
			start, err := Uint128FromBytes16(w.header)
			if err != nil {
				return 0, err
			}
			w.start = start
			w.next = start
			w.headerSet = true
		}
	}

	w.buf = append(w.buf, p...)
	if err := w.drain(); err != nil {
		return 0, err
	}
	return total, nil
}

// drain emits every frame beyond the 2-frame tail this writer must retain to
// resolve the padding ambiguity at EOF.
func (w *DecryptingWriter) drain() error {
	for len(w.buf) >= 3*BlockLength {
		frame := w.buf[:BlockLength]
		plaintext, err := w.openOne(frame, w.next)
		if err != nil {
			return err
		}
		if _, err := w.dst.Write(plaintext); err != nil {
			return fmt.Errorf("cipher: write plaintext: %w", err)
		}
		w.next = w.next.Add(1)
		w.buf = w.buf[BlockLength:]
	}
	return nil
}

// Close finalizes the stream, flushing the retained tail frame(s).
func (w *DecryptingWriter) Close() error {
	return w.finish()
}

func (w *DecryptingWriter) finish() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if !w.headerSet {
		if len(w.header) == 0 {
			return nil // empty input entirely: nothing to do
		}
		return fmt.Errorf("%w: truncated header", ErrMalformedTail)
	}

	if len(w.buf)%BlockLength != 0 {
		return fmt.Errorf("%w: %d residual bytes not a multiple of block length", ErrMalformedTail, len(w.buf))
	}
	frames := len(w.buf) / BlockLength
	if frames != 1 && frames != 2 {
		return fmt.Errorf("%w: %d residual frames", ErrMalformedTail, frames)
	}

	if frames == 1 {
		plaintext, err := w.openOne(w.buf, w.next)
		if err != nil {
			return err
		}
		pad := int(binary.BigEndian.Uint32(plaintext[DataLength-4:]))
		if pad < 0 || pad > DataLength {
			return fmt.Errorf("%w: pad_amount %d out of range", ErrMalformedTail, pad)
		}
		_, err = w.dst.Write(plaintext[:DataLength-pad])
		return err
	}

	frame1, err := w.openOne(w.buf[:BlockLength], w.next)
	if err != nil {
		return err
	}
	frame2, err := w.openOne(w.buf[BlockLength:], w.next.Add(1))
	if err != nil {
		return err
	}
	pad := int(binary.BigEndian.Uint32(frame2[DataLength-4:]))
	if pad < 0 || pad > 2*DataLength {
		return fmt.Errorf("%w: pad_amount %d out of range", ErrMalformedTail, pad)
	}
	if pad >= DataLength {
		trim := pad - DataLength
		if trim > DataLength {
			return fmt.Errorf("%w: pad_amount %d exceeds frame capacity", ErrMalformedTail, pad)
		}
		if _, err := w.dst.Write(frame1[:DataLength-trim]); err != nil {
			return err
		}
		return nil
	}
	if _, err := w.dst.Write(frame1); err != nil {
		return err
	}
	_, err = w.dst.Write(frame2[:DataLength-pad])
	return err
}

func (w *DecryptingWriter) openOne(ciphertext []byte, counter Uint128) ([]byte, error) {
	nonce := frameNonce(counter)
	plaintext, err := w.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return plaintext, nil
}
