package simplestorage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// HashReader wraps an io.Reader and taps every byte that passes through it
// into a SHA-256 digest, so uploading and hashing happen in one pass over
// the data. The stream is consumable exactly once; Digest and Size are only
// meaningful after the reader has been fully drained.
type HashReader struct {
	src  io.Reader
	hash hash.Hash
	size int64
}

// NewHashReader creates a HashReader over src.
func NewHashReader(src io.Reader) *HashReader {
	return &HashReader{
		src:  src,
		hash: sha256.New(),
	}
}

// Read reads from the underlying source and feeds the returned bytes into
// the digest. Read errors from the source propagate unchanged.
func (r *HashReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		// hash.Hash.Write never returns an error
		r.hash.Write(p[:n])
		r.size += int64(n)
	}
	return n, err
}

// Digest returns the hex-encoded SHA-256 digest of all bytes read so far.
func (r *HashReader) Digest() string {
	return hex.EncodeToString(r.hash.Sum(nil))
}

// Size returns the number of bytes read so far.
func (r *HashReader) Size() int64 {
	return r.size
}
