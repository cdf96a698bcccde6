// Package fingerprint computes the content hash used as the global identity
// key for uploaded documents across the metadata store, warehouse and vector
// index.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// blockSize keeps memory use independent of document size.
const blockSize = 4096

// Hash returns the SHA-256 hex digest of r's contents. The stream is read in
// fixed-size blocks and repositioned at its start afterward so the caller can
// re-read it.
func Hash(r io.ReadSeeker) (string, error) {
	h := sha256.New()
	buf := make([]byte, blockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
