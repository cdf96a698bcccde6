// Package fsblob is the filesystem blob store. Objects land under a
// date-prefixed layout so operators can reason about retention by directory.
package fsblob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zacharyvunguyen/FinSight-AI/internal/blob"
)

// ErrInvalidSignature marks a signed URL that fails verification or has
// expired.
var ErrInvalidSignature = errors.New("invalid or expired signature")

type Store struct {
	root    string
	baseURL string
	signKey []byte
	timeNow func() time.Time
}

// New creates a filesystem store rooted at dir. baseURL prefixes signed
// URLs; signKey is the HMAC secret for them.
func New(dir, baseURL string, signKey []byte) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		signKey: signKey,
		timeNow: time.Now,
	}, nil
}

// Put streams the reader to disk under uploads/YYYY/MM/DD/<hash>/<name>.
// Writing to the same path twice overwrites, which is safe because the path
// is derived from the content hash.
func (s *Store) Put(ctx context.Context, contentHash, fileName, contentType string, r io.Reader) (blob.Object, error) {
	if contentHash == "" {
		return blob.Object{}, fmt.Errorf("content hash required")
	}
	name := filepath.Base(fileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "document.pdf"
	}
	now := s.timeNow().UTC()
	rel := path.Join("uploads", now.Format("2006/01/02"), contentHash, name)

	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return blob.Object{}, fmt.Errorf("create blob dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return blob.Object{}, fmt.Errorf("create blob: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return blob.Object{}, fmt.Errorf("write blob: %w", err)
	}
	return blob.Object{Path: rel, ByteSize: n, ContentType: contentType}, nil
}

// Open returns a reader for a stored object.
func (s *Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	clean := path.Clean("/" + p)
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// SignedURL returns a URL of the form
// <base>/<path>?expires=<unix>&sig=<hmac> valid until the expiry elapses.
func (s *Store) SignedURL(p string, expiry time.Duration) (string, error) {
	if len(s.signKey) == 0 {
		return "", fmt.Errorf("signing key not configured")
	}
	expires := s.timeNow().Add(expiry).Unix()
	sig := s.sign(p, expires)
	u := url.URL{
		Path: "/" + path.Clean(p),
		RawQuery: url.Values{
			"expires": {strconv.FormatInt(expires, 10)},
			"sig":     {sig},
		}.Encode(),
	}
	return s.baseURL + u.String(), nil
}

// Verify checks a signed URL's path, expiry, and signature. Used by the
// download handler before serving bytes.
func (s *Store) Verify(p string, expires int64, sig string) error {
	if s.timeNow().Unix() > expires {
		return ErrInvalidSignature
	}
	want := s.sign(p, expires)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Store) sign(p string, expires int64) string {
	mac := hmac.New(sha256.New, s.signKey)
	fmt.Fprintf(mac, "%s\n%d", path.Clean(p), expires)
	return hex.EncodeToString(mac.Sum(nil))
}
