// Package cas digests and stores the files written by the exporter.
// Blobs are stored by their SHA-256 hash, with BLAKE3 pointer files that
// map the BLAKE3 digest of a blob back to its SHA-256 name.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/zeebo/blake3"
)

// ErrBlobNotFound is returned when a blob with the given hash does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash string is not a 64 digit lowercase hex string.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// HashResult contains both SHA-256 and BLAKE3 hashes of a blob.
type HashResult struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Sum computes both digests of data.
func Sum(data []byte) HashResult {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return HashResult{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
	}
}

// Store is a content-addressed directory of blobs.
type Store struct {
	root string
}

type blake3Pointer struct {
	SHA256 string `json:"sha256"`
}

// NewStore opens or creates a store rooted at root.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs", "sha256"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Put stores data and returns its digests. Storing the same content twice
// is a no-op.
func (s *Store) Put(data []byte) (HashResult, error) {
	sum := Sum(data)
	if err := writeOnce(s.blobPath(sum.SHA256), data); err != nil {
		return HashResult{}, fmt.Errorf("failed to write blob: %w", err)
	}
	ptr, err := json.Marshal(blake3Pointer{SHA256: sum.SHA256})
	if err != nil {
		return HashResult{}, err
	}
	if err := writeOnce(s.pointerPath(sum.BLAKE3), ptr); err != nil {
		return HashResult{}, fmt.Errorf("failed to write BLAKE3 pointer: %w", err)
	}
	return sum, nil
}

// Get returns the blob with the given SHA-256 hash.
func (s *Store) Get(sha string) ([]byte, error) {
	if !hashPattern.MatchString(sha) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.blobPath(sha))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

// GetByBlake3 returns the blob whose BLAKE3 hash is b3.
func (s *Store) GetByBlake3(b3 string) ([]byte, error) {
	if !hashPattern.MatchString(b3) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.pointerPath(b3))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	var ptr blake3Pointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		return nil, fmt.Errorf("failed to parse pointer: %w", err)
	}
	return s.Get(ptr.SHA256)
}

// Has reports whether a blob with the given SHA-256 hash exists.
func (s *Store) Has(sha string) bool {
	if !hashPattern.MatchString(sha) {
		return false
	}
	_, err := os.Stat(s.blobPath(sha))
	return err == nil
}

// Blobs are stored at <root>/blobs/sha256/<first2>/<hash>.
func (s *Store) blobPath(sha string) string {
	return filepath.Join(s.root, "blobs", "sha256", sha[:2], sha)
}

// Pointers are stored at <root>/blobs/blake3/<first2>/<hash>.json.
func (s *Store) pointerPath(b3 string) string {
	return filepath.Join(s.root, "blobs", "blake3", b3[:2], b3+".json")
}

// writeOnce writes data to path through a temp file and rename unless
// path already exists.
func writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
