// Package archive packs and unpacks corpora as compressed tar archives.
// It supports tar.xz and tar.gz.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/paula/internal/validation"
)

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader creates a new archive reader for the given path.
// The compression is chosen from the file extension.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var reader io.Reader
	var decompressor io.Closer

	switch DetectFormat(path) {
	case FormatTarXZ:
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case FormatTarGZ:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is a callback function for iterating archive entries.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// Walk opens an archive and iterates through its entries.
func Walk(path string, visitor Visitor) error {
	r, err := NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Iterate(visitor)
}

// ReadFile reads one member of the archive. filename may include the
// archive's top-level directory or omit it.
func ReadFile(archivePath, filename string) ([]byte, error) {
	var content []byte
	err := Walk(archivePath, func(header *tar.Header, r io.Reader) (bool, error) {
		if header.Name == filename || stripTop(header.Name) == filename {
			var err error
			content, err = io.ReadAll(io.LimitReader(r, validation.MaxFileSize))
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return content, nil
}

// Extract unpacks the regular files and directories of an archive into
// destDir. Members that would land outside destDir or exceed
// validation.MaxFileSize are rejected. It returns the number of files
// written.
func Extract(archivePath, destDir string) (int, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("create %s: %w", destDir, err)
	}
	n := 0
	err := Walk(archivePath, func(header *tar.Header, r io.Reader) (bool, error) {
		clean, err := validation.SanitizePath(destDir, header.Name)
		if err != nil {
			return true, fmt.Errorf("archive member %q: %w", header.Name, err)
		}
		target := filepath.Join(destDir, clean)

		switch header.Typeflag {
		case tar.TypeDir:
			return false, os.MkdirAll(target, 0755)
		case tar.TypeReg:
			if header.Size > validation.MaxFileSize {
				return true, fmt.Errorf("archive member %q exceeds %d bytes", header.Name, validation.MaxFileSize)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return true, err
			}
			if err := writeMember(target, r, header.Size); err != nil {
				return true, err
			}
			n++
		}
		return false, nil
	})
	return n, err
}

func writeMember(target string, r io.Reader, size int64) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return f.Close()
}
