package archive

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Archive formats.
const (
	FormatTarXZ   = "tar.xz"
	FormatTarGZ   = "tar.gz"
	FormatUnknown = "unknown"
)

// ManifestName is the member holding the Manifest of a packed corpus.
const ManifestName = "manifest.json"

// Manifest describes a corpus packed by Create.
type Manifest struct {
	Version   string             `json:"version"`
	Corpus    string             `json:"corpus"`
	CreatedAt string             `json:"created_at,omitempty"`
	Documents []ManifestDocument `json:"documents"`
}

// ManifestDocument lists the files of one document.
type ManifestDocument struct {
	Name  string         `json:"name"`
	Files []ManifestFile `json:"files"`
}

// ManifestFile is one file with its digests.
type ManifestFile struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// DetectFormat detects the archive format from the file extension.
func DetectFormat(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXZ
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGZ
	default:
		return FormatUnknown
	}
}

// IsSupportedFormat returns true if the file has a supported archive extension.
func IsSupportedFormat(path string) bool {
	return DetectFormat(path) != FormatUnknown
}

// CorpusName derives a corpus name from an archive or directory path by
// removing known extensions.
func CorpusName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".tar.xz", ".tar.gz", ".txz", ".tgz"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// ReadManifest returns the manifest of a packed corpus.
func ReadManifest(path string) (*Manifest, error) {
	var m *Manifest
	err := Walk(path, func(header *tar.Header, r io.Reader) (bool, error) {
		if stripTop(header.Name) != ManifestName {
			return false, nil
		}
		m = &Manifest{}
		return true, json.NewDecoder(r).Decode(m)
	})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%s has no %s", path, ManifestName)
	}
	return m, nil
}

// stripTop removes the top-level directory of an archive member name.
func stripTop(name string) string {
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
