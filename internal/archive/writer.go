package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// Create packs srcDir into an archive at dstPath whose members live under
// baseDir. The compression follows dstPath's extension. A non-nil manifest
// is stored as baseDir/manifest.json ahead of the files.
func Create(srcDir, dstPath, baseDir string, manifest *Manifest) (err error) {
	format := DetectFormat(dstPath)
	if format != FormatTarXZ && format != FormatTarGZ {
		return fmt.Errorf("unsupported archive format: %s", dstPath)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil {
			err = cerr
		}
	}()

	var compressor io.WriteCloser
	if format == FormatTarXZ {
		if compressor, err = xz.NewWriter(outFile); err != nil {
			return fmt.Errorf("xz writer: %w", err)
		}
	} else {
		compressor = gzip.NewWriter(outFile)
	}
	tw := tar.NewWriter(compressor)

	// One timestamp for every member keeps repeated runs comparable.
	now := time.Now().UTC().Truncate(time.Second)

	if manifest != nil {
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		hdr := &tar.Header{Name: baseDir + "/" + ManifestName, Mode: 0644, Size: int64(len(data)), ModTime: now}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = baseDir + "/" + filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}
		header.ModTime = now

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return compressor.Close()
}
