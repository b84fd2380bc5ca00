// Package export builds snapshot artifacts from current dashboard state
// and optionally ships them to S3-compatible storage.
package export

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Manifest describes an artifact's contents with integrity digests.
type Manifest struct {
	CreatedAt time.Time         `json:"created_at"`
	Files     map[string]string `json:"files"` // name -> sha256 hex digest
}

// BuildArchive writes a tar.gz artifact to dir containing the payload as
// state.json, as state.msgpack, and a manifest.json with sha256 digests
// of both. Returns the artifact path.
func BuildArchive(dir string, payload interface{}) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal state to JSON: %w", err)
	}

	packed, err := msgpack.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state to msgpack: %w", err)
	}

	manifest := Manifest{
		CreatedAt: time.Now().UTC(),
		Files: map[string]string{
			"state.json":    digest(jsonData),
			"state.msgpack": digest(packed),
		},
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	name := fmt.Sprintf("dashboard_%s.tar.gz", time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	files := []struct {
		name string
		data []byte
	}{
		{"state.json", jsonData},
		{"state.msgpack", packed},
		{"manifest.json", manifestData},
	}
	for _, file := range files {
		hdr := &tar.Header{
			Name:    file.name,
			Mode:    0644,
			Size:    int64(len(file.data)),
			ModTime: manifest.CreatedAt,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return "", fmt.Errorf("failed to write tar header for %s: %w", file.name, err)
		}
		if _, err := tw.Write(file.data); err != nil {
			return "", fmt.Errorf("failed to write %s to artifact: %w", file.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	return path, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
