// Package blob stores the raw bytes of accepted uploads on local disk or in
// an S3-compatible bucket. Keys are slash-separated relative paths such as
// "uploads/<uuid>_<name>".
package blob

import (
	"fmt"
	"path"
	"strings"

	"github.com/JonMunkholm/chemflux/internal/core"
)

const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Dir     string
	S3      S3Options
}

// Open returns the BlobStore named by opts.Backend.
func Open(opts Options) (core.BlobStore, error) {
	switch opts.Backend {
	case BackendDisk, "":
		return NewDisk(opts.Dir)
	case BackendS3:
		return NewS3(opts.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return clean, nil
}
