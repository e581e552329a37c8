// Package artifact publishes generated report files to an object store.
package artifact

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ContentTypeXLSX is the media type of Excel workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sentinel errors.
var (
	ErrMissingHandle = errors.New("artifact handle is required")
	ErrMissingFile   = errors.New("artifact file is required")
)

// Publisher uploads a local file under a profile handle and returns the
// object key it was stored at.
type Publisher interface {
	Publish(ctx context.Context, handle, localPath string) (string, error)
}

// ObjectKey is the object key of file for handle: <prefix>/<handle>/<base name>.
func ObjectKey(prefix, handle, file string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", ErrMissingHandle
	}

	base := filepath.Base(strings.TrimSpace(file))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", ErrMissingFile
	}

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return path.Join(handle, base), nil
	}

	return path.Join(prefix, handle, base), nil
}
