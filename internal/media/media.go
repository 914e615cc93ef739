// Package media stores report photos and returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("media: unsupported content type")

const DefaultFolder = "reports"

var extensions = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Storage uploads an object and returns its public URL.
type Storage interface {
	Put(ctx context.Context, folder, contentType string, r io.Reader) (string, error)
}

// ObjectName builds a unique object key under folder for the given content type.
func ObjectName(folder, contentType string, now time.Time) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := extensions[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = DefaultFolder
	}
	return fmt.Sprintf("%s/%s_%d.%s", folder, uuid.NewString(), now.UnixNano(), ext), nil
}
