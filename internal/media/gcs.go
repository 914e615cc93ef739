package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	log    zerolog.Logger
}

// NewGCS connects with application default credentials and checks the bucket.
func NewGCS(ctx context.Context, bucket string, log zerolog.Logger) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs bucket %s: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket, log: log}, nil
}

func (g *GCS) Put(ctx context.Context, folder, contentType string, r io.Reader) (string, error) {
	name, err := ObjectName(folder, contentType, time.Now())
	if err != nil {
		return "", err
	}
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, name)
	g.log.Info().Str("object", name).Msg("media uploaded")
	return url, nil
}

func (g *GCS) Close() error { return g.client.Close() }
