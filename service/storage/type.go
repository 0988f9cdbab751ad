package storage

import (
	"context"
	"time"
)

type IService interface {
	// StoreFile stores data under key and returns a URL where it can be
	// viewed.
	StoreFile(ctx context.Context, key string, data []byte) (string, error)
}

// ImageKey names a snapshot by its capture second, e.g.
// DeepLens/image-20240131-154502.jpg.
func ImageKey(prefix string, t time.Time) string {
	return prefix + "image-" + t.Format("20060102-150405") + ".jpg"
}
