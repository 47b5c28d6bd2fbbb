package storage

import (
	"context"
	"io"
	"time"
)

// Store holds conversation and utterance audio clips. Upload returns the
// stored object key, which callers must record on the owning row immediately;
// a clip's path is never reconstructed by guessing.
type Store interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
	Download(ctx context.Context, objectName string) ([]byte, error)
	Delete(ctx context.Context, objectName string) error
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
