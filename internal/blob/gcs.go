package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore stores blobs in a Cloud Storage bucket under a fixed prefix.
type GCSStore struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSStore wraps a bucket of an existing storage client.
func NewGCSStore(client *storage.Client, bucketName string) *GCSStore {
	return &GCSStore{
		bucket: client.Bucket(bucketName),
		name:   bucketName,
		prefix: "documents/",
	}
}

func (g *GCSStore) objectKey(key string) string { return g.prefix + key }

func (g *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	obj := g.bucket.Object(g.objectKey(key))
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.name, g.objectKey(key)), nil
}

func (g *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(g.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(g.objectKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
