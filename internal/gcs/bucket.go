package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Bucket implements ObjectStore on a Cloud Storage bucket.
type Bucket struct {
	client *storage.Client
	handle *storage.BucketHandle
	name   string
}

// NewBucket creates a storage client for bucketName. It assumes Application
// Default Credentials are configured.
func NewBucket(ctx context.Context, bucketName string) (*Bucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBucket: create storage client: %w", err)
	}
	return &Bucket{
		client: client,
		handle: client.Bucket(bucketName),
		name:   bucketName,
	}, nil
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Close closes the storage client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

// List implements ObjectStore.
func (b *Bucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := b.handle.Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterating %s: %w", prefix, err)
		}
		objects = append(objects, ObjectInfo{Name: attrs.Name, Metadata: attrs.Metadata})
	}
	return objects, nil
}

// Read implements ObjectStore.
func (b *Bucket) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.handle.Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Read: open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Read: read GCS object: %w", err)
	}
	return data, nil
}

// SetMetadata implements ObjectStore.
func (b *Bucket) SetMetadata(ctx context.Context, name, key, value string) error {
	_, err := b.handle.Object(name).Update(ctx, storage.ObjectAttrsToUpdate{
		Metadata: map[string]string{key: value},
	})
	if err != nil {
		return fmt.Errorf("SetMetadata: %s: %w", name, err)
	}
	return nil
}

// CreateIfAbsent implements ObjectStore using a does-not-exist precondition.
func (b *Bucket) CreateIfAbsent(ctx context.Context, name string, data []byte) (bool, error) {
	w := b.handle.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return false, fmt.Errorf("CreateIfAbsent: copy to GCS writer: %w", err)
	}

	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return false, nil
		}
		return false, fmt.Errorf("CreateIfAbsent: finalize upload: %w", err)
	}
	return true, nil
}

var _ ObjectStore = (*Bucket)(nil)
