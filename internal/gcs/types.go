// Package gcs wraps the Cloud Storage operations used by the mail source and
// the label store behind a small interface.
package gcs

import (
	"context"
	"fmt"
	"strings"
)

// ObjectInfo is the listing view of one object.
type ObjectInfo struct {
	Name     string
	Metadata map[string]string
}

// ObjectStore provides the bucket operations used by this module.
// This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// List returns objects whose names start with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Read downloads an object.
	Read(ctx context.Context, name string) ([]byte, error)

	// SetMetadata sets one custom metadata key on an existing object.
	SetMetadata(ctx context.Context, name, key, value string) error

	// CreateIfAbsent writes data only when no object named name exists.
	// It reports whether this call created the object.
	CreateIfAbsent(ctx context.Context, name string, data []byte) (bool, error)
}

// ParseURI splits gs://bucket/path into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}
