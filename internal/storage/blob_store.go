package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrBlobNotFound is returned when a key has no stored object.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore keeps uploaded image bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds the storage key for an uploaded image, scoped by user
// when known. Both parts are reduced to a single safe path segment.
func ObjectKey(userID, id, name string) string {
	owner := keySegment(userID, "anonymous")
	name = keySegment(path.Base("/"+name), "image")
	return fmt.Sprintf("%s/%s-%s", owner, id, name)
}

var separatorReplacer = strings.NewReplacer("/", "_", "\\", "_")

// keySegment flattens separators and replaces names that would walk the tree.
func keySegment(s, fallback string) string {
	s = separatorReplacer.Replace(strings.TrimSpace(s))
	switch s {
	case "", ".", "..", "_":
		return fallback
	}
	return s
}

// validKey accepts slash-separated keys whose segments are all plain names.
func validKey(key string) error {
	if key == "" || strings.ContainsRune(key, '\\') {
		return fmt.Errorf("invalid blob key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid blob key %q", key)
		}
	}
	return nil
}
