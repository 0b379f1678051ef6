package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()
	key := ObjectKey("user-1", "abc", "cat.png")

	url, err := store.Put(ctx, key, []byte("pixels"), "image/png")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "user-1/abc-cat.png") {
		t.Errorf("Unexpected URL %s", url)
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "pixels" {
		t.Errorf("Expected stored bytes, got %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Expected ErrBlobNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Expected ErrBlobNotFound on second delete, got %v", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../b", "a//b", "a/./b", "a\\b"} {
		if _, err := store.Put(context.Background(), key, []byte("x"), ""); err == nil {
			t.Errorf("Expected key %q to be rejected", key)
		}
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		user, id, name string
		want           string
	}{
		{"u1", "id1", "photo.jpg", "u1/id1-photo.jpg"},
		{"", "id2", "photo.jpg", "anonymous/id2-photo.jpg"},
		{"u1", "id3", "../../etc/passwd", "u1/id3-passwd"},
		{"u1", "id4", "", "u1/id4-image"},
		{"u1", "id5", "holiday..final.png", "u1/id5-holiday..final.png"},
		{"../evil", "id6", "a.png", ".._evil/id6-a.png"},
		{"..", "id7", "a.png", "anonymous/id7-a.png"},
		{"a/b", "id8", `c\d.png`, "a_b/id8-c_d.png"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.user, tt.id, tt.name); got != tt.want {
			t.Errorf("ObjectKey(%q, %q, %q) = %q, want %q", tt.user, tt.id, tt.name, got, tt.want)
		}
	}
}

func TestLocalStorage_StoresUnusualNames(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	tests := []struct{ user, name string }{
		{"u1", "holiday..final.png"},
		{"../../escape", "photo.png"},
		{"team/alice", "..png"},
		{"..", ".."},
	}
	for _, tt := range tests {
		key := ObjectKey(tt.user, "abc", tt.name)
		if strings.Count(key, "/") != 1 {
			t.Errorf("ObjectKey(%q, %q) = %q, want exactly one separator", tt.user, tt.name, key)
		}
		url, err := store.Put(ctx, key, []byte("x"), "image/png")
		if err != nil {
			t.Errorf("Put(%q) failed: %v", key, err)
			continue
		}
		if !strings.HasPrefix(url, "file://"+root) {
			t.Errorf("Put(%q) wrote outside the root: %s", key, url)
		}
		if _, err := store.Get(ctx, key); err != nil {
			t.Errorf("Get(%q) failed: %v", key, err)
		}
	}
}
