package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"testing"
)

func hashOf(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestFSStorePutAndOpen(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	content := "test content for filesystem store"

	obj, err := store.Put(ctx, strings.NewReader(content), ObjectTypeArtifact)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if obj.Hash != hashOf(content) {
		t.Errorf("Put hash = %s, want %s", obj.Hash, hashOf(content))
	}
	if obj.Size != int64(len(content)) {
		t.Errorf("Put size = %d, want %d", obj.Size, len(content))
	}
	if _, err := os.Stat(store.objectPath(obj.Hash)); err != nil {
		t.Errorf("Object file not created: %v", err)
	}

	rc, err := store.Open(ctx, obj.Hash)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("Got data %q, want %q", data, content)
	}
}

func TestFSStoreDeduplicates(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	first, err := store.Put(ctx, strings.NewReader("same"), ObjectTypeArtifact)
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	second, err := store.Put(ctx, strings.NewReader("same"), ObjectTypeArtifact)
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("hashes differ: %s vs %s", first.Hash, second.Hash)
	}
	if second.Metadata.RefCount != 2 {
		t.Errorf("RefCount = %d, want 2", second.Metadata.RefCount)
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List returned %d objects, want 1", len(all))
	}

	tmpEntries, _ := os.ReadDir(store.basePath + "/tmp")
	if len(tmpEntries) != 0 {
		t.Errorf("tmp dir not cleaned: %d entries left", len(tmpEntries))
	}
}

func TestFSStoreStatAndList(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	pom, _ := store.Put(ctx, strings.NewReader("<project/>"), ObjectTypeDescriptor)
	_, _ = store.Put(ctx, strings.NewReader("jar bytes"), ObjectTypeArtifact)

	st, err := store.Stat(ctx, pom.Hash)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if st.Type != ObjectTypeDescriptor {
		t.Errorf("Stat type = %s, want %s", st.Type, ObjectTypeDescriptor)
	}

	descriptors, err := store.List(ctx, ObjectTypeDescriptor)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(descriptors) != 1 || descriptors[0] != pom.Hash {
		t.Errorf("List(descriptor) = %v, want [%s]", descriptors, pom.Hash)
	}
}

func TestFSStoreNotFound(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Open(ctx, "nonexistent"); !IsNotFound(err) {
		t.Errorf("Open: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Stat(ctx, "nonexistent"); !IsNotFound(err) {
		t.Errorf("Stat: expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "nonexistent"); !IsNotFound(err) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
	exists, err := store.Exists(ctx, "nonexistent")
	if err != nil || exists {
		t.Errorf("Exists = %v, %v; want false, nil", exists, err)
	}
}

func TestFSStoreDelete(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	obj, _ := store.Put(ctx, strings.NewReader("bye"), ObjectTypeArtifact)
	if err := store.Delete(ctx, obj.Hash); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, _ := store.Exists(ctx, obj.Hash)
	if exists {
		t.Error("object still exists after Delete")
	}
}

func TestFSStorePutCanceled(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Put(ctx, strings.NewReader("x"), ObjectTypeArtifact); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestMemStore(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	obj, err := m.Put(ctx, strings.NewReader("abc"), ObjectTypeArtifact)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if obj.Hash != hashOf("abc") {
		t.Errorf("hash = %s, want %s", obj.Hash, hashOf("abc"))
	}

	m.Corrupt(obj.Hash, []byte("xyz"))
	rc, err := m.Open(ctx, obj.Hash)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "xyz" {
		t.Errorf("Corrupt did not replace content: %q", data)
	}

	if calls := m.Calls(); calls.Put != 1 || calls.Open != 1 {
		t.Errorf("unexpected calls: %+v", calls)
	}
}
