package artifacts

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	data := []byte("hello world")

	ref, err := store.Put(ctx, "artifact-1", bytes.NewReader(data), PutOptions{
		MimeType: "text/plain",
		Metadata: map[string]string{"kind": "blob"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref == "" {
		t.Fatal("put returned empty reference")
	}

	exists, err := store.Exists(ctx, "artifact-1")
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v; want true, nil", exists, err)
	}

	rc, err := store.Get(ctx, "artifact-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}

	if err := store.Delete(ctx, "artifact-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if exists, _ := store.Exists(ctx, "artifact-1"); exists {
		t.Error("artifact still exists after delete")
	}
}

func TestLocalStore_IndexSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if _, err := store.Put(context.Background(), "a1", bytes.NewReader([]byte("x")), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	store.Close()

	reopened, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	exists, err := reopened.Exists(context.Background(), "a1")
	if err != nil || !exists {
		t.Fatalf("exists after reload = %v, %v; want true, nil", exists, err)
	}
}

func TestLocalStore_GetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}
