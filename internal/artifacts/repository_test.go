package artifacts

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/weaver-ai/weaver/pkg/models"
)

func TestRepository_PutInlineForSmallPayload(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	repo := NewRepository(store, nil)

	art := &models.Artifact{ThreadID: "t1", Kind: models.ArtifactKindText, Name: "note.txt"}
	saved, err := repo.Put(context.Background(), art, []byte("small payload"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if saved.StorageURI != "" {
		t.Errorf("StorageURI = %q, want empty for inline artifact", saved.StorageURI)
	}
	if saved.Content != "small payload" {
		t.Errorf("Content = %q, want %q", saved.Content, "small payload")
	}
	if saved.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestRepository_PutOffloadsLargePayload(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	repo := NewRepository(store, nil)

	big := bytes.Repeat([]byte("x"), int(InlineThreshold)+1)
	art := &models.Artifact{ThreadID: "t1", Kind: models.ArtifactKindBlob, Name: "big.bin"}
	saved, err := repo.Put(context.Background(), art, big)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if saved.StorageURI == "" {
		t.Error("expected StorageURI to be set for offloaded artifact")
	}
	if saved.Content != "" {
		t.Error("expected Content to be empty for offloaded artifact")
	}
}

func TestRepository_GetRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	repo := NewRepository(store, nil)
	ctx := context.Background()

	big := bytes.Repeat([]byte("y"), int(InlineThreshold)+100)
	saved, err := repo.Put(ctx, &models.Artifact{ThreadID: "t1", Kind: models.ArtifactKindBlob}, big)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	meta, rc, err := repo.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Error("round-tripped content does not match")
	}
	if meta.ID != saved.ID {
		t.Errorf("meta.ID = %q, want %q", meta.ID, saved.ID)
	}
}

func TestRepository_ListFiltersByThreadAndKind(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	repo := NewRepository(store, nil)
	ctx := context.Background()

	repo.Put(ctx, &models.Artifact{ThreadID: "t1", Kind: models.ArtifactKindText}, []byte("a"))
	repo.Put(ctx, &models.Artifact{ThreadID: "t1", Kind: models.ArtifactKindReport}, []byte("b"))
	repo.Put(ctx, &models.Artifact{ThreadID: "t2", Kind: models.ArtifactKindText}, []byte("c"))

	list := repo.List(ctx, Filter{ThreadID: "t1"})
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}

	list = repo.List(ctx, Filter{ThreadID: "t1", Kind: models.ArtifactKindReport})
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
}

func TestRepository_Delete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	repo := NewRepository(store, nil)
	ctx := context.Background()

	big := bytes.Repeat([]byte("z"), int(InlineThreshold)+1)
	saved, err := repo.Put(ctx, &models.Artifact{ThreadID: "t1", Kind: models.ArtifactKindBlob}, big)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := repo.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := repo.Get(ctx, saved.ID); err == nil {
		t.Fatal("expected error getting deleted artifact")
	}
}
