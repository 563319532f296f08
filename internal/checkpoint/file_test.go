package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

func TestFileStore_SaveGetLatest(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	for _, seq := range []int64{1, 2, 3} {
		cp := &models.Checkpoint{ThreadID: "thread/with:odd chars", Seq: seq, Snapshot: []byte("snap"), CreatedAt: time.Now()}
		if err := store.Save(ctx, cp); err != nil {
			t.Fatalf("save seq=%d: %v", seq, err)
		}
	}

	latest, err := store.Latest(ctx, "thread/with:odd chars")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Seq != 3 {
		t.Errorf("latest seq = %d, want 3", latest.Seq)
	}

	got, err := store.Get(ctx, "thread/with:odd chars", 2)
	if err != nil {
		t.Fatalf("get seq=2: %v", err)
	}
	if string(got.Snapshot) != "snap" {
		t.Errorf("snapshot = %s, want snap", got.Snapshot)
	}
}

func TestFileStore_SaveIsAppendOnly(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, &models.Checkpoint{ThreadID: "t1", Seq: 1, Snapshot: []byte("first")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, &models.Checkpoint{ThreadID: "t1", Seq: 1, Snapshot: []byte("second")}); err != nil {
		t.Fatalf("save dup: %v", err)
	}

	got, err := store.Get(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Snapshot) != "first" {
		t.Errorf("duplicate save overwrote snapshot: got %s, want first", got.Snapshot)
	}
}

func TestFileStore_GetNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Get(context.Background(), "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.Latest(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("latest err = %v, want ErrNotFound", err)
	}
}

func TestFileStore_ListAndPrune(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	for _, seq := range []int64{1, 2, 3, 4, 5} {
		if err := store.Save(ctx, &models.Checkpoint{ThreadID: "t1", Seq: seq, Snapshot: []byte("x")}); err != nil {
			t.Fatalf("save seq=%d: %v", seq, err)
		}
	}

	list, err := store.List(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 || list[0].Seq != 5 {
		t.Fatalf("list = %+v, want 5 entries descending from 5", list)
	}
	for _, cp := range list {
		if cp.Snapshot != nil {
			t.Errorf("list entry seq=%d carries snapshot, want nil", cp.Seq)
		}
	}

	removed, err := store.Prune(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	remaining, err := store.List(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("list after prune: %v", err)
	}
	if len(remaining) != 2 || remaining[0].Seq != 5 || remaining[1].Seq != 4 {
		t.Errorf("remaining = %+v, want [5, 4]", remaining)
	}
}
