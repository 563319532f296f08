package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cp := &models.Checkpoint{ThreadID: "t1", Seq: 1, NodeName: "route", Snapshot: []byte(`{"a":1}`), CreatedAt: time.Now()}
	if err := store.Save(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Snapshot) != `{"a":1}` {
		t.Errorf("snapshot = %s, want {\"a\":1}", got.Snapshot)
	}
}

func TestMemoryStore_SaveIsAppendOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cp := &models.Checkpoint{ThreadID: "t1", Seq: 1, Snapshot: []byte("first")}
	if err := store.Save(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	dup := &models.Checkpoint{ThreadID: "t1", Seq: 1, Snapshot: []byte("second")}
	if err := store.Save(ctx, dup); err != nil {
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

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "missing", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Latest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, seq := range []int64{1, 2, 3} {
		store.Save(ctx, &models.Checkpoint{ThreadID: "t1", Seq: seq, Snapshot: []byte("x")})
	}

	latest, err := store.Latest(ctx, "t1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Seq != 3 {
		t.Errorf("latest seq = %d, want 3", latest.Seq)
	}

	if _, err := store.Latest(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("latest on unknown thread: %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListOmitsSnapshotAndOrdersDescending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, seq := range []int64{1, 2, 3} {
		store.Save(ctx, &models.Checkpoint{ThreadID: "t1", Seq: seq, Snapshot: []byte("payload")})
	}

	list, err := store.List(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	if list[0].Seq != 3 || list[1].Seq != 2 || list[2].Seq != 1 {
		t.Errorf("list not descending: %+v", list)
	}
	for _, cp := range list {
		if cp.Snapshot != nil {
			t.Errorf("list entry seq=%d carries snapshot, want nil", cp.Seq)
		}
	}
}

func TestMemoryStore_ListRespectsLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, seq := range []int64{1, 2, 3, 4} {
		store.Save(ctx, &models.Checkpoint{ThreadID: "t1", Seq: seq, Snapshot: []byte("x")})
	}

	list, err := store.List(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].Seq != 4 || list[1].Seq != 3 {
		t.Errorf("list = %+v, want [4, 3]", list)
	}
}

func TestMemoryStore_Prune(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, seq := range []int64{1, 2, 3, 4, 5} {
		store.Save(ctx, &models.Checkpoint{ThreadID: "t1", Seq: seq, Snapshot: []byte("x")})
	}

	removed, err := store.Prune(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	list, err := store.List(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) after prune = %d, want 2", len(list))
	}
	if list[0].Seq != 5 || list[1].Seq != 4 {
		t.Errorf("retained checkpoints = %+v, want newest two (5, 4)", list)
	}
}

func TestNextSeq(t *testing.T) {
	if got := NextSeq(nil); got != 1 {
		t.Errorf("NextSeq(nil) = %d, want 1", got)
	}
	if got := NextSeq(&models.Checkpoint{Seq: 7}); got != 8 {
		t.Errorf("NextSeq(seq=7) = %d, want 8", got)
	}
}
