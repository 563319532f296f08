package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/weaver-ai/weaver/pkg/models"
)

func setupSQLMock(t *testing.T) (sqlmock.Sqlmock, *SQLStore) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectPrepare("INSERT INTO checkpoints")
	mock.ExpectPrepare("SELECT .* FROM checkpoints WHERE thread_id = \\$1\\s+ORDER BY seq DESC LIMIT 1")
	mock.ExpectPrepare("SELECT .* FROM checkpoints WHERE thread_id = \\$1 AND seq = \\$2")
	mock.ExpectPrepare("SELECT .* FROM checkpoints WHERE thread_id = \\$1\\s+ORDER BY seq DESC LIMIT \\$2")
	mock.ExpectPrepare("DELETE FROM checkpoints")

	store, err := NewSQLStore(db)
	if err != nil {
		t.Fatalf("new sql store: %v", err)
	}
	return mock, store
}

func TestSQLStore_Save(t *testing.T) {
	mock, store := setupSQLMock(t)
	mock.ExpectExec("INSERT INTO checkpoints").
		WithArgs("t1", int64(1), "route", []byte("snap"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cp := &models.Checkpoint{ThreadID: "t1", Seq: 1, NodeName: "route", Snapshot: []byte("snap"), CreatedAt: time.Now()}
	if err := store.Save(context.Background(), cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_SaveMissingThreadID(t *testing.T) {
	_, store := setupSQLMock(t)
	err := store.Save(context.Background(), &models.Checkpoint{Seq: 1})
	if err == nil {
		t.Fatal("expected error for missing thread_id")
	}
}

func TestSQLStore_Latest(t *testing.T) {
	mock, store := setupSQLMock(t)
	rows := sqlmock.NewRows([]string{"thread_id", "seq", "node_name", "snapshot", "created_at"}).
		AddRow("t1", int64(3), "agent", []byte("snap3"), time.Now())
	mock.ExpectQuery("SELECT .* FROM checkpoints WHERE thread_id = \\$1\\s+ORDER BY seq DESC LIMIT 1").
		WithArgs("t1").
		WillReturnRows(rows)

	cp, err := store.Latest(context.Background(), "t1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if cp.Seq != 3 || cp.NodeName != "agent" {
		t.Errorf("cp = %+v, want seq=3 node=agent", cp)
	}
}

func TestSQLStore_LatestNotFound(t *testing.T) {
	mock, store := setupSQLMock(t)
	mock.ExpectQuery("SELECT .* FROM checkpoints WHERE thread_id = \\$1\\s+ORDER BY seq DESC LIMIT 1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Latest(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_Prune(t *testing.T) {
	mock, store := setupSQLMock(t)
	mock.ExpectExec("DELETE FROM checkpoints").
		WithArgs("t1", 2).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.Prune(context.Background(), "t1", 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
}
