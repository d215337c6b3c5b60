package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	statements []string
	err        error
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), r.err
}

func TestMigrate_AppliesCollectionsTable(t *testing.T) {
	rec := &recordingExecer{}
	if err := Migrate(context.Background(), rec); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(rec.statements) == 0 {
		t.Fatal("expected at least one migration")
	}
	if !strings.Contains(rec.statements[0], "CREATE TABLE IF NOT EXISTS collections") {
		t.Fatalf("unexpected first migration: %s", rec.statements[0])
	}
}

func TestMigrate_WrapsExecError(t *testing.T) {
	boom := errors.New("boom")
	err := Migrate(context.Background(), &recordingExecer{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "db: apply") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewPool_RejectsEmptyDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty connection string")
	}
}
