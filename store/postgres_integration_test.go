package store_test

import (
	"context"
	"testing"
	"time"

	"coselect/store"
	"coselect/test/infra"
)

// TestPostgres_Integration runs the adapter against a disposable PostgreSQL
// container, or COSELECT_TEST_PG_DSN when set.
func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, dsn, err := infra.StartPostgres16(ctx, "")
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	pool, teardown, err := infra.OpenMigrated(ctx, dsn, pg.Reused())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		pool.Close()
		_ = teardown(context.Background())
	}()

	type row struct {
		ID     string `json:"id"`
		Amount string `json:"amount"`
	}
	s := store.NewPostgres(pool)
	if err := store.Replace(ctx, s, store.Payouts, []row{{ID: "p1", Amount: "150.00"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := store.Replace(ctx, s, store.Payouts, []row{{ID: "p2", Amount: "20.00"}}); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	got, err := store.List[row](ctx, s, store.Payouts)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p2" || got[0].Amount != "20.00" {
		t.Fatalf("unexpected rows %#v", got)
	}

	if err := store.Reset(ctx, s); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got, _ := store.List[row](ctx, s, store.Payouts); len(got) != 0 {
		t.Fatalf("expected empty after reset, got %#v", got)
	}
}
