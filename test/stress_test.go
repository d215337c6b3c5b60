package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"coselect/dispute"
	"coselect/lead"
	"coselect/outbox"
	"coselect/payout"
	"coselect/profile"
	"coselect/store"
	"coselect/test/actors"
	"coselect/test/chaos"
	"coselect/test/infra"
	"coselect/test/oracles"
	"coselect/workflow"
)

var (
	flDuration    = flag.Duration("duration", 5*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 3, "number of actors per role")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flBackend     = flag.String("backend", "memory", "storage backend: memory or postgres")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
	flFaultRate   = flag.Float64("fault-rate", 0.2, "storage failure probability during chaos bursts")
)

func TestWorkflowConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in -short mode")
	}
	seed := *flSeed
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+2*time.Minute)
	defer cancel()

	backend, pool := openBackend(t, ctx)
	flaky := chaos.NewFlaky(backend, seed)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := outbox.NewLog(logger)
	profiles := profile.NewService(profile.NewRepository(flaky))
	leads := lead.NewService(lead.NewRepository(flaky), publisher).WithLogger(logger)
	payouts := payout.NewService(payout.NewRepository(flaky), profiles, publisher).WithLogger(logger)
	disputes := dispute.NewService(dispute.NewRepository(flaky), publisher).WithLogger(logger)
	policy := dispute.DefaultPolicy
	policy.AutoReplyDelay = 10 * time.Millisecond
	disputes.SetPolicy(policy)

	coSelectors := mustSeed(t, ctx, profiles, payouts, *flConcurrency)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i, co := range coSelectors {
		base := seed + int64(i)*100
		g.Go(func() error { return actors.Submitter(ctx2, leads, co, base+1, stop) })
		g.Go(func() error { return actors.Requester(ctx2, payouts, co, base+2, stop) })
		g.Go(func() error { return actors.Disputer(ctx2, disputes, co, base+3, stop) })

		reviewer := workflow.Actor{ID: fmt.Sprintf("bd-%d", i), Name: fmt.Sprintf("Reviewer %d", i), Role: workflow.RoleOpsBD}
		finance := workflow.Actor{ID: fmt.Sprintf("fin-%d", i), Name: fmt.Sprintf("Finance %d", i), Role: workflow.RoleFinance}
		g.Go(func() error { return actors.Reviewer(ctx2, leads, reviewer, base+4, stop) })
		g.Go(func() error { return actors.Settler(ctx2, payouts, finance, base+5, stop) })
		g.Go(func() error { return actors.Handler(ctx2, disputes, reviewer, base+6, stop) })
	}

	go chaos.Storm(ctx2, flaky, *flFaultRate, 500*time.Millisecond, stop)
	if pool != nil {
		go chaos.TerminateRandomBackend(ctx2, pool, stop)
	}

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx2.Done():
			break loop
		case <-ticker.C:
			if !checkOracles(t, ctx2, backend, seed) {
				failed = true
				break loop
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v (seed=%d)", err, seed)
		}
	}
	if !failed {
		checkOracles(t, ctx, backend, seed)
	}
	t.Logf("injected %d storage faults (seed=%d)", flaky.Faults(), seed)
}

// checkOracles runs every oracle against the unwrapped backend so the check
// itself never sees injected faults.
func checkOracles(t *testing.T, ctx context.Context, backend store.Store, seed int64) bool {
	t.Helper()
	name, row, err := oracles.Run(ctx, backend)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		t.Fatalf("oracle error: %v", err)
	}
	if name != "" {
		dumpRecent(t, ctx, backend)
		t.Errorf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
		return false
	}
	return true
}

func openBackend(t *testing.T, ctx context.Context) (store.Store, *pgxpool.Pool) {
	t.Helper()
	if *flBackend != "postgres" {
		return store.NewMemory(), nil
	}

	if *flDSN == "" && !dockerAvailable(ctx) {
		t.Skip("postgres backend needs -dsn, " + infra.EnvTestDSN + " or docker")
	}
	pgC, dsn, err := infra.StartPostgres16(ctx, *flDSN)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pool, teardown, err := infra.OpenMigrated(ctx, dsn, pgC.Reused())
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	})
	return store.NewPostgres(pool), pool
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

// mustSeed registers n verified co-selectors with bank accounts and payable
// earnings, recorded before any fault injection starts.
func mustSeed(t *testing.T, ctx context.Context, profiles *profile.Service, payouts *payout.Service, n int) []workflow.Actor {
	t.Helper()
	finance := workflow.Actor{ID: "fin-seed", Name: "Seeder", Role: workflow.RoleFinance}

	out := make([]workflow.Actor, 0, n)
	for i := 0; i < n; i++ {
		co := workflow.Actor{ID: fmt.Sprintf("co-%d", i), Name: fmt.Sprintf("Co-selector %d", i), Role: workflow.RoleCoSelector}
		_, err := profiles.Save(ctx, finance, profile.Profile{
			UserID:      co.ID,
			DisplayName: co.Name,
			Role:        co.Role,
			KYCStatus:   profile.KYCVerified,
			BankAccount: &profile.BankAccount{BankName: "First Bank", AccountHolder: co.Name, AccountNumber: fmt.Sprintf("0000%04d", i)},
		})
		if err != nil {
			t.Fatalf("seed profile %s: %v", co.ID, err)
		}
		for j := 0; j < 5; j++ {
			_, err := payouts.RecordTransaction(ctx, finance, payout.Transaction{
				OwnerID:      co.ID,
				MerchantName: fmt.Sprintf("Merchant %d-%d", i, j),
				Amount:       decimal.NewFromInt(100),
				Status:       payout.TxPayable,
			})
			if err != nil {
				t.Fatalf("seed transaction %s: %v", co.ID, err)
			}
		}
		out = append(out, co)
	}
	return out
}

func dumpRecent(t *testing.T, ctx context.Context, backend store.Store) {
	t.Helper()
	snap, err := oracles.Load(ctx, backend)
	if err != nil {
		t.Logf("dump error: %v", err)
		return
	}
	counts := make(map[string]int)
	for _, l := range snap.Leads {
		counts["lead "+string(l.Status)]++
	}
	for _, p := range snap.Payouts {
		counts["payout "+string(p.Status)]++
	}
	for _, c := range snap.Disputes {
		counts["dispute "+string(c.Status)]++
	}
	t.Logf("-- status counts -- %v", counts)

	var recent []workflow.Event
	for _, l := range snap.Leads {
		recent = append(recent, l.Timeline...)
	}
	for _, p := range snap.Payouts {
		recent = append(recent, p.Timeline...)
	}
	for _, c := range snap.Disputes {
		recent = append(recent, c.Timeline...)
	}
	if len(recent) > 50 {
		recent = recent[len(recent)-50:]
	}
	t.Logf("-- timeline events --")
	for _, ev := range recent {
		t.Logf("%s %s %s/%s %s", ev.ID, ev.EventType, ev.ActorType, ev.ActorID, ev.Description)
	}
}
