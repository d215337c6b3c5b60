package chaos

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"coselect/store"
)

// ErrInjected is returned by Flaky when it decides an operation fails.
var ErrInjected = errors.New("chaos: injected fault")

// Flaky wraps a store and fails a share of operations while enabled. Failed
// saves never reach the wrapped store, so a fault looks like a dropped write.
type Flaky struct {
	inner store.Store

	mu   sync.Mutex
	rng  *rand.Rand
	rate float64

	faults atomic.Int64
}

func NewFlaky(inner store.Store, seed int64) *Flaky {
	return &Flaky{inner: inner, rng: rand.New(rand.NewSource(seed))}
}

// SetRate sets the failure probability in [0, 1].
func (f *Flaky) SetRate(rate float64) {
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
}

// Faults reports how many operations were failed so far.
func (f *Flaky) Faults() int64 { return f.faults.Load() }

func (f *Flaky) trip() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rate <= 0 || f.rng.Float64() >= f.rate {
		return false
	}
	f.faults.Add(1)
	return true
}

func (f *Flaky) Load(ctx context.Context, c store.Collection) ([]byte, error) {
	if f.trip() {
		return nil, ErrInjected
	}
	return f.inner.Load(ctx, c)
}

func (f *Flaky) Save(ctx context.Context, c store.Collection, data []byte) error {
	if f.trip() {
		return ErrInjected
	}
	return f.inner.Save(ctx, c, data)
}

func (f *Flaky) Remove(ctx context.Context, c store.Collection) error {
	if f.trip() {
		return ErrInjected
	}
	return f.inner.Remove(ctx, c)
}

// Storm toggles the failure rate of f between zero and rate every interval
// until ctx is done or stop is closed. The rate is zero when it returns.
func Storm(ctx context.Context, f *Flaky, rate float64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer f.SetRate(0)

	on := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			on = !on
			if on {
				f.SetRate(rate)
			} else {
				f.SetRate(0)
			}
		}
	}
}

// TerminateRandomBackend kills a random server connection of the current
// database now and then, so pooled Postgres reads and writes hit reconnects.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(5) == 0 {
				_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
                    WHERE datname = current_database() AND pid <> pg_backend_pid()
                    ORDER BY random() LIMIT 1`)
			}
		}
	}
}
