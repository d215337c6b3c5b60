package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"coselect/metrics"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"file":   NewFile(filepath.Join(t.TempDir(), "data")),
	}
}

func TestBackends_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := List[item](ctx, s, Leads)
			if err != nil {
				t.Fatalf("list empty: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil slice, got %#v", got)
			}

			want := []item{{ID: "1", Name: "Warung Bu Sri"}, {ID: "2", Name: "Toko Maju"}}
			if err := Replace(ctx, s, Leads, want); err != nil {
				t.Fatalf("replace: %v", err)
			}
			got, err = List[item](ctx, s, Leads)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 || got[1].Name != "Toko Maju" {
				t.Fatalf("unexpected items %#v", got)
			}

			if err := Replace(ctx, s, Leads, want[:1]); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = List[item](ctx, s, Leads)
			if len(got) != 1 {
				t.Fatalf("last write should win, got %d items", len(got))
			}
		})
	}
}

func TestBackends_SettingsDocument(t *testing.T) {
	ctx := context.Background()
	type settings struct {
		Preset string `json:"preset"`
	}
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := Get[settings](ctx, s, Settings); err != nil || ok {
				t.Fatalf("expected missing settings, ok=%v err=%v", ok, err)
			}
			if err := Put(ctx, s, Settings, settings{Preset: "ops"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, ok, err := Get[settings](ctx, s, Settings)
			if err != nil || !ok || got.Preset != "ops" {
				t.Fatalf("unexpected settings %#v ok=%v err=%v", got, ok, err)
			}
		})
	}
}

func TestReset_RemovesEveryCollection(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, c := range Collections {
				if err := s.Save(ctx, c, []byte(`[]`)); err != nil {
					t.Fatalf("save %s: %v", c, err)
				}
			}
			if err := Reset(ctx, s); err != nil {
				t.Fatalf("reset: %v", err)
			}
			for _, c := range Collections {
				data, err := s.Load(ctx, c)
				if err != nil || data != nil {
					t.Fatalf("%s survived reset: %q err=%v", c, data, err)
				}
			}
			if err := Reset(ctx, s); err != nil {
				t.Fatalf("second reset: %v", err)
			}
		})
	}
}

func TestList_DecodeErrorIsStorageError(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Save(ctx, Payouts, []byte(`{not json`))
	counter := metrics.StorageErrors.WithLabelValues("decode", string(Payouts))
	before := testutil.ToFloat64(counter)

	_, err := List[item](ctx, s, Payouts)
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("decode failures counted %v times, want 1", got)
	}
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Op != "decode" || se.Collection != Payouts {
		t.Fatalf("unexpected error detail %#v", err)
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemory().Save(ctx, Leads, []byte(`[]`))
	if !errors.Is(err, ErrStorage) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected storage error wrapping context.Canceled, got %v", err)
	}
}

func TestMemory_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Save(ctx, Leads, []byte(`[1]`))
	data, _ := s.Load(ctx, Leads)
	data[1] = '9'
	again, _ := s.Load(ctx, Leads)
	if string(again) != `[1]` {
		t.Fatalf("stored bytes aliased: %s", again)
	}
}

func TestFile_WritesOneDocumentPerCollection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFile(dir)
	if err := s.Save(ctx, Disputes, []byte(`[]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "disputes.json")); err != nil {
		t.Fatalf("expected disputes.json: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
