package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// backends returns the Store implementations exercisable without external
// services. Redis and Mongo share the same contract but need a server.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStore_PutGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Initialize(ctx); err != nil {
				t.Fatalf("Initialize() failed: %v", err)
			}

			before := time.Now().Add(-time.Second)
			if err := s.Put(ctx, "scan:/tmp/ws", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("Put() failed: %v", err)
			}

			e, ok, err := s.Get(ctx, "scan:/tmp/ws")
			if err != nil {
				t.Fatalf("Get() failed: %v", err)
			}
			if !ok {
				t.Fatal("Get() = miss, want hit")
			}
			if string(e.Value) != `{"a":1}` {
				t.Errorf("value = %q, want %q", e.Value, `{"a":1}`)
			}
			if e.StoredAt.Before(before) {
				t.Errorf("StoredAt = %v, want recent", e.StoredAt)
			}
		})
	}
}

func TestStore_Miss(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Initialize(ctx); err != nil {
				t.Fatalf("Initialize() failed: %v", err)
			}
			_, ok, err := s.Get(ctx, "missing")
			if err != nil {
				t.Fatalf("Get() failed: %v", err)
			}
			if ok {
				t.Error("Get() = hit for missing key")
			}
		})
	}
}

func TestStore_Upsert(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Initialize(ctx); err != nil {
				t.Fatalf("Initialize() failed: %v", err)
			}
			if err := s.Put(ctx, "k", []byte("v1")); err != nil {
				t.Fatalf("Put() failed: %v", err)
			}
			if err := s.Put(ctx, "k", []byte("v2")); err != nil {
				t.Fatalf("Put() failed: %v", err)
			}
			e, ok, _ := s.Get(ctx, "k")
			if !ok || string(e.Value) != "v2" {
				t.Errorf("Get() after upsert = %q, %v; want v2, true", e.Value, ok)
			}
		})
	}
}

func TestStore_InvalidatePrefix(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Initialize(ctx); err != nil {
				t.Fatalf("Initialize() failed: %v", err)
			}
			keys := []string{
				"registry:listing:@acme",
				"registry:pkg:@acme/a",
				"registry:pkg:@acme/b",
				"scan:/tmp/ws",
			}
			for _, k := range keys {
				if err := s.Put(ctx, k, []byte("x")); err != nil {
					t.Fatalf("Put(%s) failed: %v", k, err)
				}
			}

			if err := s.Invalidate(ctx, "registry:pkg:"); err != nil {
				t.Fatalf("Invalidate() failed: %v", err)
			}

			for _, k := range []string{"registry:pkg:@acme/a", "registry:pkg:@acme/b"} {
				if _, ok, _ := s.Get(ctx, k); ok {
					t.Errorf("key %s survived invalidation", k)
				}
			}
			for _, k := range []string{"registry:listing:@acme", "scan:/tmp/ws"} {
				if _, ok, _ := s.Get(ctx, k); !ok {
					t.Errorf("key %s was wrongly invalidated", k)
				}
			}
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s1, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	if err := s1.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := s1.Put(ctx, "k", []byte("persisted")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if err := s2.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	e, ok, err := s2.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = %v, %v", ok, err)
	}
	if string(e.Value) != "persisted" {
		t.Errorf("value = %q, want persisted", e.Value)
	}
}
