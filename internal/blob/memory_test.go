package blob

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Put(ctx, "sid/status.json", []byte(`{"status":"ready"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := store.Get(ctx, "sid/status.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"status":"ready"}` {
		t.Fatalf("unexpected payload %s", data)
	}

	// Overwrite replaces.
	if err := store.Put(ctx, "sid/status.json", []byte(`{"status":"error"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ = store.Get(ctx, "sid/status.json")
	if string(data) != `{"status":"error"}` {
		t.Fatalf("overwrite not applied: %s", data)
	}
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"a/index.vec", "a/index.json", "b/index.vec"} {
		if err := store.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	keys, err := store.List(ctx, "a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a/index.json" || keys[1] != "a/index.vec" {
		t.Fatalf("unexpected keys %v", keys)
	}

	keys, err = store.List(ctx, "c/")
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected empty listing, got %v (%v)", keys, err)
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d objects", store.Len())
	}
}
