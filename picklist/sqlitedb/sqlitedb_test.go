package sqlitedb_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jacentio/pbcore/picklist"
	"github.com/jacentio/pbcore/picklist/sqlitedb"
)

func openTestBackend(t *testing.T) *sqlitedb.Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "picklists.db")
	b, err := sqlitedb.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestOpen_CreatesSchema(t *testing.T) {
	b := openTestBackend(t)
	entries, err := b.List(context.Background(), "formatColors")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty vocabulary, got %d entries", len(entries))
	}
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "picklists.db")

	b, err := sqlitedb.Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	created, err := b.Create(ctx, "formatPhysical", "Film")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = b.Close()

	b, err = sqlitedb.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()

	got, err := b.Lookup(ctx, "formatPhysical", "Film")
	if err != nil {
		t.Fatalf("lookup after reopen: %v", err)
	}
	if got.Ref != created.Ref {
		t.Errorf("expected %v, got %v", created.Ref, got.Ref)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := sqlitedb.Open(context.Background(), ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestCreate_Conflict(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	if _, err := b.Create(ctx, "formatColors", "Color"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := b.Create(ctx, "formatColors", "Color")
	if !errors.Is(err, picklist.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	// Same name in another vocabulary is fine.
	if _, err := b.Create(ctx, "formatGenerations", "Color"); err != nil {
		t.Errorf("expected no conflict across vocabularies, got %v", err)
	}
}

func TestLookup_Missing(t *testing.T) {
	b := openTestBackend(t)
	_, err := b.Lookup(context.Background(), "formatColors", "Sepia")
	if !errors.Is(err, picklist.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_And_Delete(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	e, _ := b.Create(ctx, "formatMediaType", "Sound")
	got, err := b.Get(ctx, e.Ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Sound" {
		t.Errorf("expected 'Sound', got %q", got.Name)
	}

	if err := b.Delete(ctx, e.Ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(ctx, e.Ref); !errors.Is(err, picklist.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := b.Delete(ctx, e.Ref); !errors.Is(err, picklist.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestGet_WrongVocabulary(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	e, _ := b.Create(ctx, "formatMediaType", "Sound")
	_, err := b.Get(ctx, picklist.Ref{Vocabulary: "formatColors", ID: e.Ref.ID})
	if !errors.Is(err, picklist.ErrNotFound) {
		t.Errorf("expected ErrNotFound for mismatched vocabulary, got %v", err)
	}
}

func TestRegistry_OverSQLite(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)
	reg := picklist.NewRegistry(b, nil)

	const workers = 8
	refs := make([]picklist.Ref, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, err := reg.Resolve(ctx, "formatGenerations", "Original")
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			refs[i] = ref
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if refs[i] != refs[0] {
			t.Errorf("worker %d: expected %v, got %v", i, refs[0], refs[i])
		}
	}

	entries, err := reg.List(ctx, "formatGenerations")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}

	name, err := reg.Render(ctx, refs[0])
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if name != "Original" {
		t.Errorf("expected 'Original', got %q", name)
	}
}
