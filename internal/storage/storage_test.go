package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starbridge-ai/starbridge/internal/config"
	"github.com/starbridge-ai/starbridge/internal/workspace"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(&config.StorageConfig{Driver: DriverSQLite}, path, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenNilConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(nil, "", logger)
	if err != nil {
		t.Fatalf("Open(nil): %v", err)
	}
	if store != nil {
		t.Fatal("Open(nil) should return a nil store")
	}
}

func TestRecordCreateAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	recs := []workspace.Record{
		{ID: "ws_alpha_00000001", ProjectName: "alpha", Path: "/sb/ws_alpha_00000001", CreatedAt: time.Now().UTC().Add(-2 * time.Hour)},
		{ID: "ws_beta_00000002", ProjectName: "beta", Path: "/sb/ws_beta_00000002", CreatedAt: time.Now().UTC()},
	}
	for i := range recs {
		if err := store.RecordCreate(ctx, &recs[i]); err != nil {
			t.Fatalf("RecordCreate: %v", err)
		}
	}

	got, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d records, want 2", len(got))
	}
	if got[0].ID != "ws_beta_00000002" {
		t.Errorf("List order: first = %s, want newest first", got[0].ID)
	}
}

func TestRecordDeleteFiltersFromList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := workspace.Record{ID: "ws_gone_00000003", ProjectName: "gone", Path: "/sb/ws_gone_00000003", CreatedAt: time.Now().UTC()}
	if err := store.RecordCreate(ctx, &rec); err != nil {
		t.Fatalf("RecordCreate: %v", err)
	}
	if err := store.RecordDelete(ctx, rec.ID, time.Now().UTC()); err != nil {
		t.Fatalf("RecordDelete: %v", err)
	}

	live, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("live list = %d records, want 0", len(live))
	}

	all, err := store.List(ctx, true)
	if err != nil {
		t.Fatalf("List(all): %v", err)
	}
	if len(all) != 1 || all[0].DeletedAt == nil {
		t.Fatalf("all list = %+v, want one deleted record", all)
	}
}

func TestRecordDeleteMissingIsNoop(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordDelete(context.Background(), "ws_never_existed", time.Now().UTC()); err != nil {
		t.Fatalf("RecordDelete missing: %v", err)
	}
}

func TestListOlderThan(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := workspace.Record{ID: "ws_old_00000004", ProjectName: "old", Path: "/sb/old", CreatedAt: now.Add(-48 * time.Hour)}
	fresh := workspace.Record{ID: "ws_new_00000005", ProjectName: "new", Path: "/sb/new", CreatedAt: now}
	for _, rec := range []workspace.Record{old, fresh} {
		r := rec
		if err := store.RecordCreate(ctx, &r); err != nil {
			t.Fatalf("RecordCreate: %v", err)
		}
	}

	expired, err := store.ListOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListOlderThan: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != old.ID {
		t.Fatalf("expired = %+v, want only the old workspace", expired)
	}
}

func TestPing(t *testing.T) {
	store := openTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if store.Driver() != DriverSQLite {
		t.Fatalf("Driver = %q", store.Driver())
	}
}
