package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage"
)

func TestLoadDocumentEmpty(t *testing.T) {
	store := openTempStore(t)

	if _, err := store.LoadDocument(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("load empty = %v, want ErrNotFound", err)
	}
}

func TestSaveDocumentReplaces(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if err := store.SaveDocument(ctx, []byte(`{"players":{}}`)); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveDocument(ctx, []byte(`{"players":{"p1":{}}}`)); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := store.LoadDocument(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"players":{"p1":{}}}` {
		t.Fatalf("document = %s", got)
	}

	var rows int
	if err := store.sqlDB.QueryRow(`SELECT COUNT(*) FROM campaign_state`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
}

func TestSaveDocumentValidation(t *testing.T) {
	store := openTempStore(t)

	if err := store.SaveDocument(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestDocumentSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrator.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.SaveDocument(context.Background(), []byte(`{"premise":"storm"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.LoadDocument(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"premise":"storm"}` {
		t.Fatalf("document = %s", got)
	}
}

func TestRecordAndListBackups(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 23, 30, 0, 0, time.UTC)
	ctx := context.Background()

	if err := store.RecordBackup(ctx, storage.BackupRecord{
		Target:    "supabase",
		Name:      "campaign_state.json",
		Outcome:   storage.BackupFailed,
		Detail:    "timeout",
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("record backup: %v", err)
	}
	if err := store.RecordBackup(ctx, storage.BackupRecord{
		Target:    "supabase",
		Name:      "campaign_state.json",
		Outcome:   storage.BackupSucceeded,
		CreatedAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("record backup second: %v", err)
	}

	records, err := store.ListBackups(ctx, 10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records len = %d, want 2", len(records))
	}
	if records[0].Outcome != storage.BackupSucceeded {
		t.Fatalf("records[0].outcome = %q, want %q", records[0].Outcome, storage.BackupSucceeded)
	}
	if records[1].Detail != "timeout" {
		t.Fatalf("records[1].detail = %q, want timeout", records[1].Detail)
	}
	if !records[1].CreatedAt.Equal(now) {
		t.Fatalf("records[1].created_at = %v, want %v", records[1].CreatedAt, now)
	}
}

func TestRecordBackupValidation(t *testing.T) {
	store := openTempStore(t)

	if err := store.RecordBackup(context.Background(), storage.BackupRecord{}); err == nil {
		t.Fatal("expected validation error for empty record")
	}
	if err := store.RecordBackup(context.Background(), storage.BackupRecord{Target: "x", Name: "y", Outcome: "maybe"}); err == nil {
		t.Fatal("expected validation error for unknown outcome")
	}
}

func TestListBackupsValidation(t *testing.T) {
	store := openTempStore(t)

	if _, err := store.ListBackups(context.Background(), 0); err == nil {
		t.Fatal("expected validation error for zero limit")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "narrator.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
