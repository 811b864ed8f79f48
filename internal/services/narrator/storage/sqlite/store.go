package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/storage/sqlitemigrate"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// documentID keys the single campaign row.
const documentID = "default"

// Store provides SQLite-backed campaign persistence.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a narrator SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LoadDocument returns the saved campaign document or storage.ErrNotFound.
func (s *Store) LoadDocument(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var document string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT document FROM campaign_state WHERE id = ?`, documentID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return []byte(document), nil
}

// SaveDocument replaces the campaign document.
func (s *Store) SaveDocument(ctx context.Context, document []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(document) == 0 {
		return fmt.Errorf("document is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO campaign_state (id, document, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
`, documentID, string(document), s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// RecordBackup persists one backup attempt.
func (s *Store) RecordBackup(ctx context.Context, record storage.BackupRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.Target = strings.TrimSpace(record.Target)
	record.Name = strings.TrimSpace(record.Name)
	record.Outcome = strings.TrimSpace(record.Outcome)
	record.Detail = strings.TrimSpace(record.Detail)
	if record.Target == "" {
		return fmt.Errorf("target is required")
	}
	if record.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch record.Outcome {
	case storage.BackupSucceeded, storage.BackupFailed, storage.BackupSkipped:
	default:
		return fmt.Errorf("unknown outcome %q", record.Outcome)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO backup_runs (target, name, outcome, detail, created_at) VALUES (?, ?, ?, ?, ?)
`,
		record.Target,
		record.Name,
		record.Outcome,
		record.Detail,
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record backup: %w", err)
	}
	return nil
}

// ListBackups lists newest-first backup records.
func (s *Store) ListBackups(ctx context.Context, limit int) ([]storage.BackupRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, target, name, outcome, detail, created_at
FROM backup_runs
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	records := make([]storage.BackupRecord, 0, limit)
	for rows.Next() {
		var record storage.BackupRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.Target, &record.Name, &record.Outcome, &record.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backups: %w", err)
	}
	return records, nil
}

var (
	_ storage.DocumentStore = (*Store)(nil)
	_ storage.BackupLog     = (*Store)(nil)
)
