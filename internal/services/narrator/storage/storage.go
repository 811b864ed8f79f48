// Package storage defines the persistence contracts for narrator state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no document has been saved yet.
var ErrNotFound = errors.New("not found")

// DocumentStore persists the whole campaign document as one opaque blob.
// Every save replaces the previous document.
type DocumentStore interface {
	LoadDocument(ctx context.Context) ([]byte, error)
	SaveDocument(ctx context.Context, document []byte) error
}

// BackupRecord is one backup attempt outcome.
type BackupRecord struct {
	ID        int64
	Target    string
	Name      string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

// Backup outcomes.
const (
	BackupSucceeded = "succeeded"
	BackupFailed    = "failed"
	BackupSkipped   = "skipped"
)

// BackupLog persists backup attempt outcomes.
type BackupLog interface {
	RecordBackup(ctx context.Context, record BackupRecord) error
	ListBackups(ctx context.Context, limit int) ([]BackupRecord, error)
}
