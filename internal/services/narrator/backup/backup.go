// Package backup copies the campaign document to an off-site target on a
// schedule and on demand.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/timeouts"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/supabase"
)

const (
	// FileName names the uploaded document.
	FileName = "campaign_state.json"
	// DefaultInterval is the scheduled backup cadence.
	DefaultInterval = 7 * 24 * time.Hour
)

// ErrNoTarget indicates backups are not configured.
var ErrNoTarget = errors.New("no backup target configured")

// Exporter produces the document to back up.
type Exporter interface {
	Export() ([]byte, error)
}

// Target receives uploads.
type Target interface {
	Name() string
	Upload(ctx context.Context, name string, document []byte) (supabase.Receipt, error)
}

// Config configures a Job. Target and Log are optional.
type Config struct {
	Source   Exporter
	Target   Target
	Log      storage.BackupLog
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

// Job uploads the campaign document.
type Job struct {
	source   Exporter
	target   Target
	log      storage.BackupLog
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewJob builds a backup job.
func NewJob(cfg Config) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Backup
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Job{
		source:   cfg.Source,
		target:   cfg.Target,
		log:      cfg.Log,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
	}
}

// Enabled reports whether a target is configured.
func (j *Job) Enabled() bool { return j != nil && j.target != nil }

// RunOnce uploads the current document and records the outcome. It returns a
// short human-readable summary.
func (j *Job) RunOnce(ctx context.Context) (string, error) {
	if !j.Enabled() {
		j.record(ctx, storage.BackupRecord{Target: "none", Name: FileName, Outcome: storage.BackupSkipped, Detail: ErrNoTarget.Error()})
		return "Backup skipped: no backup target configured.", ErrNoTarget
	}
	if j.source == nil {
		return "", errors.New("backup source is required")
	}

	record := storage.BackupRecord{Target: j.target.Name(), Name: FileName}
	document, err := j.source.Export()
	if err != nil {
		record.Outcome = storage.BackupFailed
		record.Detail = err.Error()
		j.record(ctx, record)
		return "", fmt.Errorf("export campaign: %w", err)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	receipt, err := j.target.Upload(uploadCtx, FileName, document)
	if err != nil {
		record.Outcome = storage.BackupFailed
		record.Detail = err.Error()
		j.record(ctx, record)
		log.Printf("backup: upload to %s failed: %v", record.Target, err)
		return "", fmt.Errorf("upload backup: %w", err)
	}

	record.Outcome = storage.BackupSucceeded
	record.Detail = fmt.Sprintf("%d bytes", len(document))
	j.record(ctx, record)
	log.Printf("backup: uploaded %s to %s (%d bytes)", FileName, record.Target, len(document))
	return fmt.Sprintf("Backup uploaded: %s at %s.", receipt.Name, receipt.UploadedAt.UTC().Format(time.RFC3339)), nil
}

// Run backs up immediately and then on every interval until ctx is done.
func (j *Job) Run(ctx context.Context) {
	if !j.Enabled() {
		log.Printf("backup: disabled, no target configured")
		return
	}
	if _, err := j.RunOnce(ctx); err != nil {
		log.Printf("backup: scheduled run failed: %v", err)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				log.Printf("backup: scheduled run failed: %v", err)
			}
		}
	}
}

func (j *Job) record(ctx context.Context, record storage.BackupRecord) {
	if j.log == nil {
		return
	}
	record.CreatedAt = j.now().UTC()
	if err := j.log.RecordBackup(ctx, record); err != nil {
		log.Printf("backup: record outcome: %v", err)
	}
}
