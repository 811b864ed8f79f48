package backup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/supabase"
)

type staticExporter struct {
	data []byte
	err  error
}

func (s staticExporter) Export() ([]byte, error) { return s.data, s.err }

type fakeTarget struct {
	mu      sync.Mutex
	err     error
	uploads map[string][]byte
	calls   int
}

func (f *fakeTarget) Name() string { return "fake" }

func (f *fakeTarget) Upload(_ context.Context, name string, document []byte) (supabase.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return supabase.Receipt{}, f.err
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[name] = document
	return supabase.Receipt{Name: name, UploadedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeTarget) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryLog struct {
	mu      sync.Mutex
	records []storage.BackupRecord
}

func (m *memoryLog) RecordBackup(_ context.Context, record storage.BackupRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memoryLog) ListBackups(context.Context, int) ([]storage.BackupRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.BackupRecord(nil), m.records...), nil
}

func TestRunOnceUploadsDocument(t *testing.T) {
	target := &fakeTarget{}
	records := &memoryLog{}
	job := NewJob(Config{Source: staticExporter{data: []byte(`{"players":{}}`)}, Target: target, Log: records})

	summary, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if string(target.uploads[FileName]) != `{"players":{}}` {
		t.Fatalf("uploads = %v", target.uploads)
	}
	if !strings.Contains(summary, FileName) {
		t.Fatalf("summary = %q", summary)
	}
	if len(records.records) != 1 || records.records[0].Outcome != storage.BackupSucceeded || records.records[0].Target != "fake" {
		t.Fatalf("records = %+v", records.records)
	}
}

func TestRunOnceRecordsFailure(t *testing.T) {
	target := &fakeTarget{err: errors.New("network down")}
	records := &memoryLog{}
	job := NewJob(Config{Source: staticExporter{data: []byte(`{}`)}, Target: target, Log: records})

	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(records.records) != 1 || records.records[0].Outcome != storage.BackupFailed {
		t.Fatalf("records = %+v", records.records)
	}
	if !strings.Contains(records.records[0].Detail, "network down") {
		t.Fatalf("detail = %q", records.records[0].Detail)
	}
}

func TestRunOnceExportFailure(t *testing.T) {
	target := &fakeTarget{}
	job := NewJob(Config{Source: staticExporter{err: errors.New("encode")}, Target: target})
	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if target.callCount() != 0 {
		t.Fatal("nothing should upload")
	}
}

func TestRunOnceWithoutTarget(t *testing.T) {
	records := &memoryLog{}
	job := NewJob(Config{Source: staticExporter{data: []byte(`{}`)}, Log: records})
	summary, err := job.RunOnce(context.Background())
	if !errors.Is(err, ErrNoTarget) {
		t.Fatalf("error = %v, want ErrNoTarget", err)
	}
	if !strings.HasPrefix(summary, "Backup skipped") {
		t.Fatalf("summary = %q", summary)
	}
	if len(records.records) != 1 || records.records[0].Outcome != storage.BackupSkipped {
		t.Fatalf("records = %+v", records.records)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	target := &fakeTarget{}
	job := NewJob(Config{Source: staticExporter{data: []byte(`{}`)}, Target: target, Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for target.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want at least 2", target.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}
