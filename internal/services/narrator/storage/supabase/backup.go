// Package supabase uploads campaign document backups to a Supabase table.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	supa "github.com/supabase-community/supabase-go"
)

const (
	// Table receives one row per backup name.
	Table = "campaign_backups"
	// TargetName identifies this target in backup records.
	TargetName = "supabase"
)

// Receipt confirms an upload.
type Receipt struct {
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type row struct {
	Name       string          `json:"name"`
	Document   json.RawMessage `json:"document"`
	UploadedAt time.Time       `json:"uploaded_at"`
}

// Backup writes documents to the campaign_backups table.
type Backup struct {
	client *supa.Client
	now    func() time.Time
}

// NewBackup connects to the Supabase project at url.
func NewBackup(url, key string) (*Backup, error) {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	key = strings.TrimSpace(key)
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Backup{client: client, now: time.Now}, nil
}

// Name identifies the target.
func (b *Backup) Name() string { return TargetName }

// Upload upserts document under name, replacing any previous upload with the
// same name.
func (b *Backup) Upload(ctx context.Context, name string, document []byte) (Receipt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Receipt{}, errors.New("backup name is required")
	}
	if !json.Valid(document) {
		return Receipt{}, errors.New("backup document must be JSON")
	}
	payload := row{Name: name, Document: json.RawMessage(document), UploadedAt: b.now().UTC()}

	type result struct {
		rows []Receipt
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var rows []Receipt
		_, err := b.client.From(Table).Upsert(payload, "name", "representation", "").ExecuteTo(&rows)
		done <- result{rows: rows, err: err}
	}()

	select {
	case <-ctx.Done():
		return Receipt{}, fmt.Errorf("upload %s: %w", name, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return Receipt{}, fmt.Errorf("upload %s: %w", name, res.err)
		}
		if len(res.rows) == 0 {
			return Receipt{Name: name, UploadedAt: payload.UploadedAt}, nil
		}
		return res.rows[0], nil
	}
}
