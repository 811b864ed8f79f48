package server

import (
	"context"
	"testing"
	"time"
)

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	if _, err := NewServer(Config{}, h.game.Table); err == nil {
		t.Fatal("expected error for empty HTTP address")
	}
}

func TestNewServerRequiresNarrator(t *testing.T) {
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0"}, Table{}); err == nil {
		t.Fatal("expected error for missing narrator")
	}
}

func TestListenAndServeNilServer(t *testing.T) {
	var s *Server
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}

func TestRunRequiresGeminiKey(t *testing.T) {
	err := Run(context.Background(), Config{
		HTTPAddr: "127.0.0.1:0",
		DBPath:   t.TempDir() + "/narrator.db",
	})
	if err == nil {
		t.Fatal("expected error for missing gemini api key")
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newTableHarness(t, Table{}, nil)
	server, err := NewServer(Config{HTTPAddr: "127.0.0.1:0"}, h.game.Table)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on cancel")
	}
}
