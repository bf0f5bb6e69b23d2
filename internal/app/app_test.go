package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/internal/config"
)

const trackID = "dQw4w9WgXcQ"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.App.AudioDir = filepath.Join(dir, "audio")
	cfg.App.LyricsDir = filepath.Join(dir, "lyrics")
	cfg.App.LockPath = filepath.Join(dir, "server.lock")
	cfg.App.ListenAddr = "127.0.0.1:0"
	return cfg
}

func TestAudioHandler(t *testing.T) {
	dir := t.TempDir()
	audio := []byte("0123456789abcdef")
	if err := os.WriteFile(filepath.Join(dir, trackID+".mp3"), audio, 0644); err != nil {
		t.Fatal(err)
	}
	handler := audioHandler(func(id string) string { return filepath.Join(dir, id+".mp3") })

	t.Run("full", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/"+trackID+".mp3", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
			t.Errorf("content type = %q", got)
		}
		if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
			t.Errorf("accept ranges = %q", got)
		}
		if rec.Body.String() != string(audio) {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audio/"+trackID+".mp3", nil)
		req.Header.Set("Range", "bytes=4-7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusPartialContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Range"); got != "bytes 4-7/16" {
			t.Errorf("content range = %q", got)
		}
		if rec.Body.String() != "4567" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	notFound := []string{
		"/audio/" + trackID + ".wav",
		"/audio/short.mp3",
		"/audio/..%2Fsecret.mp3",
		"/audio/AAAAAAAAAAA.mp3",
	}
	for _, path := range notFound {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/audio/"+trackID+".mp3", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}

func TestNewWiresRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.WebRoot = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.App.WebRoot, "index.html"), []byte("<html>player</html>"), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	for _, dir := range []string{cfg.App.AudioDir, cfg.App.LyricsDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s was not created", dir)
		}
	}

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "<html>player</html>" {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/audio/" + trackID + ".mp3")
	if err != nil {
		t.Fatalf("GET audio: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing audio status = %d", resp.StatusCode)
	}

	// 非 WebSocket 请求会被 Upgrade 拒绝
	resp, err = http.Get(srv.URL + "/api/ws")
	if err != nil {
		t.Fatalf("GET /api/ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("plain GET /api/ws status = %d, want 400", resp.StatusCode)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
