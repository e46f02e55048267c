package handler_test

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vidgrab/vidgrab/internal/api"
	"github.com/vidgrab/vidgrab/internal/api/handler"
	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/history"
	"github.com/vidgrab/vidgrab/internal/platform"
	"github.com/vidgrab/vidgrab/internal/preview"
	"github.com/vidgrab/vidgrab/internal/saver"
	"github.com/vidgrab/vidgrab/internal/session"
	"github.com/vidgrab/vidgrab/internal/stream"
)

// fakeBackend emulates one platform backend: preview, progress stream and
// file retrieval.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/preview", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"videoUrl": "ignored-by-disabled-probe",
			"title":    "backend video",
		})
	})
	mux.HandleFunc("/download/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, payload := range []string{"PROGRESS_50", "DONE_clip.mp4"} {
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("clip bytes"))
	})
	return httptest.NewServer(mux)
}

// newTestServer wires the full stack against a fake backend and returns the
// API server plus the output dir and history store.
func newTestServer(t *testing.T) (*httptest.Server, string, history.Store) {
	t.Helper()
	backend := fakeBackend(t)
	t.Cleanup(backend.Close)

	outDir := t.TempDir()
	cfg := config.DownloadConfig{
		PreviewTimeout:      5 * time.Second,
		ProbeMedia:          false,
		StreamHeaderTimeout: 5 * time.Second,
		ReconnectDelay:      10 * time.Millisecond,
		MaxReconnects:       2,
		OutputDir:           outDir,
	}

	registry := platform.NewRegistry(map[string]config.PlatformConfig{
		"tiktok": {BaseURL: backend.URL},
	})
	store := history.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	manager := session.NewManager(cfg, registry, session.Deps{
		Previewer: preview.NewFetcher(cfg),
		Streams:   session.StreamClient{Client: stream.NewClient(cfg)},
		Retriever: saver.NewRetriever(cfg, saver.NewDiskSaver(outDir, "")),
		History:   store,
		Logger:    logger,
	})
	t.Cleanup(manager.CloseAll)

	router := api.NewRouter(
		handler.NewSessionHandler(manager, logger),
		handler.NewHistoryHandler(store, logger),
		handler.NewHealthHandler(registry, store),
		"", // auth disabled
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, outDir, store
}

func createSession(t *testing.T, srv *httptest.Server, body string) handler.SessionResponse {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /sessions failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var sr handler.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return sr
}

func waitForState(t *testing.T, srv *httptest.Server, id, want string) handler.SessionResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/api/v1/sessions/" + id)
		if err != nil {
			t.Fatalf("GET session failed: %v", err)
		}
		var sr handler.SessionResponse
		json.NewDecoder(resp.Body).Decode(&sr)
		resp.Body.Close()
		if sr.State == want {
			return sr
		}
		if sr.State == "failed" && want != "failed" {
			t.Fatalf("session failed: %s", sr.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session %s never reached state %s", id, want)
	return handler.SessionResponse{}
}

func TestSessionLifecycle_EndToEnd(t *testing.T) {
	srv, outDir, _ := newTestServer(t)

	sr := createSession(t, srv, `{"platform":"tiktok","url":"https://www.tiktok.com/@u/video/1"}`)
	if sr.ID == "" {
		t.Fatal("create response has no session id")
	}

	final := waitForState(t, srv, sr.ID, "done")
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
	if final.Preview == nil || final.Preview.Title != "backend video" {
		t.Errorf("preview = %+v", final.Preview)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "clip.mp4"))
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(data) != "clip bytes" {
		t.Errorf("file content = %q", string(data))
	}

	// History has the completed download.
	resp, err := http.Get(srv.URL + "/api/v1/history")
	if err != nil {
		t.Fatalf("GET history failed: %v", err)
	}
	defer resp.Body.Close()
	var hist handler.HistoryListResponse
	json.NewDecoder(resp.Body).Decode(&hist)
	if hist.Total != 1 || hist.Entries[0].Title != "backend video" {
		t.Errorf("history = %+v", hist)
	}
}

func TestSessionCreate_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown platform", `{"platform":"myspace","url":"https://myspace.com/v/1"}`, http.StatusBadRequest},
		{"missing fields", `{"platform":"tiktok"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"off-platform url", `{"platform":"tiktok","url":"https://www.youtube.com/watch?v=1"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSessionGet_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/sessions/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionEvents_RelayFraming(t *testing.T) {
	srv, _, _ := newTestServer(t)

	sr := createSession(t, srv, `{"platform":"tiktok","url":"https://www.tiktok.com/@u/video/2"}`)
	final := waitForState(t, srv, sr.ID, "done")

	// Late subscriber still receives a terminal frame with the wire prefix.
	resp, err := http.Get(srv.URL + "/api/v1/sessions/" + sr.ID + "/events")
	if err != nil {
		t.Fatalf("GET events failed: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	scanner := bufio.NewScanner(resp.Body)
	var frame string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			frame = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	// The synthesized frame carries the server-side file identifier, not the
	// local path the file was saved to.
	if frame != "DONE_clip.mp4" {
		t.Errorf("terminal frame = %q, want DONE_clip.mp4", frame)
	}
	if strings.Contains(frame, final.SavedPath) {
		t.Errorf("frame %q leaks the local save path %q", frame, final.SavedPath)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
