package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/audiolibrelab/screencap/internal/session"
)

type fakeSession struct {
	state   session.State
	elapsed time.Duration
	calls   []string
}

func (f *fakeSession) State() session.State  { return f.state }
func (f *fakeSession) Elapsed() time.Duration { return f.elapsed }
func (f *fakeSession) OutputPath() string     { return "/mnt/captures/2024_01_01_12_00_00.mp4" }

func (f *fakeSession) Pause() error {
	f.calls = append(f.calls, "pause")
	if f.state != session.StateRecording {
		return session.ErrNotRecording
	}
	f.state = session.StatePaused
	return nil
}

func (f *fakeSession) Resume() error {
	f.calls = append(f.calls, "resume")
	if f.state == session.StatePaused {
		f.state = session.StateRecording
	}
	return nil
}

func (f *fakeSession) Stop() error {
	f.calls = append(f.calls, "stop")
	if !f.state.Active() {
		return session.ErrNotActive
	}
	f.state = session.StateFinishing
	return nil
}

func serve(t *testing.T, sess Session, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New("127.0.0.1:0", func() Session { return sess }, nil)
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestStatus_NoSession(t *testing.T) {
	rec := serve(t, nil, http.MethodGet, "/api/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.State != "idle" || resp.Elapsed != "00:00:00.000" {
		t.Errorf("Unexpected status %+v", resp)
	}
}

func TestStatus_ReportsLastError(t *testing.T) {
	srv := New("127.0.0.1:0", func() Session { return nil }, func() string {
		return "capture engine could not start: ffmpeg not found"
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.LastError != "capture engine could not start: ffmpeg not found" {
		t.Errorf("Expected last error in status, got %+v", resp)
	}
}

func TestStatus_ActiveSession(t *testing.T) {
	sess := &fakeSession{state: session.StateRecording, elapsed: 3 * time.Second}
	rec := serve(t, sess, http.MethodGet, "/api/status")

	var resp StatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != "recording" || resp.ElapsedMs != 3000 || resp.Elapsed != "00:00:03.000" {
		t.Errorf("Unexpected status %+v", resp)
	}
	if resp.Output != "/mnt/captures/2024_01_01_12_00_00.mp4" {
		t.Errorf("Unexpected output %q", resp.Output)
	}
}

func TestCommands(t *testing.T) {
	sess := &fakeSession{state: session.StateRecording}

	rec := serve(t, sess, http.MethodPost, "/api/pause")
	if rec.Code != http.StatusOK || sess.state != session.StatePaused {
		t.Errorf("Pause: code %d state %s", rec.Code, sess.state)
	}

	rec = serve(t, sess, http.MethodPost, "/api/pause")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for pause while paused, got %d", rec.Code)
	}

	rec = serve(t, sess, http.MethodPost, "/api/resume")
	if rec.Code != http.StatusOK || sess.state != session.StateRecording {
		t.Errorf("Resume: code %d state %s", rec.Code, sess.state)
	}

	rec = serve(t, sess, http.MethodPost, "/api/finish")
	var resp GenericResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if rec.Code != http.StatusOK || !resp.Success || resp.State != "finishing" {
		t.Errorf("Finish: code %d response %+v", rec.Code, resp)
	}

	rec = serve(t, sess, http.MethodPost, "/api/finish")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a second finish, got %d", rec.Code)
	}
}

func TestCommands_NoSession(t *testing.T) {
	rec := serve(t, nil, http.MethodPost, "/api/finish")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(t, nil, http.MethodGet, "/api/pause")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestStart_ServesUntilCancelled(t *testing.T) {
	srv := New("127.0.0.1:0", func() Session { return nil }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
