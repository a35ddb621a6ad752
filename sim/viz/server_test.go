package viz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_FrameEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1:0")

	// GIVEN no frame yet
	rec := httptest.NewRecorder()
	s.handleFrame(rec, httptest.NewRequest(http.MethodGet, "/api/frame", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("frame before update: got status %d, want 404", rec.Code)
	}

	// WHEN a frame is published
	s.UpdateFrame(&Frame{
		Tick:  7,
		Nodes: []NodeState{{Name: "A"}, {Name: "B", Faulty: true}},
		Edges: []Edge{{From: 0, To: 1}},
	})

	// THEN the endpoint serves it as JSON
	rec = httptest.NewRecorder()
	s.handleFrame(rec, httptest.NewRequest(http.MethodGet, "/api/frame", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("frame after update: got status %d, want 200", rec.Code)
	}
	var got Frame
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("frame decode: %v", err)
	}
	if got.Tick != 7 || len(got.Nodes) != 2 || !got.Nodes[1].Faulty {
		t.Errorf("frame round-trip mismatch: %+v", got)
	}
}

func TestServer_FrameEndpoint_MethodNotAllowed(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	rec := httptest.NewRecorder()
	s.handleFrame(rec, httptest.NewRequest(http.MethodPost, "/api/frame", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST frame: got status %d, want 405", rec.Code)
	}
}
