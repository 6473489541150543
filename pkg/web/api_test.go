package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/convfec/pkg/database"
	"github.com/dbehnke/convfec/pkg/fec"
	"github.com/dbehnke/convfec/pkg/logger"
)

type fakeRunStore struct {
	runs []database.SweepRun
	err  error
}

func (f *fakeRunStore) ListRuns(page, perPage int) ([]database.SweepRun, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	start := (page - 1) * perPage
	if start >= len(f.runs) {
		return nil, int64(len(f.runs)), nil
	}
	end := start + perPage
	if end > len(f.runs) {
		end = len(f.runs)
	}
	return f.runs[start:end], int64(len(f.runs)), nil
}

func (f *fakeRunStore) GetRun(id string) (*database.SweepRun, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, database.ErrRunNotFound
}

func newTestAPI(t *testing.T, runs RunStore) *API {
	t.Helper()
	code, err := fec.NewCode([]string{"111", "101"}, 10)
	if err != nil {
		t.Fatalf("NewCode: %v", err)
	}
	metric, _ := fec.NewSoftMetric(3)
	pattern, _ := fec.NewPuncturePattern([]string{"110", "101"})
	return NewAPI(code, metric, pattern, runs, logger.New(logger.Config{Level: "error"}))
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)

	resp := w.Result()
	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp, out
}

func TestAPI_Code(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, out := do(t, api.HandleCode, http.MethodGet, "/api/code", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	want := map[string]interface{}{
		"constraint_length": float64(3),
		"rate":              "1/2",
		"num_states":        float64(4),
		"depth":             float64(10),
		"metric":            "soft3",
		"puncture":          "110,101",
		"punctured_rate":    "3/4",
	}
	for k, v := range want {
		if out[k] != v {
			t.Errorf("%s = %v, want %v", k, out[k], v)
		}
	}

	resp, _ = do(t, api.HandleCode, http.MethodPost, "/api/code", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST, got %d", resp.StatusCode)
	}
}

func TestAPI_Encode(t *testing.T) {
	api := newTestAPI(t, nil)

	tests := []struct {
		name    string
		body    string
		symbols string
		end     string
		stages  float64
	}{
		{"plain", `{"bits":"1011"}`, "11100001", "11", 4},
		{"terminated", `{"bits":"10 11","terminate":true}`, "111000010111", "00", 6},
		{"start state", `{"bits":"0","start_state":"10"}`, "10", "01", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := do(t, api.HandleEncode, http.MethodPost, "/api/encode", tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected status 200, got %d (%v)", resp.StatusCode, out)
			}
			if out["symbols"] != tt.symbols || out["end_state"] != tt.end || out["stages"] != tt.stages {
				t.Errorf("Got %v, want symbols=%s end=%s stages=%v", out, tt.symbols, tt.end, tt.stages)
			}
		})
	}
}

func TestAPI_EncodeRejectsBadInput(t *testing.T) {
	api := newTestAPI(t, nil)

	for _, body := range []string{
		`{"bits":"10x1"}`,
		`{"bits":"1","start_state":"101"}`,
		`{"bits":"1","unknown":true}`,
		`not json`,
	} {
		resp, out := do(t, api.HandleEncode, http.MethodPost, "/api/encode", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
		if _, ok := out["error"]; !ok {
			t.Errorf("%s: expected error field, got %v", body, out)
		}
	}
}

func TestAPI_Decode(t *testing.T) {
	api := newTestAPI(t, nil)

	// Terminated codeword of 1011 with one flipped symbol
	resp, out := do(t, api.HandleDecode, http.MethodPost, "/api/decode",
		`{"symbols":[1,1,1,0,1,0,0,1,0,1,1,1],"metric":"hard"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d (%v)", resp.StatusCode, out)
	}
	if out["bits"] != "101100" || out["stages"] != float64(6) || out["metric"] != "hard" {
		t.Errorf("Unexpected hard decode: %v", out)
	}

	// Default soft metric with 3-bit levels and an erasure
	resp, out = do(t, api.HandleDecode, http.MethodPost, "/api/decode",
		`{"symbols":[7,6,7,-1,0,1,0,7,0,7,7,7]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d (%v)", resp.StatusCode, out)
	}
	if out["bits"] != "101100" || out["metric"] != "soft3" {
		t.Errorf("Unexpected soft decode: %v", out)
	}
}

func TestAPI_DecodeRejectsBadInput(t *testing.T) {
	api := newTestAPI(t, nil)

	for _, body := range []string{
		`{"symbols":[1,1,1]}`,
		`{"symbols":[0,2],"metric":"hard"}`,
		`{"symbols":[0,8]}`,
		`{"symbols":[0,1],"metric":"fuzzy"}`,
	} {
		resp, _ := do(t, api.HandleDecode, http.MethodPost, "/api/decode", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestAPI_Runs(t *testing.T) {
	store := &fakeRunStore{runs: []database.SweepRun{
		{ID: "b", Code: "K=3", StartedAt: time.Now()},
		{ID: "a", Code: "K=3", StartedAt: time.Now().Add(-time.Hour)},
	}}
	api := newTestAPI(t, store)

	resp, out := do(t, api.HandleRuns, http.MethodGet, "/api/runs?per_page=1&page=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	runs, _ := out["runs"].([]interface{})
	if out["total"] != float64(2) || len(runs) != 1 || out["page"] != float64(2) {
		t.Errorf("Unexpected runs page: %v", out)
	}
	if first, _ := runs[0].(map[string]interface{}); first["id"] != "a" {
		t.Errorf("Expected run a on page 2, got %v", runs[0])
	}
}

func TestAPI_RunByID(t *testing.T) {
	store := &fakeRunStore{runs: []database.SweepRun{{ID: "abc", Code: "K=3", Points: []database.SweepPoint{{RunID: "abc", EbN0: 2}}}}}
	srv := NewServer(webConfig(), newTestAPI(t, store), nil)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var run database.SweepRun
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatalf("Failed to decode run: %v", err)
	}
	if run.ID != "abc" || len(run.Points) != 1 {
		t.Errorf("Unexpected run: %+v", run)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", w.Code)
	}
}

func TestAPI_RunsUnavailable(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, _ := do(t, api.HandleRuns, http.MethodGet, "/api/runs", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without storage, got %d", resp.StatusCode)
	}

	failing := newTestAPI(t, &fakeRunStore{err: errors.New("disk full")})
	resp, out := do(t, failing.HandleRuns, http.MethodGet, "/api/runs", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500 on store error, got %d", resp.StatusCode)
	}
	if out["error"] == "disk full" {
		t.Error("Store error details should not leak to clients")
	}
}
