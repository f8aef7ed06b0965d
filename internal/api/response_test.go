package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/scrapeflow/internal/repo"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"key": "value"})

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q", ct)
	}

	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Data["key"] != "value" {
		t.Errorf("data: got %v", body.Data)
	}
}

func TestList(t *testing.T) {
	rec := httptest.NewRecorder()
	List(rec, []string{"a", "b"}, 17)

	var body struct {
		Data  []string `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Data) != 2 || body.Total != 17 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "bad input")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error.Message != "bad input" {
		t.Errorf("message: got %q", body.Error.Message)
	}
	if body.Error.Code == "" {
		t.Error("error code should be set")
	}
}

func TestHandleRepoError(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		handled    bool
	}{
		{"nil error is not handled", nil, 0, false},
		{"not found", repo.ErrNotFound, http.StatusNotFound, true},
		{"invalid state", repo.ErrInvalidState, http.StatusUnprocessableEntity, true},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handled := HandleRepoError(rec, logger, tt.err, "missing")
			if handled != tt.handled {
				t.Fatalf("handled: expected %v, got %v", tt.handled, handled)
			}
			if handled && rec.Code != tt.wantStatus {
				t.Errorf("status: expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("panic should yield 500, got %d", rec.Code)
	}
}
