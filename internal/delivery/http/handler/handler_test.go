package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/repository"
	"github.com/Dadudekc/DreamVault/internal/usecase"
)

// stubQueueManager returns canned values and records the last enqueue.
type stubQueueManager struct {
	enqueued    *repository.EnqueueParams
	enqueueDup  bool
	status      entity.JobStatus
	statusErr   error
	requeued    int64
	searchHits  []string
	cleanupDays int
}

func (s *stubQueueManager) Enqueue(_ context.Context, params repository.EnqueueParams) (bool, error) {
	s.enqueued = &params
	return !s.enqueueDup, nil
}

func (s *stubQueueManager) StatusOf(context.Context, string) (entity.JobStatus, error) {
	return s.status, s.statusErr
}

func (s *stubQueueManager) Stats(context.Context) (*usecase.SystemStats, error) {
	return &usecase.SystemStats{Queue: &entity.QueueStats{Total: 7}}, nil
}

func (s *stubQueueManager) RequeueFailed(context.Context) (int64, error)  { return s.requeued, nil }
func (s *stubQueueManager) RequeueRetries(context.Context) (int64, error) { return s.requeued, nil }

func (s *stubQueueManager) Cleanup(_ context.Context, days int) (*usecase.CleanupResult, error) {
	s.cleanupDays = days
	return &usecase.CleanupResult{JobsPurged: 2}, nil
}

func (s *stubQueueManager) Search(context.Context, string) ([]string, error) {
	return s.searchHits, nil
}

func TestHandleEnqueueJob(t *testing.T) {
	stub := &stubQueueManager{}
	h := NewHandler(stub)

	body := `{"conversation_id": "conv-1", "priority": 3}`
	rec := httptest.NewRecorder()
	h.HandleEnqueueJob(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if stub.enqueued == nil || stub.enqueued.ConversationID != "conv-1" || stub.enqueued.Priority != 3 {
		t.Errorf("enqueued params = %+v, want conv-1 priority 3", stub.enqueued)
	}
}

func TestHandleEnqueueJob_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing conversation id", `{"priority": 1}`},
		{"blank conversation id", `{"conversation_id": "  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubQueueManager{})
			rec := httptest.NewRecorder()
			h.HandleEnqueueJob(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleJobStatus(t *testing.T) {
	h := NewHandler(&stubQueueManager{status: entity.StatusProcessing})

	rec := httptest.NewRecorder()
	h.HandleJobStatus(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/status?conversation_id=conv-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "processing" {
		t.Errorf("response status = %q, want processing", resp.Status)
	}
}

func TestHandleJobStatus_NotFound(t *testing.T) {
	h := NewHandler(&stubQueueManager{statusErr: repository.ErrJobNotFound})

	rec := httptest.NewRecorder()
	h.HandleJobStatus(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/status?conversation_id=nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleJobStatus_MissingParam(t *testing.T) {
	h := NewHandler(&stubQueueManager{})

	rec := httptest.NewRecorder()
	h.HandleJobStatus(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/status", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleStats(t *testing.T) {
	h := NewHandler(&stubQueueManager{})

	rec := httptest.NewRecorder()
	h.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Queue struct {
			Total int64 `json:"total"`
		} `json:"queue"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Queue.Total != 7 {
		t.Errorf("queue total = %d, want 7", resp.Queue.Total)
	}
}

func TestHandleCleanup_DefaultsDays(t *testing.T) {
	stub := &stubQueueManager{}
	h := NewHandler(stub)

	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, httptest.NewRequest(http.MethodPost, "/api/queue/cleanup", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if stub.cleanupDays != defaultCleanupDays {
		t.Errorf("cleanup days = %d, want %d", stub.cleanupDays, defaultCleanupDays)
	}
}

func TestHandleCleanup_RejectsNegativeDays(t *testing.T) {
	h := NewHandler(&stubQueueManager{})

	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, httptest.NewRequest(http.MethodPost, "/api/queue/cleanup", strings.NewReader(`{"days": -1}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleRequeueFailed(t *testing.T) {
	h := NewHandler(&stubQueueManager{requeued: 4})

	rec := httptest.NewRecorder()
	h.HandleRequeueFailed(rec, httptest.NewRequest(http.MethodPost, "/api/queue/requeue-failed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Requeued int64 `json:"requeued"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Requeued != 4 {
		t.Errorf("requeued = %d, want 4", resp.Requeued)
	}
}

func TestHandleSearch(t *testing.T) {
	h := NewHandler(&stubQueueManager{searchHits: []string{"conv-a", "conv-b"}})

	rec := httptest.NewRecorder()
	h.HandleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=docker", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		ConversationIDs []string `json:"conversation_ids"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.ConversationIDs) != 2 {
		t.Errorf("conversation_ids = %v, want 2 hits", resp.ConversationIDs)
	}
}
