package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dadudekc/DreamVault/internal/delivery/http/request"
	"github.com/Dadudekc/DreamVault/internal/delivery/http/response"
	"github.com/Dadudekc/DreamVault/internal/repository"
	"github.com/Dadudekc/DreamVault/internal/usecase"
)

const defaultCleanupDays = 30

type Handler struct {
	queueManager usecase.QueueManager
}

func NewHandler(queueManager usecase.QueueManager) *Handler {
	return &Handler{
		queueManager: queueManager,
	}
}

func (h *Handler) HandleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req request.EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.ConversationID) == "" {
		h.writeJSONError(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	enqueued, err := h.queueManager.Enqueue(r.Context(), repository.EnqueueParams{
		ConversationID: req.ConversationID,
		Priority:       req.Priority,
		MaxRetries:     req.MaxRetries,
		Metadata:       req.Metadata,
	})
	if err != nil {
		slog.Error("Failed to enqueue job", "conversation_id", req.ConversationID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.EnqueueJobResponse{
		Status:         "success",
		Message:        "Conversation scheduled for ingestion",
		ConversationID: req.ConversationID,
		Enqueued:       enqueued,
	}
	if !enqueued {
		resp.Message = "Conversation already scheduled"
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		h.writeJSONError(w, "conversation_id query parameter is required", http.StatusBadRequest)
		return
	}

	status, err := h.queueManager.StatusOf(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.writeJSONError(w, "No job found for the given conversation", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get job status", "conversation_id", conversationID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.JobStatusResponse{
		ConversationID: conversationID,
		Status:         string(status),
	})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queueManager.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to collect stats", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleRequeueFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.queueManager.RequeueFailed(r.Context())
	if err != nil {
		slog.Error("Failed to requeue failed jobs", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.RequeueResponse{Requeued: n})
}

func (h *Handler) HandleRequeueRetries(w http.ResponseWriter, r *http.Request) {
	n, err := h.queueManager.RequeueRetries(r.Context())
	if err != nil {
		slog.Error("Failed to requeue retry jobs", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.RequeueResponse{Requeued: n})
}

func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	req := request.CleanupRequest{Days: defaultCleanupDays}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Days < 0 {
		h.writeJSONError(w, "days must not be negative", http.StatusBadRequest)
		return
	}

	result, err := h.queueManager.Cleanup(r.Context(), req.Days)
	if err != nil {
		slog.Error("Cleanup failed", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		h.writeJSONError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}

	ids, err := h.queueManager.Search(r.Context(), term)
	if err != nil {
		slog.Error("Search failed", "term", term, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.SearchResponse{Term: term, ConversationIDs: ids})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
