package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// generateGuideRequest is the request body for guide generation
type generateGuideRequest struct {
	Section   string   `json:"section" example:"Orach Chayim"`
	Chapter   int      `json:"chapter" example:"24"`
	Paragraph int      `json:"paragraph" example:"1"`
	Corpora   []string `json:"corpora" example:"shulchan_arukh,tur"`

	// Async enqueues the generation instead of running it inline.
	Async bool `json:"async,omitempty"`
}

// generateGuideResponse wraps the discriminated outcome
type generateGuideResponse struct {
	Fingerprint string              `json:"fingerprint"`
	Queued      bool                `json:"queued,omitempty"`
	Result      *domain.GuideResult `json:"result,omitempty"`
}

// progressResponse reports the generation counters
type progressResponse struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// errorResponse is the uniform error body
type errorResponse struct {
	Error string `json:"error"`
}

// handleGenerateGuide godoc
// @Summary      Generate a study guide
// @Description  Builds (or serves from cache) the multi-source study guide for a location
// @Tags         guides
// @Accept       json
// @Produce      json
// @Param        request body generateGuideRequest true "Guide request"
// @Success      200 {object} generateGuideResponse
// @Failure      400 {object} errorResponse
// @Security     BearerAuth
// @Router       /guides [post]
func (s *Server) handleGenerateGuide(w http.ResponseWriter, r *http.Request) {
	var body generateGuideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	section, err := domain.ParseSection(body.Section)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown section")
		return
	}
	corpora := make([]domain.CorpusID, 0, len(body.Corpora))
	for _, c := range body.Corpora {
		corpora = append(corpora, domain.CorpusID(c))
	}
	req := domain.GuideRequest{
		Section:   section,
		Chapter:   body.Chapter,
		Paragraph: body.Paragraph,
		Corpora:   corpora,
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fingerprint := req.Fingerprint()

	if body.Async {
		if s.taskQueue == nil {
			writeError(w, http.StatusServiceUnavailable, "background generation not available")
			return
		}
		task := &domain.Task{
			ID:          uuid.NewString(),
			Type:        domain.TaskTypeGuideGenerate,
			Request:     req,
			Status:      domain.TaskStatusPending,
			MaxAttempts: 2,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue")
			return
		}
		writeJSON(w, http.StatusAccepted, generateGuideResponse{Fingerprint: fingerprint, Queued: true})
		return
	}

	result, err := s.guideService.Generate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}
	writeJSON(w, http.StatusOK, generateGuideResponse{Fingerprint: fingerprint, Result: result})
}

// handleGetGuide godoc
// @Summary      Get a guide by fingerprint
// @Tags         guides
// @Produce      json
// @Param        fingerprint path string true "Request fingerprint"
// @Success      200 {object} domain.GuideResult
// @Failure      404 {object} errorResponse
// @Security     BearerAuth
// @Router       /guides/{fingerprint} [get]
func (s *Server) handleGetGuide(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")
	rec, chunks, err := s.guideService.Get(r.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "guide not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load guide")
		return
	}
	writeJSON(w, http.StatusOK, domain.GuideResult{
		Success: rec.Status == domain.GuideStatusReady,
		Guide:   rec,
		Chunks:  chunks,
		Error:   rec.Error,
	})
}

// handleProgress godoc
// @Summary      Read generation progress
// @Tags         guides
// @Produce      json
// @Param        fingerprint path string true "Request fingerprint"
// @Success      200 {object} progressResponse
// @Security     BearerAuth
// @Router       /guides/{fingerprint}/progress [get]
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")
	done, total, err := s.guideService.Progress(r.Context(), fingerprint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read progress")
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Done: done, Total: total})
}

// handleCancel godoc
// @Summary      Cancel a running generation
// @Tags         guides
// @Produce      json
// @Param        fingerprint path string true "Request fingerprint"
// @Success      202 {object} map[string]string
// @Security     BearerAuth
// @Router       /guides/{fingerprint}/cancel [post]
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")
	if err := s.guideService.Cancel(r.Context(), fingerprint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to request cancellation")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleHealth godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"version": s.version,
	}
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status["store"] = "down"
			status["status"] = "degraded"
		} else {
			status["store"] = "ok"
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			status["redis"] = "down"
			status["status"] = "degraded"
		} else {
			status["redis"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
