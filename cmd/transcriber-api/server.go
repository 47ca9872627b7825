package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scribehub/transcriber/internal/service"
	"github.com/scribehub/transcriber/internal/store/model"
	"github.com/scribehub/transcriber/pkg/middleware"
)

const maxMultipartMemory = 32 << 20

func newRouter(transcriptions *service.TranscriptionService, contexts *service.ContextService) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/transcriptions", handleSubmit(transcriptions))
	mux.HandleFunc("GET /api/v1/jobs/{id}/status", handleStatus(transcriptions))
	mux.HandleFunc("GET /api/v1/jobs/{id}/result", handleResult(transcriptions))
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", handleEvents(transcriptions))

	mux.HandleFunc("POST /api/v1/contexts", handleCreateContext(contexts))
	mux.HandleFunc("GET /api/v1/contexts/{id}", handleGetContext(contexts))
	mux.HandleFunc("DELETE /api/v1/contexts/{id}", handleDeleteContext(contexts))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(middleware.Logger(mux))
}

func handleSubmit(svc *service.TranscriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %s", err))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "audio file is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read audio file")
			return
		}

		req := service.EnqueueRequest{
			Filename: header.Filename,
			Content:  content,
			Engine:   r.FormValue("engine"),
			Language: r.FormValue("language"),
			Params:   engineParams(r),
		}

		if v := r.FormValue("context_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid context_id")
				return
			}
			req.ContextID = &id
		}

		result, err := svc.Enqueue(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id":        result.JobID,
			"transcript_id": result.TranscriptID.String(),
			"status":        model.JobStatusQueued,
		})
	}
}

func handleStatus(svc *service.TranscriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := svc.GetStatus(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func handleResult(svc *service.TranscriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetResult(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"transcript_id": result.TranscriptID.String(),
			"segments":      result.Segments,
			"duration":      result.Duration,
			"language":      result.Language,
			"speaker_roles": result.SpeakerRoles,
		})
	}
}

// handleEvents streams job status transitions as server sent events until a
// terminal event arrives or the client disconnects.
func handleEvents(svc *service.TranscriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		events, err := svc.Subscribe(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for event := range events {
			data, err := json.Marshal(event)
			if err != nil {
				zap.S().Named("api").Warnw("failed to encode status event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func handleCreateContext(svc *service.ContextService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name          string                         `json:"name"`
			Language      string                         `json:"language"`
			WordBoosting  map[string]model.BoostCategory `json:"word_boosting"`
			SpeakerLabels map[string]string              `json:"speaker_labels"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		created, err := svc.CreateContext(r.Context(), service.CreateContextRequest{
			Name:          body.Name,
			Language:      body.Language,
			WordBoosting:  body.WordBoosting,
			SpeakerLabels: body.SpeakerLabels,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleGetContext(svc *service.ContextService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid context id")
			return
		}

		c, err := svc.GetContext(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleDeleteContext(svc *service.ContextService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid context id")
			return
		}

		if err := svc.DeleteContext(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func engineParams(r *http.Request) map[string]any {
	params := make(map[string]any)
	if v := r.FormValue("model"); v != "" {
		params["model"] = v
	}
	if v := r.FormValue("min_speakers"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params["min_speakers"] = n
		}
	}
	if v := r.FormValue("max_speakers"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params["max_speakers"] = n
		}
	}
	if v := r.FormValue("diarize"); v != "" {
		params["diarize"] = v != "false"
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func writeServiceError(w http.ResponseWriter, err error) {
	var invalidEngine *service.ErrInvalidEngine
	var invalidUpload *service.ErrInvalidUpload
	var notFound *service.ErrResourceNotFound
	var stillProcessing *service.ErrStillProcessing
	var jobFailed *service.ErrJobFailed

	switch {
	case errors.As(err, &invalidEngine), errors.As(err, &invalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stillProcessing):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": model.JobStatusProcessing})
	case errors.As(err, &jobFailed):
		writeJSON(w, http.StatusOK, map[string]string{
			"status": model.JobStatusFailed,
			"error":  jobFailed.Reason,
		})
	default:
		zap.S().Named("api").Errorw("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
