package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rpattn/retailops/internal/domain"
)

// Handler exposes the import pipeline over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with the import routes.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the import endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/imports", h.submit)
	r.Get("/imports/{jobID}", h.status)
	r.Get("/imports/{jobID}/events", h.events)
	r.Get("/imports/{jobID}/errors.csv", h.errorReport)
}

// submit accepts either a multipart upload (field "file") or a JSON body
// carrying a staged fileReference. Malformed submissions are rejected here,
// before any job is created.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
			return
		}
		defer file.Close()

		req = SubmitRequest{
			FileName:       header.Filename,
			TargetSchema:   r.FormValue("targetSchema"),
			ImportMode:     domain.ImportMode(r.FormValue("importMode")),
			IdempotencyKey: r.FormValue("idempotencyKey"),
			Data:           file,
		}
	} else {
		var body struct {
			FileReference  string `json:"fileReference"`
			FileName       string `json:"fileName"`
			TargetSchema   string `json:"targetSchema"`
			ImportMode     string `json:"importMode"`
			IdempotencyKey string `json:"idempotencyKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		req = SubmitRequest{
			FileName:       body.FileName,
			TargetSchema:   body.TargetSchema,
			ImportMode:     domain.ImportMode(body.ImportMode),
			IdempotencyKey: body.IdempotencyKey,
			FileReference:  body.FileReference,
		}
	}

	result, err := h.service.Submit(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusAccepted
	if result.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Status(jobID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// events streams progress snapshots as server-sent events until the job
// reaches a terminal state or the client disconnects.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	subID, events, err := h.service.Subscribe(jobID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer h.service.Unsubscribe(jobID, subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	// Send the current state first so late subscribers are not blind until
	// the next event.
	if snapshot, err := h.service.Status(jobID); err == nil {
		writeEvent(w, snapshot)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-events:
			if !open {
				return
			}
			writeEvent(w, snapshot)
			flusher.Flush()
			if snapshot.Status.Terminal() {
				return
			}
		}
	}
}

func (h *Handler) errorReport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}
	file, err := h.service.OpenErrorReport(jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID.String()+"-errors.csv"))
	_, _ = io.Copy(w, file)
}

func (h *Handler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "jobID")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job id: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeEvent(w io.Writer, snapshot domain.JobSnapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
