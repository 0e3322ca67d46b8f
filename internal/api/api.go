package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yok-tottii/voicememo/internal/audio"
	"github.com/yok-tottii/voicememo/internal/config"
	"github.com/yok-tottii/voicememo/internal/logger"
	"github.com/yok-tottii/voicememo/internal/recording"
	"github.com/yok-tottii/voicememo/internal/reversal"
	"github.com/yok-tottii/voicememo/internal/timefmt"
	"github.com/yok-tottii/voicememo/internal/wav"
)

// MaxUploadSize bounds the body of POST /api/reverse
const MaxUploadSize = 64 << 20

// Handler manages API endpoints
type Handler struct {
	config     *config.Config
	configPath string
	capture    audio.CaptureDevice
	devices    audio.Lister
	codec      *reversal.Codec
	metrics    *metrics
	log        *logger.Logger

	// ReverseLimit is the number of reversals allowed per client IP per minute
	ReverseLimit int

	mu         sync.Mutex
	recordings map[string]*entry
}

// entry is one recording tracked by the API
type entry struct {
	id      string
	session *recording.Session
	created time.Time

	mu     sync.Mutex
	result *recording.Result
}

func (e *entry) finished() (recording.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return recording.Result{}, false
	}
	return *e.result, true
}

// New creates a new API handler. Metrics are registered on reg; a nil reg
// keeps them private.
func New(cfg *config.Config, configPath string, log *logger.Logger, reg prometheus.Registerer) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Handler{
		config:       cfg,
		configPath:   configPath,
		codec:        reversal.New(nil, log.With("reversal")),
		metrics:      newMetrics(reg),
		log:          log,
		ReverseLimit: 30,
		recordings:   make(map[string]*entry),
	}
}

// SetCaptureDevice sets the device new recordings capture from
func (h *Handler) SetCaptureDevice(device audio.CaptureDevice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.capture = device
}

// SetDeviceLister sets the source of GET /api/devices
func (h *Handler) SetDeviceLister(lister audio.Lister) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices = lister
}

// RegisterRoutes registers all API routes on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.putSettings)
		r.Get("/devices", h.handleDevices)

		r.Route("/recordings", func(r chi.Router) {
			r.Get("/", h.listRecordings)
			r.Post("/", h.createRecording)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getRecording)
				r.Delete("/", h.deleteRecording)
				r.Get("/audio", h.getRecordingAudio)
				r.Post("/pause", h.pauseRecording)
				r.Post("/resume", h.resumeRecording)
				r.Post("/stop", h.stopRecording)
				r.Post("/discard", h.discardRecording)
			})
		})

		r.With(httprate.LimitByIP(h.ReverseLimit, time.Minute)).Post("/reverse", h.handleReverse)
	})
}

// Close discards every recording still holding the device
func (h *Handler) Close() {
	h.mu.Lock()
	entries := make([]*entry, 0, len(h.recordings))
	for _, e := range h.recordings {
		entries = append(entries, e)
	}
	h.mu.Unlock()

	for _, e := range entries {
		if !e.session.State().Terminal() {
			e.session.Discard()
		}
	}
}

// getSettings returns the current configuration
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.Clone())
}

// putSettings updates the configuration
func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.config.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}

	if h.configPath != "" {
		if err := h.config.Save(h.configPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
			return
		}
	}

	h.log.Info("Settings updated: %d fields", len(updates))
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
	})
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	lister := h.devices
	h.mu.Unlock()

	devices := []audio.Device{}
	if lister != nil {
		list, err := lister.ListDevices()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to list audio devices: %v", err), http.StatusInternalServerError)
			return
		}
		devices = append(devices, list...)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
	})
}

// status is the JSON view of a recording
type status struct {
	ID         string  `json:"id"`
	State      string  `json:"state"`
	Level      float64 `json:"level"`
	DurationMS int64   `json:"duration_ms"`
	Duration   string  `json:"duration"`
	Chunks     int     `json:"chunks"`
	Created    string  `json:"created"`
	Recorded   bool    `json:"recorded"`
	Size       int     `json:"size,omitempty"`
}

func (e *entry) status() status {
	d := e.session.SampleDuration()
	st := status{
		ID:         e.id,
		State:      e.session.State().String(),
		Level:      e.session.SampleLevel(),
		DurationMS: d.Milliseconds(),
		Duration:   timefmt.Format(d),
		Chunks:     e.session.Chunks(),
		Created:    e.created.Format(time.RFC3339),
	}
	if result, ok := e.finished(); ok {
		st.Recorded = result.Recorded
		st.Size = len(result.Audio)
	}
	return st
}

// createRecording handles POST /api/recordings: creates a session and starts it
func (h *Handler) createRecording(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	device := h.capture
	h.mu.Unlock()

	e := &entry{
		id:      uuid.NewString(),
		created: time.Now(),
	}
	e.session = recording.New(device,
		recording.WithConfig(h.config.RecordingConfig()),
		recording.WithFinalizer(wav.FramePCM16),
		recording.WithLogger(h.log.With("recording")),
	)
	e.session.OnFinish(func(result recording.Result) {
		e.mu.Lock()
		e.result = &result
		e.mu.Unlock()
		h.metrics.finished(e.session.State(), result)
	})

	if err := e.session.Start(r.Context()); err != nil {
		h.metrics.startFailures.Inc()
		writeError(w, err)
		return
	}
	h.metrics.recordingsStarted.Inc()

	h.mu.Lock()
	h.recordings[e.id] = e
	h.mu.Unlock()

	h.log.Info("Recording %s started", e.id)
	writeJSON(w, http.StatusCreated, e.status())
}

// lookup resolves {id}, writing 404 when unknown
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) *entry {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	e, ok := h.recordings[id]
	h.mu.Unlock()

	if !ok {
		http.Error(w, fmt.Sprintf("recording %s not found", id), http.StatusNotFound)
		return nil
	}
	return e
}

// listRecordings handles GET /api/recordings
func (h *Handler) listRecordings(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	entries := make([]*entry, 0, len(h.recordings))
	for _, e := range h.recordings {
		entries = append(entries, e)
	}
	h.mu.Unlock()

	list := make([]status, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.status())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recordings": list,
	})
}

// getRecording handles GET /api/recordings/{id}
func (h *Handler) getRecording(w http.ResponseWriter, r *http.Request) {
	e := h.lookup(w, r)
	if e == nil {
		return
	}
	writeJSON(w, http.StatusOK, e.status())
}

// transition applies op to the recording and answers with its status
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(*recording.Session) error) {
	e := h.lookup(w, r)
	if e == nil {
		return
	}
	if err := op(e.session); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.status())
}

func (h *Handler) pauseRecording(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*recording.Session).Pause)
}

func (h *Handler) resumeRecording(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*recording.Session).Resume)
}

func (h *Handler) stopRecording(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(s *recording.Session) error {
		_, err := s.Stop()
		return err
	})
}

func (h *Handler) discardRecording(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*recording.Session).Discard)
}

// deleteRecording handles DELETE /api/recordings/{id}, discarding it first
// if it still holds the device
func (h *Handler) deleteRecording(w http.ResponseWriter, r *http.Request) {
	e := h.lookup(w, r)
	if e == nil {
		return
	}

	if !e.session.State().Terminal() {
		if err := e.session.Discard(); err != nil {
			writeError(w, err)
			return
		}
	}

	h.mu.Lock()
	delete(h.recordings, e.id)
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// getRecordingAudio handles GET /api/recordings/{id}/audio
func (h *Handler) getRecordingAudio(w http.ResponseWriter, r *http.Request) {
	e := h.lookup(w, r)
	if e == nil {
		return
	}

	result, ok := e.finished()
	if !ok {
		http.Error(w, fmt.Sprintf("recording is %s", e.session.State()), http.StatusConflict)
		return
	}
	if !result.Recorded || result.Audio == nil {
		http.Error(w, "recording has no audio", http.StatusNotFound)
		return
	}

	writeWAV(w, result.Audio, e.id+".wav")
}

// handleReverse handles POST /api/reverse
func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, MaxUploadSize)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("audio exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	out, err := h.codec.Reverse(r.Context(), data)
	if err != nil {
		h.metrics.reversal(err)
		writeError(w, err)
		return
	}
	h.metrics.reversal(nil)
	h.metrics.encodedBytes.Add(float64(len(out)))

	writeWAV(w, out, "reversed.wav")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeWAV(w http.ResponseWriter, data []byte, name string) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Write(data)
}

// statusFor maps core errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, audio.ErrCaptureUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, reversal.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recording.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}
