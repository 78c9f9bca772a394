package handlers

import (
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/pipeline"
	"github.com/sirupsen/logrus"
)

// Switcher is the part of the model coordinator the handlers drive.
type Switcher interface {
	Process(frame image.Image)
	Switch(kind model.Kind) error
	Current() (model.Kind, bool)
}

type Handler struct {
	models  Switcher
	worker  *pipeline.Worker
	results *ResultStore
	log     logrus.FieldLogger
}

func NewHandler(models Switcher, worker *pipeline.Worker, results *ResultStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		models:  models,
		worker:  worker,
		results: results,
		log:     log.WithField("component", "http"),
	}
}

// Register mounts every endpoint on mux, wrapping each with mw when given.
func (h *Handler) Register(mux *http.ServeMux, mw func(http.HandlerFunc) http.HandlerFunc) {
	if mw == nil {
		mw = func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	mux.HandleFunc("/health", mw(h.Health))
	mux.HandleFunc("/frame", mw(h.SubmitFrame))
	mux.HandleFunc("/result", mw(h.Result))
	mux.HandleFunc("/mode", mw(h.Mode))
	mux.HandleFunc("/stats", mw(h.Stats))
}

// ProcessFrame is the worker callback: it runs one frame through the active
// model on the worker goroutine.
func (h *Handler) ProcessFrame(frame pipeline.Frame) {
	h.results.Begin(frame.ID)
	h.models.Process(frame.Image)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	kind, loaded := h.models.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"mode":   kind.String(),
		"loaded": loaded,
	})
}

func (h *Handler) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form (10MB max)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return
	}

	frame := pipeline.NewFrame(img)
	if !h.worker.Publish(frame) {
		http.Error(w, "Pipeline stopped", http.StatusServiceUnavailable)
		return
	}

	h.log.WithFields(logrus.Fields{
		"frame_id": frame.ID,
		"file":     header.Filename,
		"format":   format,
		"width":    img.Bounds().Dx(),
		"height":   img.Bounds().Dy(),
	}).Debug("frame published")

	writeJSON(w, http.StatusAccepted, FrameResponse{FrameID: frame.ID})
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, ok := h.results.Latest()
	if !ok {
		http.Error(w, "No result yet", http.StatusNotFound)
		return
	}
	if result.Mode == "" {
		kind, _ := h.models.Current()
		result.Mode = kind.String()
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Mode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		kind, loaded := h.models.Current()
		writeJSON(w, http.StatusOK, ModeResponse{Mode: kind.String(), Loaded: loaded})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	kind, err := model.ParseKind(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.models.Switch(kind); err != nil {
		h.log.WithError(err).Error("model switch failed")
		http.Error(w, "Model switch failed", http.StatusInternalServerError)
		return
	}
	h.results.Reset()

	writeJSON(w, http.StatusOK, ModeResponse{Mode: kind.String(), Loaded: true})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.worker.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
