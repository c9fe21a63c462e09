package handlers

import (
	"encoding/json"
	"errors"
	"image"
	"log"
	"net/http"

	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
	"github.com/Brownie44l1/digit-api/internal/recognizer"
	"github.com/Brownie44l1/digit-api/internal/web"
)

const (
	maxUploadSize = 10 << 20
	maxCanvasBody = 4 << 20

	emptyMessage = "Draw a digit to see predictions"
)

type Handler struct {
	models      recognizer.ModelSource
	recognizer  *recognizer.Recognizer
	page        *web.Page
	strokeWidth int
}

func NewHandler(models recognizer.ModelSource, rec *recognizer.Recognizer, page *web.Page, strokeWidth int) *Handler {
	return &Handler{
		models:      models,
		recognizer:  rec,
		page:        page,
		strokeWidth: strokeWidth,
	}
}

// CanvasRequest carries the drawing either as a PNG data URL or as a raw
// RGBA buffer (base64 in JSON).
type CanvasRequest struct {
	Image  string `json:"image,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Pixels []byte `json:"pixels,omitempty"`
}

type CanvasResponse struct {
	Status        string         `json:"status"`
	Message       string         `json:"message,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	Digit         int            `json:"digit"`
	Confidence    float32        `json:"confidence"`
	Probabilities []float32      `json:"probabilities,omitempty"`
	Contract      model.Contract `json:"contract,omitempty"`
	Thumbnail     string         `json:"thumbnail,omitempty"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type healthResponse struct {
	Status      string         `json:"status"`
	ModelLoaded bool           `json:"model_loaded"`
	Contract    model.Contract `json:"contract,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := web.PageData{StrokeWidth: h.strokeWidth}
	if _, err := h.models.Get(); err != nil {
		data.ModelError = err.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Render(w, data); err != nil {
		log.Printf("Render error: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", ModelLoaded: true}
	c, err := h.models.Get()
	if err != nil {
		resp = healthResponse{Status: "degraded", Error: err.Error()}
	} else {
		resp.Contract = c.Contract()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PredictionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCanvasBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, err := h.recognizer.RecognizeTensor(req.Image)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res.Prediction.Response())
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
		return
	}
	defer file.Close()

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, err := preprocess.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG")
		return
	}

	opts := preprocess.Options{Invert: r.FormValue("invert") == "true"}
	h.respondCanvas(w, img, opts)
}

func (h *Handler) PredictCanvas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CanvasRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCanvasBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var (
		img image.Image
		err error
	)
	switch {
	case req.Image != "":
		img, err = preprocess.DecodeDataURL(req.Image)
	case len(req.Pixels) > 0:
		img, err = preprocess.FromRGBA(req.Width, req.Height, req.Pixels)
	default:
		writeJSON(w, http.StatusOK, CanvasResponse{Status: "empty", Message: emptyMessage})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondCanvas(w, img, preprocess.Options{})
}

func (h *Handler) respondCanvas(w http.ResponseWriter, img image.Image, opts preprocess.Options) {
	res, err := h.recognizer.Recognize(img, opts)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CanvasResponse{
		Status:        "ok",
		RequestID:     res.RequestID,
		Digit:         res.Prediction.Digit,
		Confidence:    res.Prediction.Confidence,
		Probabilities: res.Prediction.Probabilities,
		Contract:      res.Contract,
		Thumbnail:     preprocess.DataURL(res.Thumbnail),
	})
}

// fail maps recognition errors to a status code. Inference failures are
// logged in full and answered with a generic message.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recognizer.ErrBlankCanvas):
		writeJSON(w, http.StatusOK, CanvasResponse{Status: "empty", Message: emptyMessage})
	case errors.Is(err, model.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case isBadRequest(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Prediction error: %v", err)
		writeError(w, http.StatusInternalServerError, "Prediction failed")
	}
}

// isBadRequest is true for input validation failures raised before
// preprocessing starts.
func isBadRequest(err error) bool {
	if errors.Is(err, recognizer.ErrRecognition) {
		return false
	}
	return errors.Is(err, model.ErrBadInput) || errors.Is(err, preprocess.ErrInvalidImage)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: "error", Error: msg})
}
