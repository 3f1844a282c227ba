package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"xray-analyzer/internal/journal"
	"xray-analyzer/internal/uploads"
)

const (
	maxPatientAge = 150

	// room for the patient fields on top of the image itself
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
)

const (
	msgNoFile           = "Файл изображения не загружен"
	msgPatientRequired  = "Все поля пациента обязательны"
	msgInvalidAge       = "Некорректный возраст пациента"
	msgFileTooLarge     = "Файл слишком большой (максимум 10MB)"
	msgUnsupportedType  = "Поддерживаются только файлы JPG, PNG, DICOM"
	msgAnalysisFailed   = "Ошибка при анализе изображения"
	msgInvalidCaseID    = "Некорректный ID случая"
	msgDetailedRequired = "Требуются параметры imagePath и findings (массив)"
	msgStatsFailed      = "Ошибка при получении статистики"
	msgCleanupFailed    = "Ошибка при очистке файлов"
	msgRouteNotFound    = "Маршрут не найден"
)

// ImageStore keeps uploaded images for the lifetime of their retention.
type ImageStore interface {
	Save(originalName string, data []byte) (string, error)
	Remove(name string) error
	Cleanup(olderThan time.Duration, now time.Time) (int, error)
	CountImages() (int, error)
}

type HandlerConfig struct {
	MaxFileSize int64
	Retention   time.Duration
	Version     string
}

type Handler struct {
	svc     Service
	store   ImageStore
	cfg     HandlerConfig
	log     *logrus.Logger
	started time.Time
}

func NewHandler(svc Service, store ImageStore, cfg HandlerConfig, log *logrus.Logger) *Handler {
	return &Handler{
		svc:     svc,
		store:   store,
		cfg:     cfg,
		log:     log,
		started: time.Now(),
	}
}

type analyzeResponse struct {
	Success        bool          `json:"success"`
	Analysis       *XrayAnalysis `json:"analysis"`
	ImageURL       string        `json:"imageUrl"`
	Timestamp      time.Time     `json:"timestamp"`
	ProcessingTime string        `json:"processingTime"`
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.requestLog(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			h.fail(w, http.StatusBadRequest, msgFileTooLarge, "")
			return
		}
		h.fail(w, http.StatusBadRequest, msgNoFile, "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploads.FieldName)
	if err != nil {
		h.fail(w, http.StatusBadRequest, msgNoFile, "")
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxFileSize {
		h.fail(w, http.StatusBadRequest, msgFileTooLarge, "")
		return
	}
	if !uploads.IsAllowedImage(header.Filename, header.Header.Get("Content-Type")) {
		h.fail(w, http.StatusBadRequest, msgUnsupportedType, "")
		return
	}

	patient, msg := parsePatient(r)
	if msg != "" {
		h.fail(w, http.StatusBadRequest, msg, "")
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		log.WithError(err).Error("Failed to read uploaded image")
		h.fail(w, http.StatusInternalServerError, msgAnalysisFailed, err.Error())
		return
	}

	name, err := h.store.Save(header.Filename, image)
	if err != nil {
		log.WithError(err).Error("Failed to store uploaded image")
		h.fail(w, http.StatusInternalServerError, msgAnalysisFailed, err.Error())
		return
	}

	log.WithFields(logrus.Fields{"file": name, "age": patient.Age}).Info("Analyzing X-ray image")

	analysis, err := h.svc.Analyze(r.Context(), AnalyzeRequest{
		Image:    image,
		FileName: header.Filename,
		Patient:  patient,
	})
	if err != nil {
		log.WithError(err).Error("Analysis failed")
		if rmErr := h.store.Remove(name); rmErr != nil {
			log.WithError(rmErr).Warn("Failed to remove upload after failed analysis")
		}
		h.fail(w, http.StatusInternalServerError, msgAnalysisFailed, "Ошибка анализа: "+err.Error())
		return
	}

	elapsed := time.Since(start)
	log.WithField("elapsed", elapsed).Info("Analysis finished")

	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:        true,
		Analysis:       analysis,
		ImageURL:       "/uploads/" + name,
		Timestamp:      time.Now(),
		ProcessingTime: fmt.Sprintf("%dms", elapsed.Milliseconds()),
	})
}

// parsePatient validates the patient fields and returns the message to report
// when they are unusable.
func parsePatient(r *http.Request) (PatientData, string) {
	p := PatientData{
		FirstName:  strings.TrimSpace(r.FormValue("firstName")),
		LastName:   strings.TrimSpace(r.FormValue("lastName")),
		DoctorName: strings.TrimSpace(r.FormValue("doctorName")),
	}
	age := strings.TrimSpace(r.FormValue("age"))

	if p.FirstName == "" || p.LastName == "" || p.DoctorName == "" || age == "" {
		return PatientData{}, msgPatientRequired
	}

	n, err := strconv.Atoi(age)
	if err != nil || n < 0 || n > maxPatientAge {
		return PatientData{}, msgInvalidAge
	}
	p.Age = n
	return p, ""
}

func (h *Handler) SimilarCases(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "caseId"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, msgInvalidCaseID, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"similarCases": h.svc.SimilarCases(id, r.URL.Query().Get("diagnosis")),
		"timestamp":    time.Now(),
	})
}

type detailedAnalysisRequest struct {
	ImagePath string    `json:"imagePath"`
	Findings  *[]string `json:"findings"`
}

func (h *Handler) DetailedAnalysis(w http.ResponseWriter, r *http.Request) {
	var req detailedAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImagePath == "" || req.Findings == nil {
		h.fail(w, http.StatusBadRequest, msgDetailedRequired, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"detailedAnalysis": h.svc.DetailedAnalysis(req.ImagePath, *req.Findings),
		"timestamp":        time.Now(),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "OK",
		"message":            "Backend работает",
		"timestamp":          time.Now(),
		"version":            h.cfg.Version,
		"huggingFaceEnabled": h.svc.VisionEnabled(),
	})
}

type memoryUsage struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	HeapInuse  uint64 `json:"heapInuse"`
	NumGC      uint32 `json:"numGC"`
}

type stats struct {
	TotalAnalyses      int              `json:"totalAnalyses"`
	HuggingFaceEnabled bool             `json:"huggingFaceEnabled"`
	ServerUptime       float64          `json:"serverUptime"`
	MemoryUsage        memoryUsage      `json:"memoryUsage"`
	GoVersion          string           `json:"goVersion"`
	Journal            *journal.Summary `json:"journal,omitempty"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.CountImages()
	if err != nil {
		h.requestLog(r).WithError(err).Error("Failed to count uploads")
		h.fail(w, http.StatusInternalServerError, msgStatsFailed, "")
		return
	}

	summary, err := h.svc.JournalSummary(r.Context())
	if err != nil {
		h.requestLog(r).WithError(err).Warn("Failed to read journal summary")
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats": stats{
			TotalAnalyses:      total,
			HuggingFaceEnabled: h.svc.VisionEnabled(),
			ServerUptime:       time.Since(h.started).Seconds(),
			MemoryUsage: memoryUsage{
				Alloc:      m.Alloc,
				TotalAlloc: m.TotalAlloc,
				Sys:        m.Sys,
				HeapInuse:  m.HeapInuse,
				NumGC:      m.NumGC,
			},
			GoVersion: runtime.Version(),
			Journal:   summary,
		},
		"timestamp": time.Now(),
	})
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Cleanup(h.cfg.Retention, time.Now())
	if err != nil {
		h.requestLog(r).WithError(err).Error("Upload cleanup failed")
		h.fail(w, http.StatusInternalServerError, msgCleanupFailed, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Удалено %d старых файлов", deleted),
		"deletedCount": deleted,
		"timestamp":    time.Now(),
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:     msgRouteNotFound,
		Path:      r.URL.RequestURI(),
		Timestamp: time.Now(),
	})
}

func (h *Handler) fail(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Details:   details,
		Timestamp: time.Now(),
	})
}

func (h *Handler) requestLog(r *http.Request) *logrus.Entry {
	return h.log.WithField("request_id", middleware.GetReqID(r.Context()))
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}
	// older multipart readers flatten the error
	return strings.Contains(err.Error(), "request body too large")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/health", h.Health)
	r.Post("/analyze", h.Analyze)
	r.Get("/similar-cases/{caseId}", h.SimilarCases)
	r.Post("/detailed-analysis", h.DetailedAnalysis)
	r.Get("/stats", h.Stats)
	r.Post("/cleanup", h.Cleanup)
}
