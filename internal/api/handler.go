package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"spamtrace/internal/config"
	"spamtrace/internal/domain"
	"spamtrace/internal/scanner"
)

// Scanner is what the HTTP layer needs from the mailbox layer.
type Scanner interface {
	Scan(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error)
}

type Handler struct {
	cfg     *config.Config
	scanner Scanner
	log     *zap.Logger
}

func New(cfg *config.Config, sc Scanner, log *zap.Logger) *Handler {
	return &Handler{cfg: cfg, scanner: sc, log: log}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	r.Use(c.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/analyze", h.analyze)
	})

	// The front end lives next to the API: index.html and assets straight
	// from the static dir.
	r.Handle("/*", http.FileServer(http.Dir(h.cfg.StaticDir)))

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// analyze runs one synchronous scan. The caller holds the request open
// until the run reaches a terminal state; there is no partial response.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if req.Email == "" || req.AppPassword == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Email and app password are required."})
		return
	}
	if req.MaxEmails <= 0 {
		req.MaxEmails = h.cfg.DefaultMaxEmails
	}

	result, err := h.scanner.Scan(r.Context(), req)
	if err != nil {
		// The account name is fine to log; the app password never is.
		h.log.Error("scan failed", zap.String("account", req.Email), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:  stageLabel(err),
			Detail: errorDetail(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func stageLabel(err error) string {
	var se *scanner.ScanError
	if errors.As(err, &se) {
		switch se.Stage {
		case scanner.StageSelect:
			return "Failed to open Spam folder"
		case scanner.StageSearch:
			return "Search failed"
		case scanner.StageFetch:
			return "Fetch error"
		}
	}
	return "IMAP error"
}

func errorDetail(err error) string {
	var se *scanner.ScanError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
