package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"prodsync/internal/config"
	"prodsync/internal/engine"
	"prodsync/internal/metrics"
	"prodsync/internal/models"

	"github.com/rs/zerolog"
)

// Controller is the engine surface the polling API drives.
type Controller interface {
	Start(ctx context.Context, limit int, force bool) (models.SyncJob, error)
	Cancel(ctx context.Context) (models.SyncJob, error)
	Status(ctx context.Context) (models.Progress, error)
	RunChunk(ctx context.Context) (models.ChunkResult, error)
}

// ProductHooks is the real-time trigger surface: the master catalog
// notifies the service about single product writes and deletes.
type ProductHooks interface {
	OnProductSaved(ctx context.Context, productID int64) error
	OnProductDeleted(ctx context.Context, productID int64) error
}

// HTTPServer exposes the sync polling API used by admin front ends.
type HTTPServer struct {
	cfg    *config.APIConfig
	ctl    Controller
	hooks  ProductHooks
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, ctl Controller, hooks ProductHooks, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, ctl: ctl, hooks: hooks, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/sync/start", srv.handleStart)
	mux.HandleFunc("/api/v1/sync/progress", srv.handleProgress)
	mux.HandleFunc("/api/v1/sync/chunk", srv.handleChunk)
	mux.HandleFunc("/api/v1/sync/cancel", srv.handleCancel)
	mux.HandleFunc("/api/v1/hooks/product-saved", srv.handleProductSaved)
	mux.HandleFunc("/api/v1/hooks/product-deleted", srv.handleProductDeleted)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("sync API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_start")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Body is optional; {} and empty bodies mean a plain full start.
	var body struct {
		Limit int  `json:"limit"`
		Force bool `json:"force"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be non-negative")
		return
	}

	job, err := s.ctl.Start(r.Context(), body.Limit, body.Force)
	if errors.Is(err, engine.ErrJobAlreadyRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":   job.Total,
		"message": "sync started successfully",
	})
}

func (s *HTTPServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_progress")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	progress, err := s.ctl.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *HTTPServer) handleChunk(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_chunk")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result, err := s.ctl.RunChunk(r.Context())
	if err != nil {
		// Storage failure: the job stays Processing and the cursor did
		// not move, so the front end can simply retry.
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if result.Status == models.JobIdle {
		writeError(w, http.StatusConflict, "no sync in progress")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_cancel")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if _, err := s.ctl.Cancel(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "sync cancelled"})
}

func (s *HTTPServer) handleProductSaved(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("hook_product_saved")
	s.handleHook(w, r, s.hooks.OnProductSaved)
}

func (s *HTTPServer) handleProductDeleted(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("hook_product_deleted")
	s.handleHook(w, r, s.hooks.OnProductDeleted)
}

func (s *HTTPServer) handleHook(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.hooks == nil {
		writeError(w, http.StatusNotImplemented, "hooks are not configured")
		return
	}

	var body struct {
		ProductID int64 `json:"product_id"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ProductID <= 0 {
		writeError(w, http.StatusBadRequest, "product_id must be positive")
		return
	}

	if err := fn(r.Context(), body.ProductID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
