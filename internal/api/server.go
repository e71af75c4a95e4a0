package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"walletgate/internal/core/domain"
	"walletgate/internal/infra/storage"
)

// WalletEncryptor seals wallet addresses before they are persisted.
type WalletEncryptor interface {
	Encrypt(plain string) (string, error)
}

// HealthChecker reports backing-store health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config holds API server settings.
type Config struct {
	Port           int
	DeadlineOffset time.Duration
}

// Server exposes the task surface consumed by the bot and operators. The
// verification engine itself never serves HTTP; it only shares the stores.
type Server struct {
	cfg    Config
	tasks  storage.TaskRepository
	codec  WalletEncryptor
	health HealthChecker // nil when running without a database
	server *http.Server

	now func() time.Time
}

// NewServer creates the API server.
func NewServer(
	cfg Config,
	tasks storage.TaskRepository,
	codec WalletEncryptor,
	health HealthChecker,
) *Server {
	s := &Server{
		cfg:    cfg,
		tasks:  tasks,
		codec:  codec,
		health: health,
		now:    time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/tasks", s.createTask)
	r.Get("/api/tasks/{id}", s.getTask)
	r.Delete("/api/tasks/user/{userID}", s.cancelTasks)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	return s
}

// Handler returns the underlying handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createTaskReq struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
}

type createTaskResp struct {
	TaskID   string `json:"task_id"`
	Deadline int64  `json:"deadline"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !common.IsHexAddress(req.WalletAddress) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	// One non-terminal task per user.
	active, err := s.tasks.HasNonTerminal(r.Context(), req.UserID)
	if err != nil {
		slog.Error("Failed to check active tasks", "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if active {
		writeError(w, http.StatusConflict, "user already has a verification in progress")
		return
	}

	cipher, err := s.codec.Encrypt(req.WalletAddress)
	if err != nil {
		slog.Error("Failed to encrypt wallet address", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := s.now()
	task := &domain.ProofTask{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		WalletCipher: cipher,
		AfterTS:      now.Unix(),
		Deadline:     now.Add(s.cfg.DeadlineOffset).Unix(),
		Status:       domain.TaskStatusPending,
	}
	if err := s.tasks.Create(r.Context(), task); err != nil {
		slog.Error("Failed to create task", "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("Verification task created", "task", task.ID, "user", task.UserID)
	writeJSON(w, http.StatusCreated, createTaskResp{TaskID: task.ID, Deadline: task.Deadline})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := s.tasks.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get task", "task", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) cancelTasks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	count, err := s.tasks.CancelByUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to cancel tasks", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("Tasks cancelled", "user", userID, "count", count)
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": count})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
