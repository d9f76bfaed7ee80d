package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lexcodex/adpilot/framework"
	"github.com/lexcodex/adpilot/persistence"
)

// API serves the HTTP surface: conversation management, turn streaming, and
// read endpoints over messages, drafts and the activity log.
type API struct {
	Engine   *Engine
	Migrator *persistence.Migrator
	Logger   *slog.Logger
}

// NewAPI builds the HTTP layer. Migrator may be nil to disable the migration
// endpoint.
func NewAPI(engine *Engine, migrator *persistence.Migrator, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{Engine: engine, Migrator: migrator, Logger: logger}
}

// Routes assembles the router.
func (s *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/conversations", s.handleOpenConversation)
	r.Get("/api/workspaces/{workspaceID}/conversations", s.handleListConversations)
	r.Post("/api/workspaces/{workspaceID}/migrate", s.handleMigrate)
	r.Route("/api/conversations/{conversationID}", func(r chi.Router) {
		r.Get("/messages", s.handleMessages)
		r.Get("/activity", s.handleActivity)
		r.Get("/drafts", s.handleDrafts)
		r.Post("/turns", s.handleTurn)
	})
	return r
}

// Serve starts listening on the provided address.
func (s *API) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *API) ServeContext(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Routes()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.Logger.Info("api listening", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type openConversationRequest struct {
	WorkspaceID string `json:"workspace_id"`
	PageID      string `json:"page_id,omitempty"`
	Title       string `json:"title,omitempty"`
}

// handleOpenConversation returns the single conversation for the requested
// scope, creating it on first use. Posting twice never duplicates.
func (s *API) handleOpenConversation(w http.ResponseWriter, r *http.Request) {
	var req openConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, errors.New("workspace_id is required"))
		return
	}
	scope := framework.ScopeAccountWide
	if req.PageID != "" {
		scope = framework.ScopePage
	}
	conv, err := s.Engine.Store().GetOrCreateConversation(r.Context(), req.WorkspaceID, req.PageID, scope, req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *API) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.Engine.Store().ListConversations(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (s *API) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
		limit = n
	}
	messages, err := s.Engine.Store().Messages(r.Context(), chi.URLParam(r, "conversationID"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Engine.Store().Entries(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}

func (s *API) handleDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.Engine.Store().Drafts(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"drafts": drafts})
}

type turnRequest struct {
	Message string `json:"message"`
}

// handleTurn submits one user message and streams the turn's events back as
// server-sent events. The stream terminates at the done event.
func (s *API) handleTurn(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	events, err := s.Engine.ProcessTurn(r.Context(), conversationID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, framework.ErrTurnInFlight):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, framework.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			s.Logger.Warn("marshal event failed", "error", err)
			continue
		}
		if err := writeSSE(w, string(event.Type), string(data)); err != nil {
			s.Logger.Warn("sse write failed, client gone", "error", err)
			// Drain so the turn goroutine can finish.
			for range events {
			}
			return
		}
		flusher.Flush()
	}
}

func (s *API) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if s.Migrator == nil {
		writeError(w, http.StatusNotFound, errors.New("migration is not enabled"))
		return
	}
	result, err := s.Migrator.Run(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
