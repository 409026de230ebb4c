package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
	"github.com/ekaya-inc/cleanlist/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// RenameRequest for PUT /api/sessions/{sid}/filename
type RenameRequest struct {
	Filename string `json:"filename"`
}

// AssignRequest for PUT /api/sessions/{sid}/mapping/{target}
type AssignRequest struct {
	Source string `json:"source"`
}

// ProcessRequest for POST /api/sessions/{sid}/process
type ProcessRequest struct {
	Verify bool   `json:"verify"`
	APIKey string `json:"api_key,omitempty"`
}

// SuggestResponse for POST /api/sessions/{sid}/mapping/suggest
type SuggestResponse struct {
	Suggested []models.MappingPair `json:"suggested"`
	Session   *models.SessionView  `json:"session"`
}

// ============================================================================
// Handler
// ============================================================================

// SessionsHandler handles upload session HTTP requests.
type SessionsHandler struct {
	sessions *services.SessionManager
	cookie   *SessionCookie
	maxBytes int64
	logger   *zap.Logger
}

// NewSessionsHandler creates a new sessions handler. Uploads larger than
// maxBytes are rejected.
func NewSessionsHandler(sessions *services.SessionManager, cookie *SessionCookie, maxBytes int64, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessions: sessions,
		cookie:   cookie,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// RegisterRoutes registers the sessions handler's routes on the given mux.
func (h *SessionsHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/sessions"

	mux.HandleFunc("POST "+base, h.Upload)
	mux.HandleFunc("GET "+base+"/current", h.Current)
	mux.HandleFunc("GET "+base+"/{sid}", h.Get)
	mux.HandleFunc("DELETE "+base+"/{sid}", h.Delete)
	mux.HandleFunc("PUT "+base+"/{sid}/filename", h.Rename)
	mux.HandleFunc("PUT "+base+"/{sid}/mapping/{target}", h.Assign)
	mux.HandleFunc("DELETE "+base+"/{sid}/mapping/{target}", h.Clear)
	mux.HandleFunc("POST "+base+"/{sid}/mapping/suggest", h.Suggest)
	mux.HandleFunc("POST "+base+"/{sid}/process", h.Process)
	mux.HandleFunc("GET "+base+"/{sid}/download", h.Download)
}

// Upload handles POST /api/sessions
// Expects a multipart form with the file in field "file".
func (h *SessionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("Upload exceeds %d bytes", h.maxBytes))
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", `Missing form field "file"`)
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read uploaded file")
		return
	}

	session := h.sessions.Create()
	if err := session.Load(header.Filename, raw); err != nil {
		_ = h.sessions.Delete(session.ID())
		writeServiceError(w, h.logger, "Failed to load upload", err,
			zap.String("filename", header.Filename),
			zap.Int("bytes", len(raw)))
		return
	}

	if err := h.cookie.Remember(w, r, session.ID()); err != nil {
		h.logger.Warn("Failed to set session cookie", zap.Error(err))
	}

	h.logger.Info("Upload loaded",
		zap.String("session_id", session.ID().String()),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(raw)))

	h.writeData(w, http.StatusCreated, session.View())
}

// Current handles GET /api/sessions/current
func (h *SessionsHandler) Current(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cookie.Current(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "no_session", "No session cookie")
		return
	}

	session, err := h.sessions.Get(id)
	if err != nil {
		writeServiceError(w, h.logger, "Session from cookie not found", err)
		return
	}
	h.writeData(w, http.StatusOK, session.View())
}

// Get handles GET /api/sessions/{sid}
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeData(w, http.StatusOK, session.View())
}

// Delete handles DELETE /api/sessions/{sid}
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Delete(id); err != nil {
		writeServiceError(w, h.logger, "Failed to delete session", err, zap.String("session_id", id.String()))
		return
	}

	if current, ok := h.cookie.Current(r); ok && current == id {
		if err := h.cookie.Forget(w, r); err != nil {
			h.logger.Warn("Failed to clear session cookie", zap.Error(err))
		}
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Session discarded"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rename handles PUT /api/sessions/{sid}/filename
func (h *SessionsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req RenameRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := session.Rename(req.Filename); err != nil {
		writeServiceError(w, h.logger, "Failed to rename", err, zap.String("session_id", session.ID().String()))
		return
	}
	h.writeData(w, http.StatusOK, session.View())
}

// Assign handles PUT /api/sessions/{sid}/mapping/{target}
func (h *SessionsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AssignRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	target := r.PathValue("target")
	if err := session.Assign(target, req.Source); err != nil {
		writeServiceError(w, h.logger, "Failed to assign mapping", err,
			zap.String("session_id", session.ID().String()),
			zap.String("target", target))
		return
	}
	h.writeData(w, http.StatusOK, session.View())
}

// Clear handles DELETE /api/sessions/{sid}/mapping/{target}
func (h *SessionsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := session.Clear(r.PathValue("target")); err != nil {
		writeServiceError(w, h.logger, "Failed to clear mapping", err, zap.String("session_id", session.ID().String()))
		return
	}
	h.writeData(w, http.StatusOK, session.View())
}

// Suggest handles POST /api/sessions/{sid}/mapping/suggest
func (h *SessionsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	pairs, err := session.Suggest()
	if err != nil {
		writeServiceError(w, h.logger, "Failed to suggest mapping", err, zap.String("session_id", session.ID().String()))
		return
	}
	if pairs == nil {
		pairs = []models.MappingPair{}
	}
	h.writeData(w, http.StatusOK, SuggestResponse{Suggested: pairs, Session: session.View()})
}

// Process handles POST /api/sessions/{sid}/process
// An empty body processes without verification.
func (h *SessionsHandler) Process(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ProcessRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req, h.logger) {
			return
		}
	}

	result, err := session.Process(r.Context(), services.ProcessOptions{
		Verify: req.Verify,
		APIKey: req.APIKey,
	})
	if err != nil {
		writeServiceError(w, h.logger, "Failed to process session", err, zap.String("session_id", session.ID().String()))
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// Download handles GET /api/sessions/{sid}/download
func (h *SessionsHandler) Download(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := session.Result()
	if err != nil {
		writeServiceError(w, h.logger, "Download before processing", err, zap.String("session_id", session.ID().String()))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	if err := services.WriteCSV(w, result.Table); err != nil {
		h.logger.Error("Failed to stream CSV",
			zap.String("session_id", session.ID().String()),
			zap.Error(err))
	}
}

// session resolves the {sid} path value to a live session, writing the
// error response itself when it cannot.
func (h *SessionsHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	id, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return nil, false
	}
	return lookupSession(w, h.sessions, id, h.logger)
}

func lookupSession(w http.ResponseWriter, sessions *services.SessionManager, id uuid.UUID, logger *zap.Logger) (*services.Session, bool) {
	session, err := sessions.Get(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "session_not_found", "Session not found or expired"); err != nil {
				logger.Error("Failed to write error response", zap.Error(err))
			}
			return nil, false
		}
		writeServiceError(w, logger, "Failed to load session", err)
		return nil, false
	}
	return session, true
}

func (h *SessionsHandler) writeData(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
