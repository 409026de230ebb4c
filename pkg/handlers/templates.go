package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/models"
	"github.com/ekaya-inc/cleanlist/pkg/services"
)

// TemplateService is the template operations the handler needs.
type TemplateService interface {
	List(ctx context.Context) ([]*models.Template, error)
	Save(ctx context.Context, name string, pairs []models.MappingPair) (*models.Template, error)
	Load(ctx context.Context, name string) (*models.Template, error)
	Delete(ctx context.Context, name string) error
}

// TemplateListResponse for GET /api/templates
type TemplateListResponse struct {
	Templates []*models.Template `json:"templates"`
	Total     int                `json:"total"`
}

// SaveTemplateRequest for POST /api/templates
// SessionID defaults to the session in the cookie.
type SaveTemplateRequest struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id,omitempty"`
}

// ApplyTemplateRequest for POST /api/templates/{name}/apply
type ApplyTemplateRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// ApplyTemplateResponse reports pairs that did not fit the loaded file.
type ApplyTemplateResponse struct {
	Template string               `json:"template"`
	Skipped  []models.MappingPair `json:"skipped"`
	Session  *models.SessionView  `json:"session"`
}

// TemplatesHandler handles mapping template HTTP requests.
type TemplatesHandler struct {
	templates TemplateService
	sessions  *services.SessionManager
	cookie    *SessionCookie
	logger    *zap.Logger
}

// NewTemplatesHandler creates a new templates handler.
func NewTemplatesHandler(templates TemplateService, sessions *services.SessionManager, cookie *SessionCookie, logger *zap.Logger) *TemplatesHandler {
	return &TemplatesHandler{
		templates: templates,
		sessions:  sessions,
		cookie:    cookie,
		logger:    logger,
	}
}

// RegisterRoutes registers the templates handler's routes on the given mux.
func (h *TemplatesHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/templates"

	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("POST "+base, h.Save)
	mux.HandleFunc("POST "+base+"/{name}/apply", h.Apply)
	mux.HandleFunc("DELETE "+base+"/{name}", h.Delete)
}

// List handles GET /api/templates
func (h *TemplatesHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list templates", err)
		return
	}

	response := TemplateListResponse{Templates: templates, Total: len(templates)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Save handles POST /api/templates
// Stores the current mapping of the given session under the sanitized name.
func (h *TemplatesHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveTemplateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	session, ok := h.resolveSession(w, r, req.SessionID)
	if !ok {
		return
	}

	pairs, err := session.Pairs()
	if err != nil {
		writeServiceError(w, h.logger, "Failed to read session mapping", err, zap.String("session_id", session.ID().String()))
		return
	}

	t, err := h.templates.Save(r.Context(), req.Name, pairs)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to save template", err, zap.String("name", req.Name))
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: t}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Apply handles POST /api/templates/{name}/apply
func (h *TemplatesHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyTemplateRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req, h.logger) {
			return
		}
	}

	session, ok := h.resolveSession(w, r, req.SessionID)
	if !ok {
		return
	}

	name := r.PathValue("name")
	t, err := h.templates.Load(r.Context(), name)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to load template", err, zap.String("name", name))
		return
	}

	skipped, err := session.ApplyTemplate(t)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to apply template", err,
			zap.String("name", t.Name),
			zap.String("session_id", session.ID().String()))
		return
	}
	if skipped == nil {
		skipped = []models.MappingPair{}
	}

	response := ApplyTemplateResponse{Template: t.Name, Skipped: skipped, Session: session.View()}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/templates/{name}
func (h *TemplatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.templates.Delete(r.Context(), name); err != nil {
		writeServiceError(w, h.logger, "Failed to delete template", err, zap.String("name", name))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Template deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// resolveSession finds the session named in the request body, falling back
// to the session cookie.
func (h *TemplatesHandler) resolveSession(w http.ResponseWriter, r *http.Request, raw string) (*services.Session, bool) {
	var id uuid.UUID
	if raw != "" {
		var ok bool
		if id, ok = parseUUID(w, raw, "invalid_session_id", "Invalid session ID format", h.logger); !ok {
			return nil, false
		}
	} else {
		var ok bool
		if id, ok = h.cookie.Current(r); !ok {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "session_id is required"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return nil, false
		}
	}
	return lookupSession(w, h.sessions, id, h.logger)
}
