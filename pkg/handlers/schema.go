package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// SchemaHandler serves the target schema.
type SchemaHandler struct {
	schema *models.TargetSchema
	logger *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(schema *models.TargetSchema, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{schema: schema, logger: logger}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema", h.Get)
}

// Get handles GET /api/schema
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: h.schema}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
