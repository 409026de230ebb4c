package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// TemplateRepository persists mapping templates keyed by their sanitized name.
type TemplateRepository interface {
	// List returns every stored template ordered by name.
	List(ctx context.Context) ([]*models.Template, error)
	// Get returns the template stored under name, or apperrors.ErrNotFound.
	Get(ctx context.Context, name string) (*models.Template, error)
	// Create stores t. It never overwrites: an existing name yields apperrors.ErrConflict.
	Create(ctx context.Context, t *models.Template) error
	// Delete removes the template stored under name, or returns apperrors.ErrNotFound.
	Delete(ctx context.Context, name string) error
}

// timeLayout is used wherever a store keeps timestamps as text.
const timeLayout = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func marshalPairs(pairs []models.MappingPair) ([]byte, error) {
	if pairs == nil {
		pairs = []models.MappingPair{}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template pairs: %w", err)
	}
	return data, nil
}

func unmarshalPairs(data []byte) ([]models.MappingPair, error) {
	var pairs []models.MappingPair
	if len(data) == 0 {
		return pairs, nil
	}
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template pairs: %w", err)
	}
	return pairs, nil
}
