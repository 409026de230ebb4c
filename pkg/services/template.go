package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
	"github.com/ekaya-inc/cleanlist/pkg/repositories"
)

// MaxTemplateNameLength caps sanitized template keys.
const MaxTemplateNameLength = 50

// SanitizeTemplateName derives a storage key from a user supplied name: the
// name is trimmed, every character other than letters, digits, '_' and '-'
// is removed, and the result is capped at MaxTemplateNameLength characters.
// Letters and digits include non-ASCII ones.
func SanitizeTemplateName(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(name) {
		if n == MaxTemplateNameLength {
			break
		}
		if r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}

// TemplateService manages named mapping templates.
type TemplateService struct {
	repo   repositories.TemplateRepository
	logger *zap.Logger
}

// NewTemplateService creates a template service over repo.
func NewTemplateService(repo repositories.TemplateRepository, logger *zap.Logger) *TemplateService {
	return &TemplateService{
		repo:   repo,
		logger: logger.Named("templates"),
	}
}

// List returns all templates ordered by name.
func (s *TemplateService) List(ctx context.Context) ([]*models.Template, error) {
	templates, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTemplate, err)
	}
	return templates, nil
}

// Save stores pairs under the sanitized form of name. It fails with
// ErrTemplate when the sanitized name is empty or already taken.
func (s *TemplateService) Save(ctx context.Context, name string, pairs []models.MappingPair) (*models.Template, error) {
	key := SanitizeTemplateName(name)
	if key == "" {
		return nil, fmt.Errorf("%w: name %q has no usable characters", apperrors.ErrTemplate, name)
	}

	t := &models.Template{
		Name:      key,
		Pairs:     append([]models.MappingPair{}, pairs...),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: template %q already exists: %w", apperrors.ErrTemplate, key, err)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTemplate, err)
	}

	s.logger.Info("Saved template",
		zap.String("name", key),
		zap.Int("pairs", len(t.Pairs)))
	return t, nil
}

// Load returns the template stored under the sanitized form of name.
func (s *TemplateService) Load(ctx context.Context, name string) (*models.Template, error) {
	key := SanitizeTemplateName(name)
	if key == "" {
		return nil, fmt.Errorf("%w: template %q: %w", apperrors.ErrTemplate, name, apperrors.ErrNotFound)
	}

	t, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: template %q: %w", apperrors.ErrTemplate, key, err)
	}
	return t, nil
}

// Delete removes the template stored under the sanitized form of name.
// A missing template is reported as ErrTemplate wrapping ErrNotFound.
func (s *TemplateService) Delete(ctx context.Context, name string) error {
	key := SanitizeTemplateName(name)
	if key == "" {
		return fmt.Errorf("%w: template %q: %w", apperrors.ErrTemplate, name, apperrors.ErrNotFound)
	}

	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: template %q: %w", apperrors.ErrTemplate, key, err)
	}

	s.logger.Info("Deleted template", zap.String("name", key))
	return nil
}
