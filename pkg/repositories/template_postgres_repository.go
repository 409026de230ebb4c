package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/database"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// postgresTemplateRepository implements TemplateRepository using PostgreSQL.
type postgresTemplateRepository struct {
	db *database.DB
}

// NewPostgresTemplateRepository creates a repository over the cleanlist_templates table.
func NewPostgresTemplateRepository(db *database.DB) TemplateRepository {
	return &postgresTemplateRepository{db: db}
}

func (r *postgresTemplateRepository) List(ctx context.Context) ([]*models.Template, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, pairs, created_at
		FROM cleanlist_templates
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*models.Template, 0)
	for rows.Next() {
		t, err := scanPostgresTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

func (r *postgresTemplateRepository) Get(ctx context.Context, name string) (*models.Template, error) {
	row := r.db.QueryRow(ctx, `
		SELECT name, pairs, created_at
		FROM cleanlist_templates
		WHERE name = $1`, name)

	t, err := scanPostgresTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return t, err
}

func (r *postgresTemplateRepository) Create(ctx context.Context, t *models.Template) error {
	pairs, err := marshalPairs(t.Pairs)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO cleanlist_templates (name, pairs, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING`,
		t.Name, pairs, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *postgresTemplateRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cleanlist_templates WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanPostgresTemplate(row pgx.Row) (*models.Template, error) {
	var (
		t     models.Template
		pairs []byte
	)
	if err := row.Scan(&t.Name, &pairs, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	var err error
	if t.Pairs, err = unmarshalPairs(pairs); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
