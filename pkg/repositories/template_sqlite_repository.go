package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// sqliteTemplateRepository implements TemplateRepository on an embedded
// SQLite database opened with database.OpenSQLite.
type sqliteTemplateRepository struct {
	db *sql.DB
}

// NewSQLiteTemplateRepository creates a repository over the cleanlist_templates table.
func NewSQLiteTemplateRepository(db *sql.DB) TemplateRepository {
	return &sqliteTemplateRepository{db: db}
}

func (r *sqliteTemplateRepository) List(ctx context.Context) ([]*models.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, pairs, created_at
		FROM cleanlist_templates
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*models.Template, 0)
	for rows.Next() {
		t, err := scanSQLiteTemplate(rows)
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

func (r *sqliteTemplateRepository) Get(ctx context.Context, name string) (*models.Template, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, pairs, created_at
		FROM cleanlist_templates
		WHERE name = ?`, name)

	t, err := scanSQLiteTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return t, err
}

func (r *sqliteTemplateRepository) Create(ctx context.Context, t *models.Template) error {
	pairs, err := marshalPairs(t.Pairs)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cleanlist_templates (name, pairs, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO NOTHING`,
		t.Name, string(pairs), t.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	if n == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *sqliteTemplateRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cleanlist_templates WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTemplate(row rowScanner) (*models.Template, error) {
	var (
		t         models.Template
		pairs     string
		createdAt string
	)
	if err := row.Scan(&t.Name, &pairs, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	var err error
	if t.Pairs, err = unmarshalPairs([]byte(pairs)); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}
