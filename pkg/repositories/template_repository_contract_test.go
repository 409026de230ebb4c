package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// runTemplateRepositoryContract exercises the behaviour every TemplateRepository
// implementation shares. repo must start empty.
func runTemplateRepositoryContract(t *testing.T, repo TemplateRepository) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	crm := &models.Template{
		Name: "crm_export",
		Pairs: []models.MappingPair{
			{Target: "Email", Source: "E-mail Address"},
			{Target: "Company", Source: models.IgnoreSource},
		},
		CreatedAt: created,
	}
	require.NoError(t, repo.Create(ctx, crm))
	require.NoError(t, repo.Create(ctx, &models.Template{Name: "Alpha-1", CreatedAt: created}))

	err = repo.Create(ctx, &models.Template{Name: "crm_export", CreatedAt: created})
	assert.ErrorIs(t, err, apperrors.ErrConflict, "create must never overwrite")

	got, err := repo.Get(ctx, "crm_export")
	require.NoError(t, err)
	assert.Equal(t, "crm_export", got.Name)
	assert.Equal(t, crm.Pairs, got.Pairs)
	assert.True(t, created.Equal(got.CreatedAt), "created_at round-trips: got %v", got.CreatedAt)

	empty, err := repo.Get(ctx, "Alpha-1")
	require.NoError(t, err)
	assert.NotNil(t, empty.Pairs)
	assert.Empty(t, empty.Pairs)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha-1", list[0].Name)
	assert.Equal(t, "crm_export", list[1].Name)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "crm_export"))
	assert.ErrorIs(t, repo.Delete(ctx, "crm_export"), apperrors.ErrNotFound)

	_, err = repo.Get(ctx, "crm_export")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
