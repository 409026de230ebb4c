//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cleanlist/pkg/testhelpers"
)

func TestRedisTemplateRepository_Contract(t *testing.T) {
	r := testhelpers.GetTestRedis(t)
	key := "cleanlist:test:" + uuid.NewString()
	t.Cleanup(func() {
		require.NoError(t, r.Client.Del(context.Background(), key).Err())
	})

	runTemplateRepositoryContract(t, NewRedisTemplateRepository(r.Client, key))
}
