package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// redisTemplateRepository keeps every template as one field of a Redis hash,
// the field being the template name and the value its JSON document.
type redisTemplateRepository struct {
	client *redis.Client
	key    string
}

// NewRedisTemplateRepository creates a repository over the hash at key.
func NewRedisTemplateRepository(client *redis.Client, key string) TemplateRepository {
	return &redisTemplateRepository{client: client, key: key}
}

type redisTemplate struct {
	Pairs     []models.MappingPair `json:"pairs"`
	CreatedAt string               `json:"created_at"`
}

func (r *redisTemplateRepository) List(ctx context.Context) ([]*models.Template, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]*models.Template, 0, len(all))
	for name, value := range all {
		t, err := decodeRedisTemplate(name, value)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (r *redisTemplateRepository) Get(ctx context.Context, name string) (*models.Template, error) {
	value, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return decodeRedisTemplate(name, value)
}

func (r *redisTemplateRepository) Create(ctx context.Context, t *models.Template) error {
	pairs := t.Pairs
	if pairs == nil {
		pairs = []models.MappingPair{}
	}
	data, err := json.Marshal(redisTemplate{
		Pairs:     pairs,
		CreatedAt: t.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	created, err := r.client.HSetNX(ctx, r.key, t.Name, data).Result()
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	if !created {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *redisTemplateRepository) Delete(ctx context.Context, name string) error {
	n, err := r.client.HDel(ctx, r.key, name).Result()
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func decodeRedisTemplate(name, value string) (*models.Template, error) {
	var doc redisTemplate
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if doc.Pairs == nil {
		doc.Pairs = []models.MappingPair{}
	}
	return &models.Template{Name: name, Pairs: doc.Pairs, CreatedAt: createdAt}, nil
}
