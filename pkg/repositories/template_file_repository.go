package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/jsonutil"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

const templateFileExt = ".json"

// templateFile is the on-disk document. Files that lack "pairs" are read as a
// flat {"Target": "Source"} object, the layout older exports used.
type templateFile struct {
	Name      string               `json:"name"`
	Pairs     []models.MappingPair `json:"pairs"`
	CreatedAt string               `json:"created_at,omitempty"`
}

// fileTemplateRepository stores one JSON document per template in a directory.
type fileTemplateRepository struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewFileTemplateRepository creates a repository rooted at dir. The directory
// is created on first write.
func NewFileTemplateRepository(dir string, logger *zap.Logger) TemplateRepository {
	return &fileTemplateRepository{
		dir:    dir,
		logger: logger.Named("template-files"),
	}
}

func (r *fileTemplateRepository) path(name string) string {
	return filepath.Join(r.dir, name+templateFileExt)
}

func (r *fileTemplateRepository) List(ctx context.Context) ([]*models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []*models.Template{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]*models.Template, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != templateFileExt {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), templateFileExt)
		t, err := r.read(name)
		if err != nil {
			r.logger.Warn("Skipping unreadable template", zap.String("name", name), zap.Error(err))
			continue
		}
		templates = append(templates, t)
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (r *fileTemplateRepository) Get(ctx context.Context, name string) (*models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.ErrNotFound
	}
	return t, err
}

func (r *fileTemplateRepository) Create(ctx context.Context, t *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	pairs := t.Pairs
	if pairs == nil {
		pairs = []models.MappingPair{}
	}
	data, err := json.MarshalIndent(templateFile{
		Name:      t.Name,
		Pairs:     pairs,
		CreatedAt: t.CreatedAt.UTC().Format(timeLayout),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	f, err := os.OpenFile(r.path(t.Name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return apperrors.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create template file: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write template file: %w", err)
	}
	return f.Close()
}

func (r *fileTemplateRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

func (r *fileTemplateRepository) read(name string) (*models.Template, error) {
	path := r.path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("template %s is not a JSON object: %w", name, err)
	}

	t := &models.Template{Name: name}
	if _, ok := probe["pairs"]; ok {
		var doc templateFile
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		t.Pairs = doc.Pairs
		t.CreatedAt, _ = parseTime(doc.CreatedAt)
	} else {
		legacy, err := jsonutil.FlexibleStringMap(data)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		targets := make([]string, 0, len(legacy))
		for target := range legacy {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		t.Pairs = models.FieldMapping(legacy).Pairs(targets)
	}

	if t.CreatedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			t.CreatedAt = info.ModTime().UTC()
		}
	}
	if t.Pairs == nil {
		t.Pairs = []models.MappingPair{}
	}
	return t, nil
}
