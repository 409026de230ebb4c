package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
	"github.com/ekaya-inc/cleanlist/pkg/services"
)

const testLeadsCSV = "Full Name,E-mail Address,Org\n" +
	"Ada,ada@example.com,Analytical\n" +
	"Bob,bad@example,Acme\n" +
	"Cy,cy@example.com,\n"

func handlerTestSchema() *models.TargetSchema {
	return &models.TargetSchema{
		IdentifierField: "Email",
		Fields: []models.SchemaField{
			{Name: "Name"},
			{Name: "Email", Required: true},
			{Name: "Company"},
		},
	}
}

// mockVerifier answers from a fixed table; unknown addresses are valid.
type mockVerifier struct {
	mu       sync.Mutex
	outcomes map[string]models.ValidationOutcome
	keys     []string
}

func (m *mockVerifier) Verify(ctx context.Context, apiKey, email string) (models.ValidationOutcome, error) {
	m.mu.Lock()
	m.keys = append(m.keys, apiKey)
	m.mu.Unlock()
	if outcome, ok := m.outcomes[email]; ok {
		return outcome, nil
	}
	return models.OutcomeValid, nil
}

// mockTemplateService is an in-memory TemplateService.
type mockTemplateService struct {
	mu        sync.Mutex
	templates map[string]*models.Template
	err       error
}

func newMockTemplateService() *mockTemplateService {
	return &mockTemplateService{templates: make(map[string]*models.Template)}
}

func (m *mockTemplateService) List(ctx context.Context) ([]*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*models.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockTemplateService) Save(ctx context.Context, name string, pairs []models.MappingPair) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := services.SanitizeTemplateName(name)
	if key == "" {
		return nil, apperrors.ErrTemplate
	}
	if _, ok := m.templates[key]; ok {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTemplate, apperrors.ErrConflict)
	}
	t := &models.Template{Name: key, Pairs: pairs, CreatedAt: time.Now()}
	m.templates[key] = t
	return t, nil
}

func (m *mockTemplateService) Load(ctx context.Context, name string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTemplate, apperrors.ErrNotFound)
	}
	return t, nil
}

func (m *mockTemplateService) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[name]; !ok {
		return fmt.Errorf("%w: %w", apperrors.ErrTemplate, apperrors.ErrNotFound)
	}
	delete(m.templates, name)
	return nil
}

// testServer wires every API handler onto one mux.
type testServer struct {
	mux       *http.ServeMux
	sessions  *services.SessionManager
	templates *mockTemplateService
	verifier  *mockVerifier
}

func newTestServer(t *testing.T, defaultAPIKey string) *testServer {
	t.Helper()
	logger := zap.NewNop()

	verifier := &mockVerifier{outcomes: map[string]models.ValidationOutcome{
		"bad@example": models.OutcomeInvalid,
	}}
	validator := services.NewEmailValidator(verifier,
		services.NewWorkerPool(services.WorkerPoolConfig{MaxConcurrent: 2}, logger),
		services.ValidatorOptions{}, logger)
	pipeline := services.NewPipeline(handlerTestSchema(), services.NewDataLoader(logger), validator, defaultAPIKey, logger)
	sessions := services.NewSessionManager(pipeline, time.Hour, logger)
	cookie := NewSessionCookie("test-secret", false, time.Hour)
	templates := newMockTemplateService()

	mux := http.NewServeMux()
	NewSessionsHandler(sessions, cookie, 1<<20, logger).RegisterRoutes(mux)
	NewTemplatesHandler(templates, sessions, cookie, logger).RegisterRoutes(mux)

	return &testServer{mux: mux, sessions: sessions, templates: templates, verifier: verifier}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

// upload posts content as a multipart file and returns the created session view.
func (s *testServer) upload(t *testing.T, filename, content string) (*httptest.ResponseRecorder, *models.SessionView) {
	t.Helper()
	rec := s.do(newUploadRequest(t, filename, content))
	if rec.Code != http.StatusCreated {
		return rec, nil
	}
	var view models.SessionView
	decodeData(t, rec, &view)
	return rec, &view
}

func newUploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// decodeData unwraps an ApiResponse envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	require.True(t, envelope.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}
