// Package services contains the mapping and validation pipeline.
package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/logging"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// previewRows is the number of raw rows shown in a session view.
const previewRows = 3

// outputSuffix replaces the input extension in the exported filename.
const outputSuffix = "_clean.csv"

// Validator verifies the identifier field of a projected table.
type Validator interface {
	Validate(ctx context.Context, table *models.ProjectedTable, field, apiKey string) (*models.ProjectedTable, *models.ValidationReport, error)
}

// Pipeline holds the collaborators shared by every session.
type Pipeline struct {
	schema        *models.TargetSchema
	loader        *DataLoader
	validator     Validator
	defaultAPIKey string
	logger        *zap.Logger
}

// NewPipeline creates a Pipeline. validator may be nil, in which case
// verification is never run. defaultAPIKey is used when a process request
// carries no key of its own.
func NewPipeline(schema *models.TargetSchema, loader *DataLoader, validator Validator, defaultAPIKey string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		schema:        schema,
		loader:        loader,
		validator:     validator,
		defaultAPIKey: defaultAPIKey,
		logger:        logger.Named("pipeline"),
	}
}

// Schema returns the target schema sessions map onto.
func (p *Pipeline) Schema() *models.TargetSchema {
	return p.schema
}

// NewSession creates an empty session.
func (p *Pipeline) NewSession() *Session {
	return &Session{
		id:        uuid.New(),
		pipeline:  p,
		state:     models.SessionEmpty,
		updatedAt: time.Now(),
	}
}

// ProcessOptions controls a processing run.
type ProcessOptions struct {
	Verify bool
	APIKey string
}

// Session is one upload moving through Empty -> Loaded -> Mapped -> Processed.
// All methods are safe for concurrent use; operations on one session are
// serialized. A failed operation never advances the state.
type Session struct {
	mu       sync.Mutex
	id       uuid.UUID
	pipeline *Pipeline

	state     models.SessionState
	filename  string
	table     *models.SourceTable
	mapping   *MappingState
	result    *models.ProcessResult
	updatedAt time.Time
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current pipeline state.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load parses raw and replaces whatever the session held before with a fresh
// table and an empty mapping. On failure the session is unchanged.
func (s *Session) Load(filename string, raw []byte) error {
	table, err := s.pipeline.loader.Load(filename, raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.filename = filepath.Base(filename)
	s.table = table
	s.mapping = NewMappingState(s.pipeline.schema, table.Columns)
	s.result = nil
	s.transition(models.SessionLoaded)
	return nil
}

// Assign binds target to source.
func (s *Session) Assign(target, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return err
	}
	if err := s.mapping.Assign(target, source); err != nil {
		return err
	}
	s.edited()
	return nil
}

// Clear unsets target.
func (s *Session) Clear(target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return err
	}
	s.mapping.Clear(target)
	s.edited()
	return nil
}

// ApplyTemplate replaces the mapping with the template's pairs that fit the
// loaded table. Pairs naming unknown targets or absent columns are returned
// as skipped; the rest must form a valid mapping or nothing changes.
func (s *Session) ApplyTemplate(t *models.Template) ([]models.MappingPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return nil, err
	}

	valid, skipped := s.mapping.Filter(t.Pairs)
	if err := s.mapping.Replace(valid); err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Name, err)
	}
	s.edited()

	if len(skipped) > 0 {
		s.pipeline.logger.Info("Applied template with skipped pairs",
			zap.String("session_id", s.id.String()),
			zap.String("template", t.Name),
			zap.Int("skipped", len(skipped)))
	}
	return skipped, nil
}

// Suggest binds unset targets to similarly named columns and returns the
// bindings it made.
func (s *Session) Suggest() ([]models.MappingPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return nil, err
	}

	pairs := SuggestMapping(s.pipeline.schema, s.table.Columns, s.mapping.Snapshot())
	for _, p := range pairs {
		if err := s.mapping.Assign(p.Target, p.Source); err != nil {
			return nil, err
		}
	}
	if len(pairs) > 0 {
		s.edited()
	}
	return pairs, nil
}

// Mapping returns a copy of the current bindings.
func (s *Session) Mapping() (models.FieldMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return nil, err
	}
	return s.mapping.Snapshot(), nil
}

// Pairs returns the bindings as explicit pairs in schema order.
func (s *Session) Pairs() ([]models.MappingPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return nil, err
	}
	return s.mapping.Pairs(), nil
}

// Rename sets the filename the output name is derived from.
func (s *Session) Rename(filename string) error {
	name := strings.TrimSpace(filename)
	if name == "" {
		return fmt.Errorf("%w: filename must not be blank", apperrors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return err
	}
	s.filename = filepath.Base(name)
	if s.result != nil {
		s.result.Filename = outputName(s.filename)
	}
	s.updatedAt = time.Now()
	return nil
}

// OutputName returns the export filename: the input name with its extension
// replaced by "_clean.csv".
func (s *Session) OutputName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return outputName(s.filename)
}

// Process projects the table onto the schema and, when requested and a key is
// available, drops rows whose identifier does not verify as valid.
func (s *Session) Process(ctx context.Context, opts ProcessOptions) (*models.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTable(); err != nil {
		return nil, err
	}
	if missing := s.mapping.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrIncompleteMapping, strings.Join(missing, ", "))
	}

	result, err := s.run(ctx, opts)
	if err != nil {
		s.result = nil
		s.transition(models.SessionMapped)
		return nil, err
	}

	s.result = result
	s.transition(models.SessionProcessed)
	return result, nil
}

func (s *Session) run(ctx context.Context, opts ProcessOptions) (*models.ProcessResult, error) {
	p := s.pipeline
	projected, err := Project(s.table, s.mapping.Snapshot(), p.schema)
	if err != nil {
		return nil, err
	}

	result := &models.ProcessResult{
		Filename:  outputName(s.filename),
		InputRows: projected.Len(),
	}

	if opts.Verify {
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = p.defaultAPIKey
		}

		switch {
		case apiKey == "":
			p.logger.Warn("Verification requested without an API key, skipping",
				zap.String("session_id", s.id.String()))
		case p.validator == nil:
			p.logger.Warn("Verification requested but no validator is configured",
				zap.String("session_id", s.id.String()))
		default:
			p.logger.Debug("Verifying identifier field",
				zap.String("session_id", s.id.String()),
				zap.String("api_key", logging.MaskSecret(apiKey)))

			verified, report, err := p.validator.Validate(ctx, projected, p.schema.IdentifierField, apiKey)
			if err != nil {
				return nil, err
			}
			projected = verified
			result.Report = report
			result.Verified = report != nil
		}
	}

	result.Table = projected
	result.OutputRows = projected.Len()
	result.ProcessedAt = time.Now()

	p.logger.Info("Processed session",
		zap.String("session_id", s.id.String()),
		zap.Int("input_rows", result.InputRows),
		zap.Int("output_rows", result.OutputRows),
		zap.Bool("verified", result.Verified))

	return result, nil
}

// Result returns the retained processing result.
func (s *Session) Result() (*models.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.SessionProcessed {
		return nil, fmt.Errorf("%w: session has not been processed", apperrors.ErrInvalidState)
	}
	return s.result, nil
}

// Export writes the processed table as comma separated UTF-8 CSV with the
// schema columns as header. Unmapped and empty cells are both written empty.
func (s *Session) Export(w io.Writer) error {
	result, err := s.Result()
	if err != nil {
		return err
	}
	return WriteCSV(w, result.Table)
}

// WriteCSV writes table as CSV with a header row.
func WriteCSV(w io.Writer, table *models.ProjectedTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(table.Columns))
	for i, row := range table.Rows {
		for j, cell := range row {
			record[j] = ""
			if cell != nil {
				record[j] = *cell
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Discard drops the table, mapping and result.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filename = ""
	s.table = nil
	s.mapping = nil
	s.result = nil
	s.transition(models.SessionEmpty)
}

// View returns a snapshot of the session for clients.
func (s *Session) View() *models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &models.SessionView{
		ID:        s.id,
		State:     s.state,
		Mapping:   []models.MappingPair{},
		UpdatedAt: s.updatedAt,
	}
	if s.table == nil {
		return view
	}

	view.Filename = s.filename
	view.OutputName = outputName(s.filename)
	view.Columns = s.table.Columns
	view.RowCount = len(s.table.Rows)
	view.Preview = s.table.Preview(previewRows)
	view.Mapping = s.mapping.Pairs()
	view.Complete = s.mapping.IsComplete()
	view.Missing = s.mapping.Missing()
	view.Result = s.result

	view.AvailableSources = make(map[string][]string, len(s.pipeline.schema.Fields))
	for _, name := range s.pipeline.schema.Names() {
		view.AvailableSources[name] = s.mapping.AvailableSources(name)
	}
	return view
}

func (s *Session) requireTable() error {
	if s.table == nil {
		return fmt.Errorf("%w: no file loaded", apperrors.ErrInvalidState)
	}
	return nil
}

// edited records a mapping change. A retained result is stale after any edit.
func (s *Session) edited() {
	s.result = nil
	s.transition(models.SessionMapped)
}

func (s *Session) transition(to models.SessionState) {
	if s.state != to {
		s.pipeline.logger.Debug("Session state change",
			zap.String("session_id", s.id.String()),
			zap.String("from", string(s.state)),
			zap.String("to", string(to)))
	}
	s.state = to
	s.updatedAt = time.Now()
}

func outputName(filename string) string {
	if filename == "" {
		return ""
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + outputSuffix
}

// SessionManager owns the live sessions and expires idle ones.
type SessionManager struct {
	pipeline *Pipeline
	idleTTL  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
}

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

// NewSessionManager creates a manager. A non-positive idleTTL disables expiry.
func NewSessionManager(pipeline *Pipeline, idleTTL time.Duration, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		pipeline: pipeline,
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   logger.Named("sessions"),
		sessions: make(map[uuid.UUID]*sessionEntry),
	}
}

// Create registers a new empty session.
func (m *SessionManager) Create() *Session {
	session := m.pipeline.NewSession()

	m.mu.Lock()
	m.sessions[session.ID()] = &sessionEntry{session: session, lastUsed: m.now()}
	m.mu.Unlock()

	m.logger.Debug("Created session", zap.String("session_id", session.ID().String()))
	return session
}

// Get returns the session with id and marks it used.
func (m *SessionManager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrNotFound)
	}
	entry.lastUsed = m.now()
	return entry.session, nil
}

// Delete discards and forgets the session with id.
func (m *SessionManager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, apperrors.ErrNotFound)
	}
	entry.session.Discard()
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ExpireIdle removes sessions unused for longer than the idle TTL and
// returns how many were removed.
func (m *SessionManager) ExpireIdle() int {
	if m.idleTTL <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.idleTTL)
	var expired []*Session

	m.mu.Lock()
	for id, entry := range m.sessions {
		if entry.lastUsed.Before(cutoff) {
			expired = append(expired, entry.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.Discard()
	}
	if len(expired) > 0 {
		m.logger.Info("Expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run expires idle sessions periodically until ctx is cancelled.
func (m *SessionManager) Run(ctx context.Context) error {
	if m.idleTTL <= 0 {
		<-ctx.Done()
		return nil
	}

	interval := m.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.ExpireIdle()
		}
	}
}
