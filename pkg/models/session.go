package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the pipeline position of an upload session.
type SessionState string

const (
	SessionEmpty     SessionState = "empty"
	SessionLoaded    SessionState = "loaded"
	SessionMapped    SessionState = "mapped"
	SessionProcessed SessionState = "processed"
)

// ProcessResult is the retained output of a successful processing run.
type ProcessResult struct {
	Table       *ProjectedTable   `json:"-"`
	Filename    string            `json:"filename"`
	InputRows   int               `json:"input_rows"`
	OutputRows  int               `json:"output_rows"`
	Verified    bool              `json:"verified"`
	Report      *ValidationReport `json:"report,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// SessionView is the read-only snapshot of a session returned to clients.
type SessionView struct {
	ID               uuid.UUID           `json:"id"`
	State            SessionState        `json:"state"`
	Filename         string              `json:"filename,omitempty"`
	OutputName       string              `json:"output_name,omitempty"`
	Columns          []string            `json:"columns,omitempty"`
	RowCount         int                 `json:"row_count"`
	Preview          [][]string          `json:"preview,omitempty"`
	Mapping          []MappingPair       `json:"mapping"`
	AvailableSources map[string][]string `json:"available_sources,omitempty"`
	Complete         bool                `json:"complete"`
	Missing          []string            `json:"missing,omitempty"`
	Result           *ProcessResult      `json:"result,omitempty"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
