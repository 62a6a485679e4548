package session

import (
	"errors"
	"time"

	"github.com/daveminay/cohoscrape/internal/extraction"
	"github.com/daveminay/cohoscrape/internal/registry"
)

type Stage string

const (
	StageIdle         Stage = "idle"
	StageSearching    Stage = "searching"
	StageResultsShown Stage = "results_shown"
	StageExtracting   Stage = "extracting"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrInvalidTransition = errors.New("action not allowed in the current session stage")
	ErrBusy              = errors.New("an extraction is already running for this session")
	ErrUnauthorized      = errors.New("session is not authorized")
	ErrInvalidCompany    = errors.New("company number is required")
	ErrExtractionFailed  = errors.New("extraction failed")
)

// Session is the durable state of one user's extraction workflow. It is
// rebuilt from the store on every interaction.
type Session struct {
	ID         string                    `json:"id"`
	Stage      Stage                     `json:"stage"`
	SearchTerm string                    `json:"search_term,omitempty"`
	Results    []registry.CompanySummary `json:"results,omitempty"`
	// SearchUnavailable is set when the registry could not answer the
	// search, the results are then empty rather than missing.
	SearchUnavailable bool                 `json:"search_unavailable,omitempty"`
	Target            registry.CompanyID   `json:"target,omitempty"`
	Progress          *extraction.Progress `json:"progress,omitempty"`
	// Archive is stored outside the json document.
	Archive     []byte    `json:"-"`
	ArchiveName string    `json:"archive_name,omitempty"`
	FileCount   int       `json:"file_count,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// fresh returns an idle session that keeps only the identifier.
func fresh(id string, now time.Time) Session {
	return Session{
		ID:        id,
		Stage:     StageIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
