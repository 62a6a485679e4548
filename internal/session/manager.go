package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/daveminay/cohoscrape/internal/archive"
	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/extraction"
	"github.com/daveminay/cohoscrape/internal/gate"
	"github.com/daveminay/cohoscrape/internal/registry"

	"github.com/google/uuid"
)

const (
	report_manager_persist = "manager.persist"
	report_manager_extract = "manager.extract"
	report_manager_sweep   = "manager.sweep"
)

// Runner runs the extraction pipeline, *extraction.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, id registry.CompanyID, workDir string, onStage func(extraction.Progress)) (extraction.Result, error)
}

// Searcher finds companies by name, *registry.Client implements it.
type Searcher interface {
	SearchByName(ctx context.Context, term string) registry.Result[[]registry.CompanySummary]
}

type Options struct {
	// TempRoot is where per-session work directories are created, defaults
	// to os.TempDir().
	TempRoot string
	// ClaimLease bounds how long an extraction run holds its session
	// against other callers, defaults to 30 minutes. A run that outlives
	// it (or a crashed instance) lets the next caller take over.
	ClaimLease time.Duration
}

const defaultClaimLease = 30 * time.Minute

// Manager drives the session state machine:
//
//	idle -> searching -> results_shown -> extracting -> complete
//	                                                 -> error
//
// Every transition is persisted before the next step runs, so any caller
// (an http handler, a cli invocation) can pick up where the last one left off.
type Manager struct {
	store    Store
	runner   Runner
	searcher Searcher
	gate     gate.Gate
	time     chrono.API
	tel      telemetry.API
	opts     Options
}

func NewManager(
	store Store,
	runner Runner,
	searcher Searcher,
	g gate.Gate,
	time chrono.API,
	tel telemetry.API,
	opts Options,
) *Manager {
	assert.NotNil(store)
	assert.NotNil(runner)
	assert.NotNil(searcher)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.ClaimLease <= 0 {
		opts.ClaimLease = defaultClaimLease
	}
	return &Manager{
		store:    store,
		runner:   runner,
		searcher: searcher,
		gate:     g,
		time:     time,
		tel:      telemetry.NewScopedAPI("session", tel),
		opts:     opts,
	}
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.time.Now()
	err := m.store.Put(ctx, *s)
	if err != nil {
		m.tel.ReportBroken(report_manager_persist, err, s.ID)
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Create starts a new idle session.
func (m *Manager) Create(ctx context.Context) (Session, error) {
	s := fresh(uuid.NewString(), m.time.Now())
	err := m.save(ctx, &s)
	return s, err
}

func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.store.Get(ctx, id)
}

// Authorize checks password against the gate and marks the session id as
// authorized. The flag survives Reset but not Logout.
func (m *Manager) Authorize(ctx context.Context, id, password string) error {
	err := m.gate.Verify(password)
	if err != nil {
		return err
	}
	return m.store.Authorize(ctx, id, m.time.Now())
}

func (m *Manager) Authorized(ctx context.Context, id string) (bool, error) {
	return m.store.Authorized(ctx, id)
}

// load fetches a session the caller is authorized to act on.
func (m *Manager) load(ctx context.Context, id string) (Session, error) {
	authorized, err := m.store.Authorized(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !authorized {
		return Session{}, ErrUnauthorized
	}
	return m.store.Get(ctx, id)
}

func invalid(s Session, action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.Stage)
}

// Search looks up companies by name and moves the session to results_shown,
// zero results included. A session left in searching by an interrupted
// caller may search again.
func (m *Manager) Search(ctx context.Context, id, term string) (Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.Stage != StageIdle && s.Stage != StageSearching {
		return s, invalid(s, "search")
	}

	s.Stage = StageSearching
	s.SearchTerm = term
	err = m.save(ctx, &s)
	if err != nil {
		return s, err
	}

	res := m.searcher.SearchByName(ctx, term)
	s.Results = []registry.CompanySummary{}
	s.SearchUnavailable = !res.OK()
	if res.OK() {
		s.Results = res.Value
	}
	s.Stage = StageResultsShown
	err = m.save(ctx, &s)
	return s, err
}

// Select binds the target company and moves the session to extracting. It
// is accepted from results_shown (picking a search result) and from idle
// (entering a company number directly).
func (m *Manager) Select(ctx context.Context, id string, company registry.CompanyID) (Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.Stage != StageResultsShown && s.Stage != StageIdle {
		return s, invalid(s, "select a company")
	}
	company = company.Normalize()
	if company == "" {
		return s, ErrInvalidCompany
	}

	s.Stage = StageExtracting
	s.Target = company
	s.Progress = nil
	s.Error = ""
	err = m.save(ctx, &s)
	return s, err
}

// checkExtract decides what Extract does with s: run (nil, false), return
// it as is (nil, true) or refuse.
func checkExtract(s Session) (done bool, err error) {
	switch s.Stage {
	case StageComplete:
		return true, nil
	case StageError:
		return true, fmt.Errorf("%w: %s", ErrExtractionFailed, s.Error)
	case StageExtracting:
		return false, nil
	}
	return true, invalid(s, "extract")
}

// Extract runs the pipeline for the bound company. Once the session is
// complete it only returns the stored archive, so repeated calls never touch
// the network. A failed session returns its stored error until reset.
//
// The run is claimed through the store, and the session is read again once
// the claim is held, so a caller that raced a finished run sees its result
// instead of starting another.
func (m *Manager) Extract(ctx context.Context, id string) (Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	done, err := checkExtract(s)
	if done {
		return s, err
	}

	claimed, err := m.store.Claim(ctx, id, m.time.Now(), m.opts.ClaimLease)
	if err != nil {
		m.tel.ReportBroken(report_manager_persist, err, id)
		return s, fmt.Errorf("claim session: %w", err)
	}
	if !claimed {
		return s, ErrBusy
	}
	defer func() {
		err := m.store.Unclaim(context.WithoutCancel(ctx), id)
		if err != nil {
			m.tel.ReportBroken(report_manager_persist, err, id)
		}
	}()

	s, err = m.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	done, err = checkExtract(s)
	if done {
		return s, err
	}

	workDir, err := os.MkdirTemp(m.opts.TempRoot, "cohoscrape-")
	if err != nil {
		m.tel.ReportBroken(report_manager_extract, err)
		return m.fail(ctx, s, fmt.Errorf("%w: %w", extraction.ErrUnexpected, err))
	}
	defer os.RemoveAll(workDir)

	result, err := m.runner.Run(ctx, s.Target, workDir, func(p extraction.Progress) {
		s.Progress = &p
		// progress is best-effort, a failed write is already reported
		_ = m.save(ctx, &s)
	})
	if err != nil {
		return m.fail(ctx, s, err)
	}

	s.Stage = StageComplete
	s.Archive = result.Archive.Bytes
	s.ArchiveName = archive.FileName(s.Target)
	s.FileCount = result.Archive.Count
	err = m.save(ctx, &s)
	return s, err
}

func userMessage(err error) string {
	if errors.Is(err, extraction.ErrConnectivity) {
		return extraction.ErrConnectivity.Error()
	}
	return extraction.ErrUnexpected.Error()
}

func (m *Manager) fail(ctx context.Context, s Session, cause error) (Session, error) {
	m.tel.ReportWarning(report_manager_extract, s.ID, string(s.Target), cause)

	s.Stage = StageError
	s.Error = userMessage(cause)
	s.Archive = nil
	saveErr := m.save(ctx, &s)
	return s, errors.Join(fmt.Errorf("%w: %w", ErrExtractionFailed, cause), saveErr)
}

// Reset clears everything but the session id and its authorization. It is
// refused while a search or extraction is in flight.
func (m *Manager) Reset(ctx context.Context, id string) (Session, error) {
	s, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s = fresh(id, m.time.Now())
		return s, m.save(ctx, &s)
	}
	if err != nil {
		return Session{}, err
	}
	switch s.Stage {
	case StageIdle, StageResultsShown, StageComplete, StageError:
	default:
		return s, invalid(s, "reset")
	}

	s = fresh(id, m.time.Now())
	err = m.save(ctx, &s)
	return s, err
}

// Logout drops the session and its authorization.
func (m *Manager) Logout(ctx context.Context, id string) error {
	return errors.Join(
		m.store.Delete(ctx, id),
		m.store.Deauthorize(ctx, id),
	)
}

// Sweep removes sessions that have not been touched for olderThan.
func (m *Manager) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	removed, err := m.store.DeleteBefore(ctx, m.time.Now().Add(-olderThan))
	if err != nil {
		m.tel.ReportBroken(report_manager_sweep, err)
		return 0, err
	}
	m.tel.ReportCount(report_manager_sweep, int64(removed))
	return removed, nil
}
