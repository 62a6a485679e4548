package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daveminay/cohoscrape/internal/archive"
	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/download"
	"github.com/daveminay/cohoscrape/internal/locator"
	"github.com/daveminay/cohoscrape/internal/registry"
)

const (
	report_pipeline_run          = "pipeline.run"
	report_pipeline_connectivity = "pipeline.connectivity"
)

var (
	// ErrConnectivity means the registry pre-check failed and nothing was extracted.
	ErrConnectivity = errors.New("cannot connect to the company registry, please check the connection and api key")
	// ErrUnexpected wraps any other failure that aborted an extraction.
	ErrUnexpected = errors.New("extraction failed unexpectedly")
)

// Registry is the subset of *registry.Client the pipeline uses.
type Registry interface {
	TestConnectivity(ctx context.Context, id registry.CompanyID) registry.Result[bool]
	FetchProfile(ctx context.Context, id registry.CompanyID) registry.Result[registry.Profile]
	FetchOfficers(ctx context.Context, id registry.CompanyID) registry.Result[registry.OfficerList]
	FetchControllingPersons(ctx context.Context, id registry.CompanyID) registry.Result[registry.ControllingPersonList]
	FetchFilingHistory(ctx context.Context, id registry.CompanyID) registry.Result[registry.FilingHistory]
}

type Locator interface {
	Locate(ctx context.Context, id registry.CompanyID) locator.Scan
}

type Downloader interface {
	FetchAll(ctx context.Context, id registry.CompanyID, links []locator.DocumentLink, dir string) []download.Document
}

type Stage string

const (
	StageConnectivity       Stage = "connectivity"
	StageProfile            Stage = "profile"
	StageOfficers           Stage = "officers"
	StageControllingPersons Stage = "controlling-persons"
	StageFilingHistory      Stage = "filing-history"
	StageLocate             Stage = "locate"
	StageDownload           Stage = "download"
	StageArchive            Stage = "archive"
)

var stagePercent = map[Stage]int{
	StageConnectivity:       10,
	StageProfile:            25,
	StageOfficers:           40,
	StageControllingPersons: 55,
	StageFilingHistory:      70,
	StageLocate:             80,
	StageDownload:           90,
	StageArchive:            100,
}

// Progress is reported after each stage completes.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

type Result struct {
	Archive     archive.Archive
	Records     archive.Records
	Scan        locator.Scan
	Documents   []download.Document
	ExtractedAt time.Time
}

// Pipeline runs one extraction in a fixed order: connectivity check,
// structured records, document scan, downloads, then the archive.
type Pipeline struct {
	registry  Registry
	locator   Locator
	downloads Downloader
	builder   archive.Builder
	time      chrono.API
	tel       telemetry.API
}

func NewPipeline(
	reg Registry,
	loc Locator,
	downloads Downloader,
	builder archive.Builder,
	time chrono.API,
	tel telemetry.API,
) *Pipeline {
	assert.NotNil(reg)
	assert.NotNil(loc)
	assert.NotNil(downloads)
	assert.NotNil(time)
	assert.NotNil(tel)

	return &Pipeline{
		registry:  reg,
		locator:   loc,
		downloads: downloads,
		builder:   builder,
		time:      time,
		tel:       telemetry.NewScopedAPI("extraction", tel),
	}
}

func valueOrNil[T any](res registry.Result[T]) *T {
	value, ok := res.Get()
	if !ok {
		return nil
	}
	return &value
}

// Run extracts company `id` using workDir for intermediate files. onStage
// may be nil. The only errors are ErrConnectivity and ErrUnexpected, every
// other failure is rendered into the archive.
func (p *Pipeline) Run(ctx context.Context, id registry.CompanyID, workDir string, onStage func(Progress)) (result Result, err error) {
	id = id.Normalize()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
			p.tel.ReportBroken(report_pipeline_run, err, string(id))
		}
	}()

	report := func(stage Stage, message string) {
		p.tel.ReportDebug("stage complete", string(id), string(stage))
		if onStage != nil {
			onStage(Progress{Stage: stage, Percent: stagePercent[stage], Message: message})
		}
	}

	conn := p.registry.TestConnectivity(ctx, id)
	if !conn.OK() {
		p.tel.ReportWarning(report_pipeline_connectivity, string(id), conn.Reason)
		return Result{}, fmt.Errorf("%w: %v", ErrConnectivity, conn.Reason)
	}
	report(StageConnectivity, "API connection successful")

	result.Records.Profile = valueOrNil(p.registry.FetchProfile(ctx, id))
	report(StageProfile, "Fetched company profile")
	result.Records.Officers = valueOrNil(p.registry.FetchOfficers(ctx, id))
	report(StageOfficers, "Fetched officers")
	result.Records.ControllingPersons = valueOrNil(p.registry.FetchControllingPersons(ctx, id))
	report(StageControllingPersons, "Fetched persons with significant control")
	result.Records.FilingHistory = valueOrNil(p.registry.FetchFilingHistory(ctx, id))
	report(StageFilingHistory, "Fetched filing history")

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	result.Scan = p.locator.Locate(ctx, id)
	report(StageLocate, fmt.Sprintf(
		"Found %d documents across %d pages",
		len(result.Scan.Links), result.Scan.PagesScanned,
	))

	result.Documents = p.downloads.FetchAll(ctx, id, result.Scan.Links, workDir)
	report(StageDownload, fmt.Sprintf("Attempted %d document downloads", len(result.Documents)))

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	result.ExtractedAt = p.time.Now()
	sections := archive.RenderSections(id, result.Records, result.Documents, result.Scan.MaxPage(), result.ExtractedAt)
	result.Archive, err = p.builder.Build(workDir, id, sections, result.Documents, result.ExtractedAt)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_run, err, string(id))
		return Result{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	report(StageArchive, "Archive complete")

	return result, nil
}
