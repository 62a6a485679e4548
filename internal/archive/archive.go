package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/download"
	"github.com/daveminay/cohoscrape/internal/registry"

	"github.com/klauspost/compress/zip"
)

const report_builder_build = "builder.build"

// TextSectionCount is the number of text files in every archive.
const TextSectionCount = 5

// summarizedSections is what the summary reports as created: the text files
// written before it, so the summary does not count itself.
const summarizedSections = TextSectionCount - 1

// Records holds the structured data of one extraction. A nil field means the
// registry could not provide that record.
type Records struct {
	Profile            *registry.Profile
	Officers           *registry.OfficerList
	ControllingPersons *registry.ControllingPersonList
	FilingHistory      *registry.FilingHistory
}

// Sections are the rendered text files, in archive order.
type Sections struct {
	Overview           string
	Officers           string
	ControllingPersons string
	FilingHistory      string
	Summary            string
}

// RenderSections renders every text section of an extraction. The download
// log is appended to the filing history.
func RenderSections(id registry.CompanyID, records Records, docs []download.Document, maxPage int, extractedAt time.Time) Sections {
	downloaded := 0
	for _, d := range docs {
		if d.OK {
			downloaded++
		}
	}

	return Sections{
		Overview:           RenderProfile(records.Profile),
		Officers:           RenderOfficers(records.Officers),
		ControllingPersons: RenderControllingPersons(records.ControllingPersons),
		FilingHistory:      RenderFilingHistory(records.FilingHistory) + RenderDownloadLog(docs),
		Summary: RenderSummary(Summary{
			CompanyID:   id,
			ExtractedAt: extractedAt,
			TextFiles:   summarizedSections,
			Downloaded:  downloaded,
			MaxPage:     maxPage,
		}),
	}
}

type textFile struct {
	name     string
	contents string
}

func (s Sections) files(id registry.CompanyID) []textFile {
	return []textFile{
		{name: fmt.Sprintf("%s_overview.txt", id), contents: s.Overview},
		{name: fmt.Sprintf("%s_officers.txt", id), contents: s.Officers},
		{name: fmt.Sprintf("%s_psc.txt", id), contents: s.ControllingPersons},
		{name: fmt.Sprintf("%s_filing_history.txt", id), contents: s.FilingHistory},
		{name: fmt.Sprintf("%s_summary.txt", id), contents: s.Summary},
	}
}

// FileName is the name the archive is offered for download as.
func FileName(id registry.CompanyID) string {
	return fmt.Sprintf("company_%s_data.zip", id.Normalize())
}

type Archive struct {
	Bytes []byte
	// Count is the number of text files plus downloaded documents.
	Count   int
	Entries []string
}

type Builder struct {
	tel telemetry.API
}

func NewBuilder(tel telemetry.API) Builder {
	assert.NotNil(tel)
	return Builder{tel: telemetry.NewScopedAPI("archive", tel)}
}

// Build writes the text sections into dir and packs them, followed by every
// successfully downloaded document in download order, into a deflated zip.
// Every entry is stamped with `modified` so the same inputs give the same bytes.
func (b Builder) Build(dir string, id registry.CompanyID, sections Sections, docs []download.Document, modified time.Time) (Archive, error) {
	id = id.Normalize()
	paths := []string{}
	for _, f := range sections.files(id) {
		path := filepath.Join(dir, f.name)
		err := os.WriteFile(path, []byte(f.contents), 0600)
		if err != nil {
			b.tel.ReportBroken(report_builder_build, err)
			return Archive{}, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	for _, d := range docs {
		if d.OK {
			paths = append(paths, d.Path)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := make([]string, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		err := addFile(zw, path, name, modified)
		if err != nil {
			b.tel.ReportBroken(report_builder_build, err)
			return Archive{}, fmt.Errorf("add %s to archive: %w", name, err)
		}
		entries = append(entries, name)
	}
	err := zw.Close()
	if err != nil {
		b.tel.ReportBroken(report_builder_build, err)
		return Archive{}, err
	}

	b.tel.ReportCount(report_builder_build, int64(len(entries)))
	return Archive{
		Bytes:   buf.Bytes(),
		Count:   len(entries),
		Entries: entries,
	}, nil
}

func addFile(zw *zip.Writer, path, name string, modified time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
