package download

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/locator"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/webclient"
)

const (
	report_manager_fetch     = "manager.fetch"
	report_manager_fetch_all = "manager.fetch-all"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultDelay   = time.Second
)

// Document is the outcome of one download attempt.
type Document struct {
	Path string
	Link locator.DocumentLink
	OK   bool
	// Err is set when OK is false.
	Err error
}

// FileName is the archive name of the n-th (1-based) located document.
func FileName(n int, id registry.CompanyID) string {
	return fmt.Sprintf("filing_document_%d_%s.pdf", n, id.Normalize())
}

type Options struct {
	Timeout time.Duration
	// Delay is the pause between consecutive downloads, negative disables it.
	Delay time.Duration
}

type Manager struct {
	web  webclient.Client
	opts Options
	time chrono.API
	tel  telemetry.API
}

func NewManager(web webclient.Client, opts Options, time chrono.API, tel telemetry.API) *Manager {
	assert.NotNil(web.Http)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch {
	case opts.Delay == 0:
		opts.Delay = DefaultDelay
	case opts.Delay < 0:
		opts.Delay = 0
	}

	return &Manager{
		web:  web,
		opts: opts,
		time: time,
		tel:  telemetry.NewScopedAPI("download", tel),
	}
}

// Fetch downloads one document and writes it to path. Nothing is written
// unless the response is a 200.
func (m *Manager) Fetch(ctx context.Context, link locator.DocumentLink, path string) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	res, err := m.web.Http.R().
		SetContext(ctx).
		SetHeader("accept", "application/pdf,*/*;q=0.8").
		Get(link.URL)
	if err != nil {
		return err
	}
	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: %s", link.URL, res.Status())
	}

	err = os.WriteFile(path, res.Body(), 0600)
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// FetchAll downloads every link into dir, one at a time, pausing between
// downloads. The result has one Document per link in the same order, a
// failed download never stops the remaining ones.
func (m *Manager) FetchAll(ctx context.Context, id registry.CompanyID, links []locator.DocumentLink, dir string) []Document {
	out := make([]Document, 0, len(links))
	succeeded := 0

	for i, link := range links {
		if i > 0 {
			err := m.time.Pause(ctx, m.opts.Delay)
			if err != nil {
				// a cancelled run still reports every remaining link as failed
				for _, rest := range links[i:] {
					out = append(out, Document{Link: rest, Err: err})
				}
				break
			}
		}

		doc := Document{
			Path: filepath.Join(dir, FileName(i+1, id)),
			Link: link,
		}
		err := m.fetchIsolated(ctx, link, doc.Path)
		if err != nil {
			doc.Err = err
			m.tel.ReportWarning(report_manager_fetch, link.URL, link.Page, err)
		} else {
			doc.OK = true
			succeeded++
		}
		out = append(out, doc)
	}

	m.tel.ReportCount(report_manager_fetch_all, int64(succeeded))
	return out
}

func (m *Manager) fetchIsolated(ctx context.Context, link locator.DocumentLink, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while downloading: %v", r)
			m.tel.ReportBroken(report_manager_fetch, err)
		}
	}()
	return m.Fetch(ctx, link, path)
}
