package extraction

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daveminay/cohoscrape/internal/archive"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/download"
	"github.com/daveminay/cohoscrape/internal/locator"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/webclient"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type upstream struct {
	api      *httptest.Server
	web      *httptest.Server
	requests atomic.Int64
}

func newUpstream(t *testing.T, api, web http.Handler) *upstream {
	t.Helper()
	u := &upstream{}
	count := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u.requests.Add(1)
			h.ServeHTTP(w, r)
		})
	}
	u.api = httptest.NewServer(count(api))
	u.web = httptest.NewServer(count(web))
	t.Cleanup(u.api.Close)
	t.Cleanup(u.web.Close)
	return u
}

func newPipeline(t *testing.T, u *upstream) (*Pipeline, *chrono.Fake) {
	t.Helper()
	rec := &telemetry.Recorder{}
	clock := chrono.NewFake(time.Date(2024, 6, 1, 13, 5, 9, 0, time.UTC))

	reg, err := registry.NewClient(registry.Options{
		BaseURL:   u.api.URL,
		APIKey:    "key",
		RateLimit: rate.Inf,
	}, rec)
	require.NoError(t, err)

	web, err := webclient.New(webclient.Options{BaseURL: u.web.URL}, rec)
	require.NoError(t, err)

	return NewPipeline(
		reg,
		locator.NewLocator(web, locator.Options{}, clock, rec),
		download.NewManager(web, download.Options{}, clock, rec),
		archive.NewBuilder(rec),
		clock,
		rec,
	), clock
}

// tescoAPI serves a profile, three filings and 404s for officers and PSCs.
func tescoAPI() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/company/00006245", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"company_name": "TESCO PLC", "company_number": "00006245", "company_status": "active"}`))
	})
	mux.HandleFunc("/company/00006245/officers", http.NotFound)
	mux.HandleFunc("/company/00006245/persons-with-significant-control", http.NotFound)
	mux.HandleFunc("/company/00006245/filing-history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_count": 3, "items": [
			{"date": "2024-01-01", "description": "a", "category": "accounts", "type": "AA"},
			{"date": "2023-01-01", "description": "b", "category": "accounts", "type": "AA"},
			{"date": "2022-01-01", "description": "c", "category": "accounts", "type": "AA"}
		]}`))
	})
	return mux
}

func zipEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(body)
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	web := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/company/00006245/officers">Officers</a></body></html>`))
	})
	u := newUpstream(t, tescoAPI(), web)
	pipeline, _ := newPipeline(t, u)

	progress := []Stage{}
	result, err := pipeline.Run(context.Background(), "00006245", t.TempDir(), func(p Progress) {
		progress = append(progress, p.Stage)
	})
	require.NoError(t, err)

	require.Equal(t, []Stage{
		StageConnectivity,
		StageProfile,
		StageOfficers,
		StageControllingPersons,
		StageFilingHistory,
		StageLocate,
		StageDownload,
		StageArchive,
	}, progress)

	require.Equal(t, 5, result.Archive.Count)
	entries := zipEntries(t, result.Archive.Bytes)
	require.Len(t, entries, 5)

	require.Contains(t, entries["00006245_overview.txt"], "Company Name: TESCO PLC\n")
	require.Contains(t, entries["00006245_officers.txt"], "No officers data available")
	require.Contains(t, entries["00006245_psc.txt"], "No PSC data available")

	filings := entries["00006245_filing_history.txt"]
	require.Contains(t, filings, "Total Filings: 3\n")
	require.Equal(t, 3, strings.Count(filings, "\nFiling "))
	require.True(t, strings.HasSuffix(filings, "\n=== PDF DOCUMENTS ===\n\n"))

	summary := entries["00006245_summary.txt"]
	require.Contains(t, summary, "PDFs Downloaded: 0\n")
	require.Contains(t, summary, "Files Created: 4 text files\n")
	require.Contains(t, summary, "Extraction Date: 2024-06-01 14:05:09\n")
}

func TestRunWithDocuments(t *testing.T) {
	web := http.NewServeMux()
	web.HandleFunc("/company/00006245/filing-history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`
			<a href="/docs/1.pdf">View PDF</a>
			<a href="/docs/2.pdf">View PDF</a>
			<a href="/docs/3.pdf">View PDF</a>`))
	})
	web.HandleFunc("/docs/1.pdf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("%PDF-1")) })
	web.HandleFunc("/docs/2.pdf", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	web.HandleFunc("/docs/3.pdf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("%PDF-3")) })

	u := newUpstream(t, tescoAPI(), web)
	pipeline, clock := newPipeline(t, u)

	result, err := pipeline.Run(context.Background(), "00006245", t.TempDir(), nil)
	require.NoError(t, err)

	require.Equal(t, 7, result.Archive.Count)
	require.Equal(t, []string{
		"00006245_overview.txt",
		"00006245_officers.txt",
		"00006245_psc.txt",
		"00006245_filing_history.txt",
		"00006245_summary.txt",
		"filing_document_1_00006245.pdf",
		"filing_document_3_00006245.pdf",
	}, result.Archive.Entries)

	entries := zipEntries(t, result.Archive.Bytes)
	require.Equal(t, "%PDF-3", entries["filing_document_3_00006245.pdf"])
	require.Contains(t, entries["00006245_filing_history.txt"], "Failed: View PDF (Page 1)")
	require.Contains(t, entries["00006245_summary.txt"], "PDFs Downloaded: 2\n")
	// two pauses between the three downloads, no page pauses
	require.Len(t, clock.Pauses(), 2)
}

func TestRunConnectivityFailure(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	u := newUpstream(t, api, http.NotFoundHandler())
	pipeline, _ := newPipeline(t, u)

	called := false
	_, err := pipeline.Run(context.Background(), "00006245", t.TempDir(), func(Progress) { called = true })
	require.ErrorIs(t, err, ErrConnectivity)
	require.False(t, called)
	require.Equal(t, int64(1), u.requests.Load())
}

type panickingLocator struct{}

func (panickingLocator) Locate(context.Context, registry.CompanyID) locator.Scan {
	panic("markup exploded")
}

func TestRunRecoversPanic(t *testing.T) {
	u := newUpstream(t, tescoAPI(), http.NotFoundHandler())
	pipeline, _ := newPipeline(t, u)
	pipeline.locator = panickingLocator{}

	_, err := pipeline.Run(context.Background(), "00006245", t.TempDir(), nil)
	require.ErrorIs(t, err, ErrUnexpected)
}
