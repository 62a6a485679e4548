package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/locator"
	"github.com/daveminay/cohoscrape/internal/webclient"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, handler http.Handler, opts Options) (*Manager, string, *chrono.Fake, *telemetry.Recorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rec := &telemetry.Recorder{}
	web, err := webclient.New(webclient.Options{BaseURL: server.URL}, rec)
	require.NoError(t, err)

	clock := chrono.NewFake(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	return NewManager(web, opts, clock, rec), server.URL, clock, rec
}

func TestFileName(t *testing.T) {
	require.Equal(t, "filing_document_3_SC123456.pdf", FileName(3, "sc123456"))
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/pdf")
		w.Write([]byte("%PDF-a"))
	})
	mux.HandleFunc("/b.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/c.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/pdf")
		w.Write([]byte("%PDF-c"))
	})

	manager, base, clock, rec := setup(t, mux, Options{})
	dir := t.TempDir()

	links := []locator.DocumentLink{
		{URL: base + "/a.pdf", Description: "a", Page: 1},
		{URL: base + "/b.pdf", Description: "b", Page: 1},
		{URL: base + "/c.pdf", Description: "c", Page: 2},
	}
	docs := manager.FetchAll(context.Background(), "00006245", links, dir)
	require.Len(t, docs, 3)

	require.True(t, docs[0].OK)
	require.Equal(t, filepath.Join(dir, "filing_document_1_00006245.pdf"), docs[0].Path)
	contents, err := os.ReadFile(docs[0].Path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-a", string(contents))

	require.False(t, docs[1].OK)
	require.Error(t, docs[1].Err)
	require.NoFileExists(t, filepath.Join(dir, "filing_document_2_00006245.pdf"))

	require.True(t, docs[2].OK)
	require.Equal(t, filepath.Join(dir, "filing_document_3_00006245.pdf"), docs[2].Path)
	require.Equal(t, links[2], docs[2].Link)

	require.Equal(t, []time.Duration{DefaultDelay, DefaultDelay}, clock.Pauses())
	require.Len(t, rec.Find(telemetry.KindWarning, report_manager_fetch), 1)
	counts := rec.Find(telemetry.KindCount, report_manager_fetch_all)
	require.Len(t, counts, 1)
	require.Equal(t, int64(2), counts[0].Count)
}

func TestFetchTimeout(t *testing.T) {
	manager, base, _, _ := setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}), Options{Timeout: 50 * time.Millisecond})

	path := filepath.Join(t.TempDir(), "x.pdf")
	err := manager.Fetch(context.Background(), locator.DocumentLink{URL: base + "/slow.pdf"}, path)
	require.Error(t, err)
	require.NoFileExists(t, path)
}

func TestFetchAllCancelled(t *testing.T) {
	manager, base, _, _ := setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF"))
	}), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	links := []locator.DocumentLink{{URL: base + "/1.pdf"}, {URL: base + "/2.pdf"}}
	docs := manager.FetchAll(ctx, "1", links, t.TempDir())
	require.Len(t, docs, 2)
	for _, d := range docs {
		require.False(t, d.OK)
	}
}
