package locator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/webclient"
	"github.com/daveminay/cohoscrape/lib/htmlutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// listing serves /company/{id}/filing-history?page=N from a page -> html map
// and records which pages were requested.
type listing struct {
	mutex     sync.Mutex
	pages     map[int]string
	requested []int
}

func (l *listing) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		page, _ = strconv.Atoi(p)
	}

	l.mutex.Lock()
	l.requested = append(l.requested, page)
	body, ok := l.pages[page]
	l.mutex.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("content-type", "text/html")
	w.Write([]byte(body))
}

func setup(t *testing.T, pages map[int]string, opts Options) (*Locator, *listing, *chrono.Fake) {
	t.Helper()
	l := &listing{pages: pages}
	server := httptest.NewServer(l)
	t.Cleanup(server.Close)

	rec := &telemetry.Recorder{}
	web, err := webclient.New(webclient.Options{BaseURL: server.URL}, rec)
	require.NoError(t, err)

	clock := chrono.NewFake(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	return NewLocator(web, opts, clock, rec), l, clock
}

func TestLocateFollowsNextAndResolves(t *testing.T) {
	pages := map[int]string{
		1: `<a href="/company/00006245/filing-history/MzAx/document?format=pdf">View PDF</a>
			<a href="mailto:someone@example.com">document contact</a>
			<a href="/company/00006245/filing-history?page=2">Next</a>`,
		2: `<a href="https://document-api.example.com/document/abc/content">Accounts</a>
			<a href="/company/00006245/officers">Officers</a>`,
	}
	loc, server, clock := setup(t, pages, Options{})

	scan := loc.Locate(context.Background(), "00006245")

	base := loc.web.BaseURL.String()
	expected := []DocumentLink{
		{URL: base + "/company/00006245/filing-history/MzAx/document?format=pdf", Description: "View PDF", Page: 1},
		{URL: "https://document-api.example.com/document/abc/content", Description: "Accounts", Page: 2},
	}
	if diff := cmp.Diff(expected, scan.Links); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, StopNoContinuation, scan.Stop)
	require.Equal(t, 2, scan.PagesScanned)
	require.Equal(t, 2, scan.MaxPage())
	require.Equal(t, []int{1, 2}, server.requested)
	require.Equal(t, []time.Duration{DefaultDelay}, clock.Pauses())
}

func TestLocateStopsOnEmptyPage(t *testing.T) {
	pages := map[int]string{
		1: `<a href="/doc/1.pdf">one</a><a href="?page=2">2</a>`,
		2: `<p>nothing here</p><a href="?page=3">Next</a><a href="?page=3">3</a>`,
		3: `<a href="/doc/3.pdf">three</a>`,
	}
	loc, server, _ := setup(t, pages, Options{})

	scan := loc.Locate(context.Background(), "00006245")
	require.Len(t, scan.Links, 1)
	require.Equal(t, StopNoCandidates, scan.Stop)
	require.Equal(t, []int{1, 2}, server.requested)
}

func TestLocatePageCap(t *testing.T) {
	pages := map[int]string{}
	for i := 1; i <= 25; i++ {
		pages[i] = fmt.Sprintf(`<a href="/doc/%d.pdf">doc %d</a><a href="?page=%d">Next page</a>`, i, i, i+1)
	}
	loc, server, clock := setup(t, pages, Options{})

	scan := loc.Locate(context.Background(), "00006245")
	require.Len(t, scan.Links, 20)
	require.Equal(t, StopPageCap, scan.Stop)
	require.Equal(t, 20, scan.MaxPage())
	require.Len(t, server.requested, 20)
	require.Len(t, clock.Pauses(), 19)
}

func TestLocateFetchFailureKeepsPartial(t *testing.T) {
	pages := map[int]string{
		1: `<a href="/doc/1.pdf">one</a><a href="?page=2">2</a>`,
	}
	loc, _, _ := setup(t, pages, Options{})

	scan := loc.Locate(context.Background(), "00006245")
	require.Len(t, scan.Links, 1)
	require.Equal(t, StopFetchFailed, scan.Stop)
	require.Error(t, scan.Err)
}

func TestLocateFirstPageFails(t *testing.T) {
	loc, _, _ := setup(t, map[int]string{}, Options{})

	scan := loc.Locate(context.Background(), "00006245")
	require.Empty(t, scan.Links)
	require.NotNil(t, scan.Links)
	require.Equal(t, StopFetchFailed, scan.Stop)
	require.Equal(t, 1, scan.MaxPage())
}

func TestLocateCustomRules(t *testing.T) {
	pages := map[int]string{
		1: `<a href="/doc/1.pdf">one</a><a href="?page=2">Next</a>`,
		2: `<a href="/doc/2.pdf">two</a>`,
	}
	onlyNumeric := Options{Rules: []ContinuationRule{NumericText}}
	loc, server, _ := setup(t, pages, onlyNumeric)

	scan := loc.Locate(context.Background(), "00006245")
	require.Len(t, scan.Links, 1)
	require.Equal(t, StopNoContinuation, scan.Stop)
	require.Equal(t, []int{1}, server.requested)
}

func TestContinuationRules(t *testing.T) {
	cases := []struct {
		rule   ContinuationRule
		anchor htmlutil.Anchor
		page   int
		expect bool
	}{
		{NextText, htmlutil.Anchor{Text: "Next »"}, 1, true},
		{NextText, htmlutil.Anchor{Text: "Previous"}, 1, false},
		{PageQuery, htmlutil.Anchor{Href: "?page=2"}, 1, true},
		{PageQuery, htmlutil.Anchor{Href: "?page=21"}, 1, false},
		{PageQuery, htmlutil.Anchor{Href: "/x?page=3&sort=asc"}, 2, true},
		{NumericText, htmlutil.Anchor{Text: "4"}, 3, true},
		{NumericText, htmlutil.Anchor{Text: "3"}, 3, false},
		{NumericText, htmlutil.Anchor{Text: "-4"}, 3, false},
		{NumericText, htmlutil.Anchor{Text: "4 pages"}, 3, false},
	}
	for _, c := range cases {
		require.Equal(t, c.expect, c.rule.Continues(c.anchor, c.page), "%s %+v on page %d", c.rule.Name(), c.anchor, c.page)
	}
}

func TestIsCandidate(t *testing.T) {
	require.True(t, IsCandidate(htmlutil.Anchor{Href: "/x/FILE.PDF"}))
	require.True(t, IsCandidate(htmlutil.Anchor{Href: "/x/Document?format=pdf"}))
	require.True(t, IsCandidate(htmlutil.Anchor{Href: "/x", Text: "View PDF (3 pages)"}))
	require.False(t, IsCandidate(htmlutil.Anchor{Href: "/company/1/officers", Text: "Officers"}))
}
