package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/daveminay/cohoscrape/internal/archive"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/extraction"
	"github.com/daveminay/cohoscrape/internal/gate"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct{}

func (stubSearcher) SearchByName(context.Context, string) registry.Result[[]registry.CompanySummary] {
	return registry.Result[[]registry.CompanySummary]{Value: []registry.CompanySummary{
		{Title: "TESCO PLC", CompanyNumber: "00006245"},
	}}
}

type stubRunner struct {
	calls int
}

func (r *stubRunner) Run(_ context.Context, id registry.CompanyID, _ string, onStage func(extraction.Progress)) (extraction.Result, error) {
	r.calls++
	return extraction.Result{Archive: archive.Archive{Bytes: []byte("PK-" + string(id)), Count: 5}}, nil
}

type client struct {
	t    *testing.T
	http *http.Client
	base string
}

func newClient(t *testing.T) (client, *stubRunner) {
	t.Helper()
	g, err := gate.New("letmein")
	require.NoError(t, err)

	runner := &stubRunner{}
	rec := &telemetry.Recorder{}
	manager := session.NewManager(
		session.NewMemoryStore(16, time.Hour),
		runner,
		stubSearcher{},
		g,
		chrono.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		rec,
		session.Options{TempRoot: t.TempDir()},
	)

	srv := httptest.NewServer(New(manager, prometheus.NewRegistry(), rec))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return client{t: t, http: &http.Client{Jar: jar}, base: srv.URL}, runner
}

func (c client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	return res, out
}

func (c client) view(method, path string, body any, status int) sessionView {
	c.t.Helper()
	res, out := c.do(method, path, body)
	require.Equal(c.t, status, res.StatusCode, string(out))

	var view sessionView
	if status == http.StatusOK {
		require.NoError(c.t, json.Unmarshal(out, &view))
		return view
	}
	var e errorResponse
	require.NoError(c.t, json.Unmarshal(out, &e))
	require.NotEmpty(c.t, e.Error)
	if e.Session != nil {
		view = *e.Session
	}
	return view
}

func TestWorkflow(t *testing.T) {
	c, runner := newClient(t)

	view := c.view(http.MethodGet, "/session", nil, http.StatusOK)
	require.Equal(t, session.StageIdle, view.Stage)
	require.False(t, view.Authorized)
	id := view.ID

	c.view(http.MethodPost, "/search", searchRequest{Term: "tesco"}, http.StatusUnauthorized)
	c.view(http.MethodPost, "/login", loginRequest{Password: "wrong"}, http.StatusUnauthorized)

	view = c.view(http.MethodPost, "/login", loginRequest{Password: "letmein"}, http.StatusOK)
	require.True(t, view.Authorized)
	require.Equal(t, id, view.ID)

	view = c.view(http.MethodPost, "/search", searchRequest{Term: "tesco"}, http.StatusOK)
	require.Equal(t, session.StageResultsShown, view.Stage)
	require.Len(t, view.Results, 1)

	view = c.view(http.MethodPost, "/select", selectRequest{CompanyNumber: "00006245"}, http.StatusOK)
	require.Equal(t, session.StageExtracting, view.Stage)

	res, _ := c.do(http.MethodGet, "/archive", nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)

	view = c.view(http.MethodPost, "/extract", nil, http.StatusOK)
	require.Equal(t, session.StageComplete, view.Stage)
	require.True(t, view.ArchiveAvailable)
	require.Equal(t, 5, view.FileCount)

	// repeated extraction serves the stored archive
	c.view(http.MethodPost, "/extract", nil, http.StatusOK)
	require.Equal(t, 1, runner.calls)

	res, body := c.do(http.MethodGet, "/archive", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "application/zip", res.Header.Get("Content-Type"))
	require.Equal(t, `attachment; filename="company_00006245_data.zip"`, res.Header.Get("Content-Disposition"))
	require.Equal(t, "PK-00006245", string(body))

	view = c.view(http.MethodPost, "/reset", nil, http.StatusOK)
	require.Equal(t, session.StageIdle, view.Stage)
	require.True(t, view.Authorized)
	require.Equal(t, id, view.ID)

	res, _ = c.do(http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	view = c.view(http.MethodGet, "/session", nil, http.StatusOK)
	require.False(t, view.Authorized)
	require.NotEqual(t, id, view.ID)
}

func TestBadRequests(t *testing.T) {
	c, _ := newClient(t)
	c.view(http.MethodPost, "/login", loginRequest{Password: "letmein"}, http.StatusOK)

	res, _ := c.do(http.MethodPost, "/search", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	c.view(http.MethodPost, "/select", selectRequest{CompanyNumber: " "}, http.StatusBadRequest)
	view := c.view(http.MethodPost, "/extract", nil, http.StatusConflict)
	require.Equal(t, session.StageIdle, view.Stage)
}

func TestHealthAndMetrics(t *testing.T) {
	c, _ := newClient(t)

	res, body := c.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"status": "ok"}`, string(body))

	res, body = c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, strings.Contains(string(body), `cohoscrape_http_requests_total{method="GET",route="/healthz",status="200"} 1`), string(body))
}

func TestUnknownSessionCookieGetsNewId(t *testing.T) {
	c, _ := newClient(t)
	u, err := url.Parse(c.base)
	require.NoError(t, err)
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: CookieName, Value: "chosen-by-client", Path: "/"}})

	view := c.view(http.MethodGet, "/session", nil, http.StatusOK)
	require.NotEqual(t, "chosen-by-client", view.ID)
	require.Equal(t, session.StageIdle, view.Stage)

	var issued string
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == CookieName {
			issued = cookie.Value
		}
	}
	require.Equal(t, view.ID, issued)

	// the issued id sticks
	again := c.view(http.MethodGet, "/session", nil, http.StatusOK)
	require.Equal(t, view.ID, again.ID)
}
