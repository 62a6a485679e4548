package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_test_connectivity = "client.test-connectivity"
	report_client_fetch             = "client.fetch"
	report_client_search_by_name    = "client.search-by-name"
)

const (
	DefaultBaseURL = "https://api.company-information.service.gov.uk"
	DefaultTimeout = 10 * time.Second

	searchPageSize = 20
)

// ErrMissingCredential is returned by NewClient when no API key is configured.
var ErrMissingCredential = errors.New("registry: missing api key")

type Options struct {
	BaseURL string
	APIKey  string
	// Timeout applies to each call, defaults to DefaultTimeout.
	Timeout time.Duration
	// RateLimit is the sustained requests per second, defaults to 2. The
	// limiter has a burst of 1 so consecutive calls are always spaced.
	RateLimit rate.Limit
	// Output receives a dump of every exchange when set.
	Output telemetry.MessageOutput
}

// Client is a typed wrapper over the registry's public data API. Every fetch
// returns a Result instead of an error so callers can render missing records.
type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 2
	}

	tel = telemetry.NewScopedAPI("registry", tel)

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/"))
	httpClient.SetBasicAuth(opts.APIKey, "")
	httpClient.SetHeader("accept", "application/json")
	httpClient.SetHeader("user-agent", "cohoscrape/1.0")
	httpClient.SetTimeout(opts.Timeout)

	limiter := rate.NewLimiter(opts.RateLimit, 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.Output)

	return &Client{http: httpClient, tel: tel}, nil
}

func companyPath(id CompanyID, suffix string) string {
	return "/company/" + url.PathEscape(string(id.Normalize())) + suffix
}

// TestConnectivity checks that the API is reachable with the configured
// credential. Value is true when the company exists. A 404 still counts as
// reachable, anything else besides a 200 is StatusFatal.
func (c *Client) TestConnectivity(ctx context.Context, id CompanyID) Result[bool] {
	res, err := c.http.R().
		SetContext(ctx).
		Get(companyPath(id, ""))
	if err != nil {
		c.tel.ReportBroken(report_client_test_connectivity, err)
		return fatal[bool](fmt.Errorf("connect to registry: %w", err))
	}

	switch res.StatusCode() {
	case http.StatusOK:
		return ok(true)
	case http.StatusNotFound:
		return ok(false)
	}

	err = fmt.Errorf("registry responded with %s", res.Status())
	c.tel.ReportBroken(report_client_test_connectivity, err, string(id))
	return fatal[bool](err)
}

func fetch[T any](ctx context.Context, c *Client, path string, query url.Values) Result[T] {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	res, err := req.Get(path)
	if err != nil {
		c.tel.ReportWarning(report_client_fetch, path, err)
		return unavailable[T](err)
	}
	if res.StatusCode() != http.StatusOK {
		err = fmt.Errorf("%s: %s", path, res.Status())
		if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
			c.tel.ReportBroken(report_client_fetch, err)
		} else {
			c.tel.ReportWarning(report_client_fetch, err)
		}
		return unavailable[T](err)
	}

	var out T
	err = json.Unmarshal(res.Body(), &out)
	if err != nil {
		err = fmt.Errorf("decode %s: %w", path, err)
		c.tel.ReportBroken(report_client_fetch, err)
		return unavailable[T](err)
	}
	return ok(out)
}

func (c *Client) FetchProfile(ctx context.Context, id CompanyID) Result[Profile] {
	return fetch[Profile](ctx, c, companyPath(id, ""), nil)
}

func (c *Client) FetchOfficers(ctx context.Context, id CompanyID) Result[OfficerList] {
	return fetch[OfficerList](ctx, c, companyPath(id, "/officers"), nil)
}

func (c *Client) FetchControllingPersons(ctx context.Context, id CompanyID) Result[ControllingPersonList] {
	return fetch[ControllingPersonList](ctx, c, companyPath(id, "/persons-with-significant-control"), nil)
}

func (c *Client) FetchFilingHistory(ctx context.Context, id CompanyID) Result[FilingHistory] {
	return fetch[FilingHistory](ctx, c, companyPath(id, "/filing-history"), nil)
}

// SearchByName returns up to 20 candidates for a free-text company name, in
// the order the registry ranks them. A blank term yields no candidates
// without a request.
func (c *Client) SearchByName(ctx context.Context, term string) Result[[]CompanySummary] {
	term = strings.TrimSpace(term)
	if term == "" {
		return ok([]CompanySummary{})
	}

	res := fetch[searchResponse](ctx, c, "/search/companies", url.Values{
		"q":              {term},
		"items_per_page": {fmt.Sprint(searchPageSize)},
	})
	if !res.OK() {
		return Result[[]CompanySummary]{Status: res.Status, Reason: res.Reason}
	}

	items := res.Value.Items
	if items == nil {
		items = []CompanySummary{}
	}
	c.tel.ReportCount(report_client_search_by_name, int64(len(items)))
	return ok(items)
}
