package webclient

import (
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const DefaultBaseURL = "https://find-and-update.company-information.service.gov.uk"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Options configures the browser-like client used for the public filing
// history pages and the documents they link to.
type Options struct {
	BaseURL string
	// Output receives a dump of every exchange when set.
	Output telemetry.MessageOutput
}

// Client holds the resty client shared by the locator and the download
// manager, so cookies set by listing pages carry over to document requests.
// It sets no client-wide timeout, callers bound each request with a context
// deadline.
type Client struct {
	Http    *resty.Client
	BaseURL *url.URL
}

func New(opts Options, tel telemetry.API) (Client, error) {
	assert.NotNil(tel)
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return Client{}, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return Client{}, err
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeaders(map[string]string{
		"user-agent":      userAgent,
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"accept-language": "en-GB,en;q=0.9",
	})

	telemetry.InstrumentResty(httpClient, tel, opts.Output)

	return Client{Http: httpClient, BaseURL: base}, nil
}
