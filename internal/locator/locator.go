package locator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daveminay/cohoscrape/internal/components/assert"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/webclient"
	"github.com/daveminay/cohoscrape/lib/htmlutil"
)

const (
	report_locator_fetch_page = "locator.fetch-page"
	report_locator_locate     = "locator.locate"
)

const (
	DefaultMaxPages = 20
	DefaultTimeout  = 15 * time.Second
	DefaultDelay    = time.Second
)

// DocumentLink is one candidate document found on a listing page.
type DocumentLink struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	Page        int    `json:"page"`
}

// StopReason records why a scan ended. None of them are errors, the links
// collected before the stop are always usable.
type StopReason string

const (
	StopNoCandidates   StopReason = "no-candidates"
	StopNoContinuation StopReason = "no-continuation"
	StopPageCap        StopReason = "page-cap"
	StopFetchFailed    StopReason = "fetch-failed"
	StopCancelled      StopReason = "cancelled"
)

type Scan struct {
	Links        []DocumentLink
	PagesScanned int
	Stop         StopReason
	// Err is the failure behind StopFetchFailed or StopCancelled.
	Err error
}

// MaxPage is the highest page any link was found on, or 1 if none were.
func (s Scan) MaxPage() int {
	out := 1
	for _, l := range s.Links {
		if l.Page > out {
			out = l.Page
		}
	}
	return out
}

type Options struct {
	MaxPages int
	Timeout  time.Duration
	// Delay is the pause between consecutive page fetches, negative disables it.
	Delay time.Duration
	Rules []ContinuationRule
}

// Locator scans the rendered filing history of a company for document links.
type Locator struct {
	web  webclient.Client
	opts Options
	time chrono.API
	tel  telemetry.API
}

func NewLocator(web webclient.Client, opts Options, time chrono.API, tel telemetry.API) *Locator {
	assert.NotNil(web.Http)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch {
	case opts.Delay == 0:
		opts.Delay = DefaultDelay
	case opts.Delay < 0:
		opts.Delay = 0
	}
	if opts.Rules == nil {
		opts.Rules = DefaultContinuationRules
	}

	return &Locator{
		web:  web,
		opts: opts,
		time: time,
		tel:  telemetry.NewScopedAPI("locator", tel),
	}
}

func (l *Locator) pageURL(id registry.CompanyID, page int) string {
	u := *l.web.BaseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/company/" + string(id.Normalize()) + "/filing-history"
	if page > 1 {
		u.RawQuery = url.Values{"page": {fmt.Sprint(page)}}.Encode()
	}
	return u.String()
}

// resolve makes site-relative hrefs absolute and rejects anything that is
// neither site-relative nor an absolute http(s) url.
func (l *Locator) resolve(href string) (string, bool) {
	if strings.HasPrefix(href, "/") {
		ref, err := url.Parse(href)
		if err != nil {
			return "", false
		}
		return l.web.BaseURL.ResolveReference(ref).String(), true
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return href, true
	}
	return "", false
}

func (l *Locator) fetchPage(ctx context.Context, id registry.CompanyID, page int) ([]htmlutil.Anchor, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	res, err := l.web.Http.R().
		SetContext(ctx).
		Get(l.pageURL(id, page))
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("listing page %d: %s", page, res.Status())
	}
	return htmlutil.ParseAnchors(ctx, res.Body())
}

// Locate walks the listing pages of a company starting at page 1 and
// returns every candidate document link in page order. It never fails, a
// page that cannot be fetched or parsed ends the scan early.
func (l *Locator) Locate(ctx context.Context, id registry.CompanyID) (scan Scan) {
	scan.Links = []DocumentLink{}
	defer func() {
		if r := recover(); r != nil {
			scan.Stop = StopFetchFailed
			scan.Err = fmt.Errorf("panic while scanning: %v", r)
			l.tel.ReportBroken(report_locator_locate, scan.Err)
		}
		l.tel.ReportCount(report_locator_locate, int64(len(scan.Links)))
	}()

	for page := 1; ; page++ {
		if page > l.opts.MaxPages {
			scan.Stop = StopPageCap
			return scan
		}
		if page > 1 {
			err := l.time.Pause(ctx, l.opts.Delay)
			if err != nil {
				scan.Stop = StopCancelled
				scan.Err = err
				return scan
			}
		}

		anchors, err := l.fetchPage(ctx, id, page)
		if err != nil {
			scan.Stop = StopFetchFailed
			if errors.Is(err, context.Canceled) {
				scan.Stop = StopCancelled
			}
			scan.Err = err
			l.tel.ReportWarning(report_locator_fetch_page, string(id), page, err)
			return scan
		}
		scan.PagesScanned = page

		found := 0
		for _, a := range anchors {
			if !IsCandidate(a) {
				continue
			}
			abs, ok := l.resolve(a.Href)
			if !ok {
				continue
			}
			scan.Links = append(scan.Links, DocumentLink{
				URL:         abs,
				Description: a.Text,
				Page:        page,
			})
			found++
		}
		if found == 0 {
			scan.Stop = StopNoCandidates
			return scan
		}

		rule, ok := continues(l.opts.Rules, anchors, page)
		if !ok {
			scan.Stop = StopNoContinuation
			return scan
		}
		l.tel.ReportDebug("continuing to next page", page+1, rule.Name())
	}
}
