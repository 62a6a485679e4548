package locator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daveminay/cohoscrape/lib/htmlutil"
)

// IsCandidate reports whether an anchor looks like it links to a filing
// document: "pdf" or "document" in the href, or "view pdf" in its text.
func IsCandidate(a htmlutil.Anchor) bool {
	href := strings.ToLower(a.Href)
	text := strings.ToLower(a.Text)
	return strings.Contains(href, "pdf") ||
		strings.Contains(href, "document") ||
		strings.Contains(text, "view pdf")
}

// ContinuationRule decides whether an anchor on listing page `page` signals
// that page+1 exists. The upstream markup makes no promises here, so rules
// are a best-effort guess and can be swapped through Options.
type ContinuationRule interface {
	Name() string
	Continues(a htmlutil.Anchor, page int) bool
}

// RuleFunc adapts a function to ContinuationRule.
type RuleFunc struct {
	Label string
	Fn    func(a htmlutil.Anchor, page int) bool
}

func (r RuleFunc) Name() string {
	return r.Label
}

func (r RuleFunc) Continues(a htmlutil.Anchor, page int) bool {
	return r.Fn(a, page)
}

// NextText matches anchors whose text contains "next".
var NextText ContinuationRule = RuleFunc{
	Label: "next-text",
	Fn: func(a htmlutil.Anchor, _ int) bool {
		return strings.Contains(strings.ToLower(a.Text), "next")
	},
}

// PageQuery matches anchors whose href carries `page=<page+1>`.
var PageQuery ContinuationRule = RuleFunc{
	Label: "page-query",
	Fn: func(a htmlutil.Anchor, page int) bool {
		marker := fmt.Sprintf("page=%d", page+1)
		idx := strings.Index(a.Href, marker)
		if idx < 0 {
			return false
		}
		// page=2 must not match page=21
		rest := a.Href[idx+len(marker):]
		return rest == "" || rest[0] < '0' || rest[0] > '9'
	},
}

// NumericText matches pagination anchors like "3" when on a lower page.
var NumericText ContinuationRule = RuleFunc{
	Label: "numeric-text",
	Fn: func(a htmlutil.Anchor, page int) bool {
		text := strings.TrimSpace(a.Text)
		if text == "" || strings.TrimLeft(text, "0123456789") != "" {
			return false
		}
		n, err := strconv.Atoi(text)
		return err == nil && n > page
	},
}

var DefaultContinuationRules = []ContinuationRule{NextText, PageQuery, NumericText}

// continues returns the first rule any anchor satisfies.
func continues(rules []ContinuationRule, anchors []htmlutil.Anchor, page int) (ContinuationRule, bool) {
	for _, a := range anchors {
		for _, rule := range rules {
			if rule.Continues(a, page) {
				return rule, true
			}
		}
	}
	return nil, false
}
