package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("cohoscrape/htmlutil")

// GetText concatenates every text node under node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

type Anchor struct {
	Text string
	Href string
}

var innerWhitespace = regexp.MustCompile(` {2,}`)

// CleanText strips non-printable runes and collapses whitespace.
func CleanText(s string) string {
	var out strings.Builder
	for _, c := range s {
		switch {
		case unicode.IsSpace(c):
			out.WriteRune(' ')
		case unicode.IsPrint(c):
			out.WriteRune(c)
		}
	}
	return innerWhitespace.ReplaceAllString(strings.TrimSpace(out.String()), " ")
}

// GetAnchors returns the cleaned text and raw href of every node in sel that
// carries an href attribute, in document order.
func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href, ok := "", false
		for _, a := range n.Attr {
			if a.Key == "href" {
				href, ok = a.Val, true
				break
			}
		}
		if !ok {
			continue
		}
		anchors = append(anchors, Anchor{
			Text: CleanText(GetText(n)),
			Href: strings.TrimSpace(href),
		})
	}

	span.SetAttributes(attribute.Int("anchors", len(anchors)))
	return anchors
}

// ParseAnchors parses an HTML document and returns all of its `a[href]` anchors.
func ParseAnchors(ctx context.Context, body []byte) ([]Anchor, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return GetAnchors(ctx, doc.Find("a[href]")), nil
}
