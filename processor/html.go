package processor

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/ZaguanLabs/transctl"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// documentMarker detects complete HTML documents; anything else is handled
// as a body fragment so no <html>, <head> or <body> wrapper is added.
var documentMarker = regexp.MustCompile(`(?i)<!doctype|<html[\s>]`)

// HTMLExtractor extracts the text nodes of an HTML document.
type HTMLExtractor struct {
	ignoredTags map[string]bool
}

var _ transctl.Extractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor creates an HTML extractor with the default ignored tags.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{
		ignoredTags: transctl.IgnoredTags,
	}
}

// NewHTMLExtractorWithIgnoredTags creates an HTML extractor with custom ignored tags.
func NewHTMLExtractorWithIgnoredTags(tags []string) *HTMLExtractor {
	ignored := make(map[string]bool)
	for _, tag := range tags {
		ignored[strings.ToLower(tag)] = true
	}
	return &HTMLExtractor{
		ignoredTags: ignored,
	}
}

// ContentType returns transctl.ResourceHTML.
func (e *HTMLExtractor) ContentType() transctl.ResourceType {
	return transctl.ResourceHTML
}

// Extract parses content and collects its translatable text nodes in
// document order. A text node is translatable when it is not blank and has
// no ancestor element in the ignored set; comments and doctypes are never
// text nodes. Segment text is the node text without surrounding whitespace.
func (e *HTMLExtractor) Extract(content string) (transctl.Document, error) {
	doc := &htmlDocument{
		extractor: e,
		content:   content,
		full:      documentMarker.MatchString(content),
	}

	tree, err := doc.parse()
	if err != nil {
		return nil, err
	}

	for i, n := range e.textNodes(tree.roots) {
		doc.segments = append(doc.segments, transctl.Segment{
			Locator: transctl.Locator{Index: i},
			Text:    strings.TrimSpace(n.Data),
		})
	}
	return doc, nil
}

// textNodes walks roots depth-first and returns the translatable text nodes.
func (e *HTMLExtractor) textNodes(roots []*html.Node) []*html.Node {
	var nodes []*html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if e.ignoredTags[strings.ToLower(n.Data)] {
				return
			}
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				nodes = append(nodes, n)
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, r := range roots {
		walk(r)
	}
	return nodes
}

type htmlDocument struct {
	extractor *HTMLExtractor
	content   string
	full      bool
	segments  []transctl.Segment
}

// htmlTree is one parse of the source: either a goquery document or the
// nodes of a body fragment.
type htmlTree struct {
	doc   *goquery.Document
	roots []*html.Node
}

func (d *htmlDocument) parse() (*htmlTree, error) {
	if d.full {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.content))
		if err != nil {
			return nil, &transctl.ProcessorError{
				Message:     "failed to parse HTML",
				Cause:       err,
				ContentType: transctl.ResourceHTML,
			}
		}
		return &htmlTree{doc: doc, roots: doc.Nodes}, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(d.content), body)
	if err != nil {
		return nil, &transctl.ProcessorError{
			Message:     "failed to parse HTML fragment",
			Cause:       err,
			ContentType: transctl.ResourceHTML,
		}
	}
	return &htmlTree{roots: nodes}, nil
}

func (t *htmlTree) render() (string, error) {
	if t.doc != nil {
		return t.doc.Html()
	}

	var buf bytes.Buffer
	for _, n := range t.roots {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func (d *htmlDocument) Segments() []transctl.Segment {
	return d.segments
}

// Reinsert parses the source again and replaces the text of each
// translatable node, by position, keeping the node's surrounding whitespace.
func (d *htmlDocument) Reinsert(translations []string) (string, error) {
	if err := checkCount(d, translations, transctl.ResourceHTML); err != nil {
		return "", err
	}

	tree, err := d.parse()
	if err != nil {
		return "", err
	}

	nodes := d.extractor.textNodes(tree.roots)
	if len(nodes) != len(translations) {
		return "", &transctl.ProcessorError{
			Message:     "document changed between extraction and reinsertion",
			Cause:       &transctl.CountMismatchError{Expected: len(nodes), Got: len(translations)},
			ContentType: transctl.ResourceHTML,
		}
	}
	for i, n := range nodes {
		n.Data = preserveWhitespace(n.Data, translations[i])
	}

	out, err := tree.render()
	if err != nil {
		return "", &transctl.ProcessorError{
			Message:     "failed to serialize HTML",
			Cause:       err,
			ContentType: transctl.ResourceHTML,
		}
	}
	return out, nil
}

// preserveWhitespace preserves the original leading/trailing whitespace.
func preserveWhitespace(original, translated string) string {
	trimmedLeft := strings.TrimLeftFunc(original, unicode.IsSpace)
	leading := original[:len(original)-len(trimmedLeft)]
	trailing := trimmedLeft[len(strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)):]

	return leading + translated + trailing
}
