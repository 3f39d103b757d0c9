// Package reader exports the content zone of an analysed page as
// sanitized Markdown, the text-only rendition of the split layout's left
// side.
package reader

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/semantic"
)

// Exporter converts content blocks to Markdown. It is safe for concurrent
// use.
type Exporter struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// New returns an Exporter with a user-generated-content sanitization
// policy.
func New() *Exporter {
	return &Exporter{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Document is an exported page.
type Document struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	Blocks   int    `json:"blocks"`
}

// Export renders blocks in order. With no blocks the whole body is used.
func (x *Exporter) Export(doc *livedom.Document, blocks []semantic.Block) (Document, error) {
	out := Document{URL: doc.URL, Title: title(doc)}
	var nodes []*livedom.Node
	for _, b := range blocks {
		nodes = append(nodes, b.Node)
	}
	if len(nodes) == 0 {
		if body := doc.Body(); body != nil {
			nodes = append(nodes, body)
		}
	}

	var parts []string
	for _, n := range nodes {
		clean := x.policy.Sanitize(n.OuterHTML())
		md, err := x.conv.ConvertString(clean, converter.WithDomain(doc.URL))
		if err != nil {
			return Document{}, fmt.Errorf("reader: convert: %w", err)
		}
		if md = strings.TrimSpace(md); md != "" {
			parts = append(parts, md)
		}
	}
	out.Blocks = len(parts)
	out.Markdown = strings.Join(parts, "\n\n---\n\n")
	return out, nil
}

func title(doc *livedom.Document) string {
	head := doc.Head()
	if head == nil {
		return ""
	}
	if t := head.Query(livedom.ByTag("title")); t != nil {
		return semantic.CleanText(t.Text())
	}
	return ""
}
