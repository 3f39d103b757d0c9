// Package rules holds the per-site rule documents that drive the
// rules-based generation, and the lookup chain that finds one for a site:
// built-in table, then the local cache, then the remote repository, then
// a generic default.
package rules

import (
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/elderly/selector"
)

// Layout is the page arrangement a document asks for.
type Layout string

const (
	LayoutSplit  Layout = "split"
	LayoutNormal Layout = "normal"
)

// Document is one site's rules. Field names match the published JSON
// repository format.
type Document struct {
	Layout          Layout   `json:"layout" yaml:"layout"`
	EnlargeText     bool     `json:"enlargeText" yaml:"enlargeText"`
	SimplifyNav     bool     `json:"simplifyNav" yaml:"simplifyNav"`
	RemoveAds       bool     `json:"removeAds" yaml:"removeAds"`
	HighContrast    bool     `json:"highContrast" yaml:"highContrast"`
	RemoveSelectors []string `json:"removeSelectors" yaml:"removeSelectors"`
	KeepSelectors   []string `json:"keepSelectors" yaml:"keepSelectors"`
}

// Split reports whether the document asks for the split layout.
func (d Document) Split() bool { return d.Layout == LayoutSplit }

// Validate rejects unknown layouts. Malformed selectors are not an error
// here: they are skipped one by one when the document is applied.
func (d Document) Validate() error {
	switch d.Layout {
	case "", LayoutSplit, LayoutNormal:
		return nil
	}
	return fmt.Errorf("rules: unknown layout %q", d.Layout)
}

// Compile compiles both selector lists. Each malformed predicate yields
// one error and is left out.
func (d Document) Compile() (remove, keep []*selector.Selector, errs []error) {
	remove, e1 := selector.CompileAll(d.RemoveSelectors)
	keep, e2 := selector.CompileAll(d.KeepSelectors)
	return remove, keep, append(e1, e2...)
}

// Default is the document used when nothing more specific is known.
func Default() Document {
	return Document{
		Layout:      LayoutSplit,
		EnlargeText: true,
		SimplifyNav: true,
		RemoveAds:   true,
		RemoveSelectors: []string{
			`[class*="ad-"]`,
			`[id*="ad-"]`,
			`[class*="advertisement"]`,
			`.sidebar`,
			`[class*="popup"]`,
			`[class*="modal"]`,
		},
		KeepSelectors: []string{
			"input", "button", "select", "textarea", "form", "a", "img", "video",
			"h1", "h2", "h3", "p", "article", "main",
		},
	}
}

//go:embed builtin.yaml
var builtinYAML []byte

var builtin = func() map[string]Document {
	m := make(map[string]Document)
	if err := yaml.Unmarshal(builtinYAML, &m); err != nil {
		panic("rules: builtin.yaml: " + err.Error())
	}
	return m
}()

// Builtin returns the shipped document for site.
func Builtin(site string) (Document, bool) {
	d, ok := builtin[site]
	return d, ok
}

// BuiltinSites lists the sites with a shipped document.
func BuiltinSites() []string {
	out := make([]string, 0, len(builtin))
	for s := range builtin {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NormalizeSite turns a host name or URL into a rule key: lowercase, port
// and leading "www." dropped, dots replaced by dashes.
//
//	www.Amazon.com:443 → amazon-com
func NormalizeSite(hostOrURL string) string {
	h := strings.TrimSpace(hostOrURL)
	if strings.Contains(h, "://") {
		if u, err := url.Parse(h); err == nil {
			h = u.Host
		}
	}
	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	h = strings.ToLower(strings.Trim(h, "[]."))
	h = strings.TrimPrefix(h, "www.")
	return strings.ReplaceAll(h, ".", "-")
}
