// Package livedom is a live, mutable HTML tree with the browser behaviours
// a page retrofit relies on: stable node handles, element state held outside
// the markup (value, checked, selection), events that bubble and carry
// default actions, structural mutation observers and a cooperative event
// loop. Parsing and rendering go through golang.org/x/net/html.
package livedom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/elderly/livedom/mutation"
)

// Submission records a form submission that was not cancelled.
type Submission struct {
	Form   *Node
	Values map[string]string
}

// Document is one page view. It is not safe for concurrent use: all access
// must happen on the goroutine that drives its Loop.
type Document struct {
	URL  string
	Loop *Loop

	source []byte
	root   *html.Node

	nodes     map[*html.Node]*Node
	state     map[*html.Node]*elementState
	listeners map[*html.Node][]*listener
	observers []*MutationObserver
	globals   map[string]any

	submissions []Submission
	navigations []string
	active      *Node
	reloads     int

	version uint64
	sheet   sheetCache
	nextSub uint64
}

// Parse builds a document from raw HTML. A nil loop gets a wall-clock loop.
func Parse(src []byte, pageURL string, loop *Loop) (*Document, error) {
	if loop == nil {
		loop = NewLoop(nil)
	}
	d := &Document{
		URL:    pageURL,
		Loop:   loop,
		source: append([]byte(nil), src...),
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseString is Parse for string input.
func ParseString(src, pageURL string, loop *Loop) (*Document, error) {
	return Parse([]byte(src), pageURL, loop)
}

func (d *Document) load() error {
	root, err := html.Parse(bytes.NewReader(d.source))
	if err != nil {
		return fmt.Errorf("livedom: parse: %w", err)
	}
	d.root = root
	d.nodes = make(map[*html.Node]*Node)
	d.state = make(map[*html.Node]*elementState)
	d.listeners = make(map[*html.Node][]*listener)
	d.globals = make(map[string]any)
	d.submissions = nil
	d.navigations = nil
	d.active = nil
	d.version++
	return nil
}

// Reload discards every change, listener, observer, page global and timer
// and re-parses the original source: the equivalent of a full page reload.
// Handles taken before Reload refer to the discarded tree.
func (d *Document) Reload() error {
	for _, o := range d.observers {
		o.connected = false
	}
	d.observers = nil
	d.Loop.Reset()
	d.reloads++
	return d.load()
}

// Reloads returns how many times the document was reloaded.
func (d *Document) Reloads() int { return d.reloads }

// Root returns the document node.
func (d *Document) Root() *Node { return d.Wrap(d.root) }

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return d.Wrap(c)
		}
	}
	return nil
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *Node { return d.topChild(atom.Body) }

// Head returns the <head> element, or nil.
func (d *Document) Head() *Node { return d.topChild(atom.Head) }

func (d *Document) topChild(a atom.Atom) *Node {
	h := d.DocumentElement()
	if h == nil {
		return nil
	}
	for c := h.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return d.Wrap(c)
		}
	}
	return nil
}

// GetElementByID returns the first connected element with the given id.
func (d *Document) GetElementByID(id string) *Node {
	if id == "" {
		return nil
	}
	return d.Root().Query(func(n *Node) bool { return n.Attr("id") == id })
}

// Wrap returns the handle for a raw node. Handles are cached, so the same
// raw node always yields the same *Node.
func (d *Document) Wrap(n *html.Node) *Node {
	if n == nil {
		return nil
	}
	if h, ok := d.nodes[n]; ok {
		return h
	}
	h := &Node{doc: d, n: n}
	d.nodes[n] = h
	return h
}

// CreateElement returns a new detached element.
func (d *Document) CreateElement(tag string) *Node {
	tag = strings.ToLower(tag)
	return d.Wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
}

// CreateText returns a new detached text node.
func (d *Document) CreateText(s string) *Node {
	return d.Wrap(&html.Node{Type: html.TextNode, Data: s})
}

// Global returns a page-scoped value.
func (d *Document) Global(key string) (any, bool) {
	v, ok := d.globals[key]
	return v, ok
}

// SetGlobal stores a page-scoped value. Globals live until Reload.
func (d *Document) SetGlobal(key string, v any) { d.globals[key] = v }

// Submissions returns the forms submitted so far.
func (d *Document) Submissions() []Submission { return d.submissions }

// Navigations returns the link targets followed so far.
func (d *Document) Navigations() []string { return d.navigations }

// ActiveElement returns the focused element, or nil.
func (d *Document) ActiveElement() *Node { return d.active }

// Render serialises the current tree.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("livedom: render: %w", err)
	}
	return buf.String(), nil
}

// notify records a mutation and fans it out to interested observers.
func (d *Document) notify(rec mutation.Record) {
	d.version++
	for _, o := range d.observers {
		o.enqueue(rec)
	}
}
