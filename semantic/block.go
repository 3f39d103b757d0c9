// Package semantic recognises the functional blocks of an unknown page
// (forms, search bars, action groups, content, navigation, sidebars, ads),
// deduplicates overlapping detections, routes each block to a destination
// zone and picks a layout strategy. Every identifier reads the tree as
// loaded; nothing in this package mutates it.
package semantic

import (
	"fmt"

	"github.com/hazyhaar/elderly/livedom"
	"github.com/hazyhaar/elderly/livedom/mutation"
)

// Kind is the functional category of a block.
type Kind int

const (
	Unknown Kind = iota
	Form
	Search
	Action
	Content
	Sidebar
	Ad
	Navigation
	Mixed
)

var kindNames = [...]string{
	Unknown:    "unknown",
	Form:       "form",
	Search:     "search",
	Action:     "action",
	Content:    "content",
	Sidebar:    "sidebar",
	Ad:         "ad",
	Navigation: "navigation",
	Mixed:      "mixed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Priority is fixed per kind. It documents relative importance and breaks
// ties; it does not order output.
func (k Kind) Priority() int {
	switch k {
	case Form:
		return 100
	case Content:
		return 95
	case Search:
		return 90
	case Action:
		return 85
	case Navigation:
		return 80
	case Sidebar:
		return 20
	}
	return 0
}

// Metadata carries what identifiers learn about a block.
type Metadata struct {
	// Form blocks.
	HasLogin   bool `json:"has_login,omitempty"`
	HasSearch  bool `json:"has_search,omitempty"`
	InputCount int  `json:"input_count,omitempty"`
	Implicit   bool `json:"implicit,omitempty"`

	// Navigation blocks.
	LinkCount int `json:"link_count,omitempty"`

	// Action blocks: normalised rendered text, the deduplication key.
	Text string `json:"text,omitempty"`
}

// Block is one detected functional unit. Blocks are built fresh on every
// identification pass.
type Block struct {
	Node     *livedom.Node
	Kind     Kind
	Priority int
	// Atomic blocks are materialised as an indivisible unit. Only content
	// blocks are non-atomic.
	Atomic bool
	Meta   Metadata
}

func newBlock(n *livedom.Node, k Kind, meta Metadata) Block {
	return Block{Node: n, Kind: k, Priority: k.Priority(), Atomic: k != Content, Meta: meta}
}

// Summary is the serialisable view of a block.
type Summary struct {
	Kind     Kind     `json:"kind"`
	Priority int      `json:"priority"`
	Atomic   bool     `json:"atomic"`
	XPath    string   `json:"xpath"`
	Tag      string   `json:"tag"`
	Meta     Metadata `json:"meta"`
}

// Summarize describes b without live references.
func (b Block) Summarize() Summary {
	return Summary{
		Kind:     b.Kind,
		Priority: b.Priority,
		Atomic:   b.Atomic,
		XPath:    mutation.XPath(b.Node.Raw()),
		Tag:      b.Node.Tag(),
		Meta:     b.Meta,
	}
}
