// Package mutation defines the change records delivered by livedom
// mutation observers. Records carry both a serialisable description of the
// change (op, xpath, tag, attribute) and the live nodes it touched, so
// in-process consumers can act on inserted subtrees directly.
package mutation

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"golang.org/x/net/html"
)

// Op is the type of tree mutation observed.
type Op string

const (
	OpInsert  Op = "insert"   // child nodes inserted
	OpRemove  Op = "remove"   // child nodes removed
	OpText    Op = "text"     // character data modified
	OpAttr    Op = "attr"     // attribute set
	OpAttrDel Op = "attr_del" // attribute removed
	OpReset   Op = "reset"    // whole document replaced (reload)
)

// Record is a single tree mutation.
type Record struct {
	Op       Op     `json:"op"`
	XPath    string `json:"xpath"`
	Tag      string `json:"tag,omitempty"`
	Name     string `json:"name,omitempty"` // attribute name for attr/attr_del
	Value    string `json:"value,omitempty"`
	OldValue string `json:"old_value,omitempty"`
	HTML     string `json:"html,omitempty"` // serialised subtree for insert

	// Target is the node whose children or attributes changed.
	Target *html.Node `json:"-"`
	// Added and Removed list the direct children inserted or removed.
	Added   []*html.Node `json:"-"`
	Removed []*html.Node `json:"-"`
}

// Batch is what an observer callback receives: every record queued during
// one loop turn, in mutation order.
type Batch struct {
	ID        string   `json:"id"`
	PageURL   string   `json:"page_url"`
	Seq       uint64   `json:"seq"` // monotonically increasing per observer
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds at delivery
}

// Inserted returns every node added by the batch, in order.
func (b *Batch) Inserted() []*html.Node {
	var out []*html.Node
	for _, r := range b.Records {
		if r.Op == OpInsert {
			out = append(out, r.Added...)
		}
	}
	return out
}

// MarshalBatch serialises a Batch to JSON. Live node references are dropped.
func MarshalBatch(b *Batch) ([]byte, error) {
	return json.Marshal(b)
}

// HashHTML returns the SHA-256 hex digest of raw HTML bytes.
func HashHTML(raw []byte) string {
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%x", h)
}
