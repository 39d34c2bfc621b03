// Package metadata holds the attribute, collection node and tree types that
// are produced for every ingested file, along with the assembler that builds
// trees and the error kinds shared by the resolution packages.
package metadata

import (
	"fmt"
	"strings"
)

// Entry is a single attribute attached to a collection or an object.
// A nil Value marks an attribute that could not be populated; such entries
// are still emitted so that missing fields stay visible downstream.
type Entry struct {
	Name       string  `json:"name"`
	Value      *string `json:"value"`
	DateFormat string  `json:"date_format,omitempty"`
}

// NewEntry returns an Entry with a value.
func NewEntry(name, value string) Entry {
	return Entry{Name: name, Value: &value}
}

// MissingEntry returns an Entry without a value.
func MissingEntry(name string) Entry {
	return Entry{Name: name}
}

// WithDateFormat returns a copy of the entry carrying a date format.
func (e Entry) WithDateFormat(format string) Entry {
	e.DateFormat = format
	return e
}

// Missing reports whether the entry has no value.
func (e Entry) Missing() bool {
	return e.Value == nil
}

// ValueOr returns the entry's value or def when the value is missing.
func (e Entry) ValueOr(def string) string {
	if e.Value == nil {
		return def
	}
	return *e.Value
}

func (e Entry) String() string {
	return fmt.Sprintf("%s=%s", e.Name, e.ValueOr("<missing>"))
}

// DropMissing returns the entries that carry a value, preserving order.
func DropMissing(entries []Entry) []Entry {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Missing() {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// Node is one level of the collection hierarchy.
type Node struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

// Get returns the first value stored under name.
func (n Node) Get(name string) (string, bool) {
	for _, e := range n.Entries {
		if e.Name == name && e.Value != nil {
			return *e.Value, true
		}
	}
	return "", false
}

// Tree is the metadata produced for a single file: the ordered collection
// nodes from the root to the file's parent, plus the object's own entries.
type Tree struct {
	Tenant      string  `json:"tenant"`
	Destination string  `json:"destination"`
	Nodes       []Node  `json:"collections"`
	Object      []Entry `json:"object"`
}

// Leaf returns the last collection node, which is the file's parent.
func (t *Tree) Leaf() (Node, bool) {
	if t == nil || len(t.Nodes) == 0 {
		return Node{}, false
	}
	return t.Nodes[len(t.Nodes)-1], true
}

// Paths lists the collection paths in order, collapsing revisits of the same
// path.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		if len(paths) > 0 && paths[len(paths)-1] == n.Path {
			continue
		}
		paths = append(paths, n.Path)
	}
	return paths
}

// ObjectValue returns the first object-level value stored under name.
func (t *Tree) ObjectValue(name string) (string, bool) {
	return Node{Entries: t.Object}.Get(name)
}

func (t *Tree) String() string {
	return t.Tenant + ":" + t.Destination + " [" + strings.Join(t.Paths(), " > ") + "]"
}
