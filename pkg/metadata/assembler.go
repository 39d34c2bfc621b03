package metadata

import (
	"errors"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
)

// Mode controls how strictly the Assembler checks collection nesting.
type Mode int

const (
	// ModeStrict rejects nodes that are not nested under the previous node.
	ModeStrict Mode = iota
	// ModeLegacy records nodes in any order.
	ModeLegacy
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ErrEmptyPath is returned when a node or object is appended without a path.
var ErrEmptyPath = errors.New("empty collection path")

// Assembler accumulates the collection nodes for one file, from the root
// collection down to the file's parent, and produces an immutable Tree.
// An Assembler belongs to a single file and is not safe for concurrent use.
type Assembler struct {
	tenant string
	mode   Mode

	nodes       []Node
	destination string
	object      []Entry
	closed      bool
}

// NewAssembler returns an open assembler for a tenant.
func NewAssembler(tenant string, mode Mode) *Assembler {
	return &Assembler{
		tenant: tenant,
		mode:   mode,
		nodes:  make([]Node, 0),
		object: make([]Entry, 0),
	}
}

// NormalizePath cleans a collection path and makes it absolute.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean("/" + p)
}

// IsDescendant reports whether child is strictly below parent. Both paths
// must be normalized.
func IsDescendant(parent, child string) bool {
	if parent == child {
		return false
	}
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return strings.HasPrefix(child, parent+"/")
}

// AppendNode adds a collection node. Appending the same path as the previous
// node is allowed; tenants use it to attach more entries to a collection.
func (a *Assembler) AppendNode(p string, entries ...Entry) error {
	if a.closed {
		return &AssemblerClosedError{Op: "append node"}
	}
	p = NormalizePath(p)
	if p == "" {
		return ErrEmptyPath
	}
	if prev, ok := a.last(); ok && prev != p && !IsDescendant(prev, p) {
		if a.mode == ModeStrict {
			return &PathOrderingError{Previous: prev, Path: p}
		}
		log.Debug().Str("previous", prev).Str("path", p).Msg("collection appended out of order")
	}
	a.nodes = append(a.nodes, Node{Path: p, Entries: cloneEntries(entries)})
	return nil
}

// SetObject records the destination of the file and its object-level
// entries, replacing any previously set.
func (a *Assembler) SetObject(destination string, entries ...Entry) error {
	if a.closed {
		return &AssemblerClosedError{Op: "set object"}
	}
	destination = NormalizePath(destination)
	if destination == "" {
		return ErrEmptyPath
	}
	if prev, ok := a.last(); ok && a.mode == ModeStrict && !IsDescendant(prev, destination) {
		return &PathOrderingError{Previous: prev, Path: destination}
	}
	a.destination = destination
	a.object = cloneEntries(entries)
	return nil
}

// AddObjectEntries appends object-level entries.
func (a *Assembler) AddObjectEntries(entries ...Entry) error {
	if a.closed {
		return &AssemblerClosedError{Op: "add object entries"}
	}
	a.object = append(a.object, cloneEntries(entries)...)
	return nil
}

// Len returns the number of appended nodes.
func (a *Assembler) Len() int {
	return len(a.nodes)
}

// Last returns the path of the most recently appended node.
func (a *Assembler) Last() (string, bool) {
	return a.last()
}

// Closed reports whether Finalize has been called.
func (a *Assembler) Closed() bool {
	return a.closed
}

// Finalize closes the assembler and returns the tree. Every later call,
// including another Finalize, fails with an AssemblerClosedError.
func (a *Assembler) Finalize() (*Tree, error) {
	if a.closed {
		return nil, &AssemblerClosedError{Op: "finalize"}
	}
	a.closed = true

	nodes := make([]Node, 0, len(a.nodes))
	for _, n := range a.nodes {
		nodes = append(nodes, Node{Path: n.Path, Entries: cloneEntries(n.Entries)})
	}
	return &Tree{
		Tenant:      a.tenant,
		Destination: a.destination,
		Nodes:       nodes,
		Object:      cloneEntries(a.object),
	}, nil
}

func (a *Assembler) last() (string, bool) {
	if len(a.nodes) == 0 {
		return "", false
	}
	return a.nodes[len(a.nodes)-1].Path, true
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Value != nil {
			v := *e.Value
			e.Value = &v
		}
		out = append(out, e)
	}
	return out
}
