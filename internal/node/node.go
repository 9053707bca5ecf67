// Package node implements the CRDT node algebra: the three-variant tagged
// union (LWW register, observed-remove map, RGA sequence) that every JSON
// value is represented as, plus the primitive mutators spec.md §4.2
// requires. This package has no notion of JSON Patch or intents — it is
// the pure data-structure layer the rest of the engine builds on.
package node

import (
	"fmt"

	"github.com/agentflare-ai/jsoncrdt/internal/clock"
)

// Kind discriminates the three Node variants.
type Kind uint8

const (
	KindLWW Kind = iota
	KindObj
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindLWW:
		return "lww"
	case KindObj:
		return "obj"
	case KindSeq:
		return "seq"
	default:
		return "unknown"
	}
}

// Head is the reserved sentinel predecessor ID representing the virtual
// origin of an RGA sequence.
const Head = "HEAD"

// ObjEntry is one live entry of an object map: the child node and the dot
// that wrote it.
type ObjEntry struct {
	Node *Node
	Dot  clock.Dot
}

// Elem is a single RGA sequence element.
type Elem struct {
	ID        string
	Prev      string
	InsDot    clock.Dot
	Tombstone bool
	// HasDelDot distinguishes "never deleted" from "deleted but the delDot
	// was not carried on the wire" — spec.md §9's open question on
	// back-compat ingestion. A tombstone with HasDelDot=false is never
	// eligible for compaction (internal/compact treats it as non-stable).
	HasDelDot bool
	DelDot    clock.Dot
	Value     *Node
}

// Node is the tagged union. Exactly one of the field groups below is
// meaningful, selected by Kind.
type Node struct {
	Kind Kind

	// KindLWW
	lwwValue any
	lwwDot   clock.Dot

	// KindObj
	objEntries map[string]ObjEntry
	objTomb    map[string]clock.Dot

	// KindSeq
	seqElems map[string]*Elem
	// linearization cache; nil/dirty means "recompute on next read".
	linCache  []string
	linCached bool
}

// Doc wraps the root node of a replicated document.
type Doc struct {
	Root *Node
}

// NewReg creates a new LWW register holding value, written by dot.
func NewReg(value any, dot clock.Dot) *Node {
	return &Node{Kind: KindLWW, lwwValue: value, lwwDot: dot}
}

// NewObj creates a new, empty object map.
func NewObj() *Node {
	return &Node{Kind: KindObj, objEntries: map[string]ObjEntry{}, objTomb: map[string]clock.Dot{}}
}

// NewSeq creates a new, empty RGA sequence.
func NewSeq() *Node {
	return &Node{Kind: KindSeq, seqElems: map[string]*Elem{}}
}

// RegValue returns the register's current value and dot. For a node that
// is not KindLWW it returns nil and the zero dot; callers must check Kind
// first (this mirrors the teacher's convention of trusting structural
// invariants established by the compiler rather than defensively
// re-checking at every call site).
func (n *Node) RegValue() (any, clock.Dot) {
	return n.lwwValue, n.lwwDot
}

// ObjEntries returns a snapshot copy of the key-to-entry map. The caller
// owns the returned map; mutating it does not affect n.
func (n *Node) ObjEntries() map[string]ObjEntry {
	out := make(map[string]ObjEntry, len(n.objEntries))
	for k, v := range n.objEntries {
		out[k] = v
	}
	return out
}

// ObjGet returns the live entry for key, if any.
func (n *Node) ObjGet(key string) (ObjEntry, bool) {
	e, ok := n.objEntries[key]
	return e, ok
}

// ObjTombstone returns the tombstone dot for key, if any.
func (n *Node) ObjTombstone(key string) (clock.Dot, bool) {
	d, ok := n.objTomb[key]
	return d, ok
}

// ObjTombstones returns a snapshot copy of the tombstone map.
func (n *Node) ObjTombstones() map[string]clock.Dot {
	out := make(map[string]clock.Dot, len(n.objTomb))
	for k, v := range n.objTomb {
		out[k] = v
	}
	return out
}

// SeqElem returns the element with the given ID, if present.
func (n *Node) SeqElem(id string) (*Elem, bool) {
	e, ok := n.seqElems[id]
	return e, ok
}

// SeqElems returns a snapshot copy of the element map.
func (n *Node) SeqElems() map[string]*Elem {
	out := make(map[string]*Elem, len(n.seqElems))
	for k, v := range n.seqElems {
		out[k] = v
	}
	return out
}

// SeqLen returns the number of elements (live and tombstoned) in the
// sequence.
func (n *Node) SeqLen() int {
	return len(n.seqElems)
}

// StructuralError reports a violated RGA/object structural invariant, such
// as inserting after a predecessor that does not exist.
type StructuralError struct {
	Message string
}

func (e *StructuralError) Error() string {
	return "node: " + e.Message
}

// LWWSet overwrites reg's value iff newDot strictly outranks the current
// dot, per spec.md §4.2. Returns whether the write took effect.
func LWWSet(reg *Node, value any, newDot clock.Dot) bool {
	if clock.Compare(newDot, reg.lwwDot) > 0 {
		reg.lwwValue = value
		reg.lwwDot = newDot
		return true
	}
	return false
}

// ObjSet writes key=newNode at entryDot, delete-wins: a no-op if a
// tombstone for key outranks entryDot. Clears any tombstone on success.
func ObjSet(obj *Node, key string, newNode *Node, entryDot clock.Dot) {
	if tomb, ok := obj.objTomb[key]; ok && clock.Compare(tomb, entryDot) >= 0 {
		return
	}
	obj.objEntries[key] = ObjEntry{Node: newNode, Dot: entryDot}
	delete(obj.objTomb, key)
}

// ObjRemove removes key (if live) and raises its tombstone to
// max(existing, delDot). Always idempotent.
func ObjRemove(obj *Node, key string, delDot clock.Dot) {
	delete(obj.objEntries, key)
	if existing, ok := obj.objTomb[key]; !ok || clock.Compare(delDot, existing) > 0 {
		obj.objTomb[key] = delDot
	}
}

// ObjPruneTombstone removes the tombstone for key without touching any
// live entry, used by compaction once the tombstone's dot is causally
// stable. A no-op if key has no tombstone.
func ObjPruneTombstone(obj *Node, key string) {
	delete(obj.objTomb, key)
}

// DotToElemID renders a dot as the RGA element-ID string "actor:ctr".
func DotToElemID(d clock.Dot) string {
	return fmt.Sprintf("%s:%d", d.Actor, d.Ctr)
}

// RepresentativeDot returns the single dot standing in for n as a whole,
// used to break a merge kind-mismatch tie (spec.md §4.8): the register's
// own dot for a KindLWW, and the greatest dot reachable in the node's
// entries/elements otherwise. An empty container has no dot of its own and
// reports clock.Zero, which always loses to any real write.
func RepresentativeDot(n *Node) clock.Dot {
	switch n.Kind {
	case KindLWW:
		return n.lwwDot
	case KindObj:
		best := clock.Zero
		for _, e := range n.objEntries {
			if clock.Greater(e.Dot, best) {
				best = e.Dot
			}
		}
		for _, d := range n.objTomb {
			if clock.Greater(d, best) {
				best = d
			}
		}
		return best
	case KindSeq:
		best := clock.Zero
		for _, e := range n.seqElems {
			if clock.Greater(e.InsDot, best) {
				best = e.InsDot
			}
		}
		return best
	default:
		return clock.Zero
	}
}
