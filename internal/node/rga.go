package node

import (
	"math"
	"sort"

	"github.com/agentflare-ai/jsoncrdt/internal/clock"
)

// IndexAppend represents the "+∞" append sentinel index from spec.md §4.2/
// §4.6: an ArrInsert at this index always lands after the last live
// element (or at Head, if the sequence is empty).
const IndexAppend = math.MaxInt

// RGAInsertAfter inserts a new element with the given id, predecessor,
// insertion dot and value. Idempotent: a repeat insert of an id already
// present is a no-op. If prev is not Head and does not refer to an
// existing element, returns a *StructuralError.
func RGAInsertAfter(seq *Node, prev string, id string, insDot clock.Dot, value *Node) error {
	if _, exists := seq.seqElems[id]; exists {
		return nil
	}
	if prev != Head {
		if _, ok := seq.seqElems[prev]; !ok {
			return &StructuralError{Message: "rgaInsertAfter: predecessor " + prev + " not found"}
		}
	}
	seq.seqElems[id] = &Elem{ID: id, Prev: prev, InsDot: insDot, Value: value}
	invalidateLinearization(seq)
	return nil
}

// RGADelete tombstones the element with the given id, if present. Under
// concurrent deletes the earliest delDot (by clock.Compare) is kept,
// enabling causally-safe compaction later. Missing elements are ignored.
func RGADelete(seq *Node, id string, delDot clock.Dot) {
	e, ok := seq.seqElems[id]
	if !ok {
		return
	}
	switch {
	case !e.Tombstone:
		e.Tombstone = true
		e.DelDot = delDot
		e.HasDelDot = true
	case !e.HasDelDot:
		e.DelDot = delDot
		e.HasDelDot = true
	case clock.Compare(delDot, e.DelDot) < 0:
		e.DelDot = delDot
	}
	invalidateLinearization(seq)
}

func invalidateLinearization(seq *Node) {
	seq.linCached = false
	seq.linCache = nil
}

// RGALinearizeIDs returns the deterministic depth-first visible order of
// element IDs: children of a predecessor are visited in descending
// insertion-dot order (spec.md §4.2), tombstoned elements are omitted from
// the result but their subtrees are still walked. The traversal is
// iterative (an explicit work stack, no recursion over the sequence tree)
// and the result is cached until the next mutating call; callers always
// receive a defensive copy.
func RGALinearizeIDs(seq *Node) []string {
	if !seq.linCached {
		seq.linCache = computeLinearization(seq)
		seq.linCached = true
	}
	out := make([]string, len(seq.linCache))
	copy(out, seq.linCache)
	return out
}

func computeLinearization(seq *Node) []string {
	children := make(map[string][]string)
	for id, e := range seq.seqElems {
		children[e.Prev] = append(children[e.Prev], id)
	}
	for prev, ids := range children {
		sort.Slice(ids, func(i, j int) bool {
			ei, ej := seq.seqElems[ids[i]], seq.seqElems[ids[j]]
			return clock.Compare(ei.InsDot, ej.InsDot) > 0
		})
		children[prev] = ids
	}

	type frame struct {
		siblings []string
		idx      int
	}
	stack := []frame{{siblings: children[Head]}}
	var out []string
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.idx >= len(top.siblings) {
			stack = stack[:len(stack)-1]
			continue
		}
		id := top.siblings[top.idx]
		top.idx++
		e := seq.seqElems[id]
		if !e.Tombstone {
			out = append(out, id)
		}
		stack = append(stack, frame{siblings: children[id]})
	}
	return out
}

// RGAPrevForInsertAtIndex maps a target insert index onto the predecessor
// element ID an insert at that index must attach to: index 0 (or an empty
// sequence) maps to Head; index >= the visible length (including
// IndexAppend) maps to the last live element; any other index maps to the
// visible element immediately before it.
func RGAPrevForInsertAtIndex(seq *Node, index int) string {
	ids := RGALinearizeIDs(seq)
	n := len(ids)
	switch {
	case n == 0 || index <= 0:
		return Head
	case index >= n:
		return ids[n-1]
	default:
		return ids[index-1]
	}
}

// SeqPutRaw stores e directly into seq's element map, overwriting any
// existing element with the same ID, without validating that e.Prev
// resolves to a live element. Merge builds the unioned unordered element
// set before the whole sequence's lineage is necessarily walkable, so it
// cannot use RGAInsertAfter's prev-must-exist check at each step; the
// caller is responsible for the lineage actually being sound once the
// union is complete.
func SeqPutRaw(seq *Node, e *Elem) {
	seq.seqElems[e.ID] = e
	invalidateLinearization(seq)
}

// SeqDeleteRaw permanently removes id from seq's element map, used by
// compaction once an element has been confirmed causally stable and
// orphan-safe to prune. Unlike RGADelete this does not tombstone — it
// erases the element entirely.
func SeqDeleteRaw(seq *Node, id string) {
	delete(seq.seqElems, id)
	invalidateLinearization(seq)
}

// MaxSiblingInsCtr returns the highest insertion-dot counter among
// elements (live or tombstoned) sharing the given predecessor, or 0 if
// there are none. Used to fast-forward a local clock above a skewed
// sibling's counter before minting a new insertion dot (spec.md §4.2).
func MaxSiblingInsCtr(seq *Node, prev string) uint64 {
	var max uint64
	for _, e := range seq.seqElems {
		if e.Prev == prev && e.InsDot.Ctr > max {
			max = e.InsDot.Ctr
		}
	}
	return max
}
