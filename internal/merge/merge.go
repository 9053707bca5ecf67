// Package merge implements the commutative, associative, idempotent
// doc-level CRDT merge: LWW greater-dot-wins, OR-map union with
// delete-wins tombstones, and RGA union by element ID with lineage
// checking (spec.md §4.8). The higher-level state-level merge (doc merge
// plus clock reconciliation) is built on top of MergeDoc by the root
// façade.
package merge

import (
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/errs"
	"github.com/agentflare-ai/jsoncrdt/internal/materialize"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
)

// Options configures MergeDoc. AllowDisjointOrigin inverts spec.md's
// requireSharedOrigin flag (whose default is true) so that the Go zero
// value matches the spec default: leave it false to require that two
// non-empty sequences at the same path share at least one element ID.
type Options struct {
	AllowDisjointOrigin bool
}

// task is one pending (a, b) node-pair resolution. assign is invoked with
// the fully merged node for this pair — immediately, for a leaf or a
// kind-mismatch, or as soon as a freshly built container is constructed
// (mirroring internal/materialize's build-then-fill-children iterative
// style), so children can be pushed as further tasks without recursion.
type task struct {
	a, b   *node.Node
	path   string
	depth  int
	assign func(*node.Node)
}

// MergeDoc returns a fresh doc merging a and b. Neither input is mutated.
func MergeDoc(a, b *node.Doc, opts Options) (*node.Doc, error) {
	aRoot, bRoot := docRoot(a), docRoot(b)
	switch {
	case aRoot == nil && bRoot == nil:
		return &node.Doc{}, nil
	case aRoot == nil:
		return &node.Doc{Root: bRoot.Clone()}, nil
	case bRoot == nil:
		return &node.Doc{Root: aRoot.Clone()}, nil
	}

	var merged *node.Node
	stack := []task{{a: aRoot, b: bRoot, path: "", depth: 0, assign: func(n *node.Node) { merged = n }}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.depth > materialize.MaxTraversalDepth {
			return nil, errs.New(errs.MaxDepthExceeded, t.path, "merge traversal exceeded max depth")
		}
		if err := mergeOne(t, &stack, opts); err != nil {
			return nil, err
		}
	}
	return &node.Doc{Root: merged}, nil
}

func docRoot(d *node.Doc) *node.Node {
	if d == nil {
		return nil
	}
	return d.Root
}

func mergeOne(t task, stack *[]task, opts Options) error {
	a, b := t.a, t.b

	if a.Kind != b.Kind {
		t.assign(kindMismatchWinner(a, b).Clone())
		return nil
	}

	switch a.Kind {
	case node.KindLWW:
		t.assign(mergeLWW(a, b))
		return nil
	case node.KindObj:
		return mergeObj(a, b, t.path, t.depth, t.assign, stack)
	case node.KindSeq:
		return mergeSeq(a, b, t.path, t.depth, opts, t.assign, stack)
	default:
		t.assign(a.Clone())
		return nil
	}
}

// kindMismatchWinner picks the side to keep when a and b disagree on Kind
// (spec.md §4.8: "pick the side whose representative dot is greater").
// RepresentativeDot alone is argument-order-dependent whenever both sides
// compare equal (e.g. two empty containers, both reporting clock.Zero):
// neither Greater(a,b) nor Greater(b,a) holds, so picking "a" by default
// would make mergeDoc(a,b) keep a's kind while mergeDoc(b,a) keeps b's,
// breaking commutativity. Break that tie by Kind, independent of argument
// order, so both call orders agree.
func kindMismatchWinner(a, b *node.Node) *node.Node {
	aDot, bDot := node.RepresentativeDot(a), node.RepresentativeDot(b)
	switch {
	case clock.Greater(aDot, bDot):
		return a
	case clock.Greater(bDot, aDot):
		return b
	case a.Kind > b.Kind:
		return a
	default:
		return b
	}
}

func mergeLWW(a, b *node.Node) *node.Node {
	aVal, aDot := a.RegValue()
	bVal, bDot := b.RegValue()
	if clock.Greater(bDot, aDot) {
		return node.NewReg(cloneLeaf(bVal), bDot)
	}
	return node.NewReg(cloneLeaf(aVal), aDot)
}

func cloneLeaf(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, vv := range tv {
			out[k] = cloneLeaf(vv)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, vv := range tv {
			out[i] = cloneLeaf(vv)
		}
		return out
	default:
		return v
	}
}

// mergeObj builds the merged object map immediately (assigning it to the
// parent via assign right away) then pushes one task per key that needs
// an actual recursive merge (both sides hold a live entry for that key);
// one-sided entries and resolved tombstones are written into the
// container directly since they need no further recursion.
func mergeObj(a, b *node.Node, path string, depth int, assign func(*node.Node), stack *[]task) error {
	out := node.NewObj()
	assign(out)

	keys := map[string]struct{}{}
	for k := range a.ObjEntries() {
		keys[k] = struct{}{}
	}
	for k := range b.ObjEntries() {
		keys[k] = struct{}{}
	}
	for k := range a.ObjTombstones() {
		keys[k] = struct{}{}
	}
	for k := range b.ObjTombstones() {
		keys[k] = struct{}{}
	}

	for key := range keys {
		aEntry, aHasEntry := a.ObjGet(key)
		bEntry, bHasEntry := b.ObjGet(key)
		aTomb, aHasTomb := a.ObjTombstone(key)
		bTomb, bHasTomb := b.ObjTombstone(key)

		entryWinDot := clock.Zero
		if aHasEntry && clock.Greater(aEntry.Dot, entryWinDot) {
			entryWinDot = aEntry.Dot
		}
		if bHasEntry && clock.Greater(bEntry.Dot, entryWinDot) {
			entryWinDot = bEntry.Dot
		}

		tombWinDot := clock.Zero
		hasTomb := aHasTomb || bHasTomb
		if aHasTomb && clock.Greater(aTomb, tombWinDot) {
			tombWinDot = aTomb
		}
		if bHasTomb && clock.Greater(bTomb, tombWinDot) {
			tombWinDot = bTomb
		}

		if hasTomb && clock.Compare(tombWinDot, entryWinDot) >= 0 {
			node.ObjRemove(out, key, tombWinDot)
			continue
		}

		switch {
		case aHasEntry && bHasEntry:
			childPath := path + "/" + key
			k, dot := key, entryWinDot
			*stack = append(*stack, task{
				a: aEntry.Node, b: bEntry.Node, path: childPath, depth: depth + 1,
				assign: func(merged *node.Node) { node.ObjSet(out, k, merged, dot) },
			})
		case aHasEntry:
			node.ObjSet(out, key, aEntry.Node.Clone(), aEntry.Dot)
		case bHasEntry:
			node.ObjSet(out, key, bEntry.Node.Clone(), bEntry.Dot)
		}
	}
	return nil
}

// mergeSeq builds the merged sequence immediately, enforces the
// shared-origin check, then pushes one task per element ID present on
// both sides (requiring lineage agreement and recursive value merge);
// one-sided elements are cloned straight into the container.
func mergeSeq(a, b *node.Node, path string, depth int, opts Options, assign func(*node.Node), stack *[]task) error {
	out := node.NewSeq()
	aElems, bElems := a.SeqElems(), b.SeqElems()

	if len(aElems) > 0 && len(bElems) > 0 && !opts.AllowDisjointOrigin {
		shared := false
		for id := range aElems {
			if _, ok := bElems[id]; ok {
				shared = true
				break
			}
		}
		if !shared {
			return errs.New(errs.LineageMismatch, path, "sequences share no element IDs and requireSharedOrigin is set")
		}
	}

	assign(out)

	ids := map[string]struct{}{}
	for id := range aElems {
		ids[id] = struct{}{}
	}
	for id := range bElems {
		ids[id] = struct{}{}
	}

	for id := range ids {
		aElem, aHas := aElems[id]
		bElem, bHas := bElems[id]
		switch {
		case aHas && bHas:
			if aElem.Prev != bElem.Prev {
				return errs.New(errs.LineageMismatch, path, "element "+id+" disagrees on prev")
			}
			if clock.Compare(aElem.InsDot, bElem.InsDot) != 0 {
				return errs.New(errs.LineageMismatch, path, "element "+id+" disagrees on insDot")
			}
			tomb := aElem.Tombstone || bElem.Tombstone
			hasDel, delDot := mergeDelDot(aElem, bElem)
			childPath := path + "/" + id
			elemID, prev, insDot := id, aElem.Prev, aElem.InsDot
			*stack = append(*stack, task{
				a: aElem.Value, b: bElem.Value, path: childPath, depth: depth + 1,
				assign: func(merged *node.Node) {
					node.SeqPutRaw(out, &node.Elem{
						ID: elemID, Prev: prev, InsDot: insDot,
						Tombstone: tomb, HasDelDot: hasDel, DelDot: delDot,
						Value: merged,
					})
				},
			})
		case aHas:
			node.SeqPutRaw(out, cloneElem(aElem))
		case bHas:
			node.SeqPutRaw(out, cloneElem(bElem))
		}
	}
	return nil
}

func mergeDelDot(a, b *node.Elem) (bool, clock.Dot) {
	switch {
	case a.HasDelDot && b.HasDelDot:
		if clock.Compare(a.DelDot, b.DelDot) < 0 {
			return true, a.DelDot
		}
		return true, b.DelDot
	case a.HasDelDot:
		return true, a.DelDot
	case b.HasDelDot:
		return true, b.DelDot
	default:
		return false, clock.Zero
	}
}

func cloneElem(e *node.Elem) *node.Elem {
	cp := *e
	cp.Value = e.Value.Clone()
	return &cp
}
