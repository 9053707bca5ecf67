// Package compact implements tombstone garbage collection: pruning
// object-key tombstones and RGA tombstoned elements that are causally
// stable under a version vector, without ever orphaning a live descendant
// (spec.md §4.9). Materialized JSON is identical before and after.
package compact

import (
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/errs"
	"github.com/agentflare-ai/jsoncrdt/internal/materialize"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
)

// Options configures CompactDocTombstones.
type Options struct {
	// Stable is the version vector below which a tombstone's dot is
	// considered causally covered by every replica that matters; see
	// spec.md's compacting-replicas caveat about not merging with peers
	// behind Stable afterward.
	Stable clock.VV
	// Mutate compacts doc.Root in place when true; when false (the
	// default) a deep clone is compacted and returned, leaving doc
	// untouched.
	Mutate bool
}

// Stats reports how much was pruned.
type Stats struct {
	ObjectTombstonesRemoved   int
	SequenceTombstonesRemoved int
}

type walkTask struct {
	n     *node.Node
	depth int
}

// CompactDocTombstones prunes doc per opts and returns the (possibly
// cloned) result doc alongside pruning stats.
func CompactDocTombstones(doc *node.Doc, opts Options) (*node.Doc, Stats, error) {
	var stats Stats
	target := doc
	if !opts.Mutate {
		target = node.CloneDoc(doc)
	}
	if target == nil || target.Root == nil {
		return target, stats, nil
	}

	stack := []walkTask{{n: target.Root, depth: 0}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.depth > materialize.MaxTraversalDepth {
			return nil, stats, errs.New(errs.MaxDepthExceeded, "", "compaction traversal exceeded max depth")
		}
		switch t.n.Kind {
		case node.KindObj:
			compactObjTombstones(t.n, opts.Stable, &stats)
			for _, entry := range t.n.ObjEntries() {
				stack = append(stack, walkTask{n: entry.Node, depth: t.depth + 1})
			}
		case node.KindSeq:
			kept := compactSeqTombstones(t.n, opts.Stable, &stats)
			for _, elem := range kept {
				stack = append(stack, walkTask{n: elem.Value, depth: t.depth + 1})
			}
		}
	}
	return target, stats, nil
}

func compactObjTombstones(obj *node.Node, stable clock.VV, stats *Stats) {
	for key, dot := range obj.ObjTombstones() {
		if stable.Has(dot) {
			node.ObjPruneTombstone(obj, key)
			stats.ObjectTombstonesRemoved++
		}
	}
}

// compactSeqTombstones prunes eligible tombstoned elements from seq and
// returns the elements that remain (so the caller can still recurse into
// their values).
func compactSeqTombstones(seq *node.Node, stable clock.VV, stats *Stats) []*node.Elem {
	elems := seq.SeqElems()
	children := make(map[string][]string, len(elems))
	for id, e := range elems {
		children[e.Prev] = append(children[e.Prev], id)
	}

	// Bottom-up liveness: liveBeneath[id] = !tombstoned(id) || any
	// liveBeneath[child] for child in children[id]. Computed over a
	// reverse preorder (stack-built, so children are visited before their
	// ancestors when processed in reverse) to avoid Go-stack recursion
	// over what can be a long, chain-shaped sequence.
	var preorder []string
	work := append([]string(nil), children[node.Head]...)
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		preorder = append(preorder, id)
		work = append(work, children[id]...)
	}
	liveBeneath := make(map[string]bool, len(preorder))
	for i := len(preorder) - 1; i >= 0; i-- {
		id := preorder[i]
		live := !elems[id].Tombstone
		for _, c := range children[id] {
			if liveBeneath[c] {
				live = true
			}
		}
		liveBeneath[id] = live
	}

	var kept []*node.Elem
	for id, e := range elems {
		if !e.Tombstone {
			kept = append(kept, e)
			continue
		}
		hasLiveDescendant := false
		for _, c := range children[id] {
			if liveBeneath[c] {
				hasLiveDescendant = true
				break
			}
		}
		if e.HasDelDot && stable.Has(e.DelDot) && !hasLiveDescendant {
			node.SeqDeleteRaw(seq, id)
			stats.SequenceTombstonesRemoved++
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
