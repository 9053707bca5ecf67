// Package wire implements the canonical external representation of a CRDT
// doc: a typed tree preserving every node kind, dot, tombstone, and
// sequence key, serializable under either JSON or MessagePack via the
// same struct (spec.md §4.10). Deserialize performs the strict shape and
// structural-invariant validation the spec requires before a doc is
// trusted.
package wire

import (
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/errs"
	"github.com/agentflare-ai/jsoncrdt/internal/materialize"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
)

// Kind strings used on the wire, kept stable independent of the internal
// node.Kind iota so the external form never breaks if the internal
// ordering changes.
const (
	KindLWW = "lww"
	KindObj = "obj"
	KindSeq = "seq"
)

// Dot is the wire form of clock.Dot.
type Dot struct {
	Actor string `json:"actor" msgpack:"actor"`
	Ctr   uint64 `json:"ctr" msgpack:"ctr"`
}

// ObjEntry is one live object-map entry on the wire.
type ObjEntry struct {
	Node Node `json:"node" msgpack:"node"`
	Dot  Dot  `json:"dot" msgpack:"dot"`
}

// Elem is one RGA sequence element on the wire.
type Elem struct {
	ID        string `json:"id" msgpack:"id"`
	Prev      string `json:"prev" msgpack:"prev"`
	InsDot    Dot    `json:"insDot" msgpack:"insDot"`
	Tombstone bool   `json:"tombstone" msgpack:"tombstone"`
	HasDelDot bool   `json:"hasDelDot,omitempty" msgpack:"hasDelDot,omitempty"`
	DelDot    *Dot   `json:"delDot,omitempty" msgpack:"delDot,omitempty"`
	Value     Node   `json:"value" msgpack:"value"`
}

// Node is the canonical wire form of node.Node. Exactly the field group
// matching Kind is populated; the others are left at their zero value. The
// empty maps and a nil Value are omitted on the wire; Dot is a struct, so
// the JSON codec still writes it (as a zero dot) for obj and seq nodes.
type Node struct {
	Kind string `json:"kind" msgpack:"kind"`

	// KindLWW
	Value any `json:"value,omitempty" msgpack:"value,omitempty"`
	Dot   Dot `json:"dot,omitempty" msgpack:"dot,omitempty"`

	// KindObj
	Entries    map[string]ObjEntry `json:"entries,omitempty" msgpack:"entries,omitempty"`
	Tombstones map[string]Dot      `json:"tombstones,omitempty" msgpack:"tombstones,omitempty"`

	// KindSeq
	Elements map[string]Elem `json:"elements,omitempty" msgpack:"elements,omitempty"`
}

// State is the canonical wire form of a {doc, clock} pair.
type State struct {
	Doc        Node   `json:"doc" msgpack:"doc"`
	ClockActor string `json:"clockActor" msgpack:"clockActor"`
	ClockCtr   uint64 `json:"clockCtr" msgpack:"clockCtr"`
}

func toDot(d clock.Dot) Dot { return Dot{Actor: d.Actor, Ctr: d.Ctr} }

func fromDot(d Dot) clock.Dot { return clock.Dot{Actor: d.Actor, Ctr: d.Ctr} }

// SerializeDoc converts a live doc into its canonical wire form.
func SerializeDoc(d *node.Doc) Node {
	if d == nil || d.Root == nil {
		return Node{}
	}
	return serializeNode(d.Root)
}

func serializeNode(n *node.Node) Node {
	switch n.Kind {
	case node.KindLWW:
		val, dot := n.RegValue()
		return Node{Kind: KindLWW, Value: val, Dot: toDot(dot)}

	case node.KindObj:
		entries := make(map[string]ObjEntry, len(n.ObjEntries()))
		for k, e := range n.ObjEntries() {
			entries[k] = ObjEntry{Node: serializeNode(e.Node), Dot: toDot(e.Dot)}
		}
		tombs := make(map[string]Dot, len(n.ObjTombstones()))
		for k, d := range n.ObjTombstones() {
			tombs[k] = toDot(d)
		}
		return Node{Kind: KindObj, Entries: entries, Tombstones: tombs}

	case node.KindSeq:
		elems := make(map[string]Elem, n.SeqLen())
		for id, e := range n.SeqElems() {
			we := Elem{
				ID: e.ID, Prev: e.Prev, InsDot: toDot(e.InsDot),
				Tombstone: e.Tombstone, HasDelDot: e.HasDelDot,
				Value: serializeNode(e.Value),
			}
			if e.HasDelDot {
				d := toDot(e.DelDot)
				we.DelDot = &d
			}
			elems[id] = we
		}
		return Node{Kind: KindSeq, Elements: elems}

	default:
		return Node{}
	}
}

// SerializeState converts a doc+clock pair into its canonical wire form.
func SerializeState(d *node.Doc, c *clock.Clock) State {
	return State{Doc: SerializeDoc(d), ClockActor: c.Actor(), ClockCtr: c.Ctr()}
}

// DeserializeDoc validates and reconstructs a doc from its wire form.
func DeserializeDoc(w Node) (*node.Doc, error) {
	if isZeroNode(w) {
		return &node.Doc{}, nil
	}
	root, err := deserializeNode(w, "", 0)
	if err != nil {
		return nil, err
	}
	return &node.Doc{Root: root}, nil
}

// DeserializeState validates and reconstructs a State, then fast-forwards
// the clock to the max ctr actually observed for its actor in the doc
// (spec.md §4.10's defense against tampered or stale metadata).
func DeserializeState(w State) (*node.Doc, *clock.Clock, error) {
	doc, err := DeserializeDoc(w.Doc)
	if err != nil {
		return nil, nil, err
	}
	c, err := clock.New(w.ClockActor, int64(w.ClockCtr))
	if err != nil {
		return nil, nil, errs.New(errs.InvalidSerializedInvariant, "", err.Error())
	}
	c.FastForward(MaxCtrForActor(doc, w.ClockActor))
	return doc, c, nil
}

func isZeroNode(w Node) bool {
	return w.Kind == ""
}

func deserializeNode(w Node, path string, depth int) (*node.Node, error) {
	if depth > materialize.MaxTraversalDepth {
		return nil, errs.New(errs.MaxDepthExceeded, path, "deserialize traversal exceeded max depth")
	}
	switch w.Kind {
	case KindLWW:
		if w.Dot.Actor == "" {
			return nil, errs.New(errs.InvalidSerializedInvariant, path, "lww node has an empty actor")
		}
		return node.NewReg(w.Value, fromDot(w.Dot)), nil

	case KindObj:
		obj := node.NewObj()
		for key, we := range w.Entries {
			if we.Dot.Actor == "" {
				return nil, errs.New(errs.InvalidSerializedInvariant, path+"/"+key, "object entry has an empty actor")
			}
			child, err := deserializeNode(we.Node, path+"/"+key, depth+1)
			if err != nil {
				return nil, err
			}
			node.ObjSet(obj, key, child, fromDot(we.Dot))
		}
		for key, d := range w.Tombstones {
			if d.Actor == "" {
				return nil, errs.New(errs.InvalidSerializedInvariant, path+"/"+key, "tombstone has an empty actor")
			}
			if _, live := w.Entries[key]; live {
				return nil, errs.New(errs.InvalidSerializedInvariant, path+"/"+key, "key has both a live entry and a tombstone")
			}
			node.ObjRemove(obj, key, fromDot(d))
		}
		return obj, nil

	case KindSeq:
		if err := validateSeqShape(w, path); err != nil {
			return nil, err
		}
		seq := node.NewSeq()
		for id, we := range w.Elements {
			child, err := deserializeNode(we.Value, path+"/"+id, depth+1)
			if err != nil {
				return nil, err
			}
			elem := &node.Elem{
				ID: we.ID, Prev: we.Prev, InsDot: fromDot(we.InsDot),
				Tombstone: we.Tombstone, Value: child,
			}
			if we.DelDot != nil {
				elem.HasDelDot = true
				elem.DelDot = fromDot(*we.DelDot)
			}
			node.SeqPutRaw(seq, elem)
		}
		if err := checkAcyclicLineage(w, path); err != nil {
			return nil, err
		}
		return seq, nil

	default:
		return nil, errs.New(errs.InvalidSerializedShape, path, "unknown node kind "+w.Kind)
	}
}

func validateSeqShape(w Node, path string) error {
	for id, we := range w.Elements {
		if id != we.ID {
			return errs.New(errs.InvalidSerializedInvariant, path+"/"+id,
				"mapKey does not equal element id")
		}
		if we.InsDot.Actor == "" {
			return errs.New(errs.InvalidSerializedInvariant, path+"/"+id, "element has an empty actor")
		}
		if we.Tombstone && we.DelDot == nil {
			// A tombstone without a carried delDot is permitted for
			// back-compat ingestion (never eligible for compaction), not a
			// shape violation; see internal/node.Elem.HasDelDot.
			continue
		}
	}
	return nil
}

// checkAcyclicLineage walks every element's prev chain, following the
// single outgoing edge each element has, to confirm it terminates at Head
// without revisiting a node already on the current walk. Each element is
// visited at most once across all walks (amortized O(N) over the whole
// sequence) since resolved nodes are memoized.
func checkAcyclicLineage(w Node, path string) error {
	resolved := make(map[string]bool, len(w.Elements))
	for start := range w.Elements {
		if resolved[start] {
			continue
		}
		onWalk := make(map[string]bool)
		var order []string
		cur := start
		for {
			if cur == node.Head {
				break
			}
			if resolved[cur] {
				break
			}
			if onWalk[cur] {
				return errs.New(errs.CyclicPredecessors, path+"/"+cur, "sequence predecessor chain cycles back on itself")
			}
			elem, ok := w.Elements[cur]
			if !ok {
				return errs.New(errs.InvalidSerializedInvariant, path+"/"+cur, "prev does not resolve to any element in this sequence")
			}
			onWalk[cur] = true
			order = append(order, cur)
			cur = elem.Prev
		}
		for _, id := range order {
			resolved[id] = true
		}
	}
	return nil
}

// MaxCtrForActor walks d and returns the highest ctr any dot records for
// actor, 0 if none. Used to fast-forward a clock that must never mint a dot
// already present in the doc it is attached to — after deserializing a
// doc+clock pair, and after minting a fresh actor identity for a merged
// state.
func MaxCtrForActor(d *node.Doc, actor string) uint64 {
	if d == nil || d.Root == nil {
		return 0
	}
	var max uint64
	stack := []*node.Node{d.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n.Kind {
		case node.KindLWW:
			_, dot := n.RegValue()
			if dot.Actor == actor && dot.Ctr > max {
				max = dot.Ctr
			}
		case node.KindObj:
			for _, e := range n.ObjEntries() {
				if e.Dot.Actor == actor && e.Dot.Ctr > max {
					max = e.Dot.Ctr
				}
				stack = append(stack, e.Node)
			}
			for _, d := range n.ObjTombstones() {
				if d.Actor == actor && d.Ctr > max {
					max = d.Ctr
				}
			}
		case node.KindSeq:
			for _, e := range n.SeqElems() {
				if e.InsDot.Actor == actor && e.InsDot.Ctr > max {
					max = e.InsDot.Ctr
				}
				if e.HasDelDot && e.DelDot.Actor == actor && e.DelDot.Ctr > max {
					max = e.DelDot.Ctr
				}
				stack = append(stack, e.Value)
			}
		}
	}
	return max
}
