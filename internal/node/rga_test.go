package node

import (
	"reflect"
	"testing"

	"github.com/agentflare-ai/jsoncrdt/internal/clock"
)

// seqMinter mints strictly increasing dots for a single fixed actor; an
// insertion dot first fast-forwards past the highest sibling counter under
// prev — sufficient for exercising RGA insert/delete/linearize in isolation
// from internal/applier.
type seqMinter struct {
	actor string
	ctr   uint64
}

func (m *seqMinter) NextDot() clock.Dot {
	m.ctr++
	return clock.Dot{Actor: m.actor, Ctr: m.ctr}
}

func (m *seqMinter) NextSeqInsertDot(seq *Node, prev string) (clock.Dot, error) {
	if sib := MaxSiblingInsCtr(seq, prev); sib > m.ctr {
		m.ctr = sib
	}
	return m.NextDot(), nil
}

func TestRGAInsertAfter_BuildsAHeadRootedChain(t *testing.T) {
	seq := NewSeq()
	m := &seqMinter{actor: "alice"}

	d1 := m.NextDot()
	if err := RGAInsertAfter(seq, Head, DotToElemID(d1), d1, NewReg("a", d1)); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	d2 := m.NextDot()
	if err := RGAInsertAfter(seq, DotToElemID(d1), DotToElemID(d2), d2, NewReg("b", d2)); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	ids := RGALinearizeIDs(seq)
	if len(ids) != 2 || ids[0] != DotToElemID(d1) || ids[1] != DotToElemID(d2) {
		t.Fatalf("linearization = %v, want [a b] in insertion order", ids)
	}
}

func TestRGAInsertAfter_MissingPredecessorFails(t *testing.T) {
	seq := NewSeq()
	d := clock.Dot{Actor: "alice", Ctr: 1}
	if err := RGAInsertAfter(seq, "nonexistent", "alice:1", d, NewReg("x", d)); err == nil {
		t.Fatal("expected a structural error for a missing predecessor")
	}
}

func TestRGAInsertAfter_IsIdempotentForARepeatID(t *testing.T) {
	seq := NewSeq()
	d := clock.Dot{Actor: "alice", Ctr: 1}
	id := DotToElemID(d)
	if err := RGAInsertAfter(seq, Head, id, d, NewReg("first", d)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := RGAInsertAfter(seq, Head, id, d, NewReg("second", d)); err != nil {
		t.Fatalf("repeat insert: %v", err)
	}
	elem, _ := seq.SeqElem(id)
	if v, _ := elem.Value.RegValue(); v != "first" {
		t.Fatalf("value = %v, want first (a repeat insert of the same id must be a no-op)", v)
	}
}

func TestRGADelete_TombstonesWithoutRemovingTheElement(t *testing.T) {
	seq := NewSeq()
	m := &seqMinter{actor: "alice"}
	d1 := m.NextDot()
	id1 := DotToElemID(d1)
	RGAInsertAfter(seq, Head, id1, d1, NewReg("a", d1))

	delDot := clock.Dot{Actor: "alice", Ctr: 99}
	RGADelete(seq, id1, delDot)

	elem, ok := seq.SeqElem(id1)
	if !ok {
		t.Fatal("tombstoned element must still be present in the element map")
	}
	if !elem.Tombstone || !elem.HasDelDot || elem.DelDot != delDot {
		t.Fatalf("elem = %#v", elem)
	}
	if ids := RGALinearizeIDs(seq); len(ids) != 0 {
		t.Fatalf("linearization = %v, want empty (tombstoned elements are not visible)", ids)
	}
}

func TestRGADelete_ConcurrentDeletesKeepTheEarliestDot(t *testing.T) {
	seq := NewSeq()
	d1 := clock.Dot{Actor: "alice", Ctr: 1}
	id1 := DotToElemID(d1)
	RGAInsertAfter(seq, Head, id1, d1, NewReg("a", d1))

	RGADelete(seq, id1, clock.Dot{Actor: "bob", Ctr: 5})
	RGADelete(seq, id1, clock.Dot{Actor: "alice", Ctr: 2})

	elem, _ := seq.SeqElem(id1)
	want := clock.Dot{Actor: "alice", Ctr: 2}
	if elem.DelDot != want {
		t.Fatalf("DelDot = %v, want the earliest delete dot %v", elem.DelDot, want)
	}
}

func TestRGALinearizeIDs_OrdersSiblingsByDescendingInsertionDot(t *testing.T) {
	seq := NewSeq()
	// Two elements concurrently inserted after Head: the one with the
	// higher insertion dot must sort first (spec.md §4.2's sibling rule).
	dLow := clock.Dot{Actor: "alice", Ctr: 1}
	dHigh := clock.Dot{Actor: "alice", Ctr: 2}
	RGAInsertAfter(seq, Head, DotToElemID(dLow), dLow, NewReg("low", dLow))
	RGAInsertAfter(seq, Head, DotToElemID(dHigh), dHigh, NewReg("high", dHigh))

	ids := RGALinearizeIDs(seq)
	if len(ids) != 2 || ids[0] != DotToElemID(dHigh) || ids[1] != DotToElemID(dLow) {
		t.Fatalf("ids = %v, want [high low]", ids)
	}
}

func TestRGALinearizeIDs_WalksTombstonedSubtreesWithoutEmittingThem(t *testing.T) {
	seq := NewSeq()
	m := &seqMinter{actor: "alice"}
	d1 := m.NextDot()
	id1 := DotToElemID(d1)
	RGAInsertAfter(seq, Head, id1, d1, NewReg("a", d1))
	d2 := m.NextDot()
	id2 := DotToElemID(d2)
	RGAInsertAfter(seq, id1, id2, d2, NewReg("b", d2))

	RGADelete(seq, id1, clock.Dot{Actor: "alice", Ctr: 99})

	ids := RGALinearizeIDs(seq)
	if !reflect.DeepEqual(ids, []string{id2}) {
		t.Fatalf("ids = %v, want [%s] (b's subtree must still be reachable through a's tombstone)", ids, id2)
	}
}

func TestRGAPrevForInsertAtIndex(t *testing.T) {
	seq := NewSeq()
	m := &seqMinter{actor: "alice"}
	d1 := m.NextDot()
	id1 := DotToElemID(d1)
	RGAInsertAfter(seq, Head, id1, d1, NewReg("a", d1))
	d2 := m.NextDot()
	id2 := DotToElemID(d2)
	RGAInsertAfter(seq, id1, id2, d2, NewReg("b", d2))

	if got := RGAPrevForInsertAtIndex(seq, 0); got != Head {
		t.Fatalf("index 0 -> %q, want Head", got)
	}
	if got := RGAPrevForInsertAtIndex(seq, 1); got != id1 {
		t.Fatalf("index 1 -> %q, want %q", got, id1)
	}
	if got := RGAPrevForInsertAtIndex(seq, IndexAppend); got != id2 {
		t.Fatalf("append -> %q, want %q (the last live element)", got, id2)
	}
	if got := RGAPrevForInsertAtIndex(NewSeq(), 0); got != Head {
		t.Fatalf("empty sequence -> %q, want Head", got)
	}
}

func TestSeqPutRawAndSeqDeleteRaw(t *testing.T) {
	seq := NewSeq()
	d := clock.Dot{Actor: "alice", Ctr: 1}
	id := DotToElemID(d)
	SeqPutRaw(seq, &Elem{ID: id, Prev: Head, InsDot: d, Value: NewReg("a", d)})
	if _, ok := seq.SeqElem(id); !ok {
		t.Fatal("SeqPutRaw must store the element")
	}
	SeqDeleteRaw(seq, id)
	if _, ok := seq.SeqElem(id); ok {
		t.Fatal("SeqDeleteRaw must erase the element entirely, not tombstone it")
	}
}

func TestMaxSiblingInsCtr(t *testing.T) {
	seq := NewSeq()
	RGAInsertAfter(seq, Head, "alice:1", clock.Dot{Actor: "alice", Ctr: 1}, NewReg("a", clock.Dot{Actor: "alice", Ctr: 1}))
	RGAInsertAfter(seq, Head, "alice:5", clock.Dot{Actor: "alice", Ctr: 5}, NewReg("b", clock.Dot{Actor: "alice", Ctr: 5}))
	if got := MaxSiblingInsCtr(seq, Head); got != 5 {
		t.Fatalf("MaxSiblingInsCtr = %d, want 5", got)
	}
	if got := MaxSiblingInsCtr(seq, "nonexistent"); got != 0 {
		t.Fatalf("MaxSiblingInsCtr for an unused predecessor = %d, want 0", got)
	}
}
