package applier

import (
	"testing"

	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
)

func TestMinter_NextSeqInsertDotFastForwardsAboveASkewedSibling(t *testing.T) {
	c, _ := clock.New("alice", 0)
	m := &Minter{Clock: c}
	seq := node.NewSeq()
	sibDot := clock.Dot{Actor: "bob", Ctr: 50}
	node.RGAInsertAfter(seq, node.Head, "bob:50", sibDot, node.NewReg("x", sibDot))

	got, err := m.NextSeqInsertDot(seq, node.Head)
	if err != nil {
		t.Fatalf("NextSeqInsertDot: %v", err)
	}
	if got.Ctr <= 50 {
		t.Fatalf("Ctr = %d, want > 50 (must fast-forward above the sibling's counter)", got.Ctr)
	}
}

func TestMinter_NextSeqInsertDotUsesTheExternalFastForwardCallback(t *testing.T) {
	c, _ := clock.New("alice", 0)
	var calledWith uint64
	m := &Minter{Clock: c, FastForward: func(minCtr uint64) { calledWith = minCtr }}
	seq := node.NewSeq()
	sibDot := clock.Dot{Actor: "bob", Ctr: 10}
	node.RGAInsertAfter(seq, node.Head, "bob:10", sibDot, node.NewReg("x", sibDot))

	if _, err := m.NextSeqInsertDot(seq, node.Head); err != nil {
		t.Fatalf("NextSeqInsertDot: %v", err)
	}
	if calledWith != 10 {
		t.Fatalf("FastForward callback called with %d, want 10", calledWith)
	}
}

func TestMinter_ObserveDotAdvancesOwnActorOnly(t *testing.T) {
	c, _ := clock.New("alice", 0)
	m := &Minter{Clock: c}
	m.ObserveDot(clock.Dot{Actor: "bob", Ctr: 100})
	if c.Ctr() != 0 {
		t.Fatalf("Ctr() = %d, want 0 (a foreign actor's dot must not advance this clock)", c.Ctr())
	}
	m.ObserveDot(clock.Dot{Actor: "alice", Ctr: 7})
	if c.Ctr() != 7 {
		t.Fatalf("Ctr() = %d, want 7", c.Ctr())
	}
}

func TestMinter_NextDotMintsSequentialDotsForItsOwnActor(t *testing.T) {
	c, _ := clock.New("alice", 0)
	m := &Minter{Clock: c}
	d1 := m.NextDot()
	d2 := m.NextDot()
	if d1.Ctr != 1 || d2.Ctr != 2 || d1.Actor != "alice" {
		t.Fatalf("got %+v, %+v, want ctrs 1, 2 for actor alice", d1, d2)
	}
}
