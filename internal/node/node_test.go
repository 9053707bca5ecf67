package node

import (
	"testing"

	"github.com/agentflare-ai/jsoncrdt/internal/clock"
)

func dot(actor string, ctr uint64) clock.Dot {
	return clock.Dot{Actor: actor, Ctr: ctr}
}

func TestLWWSet_OnlyTheOutrankingWriteWins(t *testing.T) {
	reg := NewReg("first", dot("alice", 1))
	if ok := LWWSet(reg, "stale", dot("alice", 0)); ok {
		t.Fatal("a dot that does not outrank the current one must not win")
	}
	if v, _ := reg.RegValue(); v != "first" {
		t.Fatalf("value = %v, want first (losing write must not apply)", v)
	}
	if ok := LWWSet(reg, "second", dot("bob", 2)); !ok {
		t.Fatal("an outranking dot must win")
	}
	if v, d := reg.RegValue(); v != "second" || d != dot("bob", 2) {
		t.Fatalf("got %v %v, want second {bob 2}", v, d)
	}
}

func TestObjSet_DeleteWinsOverAnOutrankedLateWrite(t *testing.T) {
	obj := NewObj()
	ObjSet(obj, "k", NewReg("v1", dot("alice", 5)), dot("alice", 5))
	ObjRemove(obj, "k", dot("alice", 6))

	// A concurrent write whose dot does not outrank the tombstone must lose.
	ObjSet(obj, "k", NewReg("v2", dot("bob", 3)), dot("bob", 3))
	if _, ok := obj.ObjGet("k"); ok {
		t.Fatal("write with a dot not outranking the tombstone must not resurrect the key")
	}

	// A write that does outrank the tombstone must win and clear it.
	ObjSet(obj, "k", NewReg("v3", dot("bob", 9)), dot("bob", 9))
	entry, ok := obj.ObjGet("k")
	if !ok {
		t.Fatal("an outranking write must resurrect the key")
	}
	if v, _ := entry.Node.RegValue(); v != "v3" {
		t.Fatalf("value = %v, want v3", v)
	}
	if _, tomb := obj.ObjTombstone("k"); tomb {
		t.Fatal("a winning write must clear the tombstone")
	}
}

func TestObjRemove_IsIdempotentAndKeepsTheHighestTombstone(t *testing.T) {
	obj := NewObj()
	ObjSet(obj, "k", NewReg("v", dot("alice", 1)), dot("alice", 1))
	ObjRemove(obj, "k", dot("alice", 2))
	ObjRemove(obj, "k", dot("alice", 2))
	ObjRemove(obj, "k", dot("alice", 1))
	d, ok := obj.ObjTombstone("k")
	if !ok || d != dot("alice", 2) {
		t.Fatalf("tombstone = %v, %v, want {alice 2} true", d, ok)
	}
}

func TestObjPruneTombstone_ClearsWithoutTouchingLiveEntries(t *testing.T) {
	obj := NewObj()
	ObjSet(obj, "a", NewReg("v", dot("alice", 1)), dot("alice", 1))
	ObjRemove(obj, "b", dot("alice", 2))
	ObjPruneTombstone(obj, "b")
	if _, ok := obj.ObjTombstone("b"); ok {
		t.Fatal("tombstone should have been pruned")
	}
	if _, ok := obj.ObjGet("a"); !ok {
		t.Fatal("pruning an unrelated tombstone must not touch a's live entry")
	}
}

func TestRepresentativeDot(t *testing.T) {
	reg := NewReg("v", dot("alice", 3))
	if got := RepresentativeDot(reg); got != dot("alice", 3) {
		t.Fatalf("register dot = %v, want {alice 3}", got)
	}

	obj := NewObj()
	ObjSet(obj, "a", NewReg("v", dot("alice", 1)), dot("alice", 1))
	ObjRemove(obj, "b", dot("bob", 9))
	if got := RepresentativeDot(obj); got != dot("bob", 9) {
		t.Fatalf("object dot = %v, want the tombstone's higher dot {bob 9}", got)
	}

	if got := RepresentativeDot(NewObj()); !got.IsZero() {
		t.Fatalf("empty object's representative dot = %v, want zero", got)
	}
}

func TestDotToElemID(t *testing.T) {
	if got := DotToElemID(dot("alice", 7)); got != "alice:7" {
		t.Fatalf("DotToElemID = %q, want alice:7", got)
	}
}
