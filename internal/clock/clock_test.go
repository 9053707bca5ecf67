package clock

import "testing"

func TestCompare_OrdersByCounterThenActor(t *testing.T) {
	if Compare(Dot{Actor: "a", Ctr: 1}, Dot{Actor: "a", Ctr: 2}) >= 0 {
		t.Fatal("lower counter should compare less")
	}
	if Compare(Dot{Actor: "a", Ctr: 1}, Dot{Actor: "b", Ctr: 1}) >= 0 {
		t.Fatal("same counter should tie-break by actor lexicographically")
	}
	if Compare(Dot{Actor: "a", Ctr: 1}, Dot{Actor: "a", Ctr: 1}) != 0 {
		t.Fatal("identical dots should compare equal")
	}
}

func TestVV_ObserveAndHas(t *testing.T) {
	vv := VV{}
	vv.Observe(Dot{Actor: "alice", Ctr: 3})
	vv.Observe(Dot{Actor: "alice", Ctr: 1})
	if vv["alice"] != 3 {
		t.Fatalf("vv[alice] = %d, want 3 (observe must not regress)", vv["alice"])
	}
	if !vv.Has(Dot{Actor: "alice", Ctr: 2}) {
		t.Fatal("vv should have observed everything up to its high water mark")
	}
	if vv.Has(Dot{Actor: "alice", Ctr: 4}) {
		t.Fatal("vv should not claim to have observed beyond its high water mark")
	}
}

func TestVV_MergeIsPointwiseMaxAndDoesNotMutateInputs(t *testing.T) {
	a := VV{"alice": 2, "bob": 5}
	b := VV{"alice": 4, "carol": 1}
	merged := Merge(a, b)

	want := VV{"alice": 4, "bob": 5, "carol": 1}
	for actor, ctr := range want {
		if merged[actor] != ctr {
			t.Fatalf("merged[%s] = %d, want %d", actor, merged[actor], ctr)
		}
	}
	if a["alice"] != 2 || b["alice"] != 4 {
		t.Fatal("Merge must not mutate its inputs")
	}
}

func TestVV_LessEqual(t *testing.T) {
	a := VV{"alice": 2}
	b := VV{"alice": 4, "bob": 1}
	if !LessEqual(a, b) {
		t.Fatal("a should be <= b")
	}
	if LessEqual(b, a) {
		t.Fatal("b should not be <= a")
	}
}

func TestNew_RejectsEmptyActorAndNegativeStart(t *testing.T) {
	if _, err := New("", 0); err == nil {
		t.Fatal("expected an error for an empty actor")
	}
	if _, err := New("alice", -1); err == nil {
		t.Fatal("expected an error for a negative start")
	}
	c, err := New("alice", 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Actor() != "alice" || c.Ctr() != 5 {
		t.Fatalf("clock = {%s %d}, want {alice 5}", c.Actor(), c.Ctr())
	}
}

func TestClock_NextMintsStrictlyIncreasingDots(t *testing.T) {
	c, _ := New("alice", 0)
	d1 := c.Next()
	d2 := c.Next()
	if d1.Ctr != 1 || d2.Ctr != 2 {
		t.Fatalf("got ctrs %d, %d, want 1, 2", d1.Ctr, d2.Ctr)
	}
	if !Greater(d2, d1) {
		t.Fatal("each successive Next() dot must outrank the last")
	}
}

func TestClock_FastForwardNeverRegresses(t *testing.T) {
	c, _ := New("alice", 10)
	c.FastForward(3)
	if c.Ctr() != 10 {
		t.Fatalf("Ctr() = %d, want 10 (fast-forward below current must be a no-op)", c.Ctr())
	}
	c.FastForward(20)
	if c.Ctr() != 20 {
		t.Fatalf("Ctr() = %d, want 20", c.Ctr())
	}
}

func TestClock_ObserveDotOnlyAffectsOwnActor(t *testing.T) {
	c, _ := New("alice", 0)
	c.ObserveDot(Dot{Actor: "bob", Ctr: 99})
	if c.Ctr() != 0 {
		t.Fatalf("Ctr() = %d, want 0 (a foreign actor's dot must not fast-forward this clock)", c.Ctr())
	}
	c.ObserveDot(Dot{Actor: "alice", Ctr: 7})
	if c.Ctr() != 7 {
		t.Fatalf("Ctr() = %d, want 7", c.Ctr())
	}
}

func TestClock_CloneIsIndependent(t *testing.T) {
	c, _ := New("alice", 1)
	clone := c.Clone()
	c.Next()
	if clone.Ctr() != 1 {
		t.Fatalf("clone.Ctr() = %d, want 1 (clone must not see the original's later mutation)", clone.Ctr())
	}
}

func TestNextDotForActor_MintsOneAboveTheObservedCounter(t *testing.T) {
	vv := VV{"alice": 4}
	d := NextDotForActor(vv, "alice")
	if d.Actor != "alice" || d.Ctr != 5 {
		t.Fatalf("got %+v, want {alice 5}", d)
	}
	d2 := NextDotForActor(vv, "bob")
	if d2.Actor != "bob" || d2.Ctr != 1 {
		t.Fatalf("got %+v, want {bob 1} for an actor never before observed", d2)
	}
}
