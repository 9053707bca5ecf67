// Package clock implements the dot/version-vector lattice that gives every
// write event in the CRDT a unique, totally ordered identity.
package clock

import (
	"fmt"
	"sort"
)

// Dot is a single (actor, counter) write event. Dots are totally ordered by
// counter, then by actor lexicographically.
type Dot struct {
	Actor string
	Ctr   uint64
}

// Zero is the unset dot; no real write ever produces it.
var Zero = Dot{}

// IsZero reports whether d is the unset dot.
func (d Dot) IsZero() bool {
	return d.Actor == "" && d.Ctr == 0
}

func (d Dot) String() string {
	return fmt.Sprintf("%s:%d", d.Actor, d.Ctr)
}

// Compare returns the sign of (a.Ctr - b.Ctr), ties broken by lexicographic
// actor comparison. Matches spec.md §4.1's compareDot contract exactly:
// this is the single tie-break rule used everywhere a total order over
// concurrent dots is needed (RGA siblings, LWW registers, merge winners).
func Compare(a, b Dot) int {
	if a.Ctr != b.Ctr {
		if a.Ctr < b.Ctr {
			return -1
		}
		return 1
	}
	if a.Actor == b.Actor {
		return 0
	}
	if a.Actor < b.Actor {
		return -1
	}
	return 1
}

// Greater reports whether a strictly outranks b under Compare.
func Greater(a, b Dot) bool {
	return Compare(a, b) > 0
}

// VV is a version vector: actor -> highest observed counter.
type VV map[string]uint64

// Clone returns an independent copy of vv.
func (vv VV) Clone() VV {
	if vv == nil {
		return VV{}
	}
	out := make(VV, len(vv))
	for k, v := range vv {
		out[k] = v
	}
	return out
}

// Has reports whether vv has observed every counter up to and including d.
func (vv VV) Has(d Dot) bool {
	return vv[d.Actor] >= d.Ctr
}

// Observe raises vv[d.Actor] to max(current, d.Ctr), mutating vv in place.
func (vv VV) Observe(d Dot) {
	if d.Ctr > vv[d.Actor] {
		vv[d.Actor] = d.Ctr
	}
}

// Merge returns the pointwise-max join of a and b. Neither input is mutated.
func Merge(a, b VV) VV {
	out := make(VV, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// LessEqual reports whether a <= b under the pointwise partial order.
func LessEqual(a, b VV) bool {
	for actor, ctr := range a {
		if b[actor] < ctr {
			return false
		}
	}
	return true
}

// Actors returns vv's actors in sorted order, for deterministic iteration.
func (vv VV) Actors() []string {
	out := make([]string, 0, len(vv))
	for a := range vv {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// ValidationError reports a malformed clock construction request.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("clock: %s: %s", e.Reason, e.Message)
}

const (
	ReasonInvalidActor = "INVALID_ACTOR"
	ReasonInvalidCtr   = "INVALID_CTR"
)

// Clock mints dots for a single actor. It is not safe for concurrent use;
// per spec.md §5 the library assumes single-threaded, cooperative ownership.
type Clock struct {
	actor string
	ctr   uint64
}

// New creates a clock for actor starting at start. An empty actor is
// rejected with INVALID_ACTOR and a negative start with INVALID_CTR.
func New(actor string, start int64) (*Clock, error) {
	if actor == "" {
		return nil, &ValidationError{Reason: ReasonInvalidActor, Message: "actor must not be empty"}
	}
	if start < 0 {
		return nil, &ValidationError{Reason: ReasonInvalidCtr, Message: "start must not be negative"}
	}
	return &Clock{actor: actor, ctr: uint64(start)}, nil
}

// Actor returns the clock's owning actor.
func (c *Clock) Actor() string { return c.actor }

// Ctr returns the clock's current counter.
func (c *Clock) Ctr() uint64 { return c.ctr }

// Next increments the counter and returns the minted dot.
func (c *Clock) Next() Dot {
	c.ctr++
	return Dot{Actor: c.actor, Ctr: c.ctr}
}

// FastForward raises the counter to at least n, without minting a dot. Used
// when the local clock must be advanced past a counter observed from
// elsewhere (e.g. a sibling's insertion dot) before the next Next() call.
func (c *Clock) FastForward(n uint64) {
	if n > c.ctr {
		c.ctr = n
	}
}

// ObserveDot absorbs a dot seen elsewhere (e.g. during apply or merge) into
// the clock, fast-forwarding the counter if the dot belongs to this actor
// and exceeds the current counter. Dots from other actors do not affect
// this clock's own counter — only its attached doc's version vector tracks
// them (see NextDotForActor for the cross-actor case).
func (c *Clock) ObserveDot(d Dot) {
	if d.Actor == c.actor {
		c.FastForward(d.Ctr)
	}
}

// Clone returns an independent copy of c.
func (c *Clock) Clone() *Clock {
	return &Clock{actor: c.actor, ctr: c.ctr}
}

// NextDotForActor mints the next dot for actor against the given version
// vector's observed counter, without requiring a full Clock for that actor.
// vv itself is not updated.
func NextDotForActor(vv VV, actor string) Dot {
	next := vv[actor] + 1
	return Dot{Actor: actor, Ctr: next}
}
