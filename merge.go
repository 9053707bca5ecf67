package jsoncrdt

import (
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/merge"
	"github.com/agentflare-ai/jsoncrdt/internal/wire"
)

// MergeOptions configures TryMergeState/MergeState.
type MergeOptions struct {
	// Actor names the merged state's owning writer. Empty defaults to a's
	// (the local, first-argument state's) actor, per spec.md §4.8.
	Actor string
	// AllowDisjointOrigin inverts spec.md's requireSharedOrigin (default
	// true): leave false to reject merging two non-empty sequences at the
	// same path that share no element ID, which usually indicates they
	// were built independently rather than forked from a common state.
	AllowDisjointOrigin bool
}

// TryMergeState merges a and b's documents and reconciles their clocks
// into a new State. Neither input is mutated. The merged clock starts
// past the highest counter either input ever observed for the resulting
// actor, so the new state can mint dots no earlier write could collide
// with.
func TryMergeState(a, b *State, opts MergeOptions) (*State, error) {
	mergedDoc, err := merge.MergeDoc(a.Doc, b.Doc, merge.Options{AllowDisjointOrigin: opts.AllowDisjointOrigin})
	if err != nil {
		return nil, asMergeError(err)
	}

	actor := opts.Actor
	if actor == "" {
		actor = a.Clock.Actor()
	}
	start := wire.MaxCtrForActor(mergedDoc, actor)
	if a.Clock.Actor() == actor && a.Clock.Ctr() > start {
		start = a.Clock.Ctr()
	}
	if b.Clock.Actor() == actor && b.Clock.Ctr() > start {
		start = b.Clock.Ctr()
	}

	c, err := clock.New(actor, int64(start))
	if err != nil {
		return nil, asValidationError(err)
	}
	return &State{Doc: mergedDoc, Clock: c}, nil
}

// MergeState is TryMergeState's throwing counterpart.
func MergeState(a, b *State, opts MergeOptions) *State {
	merged, err := TryMergeState(a, b, opts)
	if err != nil {
		panic(err)
	}
	return merged
}
