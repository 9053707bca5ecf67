// Package applier implements the intent applier: executing compiled
// intents against the CRDT head document given a base snapshot, minting
// dots, mapping array indices to element IDs, and detecting conflicts
// (spec.md §4.6).
package applier

import (
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/errs"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
)

// maxDotAttempts bounds the fast-forward retry loop spec.md §4.2 requires
// before an array insert under clock skew gives up with
// DOT_GENERATION_EXHAUSTED.
const maxDotAttempts = 1024

// Minter mints dots for one Apply call, implementing node.DotMinter so the
// same value can build fresh subtrees (node.BuildFromJSON) and service the
// applier's own ObjSet/ArrInsert dot needs. FastForward is an optional
// external callback (e.g. consulting a coordination service for the
// actor's true high-water mark); when nil, the clock's own FastForward is
// used directly and a single attempt always suffices for a well-formed
// doc.
type Minter struct {
	Clock       *clock.Clock
	FastForward func(minCtr uint64)
}

// NextDot mints a dot for an object-entry write or register value.
func (m *Minter) NextDot() clock.Dot {
	return m.Clock.Next()
}

// NextSeqInsertDot mints an insertion dot for a new element attaching
// after prev in seq, fast-forwarding above any skewed sibling counter.
func (m *Minter) NextSeqInsertDot(seq *node.Node, prev string) (clock.Dot, error) {
	maxSibling := node.MaxSiblingInsCtr(seq, prev)
	for attempt := 0; attempt < maxDotAttempts; attempt++ {
		if m.Clock.Ctr() >= maxSibling {
			return m.Clock.Next(), nil
		}
		if m.FastForward != nil {
			m.FastForward(maxSibling)
		}
		m.Clock.FastForward(maxSibling)
	}
	return clock.Dot{}, errs.New(errs.DotGenerationExhausted, "",
		"could not mint an insert dot above sibling counter after 1024 attempts")
}

// ObserveDot feeds a dot observed elsewhere (e.g. during merge) into this
// minter's clock so later writes never collide with it, per spec.md §4.2's
// observed-dot absorption requirement.
func (m *Minter) ObserveDot(d clock.Dot) {
	m.Clock.ObserveDot(d)
}
