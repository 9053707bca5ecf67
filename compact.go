package jsoncrdt

import (
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/compact"
)

// VV is a version vector: the highest counter observed from each actor.
type VV = clock.VV

// CompactStats reports how much a compaction pruned.
type CompactStats = compact.Stats

// CompactOptions configures CompactStateTombstones.
type CompactOptions struct {
	// Stable is the version vector below which a tombstone is considered
	// causally covered by every replica that still matters. Compacting
	// past a replica's actual observed position means a later merge with
	// that replica can resurrect what it believes is still live.
	Stable VV
	// Mutate compacts state.Doc in place when true; when false (the
	// default) a deep clone is compacted, leaving state untouched.
	Mutate bool
}

// CompactStateTombstones prunes causally-stable tombstones from state's
// document. It never changes the document's materialized JSON value,
// only the CRDT metadata retained to resolve future merges.
func CompactStateTombstones(state *State, opts CompactOptions) (*State, CompactStats, error) {
	newDoc, stats, err := compact.CompactDocTombstones(state.Doc, compact.Options{
		Stable: opts.Stable,
		Mutate: opts.Mutate,
	})
	if err != nil {
		return nil, CompactStats{}, asPatchError(err)
	}

	if opts.Mutate {
		state.Doc = newDoc
		return state, stats, nil
	}
	return &State{Doc: newDoc, Clock: state.Clock.Clone()}, stats, nil
}
