package node

import (
	"sort"

	"github.com/agentflare-ai/jsoncrdt/internal/clock"
)

// DotMinter mints the dots needed to turn a plain JSON literal into a Node
// subtree. Implementations own the fast-forward and collision-avoidance
// logic spec.md §4.2 requires for RGA insertions under skewed peers; this
// package only calls back into it while walking the literal's shape.
type DotMinter interface {
	// NextDot mints a fresh dot for an object-entry write or a register
	// value.
	NextDot() clock.Dot
	// NextSeqInsertDot mints a fresh insertion dot for a new element
	// attaching after prev in seq, fast-forwarding the caller's clock
	// above any skewed sibling counter as needed.
	NextSeqInsertDot(seq *Node, prev string) (clock.Dot, error)
}

// BuildFromJSON recursively decomposes a plain JSON-shaped value (as
// produced by encoding/json or Materialize) into a Node subtree: objects
// become KindObj nodes with one freshly-dotted entry per key, arrays
// become KindSeq nodes with one freshly-dotted RGA element per item (in
// order), and everything else becomes a KindLWW register. Every nested
// container gets real CRDT structure (not an opaque literal) so that
// later patches can target any path inside it.
func BuildFromJSON(value any, minter DotMinter) (*Node, error) {
	switch tv := value.(type) {
	case map[string]any:
		obj := NewObj()
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child, err := BuildFromJSON(tv[k], minter)
			if err != nil {
				return nil, err
			}
			ObjSet(obj, k, child, minter.NextDot())
		}
		return obj, nil

	case []any:
		seq := NewSeq()
		prev := Head
		for _, item := range tv {
			child, err := BuildFromJSON(item, minter)
			if err != nil {
				return nil, err
			}
			dot, err := minter.NextSeqInsertDot(seq, prev)
			if err != nil {
				return nil, err
			}
			id := DotToElemID(dot)
			if err := RGAInsertAfter(seq, prev, id, dot, child); err != nil {
				return nil, err
			}
			prev = id
		}
		return seq, nil

	default:
		return NewReg(tv, minter.NextDot()), nil
	}
}
