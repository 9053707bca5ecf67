package jsoncrdt

import (
	"github.com/agentflare-ai/jsoncrdt/internal/diffengine"
	"github.com/agentflare-ai/jsoncrdt/internal/materialize"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
	"github.com/agentflare-ai/jsoncrdt/internal/patchtypes"
)

// DiffOptions configures DiffJsonPatch and CRDTToJSONPatch's array
// diffing.
type DiffOptions struct {
	ArrayStrategy ArrayStrategy
	// LcsMaxCells guards the LCS table size above which array diffing
	// falls back to a single atomic replace. Zero means
	// DefaultLcsMaxCells.
	LcsMaxCells int
}

func (o DiffOptions) engineOptions() diffengine.Options {
	return diffengine.Options{ArrayStrategy: o.ArrayStrategy, LcsMaxCells: o.LcsMaxCells}
}

// DiffJsonPatch computes the RFC 6902 patch transforming base into next,
// both plain JSON-shaped values.
func DiffJsonPatch(base, next any, opts DiffOptions) (Patch, error) {
	p, err := diffengine.Diff(base, next, opts.engineOptions())
	if err != nil {
		return nil, asPatchError(err)
	}
	return Patch(p), nil
}

// CRDTToJSONPatch materializes base and head and diffs them, producing
// the delta patch a peer already holding base could apply to reach head.
func CRDTToJSONPatch(base, head *node.Doc, opts DiffOptions) (Patch, error) {
	baseJSON, err := materialize.Doc(base)
	if err != nil {
		return nil, asPatchError(err)
	}
	headJSON, err := materialize.Doc(head)
	if err != nil {
		return nil, asPatchError(err)
	}
	return DiffJsonPatch(baseJSON, headJSON, opts)
}

// CRDTToFullReplace materializes doc and wraps it as a single root
// replace, the non-delta fallback wire payload.
func CRDTToFullReplace(doc *node.Doc) (Patch, error) {
	docJSON, err := materialize.Doc(doc)
	if err != nil {
		return nil, asPatchError(err)
	}
	return Patch{patchtypes.Operation{Op: patchtypes.Replace, Path: "", Value: docJSON}}, nil
}
