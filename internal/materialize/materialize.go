// Package materialize renders a CRDT doc as a plain JSON-shaped Go value
// (map[string]any / []any / primitives), the form the diff engine, the
// compiler's base-JSON shadow, and external callers all consume.
package materialize

import (
	"sort"

	"github.com/agentflare-ai/jsoncrdt/internal/node"
)

// MaxTraversalDepth bounds every iterative walk over a doc or a JSON tree
// in this engine. Chosen well above any plausible legitimate document
// depth, per spec.md §4.4's ">= 10000" floor.
const MaxTraversalDepth = 10_000

// DepthError reports that a traversal exceeded MaxTraversalDepth.
type DepthError struct {
	Path string
}

func (e *DepthError) Error() string {
	return "materialize: MAX_DEPTH_EXCEEDED at " + e.Path
}

type task struct {
	n      *node.Node
	depth  int
	path   string
	assign func(any)
}

// Doc materializes d into a plain JSON-shaped value. The walk is iterative
// (an explicit work stack, never Go recursion over the doc) so arbitrarily
// deep documents cannot overflow the goroutine stack; MaxTraversalDepth
// instead bounds it explicitly and deterministically.
func Doc(d *node.Doc) (any, error) {
	if d == nil || d.Root == nil {
		return nil, nil
	}
	return Node(d.Root)
}

// Node materializes a single subtree rooted at n.
func Node(n *node.Node) (any, error) {
	var out any
	stack := []task{{n: n, depth: 0, path: "", assign: func(v any) { out = v }}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.depth > MaxTraversalDepth {
			return nil, &DepthError{Path: t.path}
		}
		switch t.n.Kind {
		case node.KindLWW:
			val, _ := t.n.RegValue()
			t.assign(cloneLeaf(val))

		case node.KindObj:
			entries := t.n.ObjEntries()
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			result := make(map[string]any, len(keys))
			t.assign(result)
			for _, k := range keys {
				entry := entries[k]
				childPath := t.path + "/" + k
				stack = append(stack, task{
					n:     entry.Node,
					depth: t.depth + 1,
					path:  childPath,
					assign: func(key string) func(any) {
						return func(v any) { result[key] = v }
					}(k),
				})
			}

		case node.KindSeq:
			ids := node.RGALinearizeIDs(t.n)
			result := make([]any, len(ids))
			t.assign(result)
			for i, id := range ids {
				elem, ok := t.n.SeqElem(id)
				if !ok {
					continue
				}
				idx := i
				childPath := t.path + "/" + itoa(idx)
				stack = append(stack, task{
					n:     elem.Value,
					depth: t.depth + 1,
					path:  childPath,
					assign: func(pos int) func(any) {
						return func(v any) { result[pos] = v }
					}(idx),
				})
			}
		}
	}
	return out, nil
}

func cloneLeaf(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, vv := range tv {
			out[k] = cloneLeaf(vv)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, vv := range tv {
			out[i] = cloneLeaf(vv)
		}
		return out
	default:
		return v
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
