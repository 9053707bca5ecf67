// Package diffengine computes an RFC 6902 JSON Patch between two
// JSON-shaped values (spec.md §4.7): sorted object diffs, and an
// LCS-based array diff with a cell-count guardrail that falls back to an
// atomic replace for pathologically large arrays.
package diffengine

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/agentflare-ai/jsoncrdt/internal/patchtypes"
	"github.com/agentflare-ai/jsoncrdt/internal/pointer"
)

// ArrayStrategy selects how array diffs are computed.
type ArrayStrategy string

const (
	ArrayStrategyLCS    ArrayStrategy = "lcs"
	ArrayStrategyAtomic ArrayStrategy = "atomic"
)

// DefaultLcsMaxCells is the guardrail spec.md §4.7 names: above this many
// (baseLen+1)*(nextLen+1) cells, LCS computation is skipped in favor of an
// atomic replace of the whole array.
const DefaultLcsMaxCells = 250_000

// Options configures Diff.
type Options struct {
	ArrayStrategy ArrayStrategy
	LcsMaxCells   int
}

func (o Options) maxCells() int {
	if o.LcsMaxCells > 0 {
		return o.LcsMaxCells
	}
	return DefaultLcsMaxCells
}

func (o Options) strategy() ArrayStrategy {
	if o.ArrayStrategy == ArrayStrategyAtomic {
		return ArrayStrategyAtomic
	}
	return ArrayStrategyLCS
}

// Diff computes an RFC 6902 patch transforming a into b.
func Diff(a, b any, opts Options) (patchtypes.Patch, error) {
	return diffValue("", a, b, opts)
}

func diffValue(path string, a, b any, opts Options) (patchtypes.Patch, error) {
	if reflect.DeepEqual(a, b) {
		return nil, nil
	}
	if ma, ok := a.(map[string]any); ok {
		if mb, ok := b.(map[string]any); ok {
			return diffObject(path, ma, mb, opts)
		}
	}
	if sa, ok := a.([]any); ok {
		if sb, ok := b.([]any); ok {
			return diffArray(path, sa, sb, opts)
		}
	}
	cp, err := deepCopyJSON(b)
	if err != nil {
		return nil, err
	}
	return patchtypes.Patch{{Op: patchtypes.Replace, Path: path, Value: cp}}, nil
}

// diffObject emits removes (sorted by key) before adds (sorted by key)
// before recursed child patches (walked in sorted key order), exactly the
// three-bucket ordering spec.md §4.7 requires. Go's randomized map
// iteration order is never observable in the output.
func diffObject(path string, a, b map[string]any, opts Options) (patchtypes.Patch, error) {
	var removes, adds, children patchtypes.Patch

	for _, k := range sortedKeys(a) {
		if _, ok := b[k]; !ok {
			removes = append(removes, patchtypes.Operation{Op: patchtypes.Remove, Path: joinPath(path, k)})
		}
	}
	for _, k := range sortedKeys(b) {
		va, existed := a[k]
		if !existed {
			cp, err := deepCopyJSON(b[k])
			if err != nil {
				return nil, err
			}
			adds = append(adds, patchtypes.Operation{Op: patchtypes.Add, Path: joinPath(path, k), Value: cp})
			continue
		}
		child, err := diffValue(joinPath(path, k), va, b[k], opts)
		if err != nil {
			return nil, err
		}
		children = append(children, child...)
	}

	out := make(patchtypes.Patch, 0, len(removes)+len(adds)+len(children))
	out = append(out, removes...)
	out = append(out, adds...)
	out = append(out, children...)
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// diffArray trims the equal prefix/suffix, falls back to an atomic replace
// above the cell guardrail, then runs an LCS-based edit script over the
// trimmed window. The aligned-Replace shortcut (spec.md §4.7's "aligned
// element change" case) only fires when the LCS match is empty, i.e. the
// entire trimmed window is one contiguous unmatched block: that is the
// only shape where a removed/added pair at the same relative offset is
// guaranteed to land on the same absolute array index, since nothing
// kept sits between the removed and added runs to shift one side
// relative to the other. Whenever the window contains any matched
// (kept) element, pairing same-length removed/added runs by position
// would silently mismatch values sitting on opposite sides of that kept
// element — this is corrected here rather than emitted as a wrong
// Replace — so that case always falls through to the Remove+Add form.
func diffArray(path string, a, b []any, opts Options) (patchtypes.Patch, error) {
	if opts.strategy() == ArrayStrategyAtomic {
		return atomicReplace(path, b)
	}
	n, m := len(a), len(b)
	if int64(n+1)*int64(m+1) > int64(opts.maxCells()) {
		return atomicReplace(path, b)
	}

	prefix := 0
	for prefix < n && prefix < m && reflect.DeepEqual(a[prefix], b[prefix]) {
		prefix++
	}
	suffix := 0
	for suffix < n-prefix && suffix < m-prefix &&
		reflect.DeepEqual(a[n-1-suffix], b[m-1-suffix]) {
		suffix++
	}
	ta, tb := a[prefix:n-suffix], b[prefix:m-suffix]

	removedLocal, addedLocal, err := unmatchedIndices(ta, tb)
	if err != nil {
		return nil, err
	}

	keptCount := len(ta) - len(removedLocal)
	if keptCount == 0 && len(removedLocal) == len(addedLocal) && len(removedLocal) > 0 {
		out := make(patchtypes.Patch, 0, len(removedLocal))
		for i, li := range removedLocal {
			cp, err := deepCopyJSON(tb[addedLocal[i]])
			if err != nil {
				return nil, err
			}
			out = append(out, patchtypes.Operation{
				Op:    patchtypes.Replace,
				Path:  joinPath(path, strconv.Itoa(prefix+li)),
				Value: cp,
			})
		}
		return out, nil
	}

	out := make(patchtypes.Patch, 0, len(removedLocal)+len(addedLocal))
	for i := len(removedLocal) - 1; i >= 0; i-- {
		out = append(out, patchtypes.Operation{
			Op:   patchtypes.Remove,
			Path: joinPath(path, strconv.Itoa(prefix+removedLocal[i])),
		})
	}
	for _, li := range addedLocal {
		cp, err := deepCopyJSON(tb[li])
		if err != nil {
			return nil, err
		}
		out = append(out, patchtypes.Operation{
			Op:    patchtypes.Add,
			Path:  joinPath(path, strconv.Itoa(prefix+li)),
			Value: cp,
		})
	}
	return out, nil
}

func atomicReplace(path string, b []any) (patchtypes.Patch, error) {
	cp, err := deepCopyJSON(b)
	if err != nil {
		return nil, err
	}
	return patchtypes.Patch{{Op: patchtypes.Replace, Path: path, Value: cp}}, nil
}

// unmatchedIndices finds a longest common subsequence between ta and tb by
// tokenized equality, returning the local indices NOT covered by that LCS
// (i.e. the elements that must be removed from ta / added from tb),
// each list in ascending order.
func unmatchedIndices(ta, tb []any) (removedLocal, addedLocal []int, err error) {
	atoks, err := tokenizeArray(ta)
	if err != nil {
		return nil, nil, err
	}
	btoks, err := tokenizeArray(tb)
	if err != nil {
		return nil, nil, err
	}
	n, m := len(atoks), len(btoks)

	posMap := make(map[string][]int, n)
	for i, t := range atoks {
		posMap[t] = append(posMap[t], i)
	}
	type pair struct{ ai, bj int }
	pairs := make([]pair, 0, minInt(n, m))
	seq := make([]int, 0, minInt(n, m))
	for j, t := range btoks {
		q := posMap[t]
		if len(q) == 0 {
			continue
		}
		ai := q[0]
		posMap[t] = q[1:]
		pairs = append(pairs, pair{ai: ai, bj: j})
		seq = append(seq, ai)
	}

	// Patience-sort LIS over seq, tracking predecessors to reconstruct it.
	k := len(seq)
	tails := make([]int, 0, k)
	prev := make([]int, k)
	for i := range prev {
		prev[i] = -1
	}
	for i, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}

	keepA := make([]bool, n)
	keepB := make([]bool, m)
	if len(tails) > 0 {
		idx := tails[len(tails)-1]
		for idx >= 0 {
			keepA[pairs[idx].ai] = true
			keepB[pairs[idx].bj] = true
			idx = prev[idx]
		}
	}

	for i := 0; i < n; i++ {
		if !keepA[i] {
			removedLocal = append(removedLocal, i)
		}
	}
	for j := 0; j < m; j++ {
		if !keepB[j] {
			addedLocal = append(addedLocal, j)
		}
	}
	return removedLocal, addedLocal, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// tokenizeArray maps each element to a comparable string token, grounded
// directly on the teacher's tokenizeArray: primitives get a cheap typed
// prefix, containers fall back to canonical JSON.
func tokenizeArray(arr []any) ([]string, error) {
	out := make([]string, len(arr))
	for i, v := range arr {
		switch tv := v.(type) {
		case nil:
			out[i] = "0"
		case bool:
			if tv {
				out[i] = "b:1"
			} else {
				out[i] = "b:0"
			}
		case float64:
			if tv == 0 {
				out[i] = "n:0"
				continue
			}
			out[i] = "n:" + strconv.FormatUint(math.Float64bits(tv), 16)
		case string:
			out[i] = "s:" + tv
		default:
			bs, err := json.Marshal(tv)
			if err != nil {
				return nil, err
			}
			out[i] = "j:" + string(bs)
		}
	}
	return out, nil
}

func joinPath(base, token string) string {
	if base == "" {
		return "/" + pointer.EscapeToken(token)
	}
	return base + "/" + pointer.EscapeToken(token)
}

func deepCopyJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
