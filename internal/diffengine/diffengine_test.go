package diffengine

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/agentflare-ai/jsoncrdt/internal/patchtypes"
	"github.com/agentflare-ai/jsoncrdt/internal/pointer"
)

// applyPatch is a minimal plain-JSON patch executor covering only the
// add/remove/replace ops Diff ever emits, used here purely to verify
// round-tripping; it is not the CRDT applier.
func applyPatch(doc any, patch patchtypes.Patch) (any, error) {
	for _, op := range patch {
		p, err := pointer.Parse(op.Path)
		if err != nil {
			return nil, err
		}
		if len(p) == 0 {
			doc = op.Value
			continue
		}
		parent, tok := p.Parent()
		container, err := pointer.Get(doc, parent)
		if err != nil {
			return nil, err
		}
		switch c := container.(type) {
		case map[string]any:
			switch op.Op {
			case patchtypes.Remove:
				delete(c, tok)
			case patchtypes.Add, patchtypes.Replace:
				c[tok] = op.Value
			}
		case []any:
			idx, _ := pointer.ParseArrayIndex(tok)
			switch op.Op {
			case patchtypes.Remove:
				copy(c[idx:], c[idx+1:])
				newSlice := c[:len(c)-1]
				if len(parent) == 0 {
					doc = newSlice
				} else if err := setAt(doc, parent, newSlice); err != nil {
					return nil, err
				}
			case patchtypes.Replace:
				c[idx] = op.Value
			case patchtypes.Add:
				if tok == "-" {
					idx = len(c)
				}
				grown := append(c, nil)
				copy(grown[idx+1:], grown[idx:])
				grown[idx] = op.Value
				if len(parent) == 0 {
					doc = grown
				} else if err := setAt(doc, parent, grown); err != nil {
					return nil, err
				}
			}
		}
	}
	return doc, nil
}

// setAt replaces the slice at parent with grown, needed because a Go slice
// header changes on append and the parent container must observe it. It
// does nothing for the root pointer; applyPatch rebinds doc itself there.
func setAt(doc any, parent pointer.Pointer, grown []any) error {
	if len(parent) == 0 {
		return nil
	}
	grandparentPath, tok := parent.Parent()
	grandparent, err := pointer.Get(doc, grandparentPath)
	if err != nil {
		return err
	}
	switch g := grandparent.(type) {
	case map[string]any:
		g[tok] = grown
	case []any:
		idx, _ := pointer.ParseArrayIndex(tok)
		g[idx] = grown
	}
	return nil
}

func roundTrip(t *testing.T, a, b any) patchtypes.Patch {
	t.Helper()
	p, err := Diff(a, b, Options{})
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	out, err := applyPatch(a, p)
	if err != nil {
		t.Fatalf("applyPatch() error: %v", err)
	}
	if !reflect.DeepEqual(out, b) {
		ob, _ := json.Marshal(out)
		bb, _ := json.Marshal(b)
		t.Fatalf("applyPatch(Diff(a,b)) mismatch\nout=%s\nb  =%s\npatch=%+v", ob, bb, p)
	}
	return p
}

func TestDiff_NoOpWhenEqual(t *testing.T) {
	a := map[string]any{"a": 1.0, "b": []any{1.0, 2.0}}
	p, err := Diff(a, a, Options{})
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if len(p) != 0 {
		t.Fatalf("expected empty patch when inputs equal, got %v", p)
	}
}

func TestDiff_ObjectAddRemoveReplace(t *testing.T) {
	a := map[string]any{"a": 1.0, "b": map[string]any{"x": 10.0}, "c": 3.0}
	b := map[string]any{"a": 2.0, "b": map[string]any{"x": 10.0, "y": 20.0}}
	roundTrip(t, a, b)
}

func TestDiff_ObjectOpOrdering(t *testing.T) {
	a := map[string]any{"remove_me": 1.0, "keep": 1.0}
	b := map[string]any{"keep": 1.0, "add_me": 2.0}
	p := roundTrip(t, a, b)
	if len(p) != 2 {
		t.Fatalf("expected 2 ops, got %d: %+v", len(p), p)
	}
	if p[0].Op != patchtypes.Remove || p[1].Op != patchtypes.Add {
		t.Fatalf("expected remove before add, got %+v", p)
	}
}

func TestDiff_ArrayInsertMiddle(t *testing.T) {
	a := map[string]any{"arr": []any{"bar", "baz"}}
	b := map[string]any{"arr": []any{"bar", "qux", "baz"}}
	roundTrip(t, a, b)
}

func TestDiff_ArrayRemoveMiddle(t *testing.T) {
	a := map[string]any{"arr": []any{"bar", "qux", "baz"}}
	b := map[string]any{"arr": []any{"bar", "baz"}}
	roundTrip(t, a, b)
}

func TestDiff_ArrayReorder(t *testing.T) {
	a := map[string]any{"arr": []any{"a", "b", "c", "d"}}
	b := map[string]any{"arr": []any{"a", "c", "b", "d"}}
	roundTrip(t, a, b)
}

func TestDiff_ArrayAlignedReplace(t *testing.T) {
	a := []any{"a", "b", "c"}
	b := []any{"a", "x", "c"}
	p := roundTrip(t, a, b)
	if len(p) != 1 || p[0].Op != patchtypes.Replace || p[0].Path != "/1" {
		t.Fatalf("expected single aligned replace at /1, got %+v", p)
	}
}

// TestDiff_ArrayReplaceAcrossKeptElementUsesRemoveAdd reproduces spec.md
// §8 scenario 2 verbatim: a removed element and an added element that
// happen to form equal-length unmatched runs must NOT be paired into an
// aligned Replace when a kept (matched) element sits between them, since
// the kept element shifts one side's absolute index relative to the
// other. Remove+Add is the only form that lands on the right indices.
func TestDiff_ArrayReplaceAcrossKeptElementUsesRemoveAdd(t *testing.T) {
	a := map[string]any{"arr": []any{1.0, 2.0, 3.0}}
	b := map[string]any{"arr": []any{1.0, 3.0, 4.0}}
	p := roundTrip(t, a, b)
	if len(p) != 2 || p[0].Op != patchtypes.Remove || p[0].Path != "/arr/1" ||
		p[1].Op != patchtypes.Add || p[1].Path != "/arr/2" {
		t.Fatalf("expected [{remove /arr/1} {add /arr/2 4}], got %+v", p)
	}
}

func TestDiff_ArrayPrefixSuffixTrim(t *testing.T) {
	a := []any{"same1", "same2", "old1", "old2", "tail1", "tail2"}
	b := []any{"same1", "same2", "new1", "tail1", "tail2"}
	p := roundTrip(t, a, b)
	for _, op := range p {
		if op.Path == "/0" || op.Path == "/1" {
			t.Fatalf("trimmed prefix region should not appear in patch: %+v", p)
		}
	}
}

func TestDiff_ArrayAtomicFallbackOnCellGuard(t *testing.T) {
	a := make([]any, 10)
	b := make([]any, 10)
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(i + 100)
	}
	p, err := Diff(a, b, Options{LcsMaxCells: 4})
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if len(p) != 1 || p[0].Op != patchtypes.Replace || p[0].Path != "" {
		t.Fatalf("expected single atomic root replace, got %+v", p)
	}
	out, err := applyPatch(a, p)
	if err != nil {
		t.Fatalf("applyPatch() error: %v", err)
	}
	if !reflect.DeepEqual(out, b) {
		t.Fatalf("atomic replace did not round-trip")
	}
}

func TestDiff_ArrayExplicitAtomicStrategy(t *testing.T) {
	a := []any{"a", "b"}
	b := []any{"a", "x"}
	p, err := Diff(a, b, Options{ArrayStrategy: ArrayStrategyAtomic})
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if len(p) != 1 || p[0].Path != "" {
		t.Fatalf("expected single root replace under atomic strategy, got %+v", p)
	}
}

func TestDiff_RootTypeChange(t *testing.T) {
	a := map[string]any{"x": 1.0}
	b := []any{1.0, 2.0}
	roundTrip(t, a, b)
}

func TestDiff_NestedRecursion(t *testing.T) {
	a := map[string]any{"outer": map[string]any{"inner": []any{1.0, 2.0}}}
	b := map[string]any{"outer": map[string]any{"inner": []any{1.0, 3.0, 2.0}}}
	roundTrip(t, a, b)
}
