package compiler

import (
	"encoding/json"
	"math"
	"strings"

	jsonpointer "github.com/agentflare-ai/jsonpointer"

	"github.com/agentflare-ai/jsoncrdt/internal/errs"
	"github.com/agentflare-ai/jsoncrdt/internal/patchtypes"
)

// Compile translates patch, resolved against baseJSON, into an ordered list
// of intents for internal/applier to execute against the CRDT head. baseJSON
// must be a plain JSON-shaped value (map[string]any / []any / primitives),
// typically the output of internal/materialize.Doc.
//
// Under SemanticsSequential (the default) each operation's path is resolved
// against a shadow document that reflects every prior operation in this same
// patch, mirroring the teacher's Prepare/docCopy loop. Under SemanticsBase
// every operation resolves against baseJSON unchanged, so a patch's ops
// cannot see each other's effects.
func Compile(baseJSON any, patch patchtypes.Patch, opts Options) ([]Intent, error) {
	shadow, err := deepCopyJSON(baseJSON)
	if err != nil {
		return nil, errs.New(errs.InvalidTarget, "", "base document is not JSON-shaped: "+err.Error())
	}

	var intents []Intent
	for i, op := range patch {
		source := baseJSON
		if opts.effectiveSemantics() == SemanticsSequential {
			source = shadow
		}

		ops, err := compileOne(source, op, opts)
		if err != nil {
			if oe, ok := err.(*errs.OpError); ok {
				return nil, oe.WithOpIndex(i)
			}
			return nil, errs.New(errs.UnsupportedOp, op.Path, err.Error()).WithOpIndex(i)
		}
		intents = append(intents, ops...)

		if opts.effectiveSemantics() == SemanticsSequential {
			shadow, err = applyToShadow(shadow, op)
			if err != nil {
				if oe, ok := err.(*errs.OpError); ok {
					return nil, oe.WithOpIndex(i)
				}
				return nil, errs.New(errs.UnsupportedOp, op.Path, err.Error()).WithOpIndex(i)
			}
		}
	}
	return intents, nil
}

func compileOne(source any, op patchtypes.Operation, opts Options) ([]Intent, error) {
	normalized, err := normalizeAndValidate(op.Value, opts.JSONValidation)
	if err != nil {
		return nil, err
	}
	op.Value = normalized
	switch op.Op {
	case patchtypes.Add:
		return compileAdd(source, op.Path, op.Value, opts)
	case patchtypes.Remove:
		return compileRemove(source, op.Path)
	case patchtypes.Replace:
		return compileReplace(source, op.Path, op.Value)
	case patchtypes.Move:
		return compileMove(source, op.From, op.Path, opts)
	case patchtypes.Copy:
		return compileCopy(source, op.From, op.Path, opts)
	case patchtypes.Test:
		return []Intent{newTest(op.Path, op.Value)}, nil
	default:
		return nil, errs.New(errs.UnsupportedOp, op.Path, "unsupported patch operation: "+string(op.Op))
	}
}

// splitParent parses path into (parentPath, lastToken), following the
// teacher's jsonpointer.New / jsonpointer.Pointer(...).String() idiom.
func splitParent(path string) (parentPath, token string, root bool, err error) {
	p, err := jsonpointer.New(path)
	if err != nil {
		return "", "", false, errs.New(errs.InvalidPointer, path, err.Error())
	}
	if len(p) == 0 {
		return "", "", true, nil
	}
	parentPath = jsonpointer.Pointer(p[0 : len(p)-1]).String()
	token = p[len(p)-1]
	return parentPath, token, false, nil
}

func compileAdd(source any, path string, value any, opts Options) ([]Intent, error) {
	parentPath, token, root, err := splitParent(path)
	if err != nil {
		return nil, err
	}
	if root {
		return []Intent{newObjSet("", RootKey, value, ModeAdd)}, nil
	}

	if token == protoKey {
		return nil, errs.New(errs.InvalidTarget, path, "__proto__ is not a valid target key")
	}

	parent, getErr := jsonpointer.Get(source, parentPath)
	if getErr != nil {
		return compileAddAutoCreate(parentPath, token, value, opts)
	}

	switch p := parent.(type) {
	case []any:
		if token == "-" {
			return []Intent{newArrInsert(parentPath, IndexAppend, value)}, nil
		}
		idx, perr := jsonpointer.ParseArrayIndex(token)
		if perr != nil {
			return nil, errs.New(errs.InvalidPointer, path, perr.Error())
		}
		if int(idx) > len(p) {
			return nil, errs.New(errs.OutOfBounds, path, "add index out of bounds")
		}
		return []Intent{newArrInsert(parentPath, int(idx), value)}, nil

	case map[string]any:
		return []Intent{newObjSet(parentPath, token, value, ModeAdd)}, nil

	default:
		return nil, errs.New(errs.InvalidTarget, parentPath, "add parent is not a container")
	}
}

// protoKey is the prototype-pollution key spec.md singles out for
// rejection regardless of container kind.
const protoKey = "__proto__"

// compileAddAutoCreate handles an Add whose parent is absent from source
// (base or shadow). spec.md §4.5 allows the applier to auto-create a
// missing sequence parent, but only at the two positions that are
// unambiguous regardless of what the head turns out to hold concurrently:
// append ("-") and index 0. StrictParents disables this and always reports
// MISSING_PARENT instead. Whether the parent is actually absent from head
// too (as opposed to added concurrently by another actor) is resolved later
// by the applier's ensureSeqContainer, not here.
func compileAddAutoCreate(parentPath, token string, value any, opts Options) ([]Intent, error) {
	if opts.StrictParents {
		return nil, errs.New(errs.MissingParent, parentPath, "parent is absent and strictParents is set")
	}
	if token == "-" {
		return []Intent{newArrInsert(parentPath, IndexAppend, value)}, nil
	}
	idx, perr := jsonpointer.ParseArrayIndex(token)
	if perr != nil || idx != 0 {
		return nil, errs.New(errs.MissingParent, parentPath, "parent is absent; auto-create only applies at index 0 or append")
	}
	return []Intent{newArrInsert(parentPath, 0, value)}, nil
}

func compileRemove(source any, path string) ([]Intent, error) {
	parentPath, token, root, err := splitParent(path)
	if err != nil {
		return nil, err
	}
	if root {
		return nil, errs.New(errs.InvalidTarget, path, "remove at root path is not supported")
	}
	if token == protoKey {
		return nil, errs.New(errs.InvalidTarget, path, "__proto__ is not a valid target key")
	}
	if _, getErr := jsonpointer.Get(source, path); getErr != nil {
		return nil, errs.New(errs.MissingTarget, path, getErr.Error())
	}

	parent, err := jsonpointer.Get(source, parentPath)
	if err != nil {
		return nil, errs.New(errs.MissingParent, parentPath, err.Error())
	}
	switch p := parent.(type) {
	case []any:
		idx, perr := jsonpointer.ParseArrayIndex(token)
		if perr != nil {
			return nil, errs.New(errs.InvalidPointer, path, perr.Error())
		}
		if int(idx) >= len(p) {
			return nil, errs.New(errs.OutOfBounds, path, "remove index out of bounds")
		}
		return []Intent{newArrDelete(parentPath, int(idx))}, nil
	case map[string]any:
		return []Intent{newObjRemove(parentPath, token)}, nil
	default:
		return nil, errs.New(errs.InvalidTarget, parentPath, "remove parent is not a container")
	}
}

func compileReplace(source any, path string, value any) ([]Intent, error) {
	parentPath, token, root, err := splitParent(path)
	if err != nil {
		return nil, err
	}
	if token == protoKey {
		return nil, errs.New(errs.InvalidTarget, path, "__proto__ is not a valid target key")
	}
	if root {
		if _, getErr := jsonpointer.Get(source, path); getErr != nil {
			return nil, errs.New(errs.MissingTarget, path, getErr.Error())
		}
		return []Intent{newObjSet("", RootKey, value, ModeReplace)}, nil
	}

	parent, err := jsonpointer.Get(source, parentPath)
	if err != nil {
		return nil, errs.New(errs.MissingParent, parentPath, err.Error())
	}
	if _, getErr := jsonpointer.Get(source, path); getErr != nil {
		return nil, errs.New(errs.MissingTarget, path, getErr.Error())
	}
	switch p := parent.(type) {
	case []any:
		idx, perr := jsonpointer.ParseArrayIndex(token)
		if perr != nil {
			return nil, errs.New(errs.InvalidPointer, path, perr.Error())
		}
		if int(idx) >= len(p) {
			return nil, errs.New(errs.OutOfBounds, path, "replace index out of bounds")
		}
		return []Intent{newArrReplace(parentPath, int(idx), value)}, nil
	case map[string]any:
		return []Intent{newObjSet(parentPath, token, value, ModeReplace)}, nil
	default:
		return nil, errs.New(errs.InvalidTarget, parentPath, "replace parent is not a container")
	}
}

// compileMove follows spec.md §4.5's asymmetric ordering: an array-sourced
// move emits ArrDelete(from) before the destination intent, while an
// object-sourced move emits the destination intent (ObjSet/ArrInsert)
// before ObjRemove(from). In both cases the moved value is snapshotted
// before the source is removed.
func compileMove(source any, from, to string, opts Options) ([]Intent, error) {
	if from == to {
		return nil, nil
	}
	if pathUnder(to, from) {
		return nil, errs.New(errs.InvalidTarget, to, "cannot move a location into its own subtree")
	}
	val, err := jsonpointer.Get(source, from)
	if err != nil {
		return nil, errs.New(errs.MissingTarget, from, err.Error())
	}
	removeIntents, err := compileRemove(source, from)
	if err != nil {
		return nil, err
	}
	addIntents, err := compileAdd(source, to, val, opts)
	if err != nil {
		return nil, err
	}
	if len(removeIntents) == 1 && removeIntents[0].Kind == KindArrDelete {
		return append(removeIntents, addIntents...), nil
	}
	return append(addIntents, removeIntents...), nil
}

func compileCopy(source any, from, to string, opts Options) ([]Intent, error) {
	val, err := jsonpointer.Get(source, from)
	if err != nil {
		return nil, errs.New(errs.MissingTarget, from, err.Error())
	}
	cp, err := deepCopyJSON(val)
	if err != nil {
		return nil, errs.New(errs.InvalidTarget, from, err.Error())
	}
	return compileAdd(source, to, cp, opts)
}

// pathUnder reports whether to names a location at or below from, the move
// self-nesting case RFC 6902 forbids.
func pathUnder(to, from string) bool {
	if to == from {
		return true
	}
	return strings.HasPrefix(to, from+"/")
}

// applyToShadow mutates the sequential shadow document the same way the
// teacher's applyAdd/applyRemove/applyReplace/applyMove/applyCopy do, purely
// so later ops in the same patch resolve "-" and existence checks against
// an up-to-date plain-JSON view. It never touches the CRDT itself.
func applyToShadow(doc any, op patchtypes.Operation) (any, error) {
	switch op.Op {
	case patchtypes.Add:
		return shadowAdd(doc, op.Path, op.Value)
	case patchtypes.Remove:
		return jsonpointer.Remove(doc, op.Path)
	case patchtypes.Replace:
		if _, err := jsonpointer.Get(doc, op.Path); err != nil {
			return nil, err
		}
		return jsonpointer.Set(doc, op.Path, op.Value)
	case patchtypes.Move:
		val, err := jsonpointer.Get(doc, op.From)
		if err != nil {
			return nil, err
		}
		doc, err = jsonpointer.Remove(doc, op.From)
		if err != nil {
			return nil, err
		}
		return shadowAdd(doc, op.Path, val)
	case patchtypes.Copy:
		val, err := jsonpointer.Get(doc, op.From)
		if err != nil {
			return nil, err
		}
		return shadowAdd(doc, op.Path, val)
	case patchtypes.Test:
		return doc, nil
	default:
		return nil, errs.New(errs.UnsupportedOp, op.Path, "unsupported patch operation: "+string(op.Op))
	}
}

func shadowAdd(document any, path string, value any) (any, error) {
	p, err := jsonpointer.New(path)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return value, nil
	}
	parentPath := jsonpointer.Pointer(p[0 : len(p)-1]).String()
	token := p[len(p)-1]

	parent, err := jsonpointer.Get(document, parentPath)
	if err != nil {
		return nil, err
	}
	if arr, ok := parent.([]any); ok {
		if token == "-" {
			newArr := append(append([]any{}, arr...), value)
			return jsonpointer.Set(document, parentPath, newArr)
		}
		idx, err := jsonpointer.ParseArrayIndex(token)
		if err == nil {
			if int(idx) > len(arr) {
				return nil, errs.New(errs.OutOfBounds, path, "add index out of bounds")
			}
			newArr := make([]any, 0, len(arr)+1)
			newArr = append(newArr, arr[:idx]...)
			newArr = append(newArr, value)
			newArr = append(newArr, arr[idx:]...)
			return jsonpointer.Set(document, parentPath, newArr)
		}
	}
	return jsonpointer.Set(document, path, value)
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

// NormalizeAndValidate exposes normalizeAndValidate for callers outside this
// package that need the same NON_FINITE_NUMBER / UNDEFINED_VALUE rules
// applied to a whole document, not just a single patch operation's value —
// namely the state façade's createState, which validates the initial
// document the same way compileOne validates each op's Value.
func NormalizeAndValidate(v any, mode JSONValidation) (any, error) {
	return normalizeAndValidate(v, mode)
}

// normalizeAndValidate enforces JSONValidation on a value supplied by a
// patch operation (spec.md §4.5's NON_FINITE_NUMBER / UNDEFINED_VALUE
// rules). Under JSONValidationStrict a non-finite float is a compile error;
// under JSONValidationNormalize it is silently coerced to nil, matching the
// common encoding/json-adjacent convention of mapping NaN/Inf to JSON null.
func normalizeAndValidate(v any, mode JSONValidation) (any, error) {
	if mode == JSONValidationNone || mode == "" {
		return v, nil
	}
	switch tv := v.(type) {
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			if mode == JSONValidationStrict {
				return nil, errs.New(errs.NonFiniteNumber, "", "non-finite number in patch value")
			}
			return nil, nil
		}
		return tv, nil
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, vv := range tv {
			nv, err := normalizeAndValidate(vv, mode)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(tv))
		for i, vv := range tv {
			nv, err := normalizeAndValidate(vv, mode)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}
