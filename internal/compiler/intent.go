// Package compiler implements the intent compiler: translating RFC 6902
// patch operations, resolved against a base JSON snapshot, into an ordered
// list of typed intents the applier executes against the CRDT head
// (spec.md §4.5).
package compiler

import "github.com/agentflare-ai/jsoncrdt/internal/node"

// IntentKind is the closed set of intent variants.
type IntentKind string

const (
	KindObjSet     IntentKind = "ObjSet"
	KindObjRemove  IntentKind = "ObjRemove"
	KindArrInsert  IntentKind = "ArrInsert"
	KindArrDelete  IntentKind = "ArrDelete"
	KindArrReplace IntentKind = "ArrReplace"
	KindTest       IntentKind = "Test"
)

// ObjSetMode distinguishes an add (key must be new or overwritten freely)
// from a replace (key must already exist) at compile time. Empty string
// means "unconstrained"; the compiler itself always emits ModeAdd or
// ModeReplace (the virtual-root add and move/copy destinations compile
// as ModeAdd).
type ObjSetMode string

const (
	ModeAdd     ObjSetMode = "add"
	ModeReplace ObjSetMode = "replace"
)

// RootKey is the virtual object-entry key used when a patch op targets the
// whole document root ("" path). The applier special-cases this key: it
// replaces the entire Doc.Root rather than writing an entry into some
// object. "\x00" can never appear as a token parsed from a JSON Pointer
// string (the token would have to contain a raw NUL byte), so it cannot
// collide with a real object key supplied through a patch.
const RootKey = "\x00"

// Intent is one compiled, typed operation against the CRDT. Exactly the
// fields relevant to Kind are meaningful; this mirrors the teacher's flat
// Operation struct (one struct, a Kind/Op discriminator) rather than a
// family of small concrete types, since Go has no closed sum type and the
// pack's nearest prior art (agentflare's Operation, ag-ui's JSONPatch ops)
// both use a single tagged struct.
type Intent struct {
	Kind IntentKind

	// Path is the parent container's pointer for ObjSet/ObjRemove/Arr*,
	// or the subject pointer itself for Test.
	Path string

	// ObjSet / ObjRemove
	Key  string
	Mode ObjSetMode

	// ArrInsert / ArrDelete / ArrReplace. Index may be node.IndexAppend.
	Index int

	// ObjSet / ArrInsert / ArrReplace / Test
	Value any
}

// newObjSet builds an ObjSet intent targeting key under path.
func newObjSet(path, key string, value any, mode ObjSetMode) Intent {
	return Intent{Kind: KindObjSet, Path: path, Key: key, Value: value, Mode: mode}
}

func newObjRemove(path, key string) Intent {
	return Intent{Kind: KindObjRemove, Path: path, Key: key}
}

func newArrInsert(path string, index int, value any) Intent {
	return Intent{Kind: KindArrInsert, Path: path, Index: index, Value: value}
}

func newArrDelete(path string, index int) Intent {
	return Intent{Kind: KindArrDelete, Path: path, Index: index}
}

func newArrReplace(path string, index int, value any) Intent {
	return Intent{Kind: KindArrReplace, Path: path, Index: index, Value: value}
}

func newTest(path string, value any) Intent {
	return Intent{Kind: KindTest, Path: path, Value: value}
}

// Semantics selects how successive ops within one patch resolve their
// paths against the evolving document.
type Semantics string

const (
	SemanticsSequential Semantics = "sequential"
	SemanticsBase       Semantics = "base"
)

// TestAgainst selects which document a Test intent is later checked
// against at apply time. The compiler only threads this through; it is
// internal/applier that enforces it (spec.md §4.6).
type TestAgainst string

const (
	TestAgainstHead TestAgainst = "head"
	TestAgainstBase TestAgainst = "base"
)

// JSONValidation controls how strictly patch Values are checked for
// JSON-safety (non-finite numbers, undefined-equivalent values) at
// compile time.
type JSONValidation string

const (
	JSONValidationNone      JSONValidation = "none"
	JSONValidationStrict    JSONValidation = "strict"
	JSONValidationNormalize JSONValidation = "normalize"
)

// Options configures compilation. Zero value means sequential semantics,
// head testAgainst, non-strict parents, no JSON validation — the defaults
// named in SPEC_FULL.md §10 / spec.md §6.
type Options struct {
	Semantics      Semantics
	TestAgainst    TestAgainst
	StrictParents  bool
	JSONValidation JSONValidation
}

// effectiveSemantics returns opts.Semantics, defaulting to sequential.
func (o Options) effectiveSemantics() Semantics {
	if o.Semantics == SemanticsBase {
		return SemanticsBase
	}
	return SemanticsSequential
}

// node.IndexAppend re-exported under the name the compiler/applier share;
// kept as a separate identifier so this package does not need every
// caller to import internal/node solely for the sentinel.
const IndexAppend = node.IndexAppend
