// Package jsoncrdt converts between RFC 6902 JSON Patch and a JSON-shaped
// CRDT so concurrent editors of the same document converge without a
// central server arbitrating writes. A State pairs a CRDT Doc with the
// Clock that mints its writer's dots; every public operation below takes
// or returns one.
//
// The package is organized the way the teacher splits a JSON Patch
// library into focused files (patch.go for apply/diff, a dedicated file
// per concern here instead of one large one): state.go for state
// lifecycle, apply.go for patch application, merge.go for convergence,
// compact.go for tombstone GC, diff.go for CRDT-to-patch conversion, and
// serialize.go for the wire form. internal/* holds the actual CRDT
// machinery; this file only wires the public names to it.
package jsoncrdt

import (
	"github.com/agentflare-ai/jsoncrdt/internal/compiler"
	"github.com/agentflare-ai/jsoncrdt/internal/diffengine"
	"github.com/agentflare-ai/jsoncrdt/internal/patchtypes"
)

// Op, Operation and Patch are the RFC 6902 wire types every public
// operation here speaks, re-exported so callers never import an internal
// package directly.
type (
	Op        = patchtypes.Op
	Operation = patchtypes.Operation
	Patch     = patchtypes.Patch
)

const (
	OpAdd     = patchtypes.Add
	OpRemove  = patchtypes.Remove
	OpReplace = patchtypes.Replace
	OpMove    = patchtypes.Move
	OpCopy    = patchtypes.Copy
	OpTest    = patchtypes.Test
)

// Semantics selects how successive ops within one patch resolve their
// paths against the evolving document.
type Semantics = compiler.Semantics

const (
	SemanticsSequential = compiler.SemanticsSequential
	SemanticsBase       = compiler.SemanticsBase
)

// TestAgainst selects which document a `test` op is checked against.
type TestAgainst = compiler.TestAgainst

const (
	TestAgainstHead = compiler.TestAgainstHead
	TestAgainstBase = compiler.TestAgainstBase
)

// JSONValidation controls how strictly patch values are checked for
// JSON-safety.
type JSONValidation = compiler.JSONValidation

const (
	JSONValidationNone      = compiler.JSONValidationNone
	JSONValidationStrict    = compiler.JSONValidationStrict
	JSONValidationNormalize = compiler.JSONValidationNormalize
)

// ArrayStrategy selects the array-diffing algorithm diffJsonPatch uses.
type ArrayStrategy = diffengine.ArrayStrategy

const (
	ArrayStrategyLCS    = diffengine.ArrayStrategyLCS
	ArrayStrategyAtomic = diffengine.ArrayStrategyAtomic
)

// DefaultLcsMaxCells is the default guardrail above which array diffing
// falls back to a single atomic replace.
const DefaultLcsMaxCells = diffengine.DefaultLcsMaxCells
