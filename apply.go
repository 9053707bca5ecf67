package jsoncrdt

import (
	"github.com/agentflare-ai/jsoncrdt/internal/applier"
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/compiler"
	"github.com/agentflare-ai/jsoncrdt/internal/materialize"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
	"github.com/agentflare-ai/jsoncrdt/internal/patchtypes"
)

// ApplyOptions configures how a patch compiles and applies against a
// State.
type ApplyOptions struct {
	// Base resolves patch paths against a snapshot other than the current
	// head — applying a patch diffed against a prior version while the
	// head has since moved on. Nil means "the current head", the common
	// case.
	Base *node.Doc
	// Semantics selects sequential (default) or base path resolution
	// across ops in one patch.
	Semantics Semantics
	// TestAgainst selects which document a `test` op checks against.
	TestAgainst TestAgainst
	// StrictParents disables auto-creating a missing array parent for an
	// ArrInsert at index 0 or append.
	StrictParents bool
	// JSONValidation controls NON_FINITE_NUMBER / UNDEFINED_VALUE
	// checking of patch values.
	JSONValidation JSONValidation
}

func (o ApplyOptions) compilerOptions() compiler.Options {
	return compiler.Options{
		Semantics:      o.Semantics,
		TestAgainst:    o.TestAgainst,
		StrictParents:  o.StrictParents,
		JSONValidation: o.JSONValidation,
	}
}

// ApplyInPlaceOptions extends ApplyOptions with the in-place atomicity
// knob.
type ApplyInPlaceOptions struct {
	ApplyOptions
	// NonAtomic disables the default atomic snapshot/restore: on failure,
	// a non-atomic apply leaves whatever prefix of intents already
	// mutated the state in place, matching spec.md §4.11's "best-effort
	// partial application" mode.
	NonAtomic bool
}

// TryApplyPatch compiles and applies patch against state's head,
// returning a new State; state is never mutated. Returns a *PatchError on
// the first failing operation.
func TryApplyPatch(state *State, patch Patch, opts ApplyOptions) (*State, error) {
	newDoc := node.CloneDoc(state.Doc)
	newClock := state.Clock.Clone()
	if err := applyInto(newDoc, newClock, patch, opts); err != nil {
		return nil, err
	}
	return &State{Doc: newDoc, Clock: newClock}, nil
}

// ApplyPatch is TryApplyPatch's throwing counterpart: it panics with the
// *PatchError on failure instead of returning one, for callers that treat
// a bad patch as a programming error rather than a recoverable outcome.
func ApplyPatch(state *State, patch Patch, opts ApplyOptions) *State {
	newState, err := TryApplyPatch(state, patch, opts)
	if err != nil {
		panic(err)
	}
	return newState
}

// TryApplyPatchInPlace compiles and applies patch against state's head in
// place. Under the default atomic mode, a failure restores state's doc
// and clock to their pre-call values before returning the error; under
// NonAtomic, intents already executed before the failing one remain
// applied.
func TryApplyPatchInPlace(state *State, patch Patch, opts ApplyInPlaceOptions) error {
	if opts.NonAtomic {
		return applyInto(state.Doc, state.Clock, patch, opts.ApplyOptions)
	}

	snapDoc := node.CloneDoc(state.Doc)
	snapClock := state.Clock.Clone()
	if err := applyInto(state.Doc, state.Clock, patch, opts.ApplyOptions); err != nil {
		state.Doc = snapDoc
		state.Clock = snapClock
		return err
	}
	return nil
}

// ApplyPatchInPlace is TryApplyPatchInPlace's throwing counterpart.
func ApplyPatchInPlace(state *State, patch Patch, opts ApplyInPlaceOptions) {
	if err := TryApplyPatchInPlace(state, patch, opts); err != nil {
		panic(err)
	}
}

// applyInto compiles patch against the resolved base (opts.Base, or doc
// itself when nil) and executes the resulting intents against doc,
// minting dots from c. doc and c may be partially mutated if an
// intermediate intent fails; callers needing atomicity snapshot/restore
// around this call.
func applyInto(doc *node.Doc, c *clock.Clock, patch Patch, opts ApplyOptions) error {
	baseDoc := opts.Base
	if baseDoc == nil {
		if opts.Semantics == compiler.SemanticsBase {
			baseDoc = node.CloneDoc(doc)
		} else {
			baseDoc = doc
		}
	}
	baseJSON, err := materialize.Doc(baseDoc)
	if err != nil {
		return asPatchError(err)
	}

	cOpts := opts.compilerOptions()
	intents, err := compiler.Compile(baseJSON, patchtypes.Patch(patch), cOpts)
	if err != nil {
		return asPatchError(err)
	}

	minter := &applier.Minter{Clock: c}
	if err := applier.Apply(doc, baseDoc, baseJSON, intents, minter, cOpts); err != nil {
		return asPatchError(err)
	}
	return nil
}

// ApplyResult is ApplyPatchAsActor's return value: the resulting document
// and the version vector observed across the whole apply.
type ApplyResult struct {
	Doc *node.Doc
	VV  VV
}

// ApplyPatchAsActor is the doc-level entry point the state façade is
// built on top of (spec.md §6's "internal operations" list): it mints
// dots for actor against vv rather than an owned *clock.Clock, useful
// when the caller tracks version vectors externally (e.g. a server
// fanning out writes across many documents for many actors without
// keeping a live Clock per document in memory).
func ApplyPatchAsActor(doc *node.Doc, vv VV, actor string, patch Patch, opts ApplyOptions) (ApplyResult, error) {
	newDoc := node.CloneDoc(doc)
	observed := vv.Clone()
	c, err := clock.New(actor, int64(observed[actor]))
	if err != nil {
		return ApplyResult{}, asValidationError(err)
	}
	if err := applyInto(newDoc, c, patch, opts); err != nil {
		return ApplyResult{}, err
	}
	observed[actor] = c.Ctr()
	return ApplyResult{Doc: newDoc, VV: observed}, nil
}

// ValidateJsonPatch preflights patch against state's current head without
// mutating anything: it compiles and applies patch against a clone of
// state's doc and clock, the same steps TryApplyPatch runs, and reports the
// first error a real apply would hit. A nil return means the patch would
// apply cleanly as of this call (a later concurrent mutation of state could
// still invalidate that).
func ValidateJsonPatch(state *State, patch Patch, opts ApplyOptions) error {
	return applyInto(node.CloneDoc(state.Doc), state.Clock.Clone(), patch, opts)
}
