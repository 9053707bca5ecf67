package jsoncrdt

import (
	"fmt"

	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/errs"
)

// Reason is the closed-set error discriminator shared by every error type
// below. Each error type only ever carries the subset of reasons its
// doc comment names; the type itself stays a plain string enum so one
// switch can handle every family without an import of internal/errs.
type Reason = errs.Reason

const (
	ReasonTestFailed             = errs.TestFailed
	ReasonInvalidPointer         = errs.InvalidPointer
	ReasonInvalidTarget          = errs.InvalidTarget
	ReasonMissingParent          = errs.MissingParent
	ReasonMissingTarget          = errs.MissingTarget
	ReasonOutOfBounds            = errs.OutOfBounds
	ReasonDotGenerationExhausted = errs.DotGenerationExhausted
	ReasonMaxDepthExceeded       = errs.MaxDepthExceeded
	ReasonUnsupportedOp          = errs.UnsupportedOp
	ReasonLineageMismatch        = errs.LineageMismatch

	ReasonInvalidSerializedShape     = errs.InvalidSerializedShape
	ReasonInvalidSerializedInvariant = errs.InvalidSerializedInvariant
	ReasonCyclicPredecessors         = errs.CyclicPredecessors

	ReasonInvalidActor    = errs.InvalidActor
	ReasonInvalidCtr      = errs.InvalidCtr
	ReasonNonFiniteNumber = errs.NonFiniteNumber
	ReasonUndefinedValue  = errs.UndefinedValue
)

// PatchError reports a failed compile or apply: TEST_FAILED,
// INVALID_POINTER, INVALID_TARGET, MISSING_PARENT, MISSING_TARGET,
// OUT_OF_BOUNDS, DOT_GENERATION_EXHAUSTED, MAX_DEPTH_EXCEEDED, or the
// compiler-only UNSUPPORTED_OP.
type PatchError struct {
	Reason  Reason
	Message string
	Path    string
	// OpIndex is -1 when the failure is not attributable to a single
	// operation in the patch.
	OpIndex int
}

func (e *PatchError) Error() string {
	if e.OpIndex >= 0 {
		return fmt.Sprintf("jsoncrdt: %s at op %d (%s): %s", e.Reason, e.OpIndex, e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("jsoncrdt: %s at %s: %s", e.Reason, e.Path, e.Message)
	}
	return fmt.Sprintf("jsoncrdt: %s: %s", e.Reason, e.Message)
}

// MergeError reports a failed doc merge: LINEAGE_MISMATCH or
// MAX_DEPTH_EXCEEDED.
type MergeError struct {
	Reason  Reason
	Message string
	Path    string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("jsoncrdt: merge %s at %s: %s", e.Reason, e.Path, e.Message)
}

// DeserializeError reports a failed deserialize: INVALID_SERIALIZED_SHAPE,
// INVALID_SERIALIZED_INVARIANT, CYCLIC_PREDECESSORS, or MAX_DEPTH_EXCEEDED.
type DeserializeError struct {
	Reason  Reason
	Message string
	Path    string
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("jsoncrdt: deserialize %s at %s: %s", e.Reason, e.Path, e.Message)
}

// ValidationError reports a malformed clock, actor, or JSON value:
// INVALID_ACTOR, INVALID_CTR, NON_FINITE_NUMBER, or UNDEFINED_VALUE.
// UNDEFINED_VALUE never actually surfaces from this implementation: Go has
// no value distinct from "absent", so normalizeAndValidate only ever has a
// non-finite float to reject, never a JS-style undefined.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("jsoncrdt: %s: %s", e.Reason, e.Message)
}

// asPatchError wraps an *errs.OpError (or any other error) from the
// compiler/applier as a *PatchError.
func asPatchError(err error) *PatchError {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*errs.OpError); ok {
		return &PatchError{Reason: oe.Reason, Message: oe.Message, Path: oe.Path, OpIndex: oe.OpIndex}
	}
	return &PatchError{Reason: errs.UnsupportedOp, Message: err.Error(), OpIndex: -1}
}

// asMergeError wraps an *errs.OpError from internal/merge as a
// *MergeError.
func asMergeError(err error) *MergeError {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*errs.OpError); ok {
		return &MergeError{Reason: oe.Reason, Message: oe.Message, Path: oe.Path}
	}
	return &MergeError{Reason: errs.LineageMismatch, Message: err.Error()}
}

// asDeserializeError wraps an *errs.OpError from internal/wire as a
// *DeserializeError.
func asDeserializeError(err error) *DeserializeError {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*errs.OpError); ok {
		return &DeserializeError{Reason: oe.Reason, Message: oe.Message, Path: oe.Path}
	}
	return &DeserializeError{Reason: errs.InvalidSerializedShape, Message: err.Error()}
}

// asValidationError wraps a *clock.ValidationError (or an *errs.OpError
// from JSON-value normalization) as a *ValidationError.
func asValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*clock.ValidationError); ok {
		return &ValidationError{Reason: Reason(ve.Reason), Message: ve.Message}
	}
	if oe, ok := err.(*errs.OpError); ok {
		return &ValidationError{Reason: oe.Reason, Message: oe.Message}
	}
	return &ValidationError{Reason: errs.NonFiniteNumber, Message: err.Error()}
}
