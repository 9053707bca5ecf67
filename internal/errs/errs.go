// Package errs defines the closed, typed error-reason catalog shared by
// the compiler, applier, merge, and wire packages (spec.md §7). Every
// reason in this catalog is a typed constant, never a raw string compared
// by message content.
package errs

// Reason is a closed-set error discriminator. The exported root package
// re-exports these as jsoncrdt.Reason values so callers never need to
// import internal/errs directly.
type Reason string

const (
	// Patch / apply errors (code 409 family).
	TestFailed             Reason = "TEST_FAILED"
	InvalidPointer         Reason = "INVALID_POINTER"
	InvalidTarget          Reason = "INVALID_TARGET"
	MissingParent          Reason = "MISSING_PARENT"
	MissingTarget          Reason = "MISSING_TARGET"
	OutOfBounds            Reason = "OUT_OF_BOUNDS"
	DotGenerationExhausted Reason = "DOT_GENERATION_EXHAUSTED"
	MaxDepthExceeded       Reason = "MAX_DEPTH_EXCEEDED"

	// Compile-only error.
	UnsupportedOp Reason = "UNSUPPORTED_OP"

	// Merge errors.
	LineageMismatch Reason = "LINEAGE_MISMATCH"

	// Deserialize errors.
	InvalidSerializedShape     Reason = "INVALID_SERIALIZED_SHAPE"
	InvalidSerializedInvariant Reason = "INVALID_SERIALIZED_INVARIANT"
	CyclicPredecessors         Reason = "CYCLIC_PREDECESSORS"

	// Clock / JSON-value validation errors.
	InvalidActor     Reason = "INVALID_ACTOR"
	InvalidCtr       Reason = "INVALID_CTR"
	NonFiniteNumber  Reason = "NON_FINITE_NUMBER"
	UndefinedValue   Reason = "UNDEFINED_VALUE"
)

// OpError is the common shape for every typed, non-throwing failure in
// this engine: a reason code plus optional path/op-index context. The
// compiler, applier, merge and wire packages all produce *OpError; the
// root façade wraps it as the public error types documented in
// SPEC_FULL.md §4.1.
type OpError struct {
	Reason  Reason
	Message string
	Path    string
	// OpIndex is -1 when not applicable (e.g. merge/deserialize errors,
	// which are not indexed by patch operation).
	OpIndex int
}

func (e *OpError) Error() string {
	if e.Path != "" {
		return string(e.Reason) + " at " + e.Path + ": " + e.Message
	}
	return string(e.Reason) + ": " + e.Message
}

// New constructs an *OpError with OpIndex defaulted to -1.
func New(reason Reason, path, message string) *OpError {
	return &OpError{Reason: reason, Message: message, Path: path, OpIndex: -1}
}

// WithOpIndex returns a copy of e with OpIndex set.
func (e *OpError) WithOpIndex(i int) *OpError {
	cp := *e
	cp.OpIndex = i
	return &cp
}
