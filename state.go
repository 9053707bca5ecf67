package jsoncrdt

import (
	"github.com/google/uuid"

	"github.com/agentflare-ai/jsoncrdt/internal/applier"
	"github.com/agentflare-ai/jsoncrdt/internal/clock"
	"github.com/agentflare-ai/jsoncrdt/internal/compiler"
	"github.com/agentflare-ai/jsoncrdt/internal/errs"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
)

// State pairs a CRDT document with the clock that mints its owning
// actor's dots. A State is exclusively owned by whichever code holds it;
// nothing here synchronizes concurrent access.
type State struct {
	Doc   *node.Doc
	Clock *clock.Clock
}

// CreateOptions configures CreateState.
type CreateOptions struct {
	// Actor names the state's owning writer. Empty mints a fresh
	// uuid.NewString() identity, a Go-native ergonomic addition: supplying
	// an actor explicitly remains preferred whenever reproducibility
	// matters.
	Actor string
	// Start is the clock's initial counter; builds occupy ctr 1..N, so a
	// nonzero Start is only useful when grafting onto externally-tracked
	// counters.
	Start          int64
	JSONValidation JSONValidation
}

// CreateState builds a fresh State from a plain JSON-shaped initial value,
// decomposing it into CRDT structure with every entry dotted by a
// freshly-minted clock.
func CreateState(initial any, opts CreateOptions) (*State, error) {
	actor := opts.Actor
	if actor == "" {
		actor = uuid.NewString()
	}
	c, err := clock.New(actor, opts.Start)
	if err != nil {
		return nil, asValidationError(err)
	}

	normalized, err := compiler.NormalizeAndValidate(initial, opts.JSONValidation)
	if err != nil {
		return nil, asValidationError(err)
	}

	minter := &applier.Minter{Clock: c}
	root, err := node.BuildFromJSON(normalized, minter)
	if err != nil {
		return nil, asPatchError(err)
	}
	return &State{Doc: &node.Doc{Root: root}, Clock: c}, nil
}

// ForkOptions configures ForkState.
type ForkOptions struct {
	// AllowActorReuse permits forking under the same actor as origin.
	// Left false (the default), a fork reusing origin's actor is rejected
	// since two live writers sharing one actor identity would each mint
	// dots the other cannot distinguish, breaking invariant 1 (every dot's
	// ctr must stay within its actor's observed clock).
	AllowActorReuse bool
}

// ForkState produces an independent State sharing origin's document at
// the moment of the fork, owned by a new actor. The forked clock starts
// at origin's counter so the new actor never mints a dot origin could
// also produce.
func ForkState(origin *State, actor string, opts ForkOptions) (*State, error) {
	if actor == "" {
		actor = uuid.NewString()
	}
	if !opts.AllowActorReuse && actor == origin.Clock.Actor() {
		return nil, &ValidationError{
			Reason:  errs.InvalidActor,
			Message: "fork actor must differ from the origin actor unless AllowActorReuse is set",
		}
	}
	docCopy := node.CloneDoc(origin.Doc)
	c, err := clock.New(actor, int64(origin.Clock.Ctr()))
	if err != nil {
		return nil, asValidationError(err)
	}
	return &State{Doc: docCopy, Clock: c}, nil
}
