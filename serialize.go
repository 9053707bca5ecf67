package jsoncrdt

import (
	"github.com/agentflare-ai/jsoncrdt/internal/materialize"
	"github.com/agentflare-ai/jsoncrdt/internal/wire"
)

// ToJSON materializes state's document into a plain JSON-shaped value
// (map[string]any / []any / string / float64 / bool / nil), stripping all
// CRDT metadata.
func ToJSON(state *State) (any, error) {
	v, err := materialize.Doc(state.Doc)
	if err != nil {
		return nil, asPatchError(err)
	}
	return v, nil
}

// SerializeState converts state to its canonical wire form. Serializing a
// well-formed in-memory State cannot fail, so there is no error return and
// no Try/panic pair.
func SerializeState(state *State) wire.State {
	return wire.SerializeState(state.Doc, state.Clock)
}

// TryDeserializeState reconstructs a State from its wire form, validating
// every invariant wire.DeserializeState enforces (closed shape, non-empty
// actors, no dangling or cyclic RGA lineage) and fast-forwarding the
// resulting clock past any counter the wire form carries for its actor.
func TryDeserializeState(w wire.State) (*State, error) {
	doc, c, err := wire.DeserializeState(w)
	if err != nil {
		return nil, asDeserializeError(err)
	}
	return &State{Doc: doc, Clock: c}, nil
}

// DeserializeState is TryDeserializeState's throwing counterpart.
func DeserializeState(w wire.State) *State {
	state, err := TryDeserializeState(w)
	if err != nil {
		panic(err)
	}
	return state
}
