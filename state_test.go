package jsoncrdt_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/agentflare-ai/jsoncrdt"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", s, err)
	}
	return v
}

func mustCreateState(t *testing.T, actor string, doc string) *jsoncrdt.State {
	t.Helper()
	state, err := jsoncrdt.CreateState(mustJSON(t, doc), jsoncrdt.CreateOptions{Actor: actor})
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	return state
}

func mustToJSON(t *testing.T, state *jsoncrdt.State) any {
	t.Helper()
	v, err := jsoncrdt.ToJSON(state)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	return v
}

func TestCreateState_MaterializesBackToTheInitialValue(t *testing.T) {
	state := mustCreateState(t, "alice", `{"a":"b","foo":["bar","baz"]}`)
	got := mustToJSON(t, state)
	want := mustJSON(t, `{"a":"b","foo":["bar","baz"]}`)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
	if state.Clock.Actor() != "alice" {
		t.Fatalf("Clock.Actor() = %q, want alice", state.Clock.Actor())
	}
}

func TestCreateState_MintsAnActorWhenNoneGiven(t *testing.T) {
	state, err := jsoncrdt.CreateState(mustJSON(t, `{}`), jsoncrdt.CreateOptions{})
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	if state.Clock.Actor() == "" {
		t.Fatal("expected a non-empty minted actor")
	}
}

func TestForkState_ProducesAnIndependentCopy(t *testing.T) {
	origin := mustCreateState(t, "alice", `{"count":1}`)
	forked, err := jsoncrdt.ForkState(origin, "bob", jsoncrdt.ForkOptions{})
	if err != nil {
		t.Fatalf("ForkState: %v", err)
	}

	jsoncrdt.ApplyPatchInPlace(forked, jsoncrdt.Patch{
		{Op: jsoncrdt.OpReplace, Path: "/count", Value: 2.0},
	}, jsoncrdt.ApplyInPlaceOptions{})

	originJSON := mustToJSON(t, origin)
	forkedJSON := mustToJSON(t, forked)
	if reflect.DeepEqual(originJSON, forkedJSON) {
		t.Fatalf("expected origin and forked documents to diverge, both are %#v", originJSON)
	}
	want := mustJSON(t, `{"count":1}`)
	if !reflect.DeepEqual(originJSON, want) {
		t.Fatalf("origin mutated: got %#v, want %#v", originJSON, want)
	}
}

func TestForkState_RejectsActorReuseByDefault(t *testing.T) {
	origin := mustCreateState(t, "alice", `{}`)
	if _, err := jsoncrdt.ForkState(origin, "alice", jsoncrdt.ForkOptions{}); err == nil {
		t.Fatal("expected an error forking under the origin's own actor")
	}
}

func TestForkState_AllowsActorReuseWhenOptedIn(t *testing.T) {
	origin := mustCreateState(t, "alice", `{}`)
	if _, err := jsoncrdt.ForkState(origin, "alice", jsoncrdt.ForkOptions{AllowActorReuse: true}); err != nil {
		t.Fatalf("ForkState with AllowActorReuse: %v", err)
	}
}
