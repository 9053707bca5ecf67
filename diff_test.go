package jsoncrdt_test

import (
	"reflect"
	"testing"

	"github.com/agentflare-ai/jsoncrdt"
)

func applyJSONPatch(t *testing.T, doc any, patch jsoncrdt.Patch) any {
	t.Helper()
	state, err := jsoncrdt.CreateState(doc, jsoncrdt.CreateOptions{Actor: "alice"})
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	newState, err := jsoncrdt.TryApplyPatch(state, patch, jsoncrdt.ApplyOptions{})
	if err != nil {
		t.Fatalf("TryApplyPatch: %v", err)
	}
	return mustToJSON(t, newState)
}

func TestDiffJsonPatch_RoundTripsThroughApply(t *testing.T) {
	testCases := []struct {
		name string
		base string
		next string
	}{
		{name: "object add/remove/replace", base: `{"a":1,"b":2}`, next: `{"a":1,"c":3}`},
		{name: "array insert middle", base: `{"items":["a","b","d"]}`, next: `{"items":["a","b","c","d"]}`},
		{name: "array remove middle", base: `{"items":["a","b","c","d"]}`, next: `{"items":["a","c","d"]}`},
		{name: "no-op when equal", base: `{"x":1}`, next: `{"x":1}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			base := mustJSON(t, tc.base)
			next := mustJSON(t, tc.next)
			patch, err := jsoncrdt.DiffJsonPatch(base, next, jsoncrdt.DiffOptions{})
			if err != nil {
				t.Fatalf("DiffJsonPatch: %v", err)
			}
			got := applyJSONPatch(t, base, patch)
			if !reflect.DeepEqual(got, next) {
				t.Fatalf("applying the diff did not reach next: got %#v, want %#v", got, next)
			}
		})
	}
}

func TestCRDTToJSONPatch_ProducesAnApplicableDelta(t *testing.T) {
	base := mustCreateState(t, "alice", `{"a":1}`)
	head, err := jsoncrdt.TryApplyPatch(base, jsoncrdt.Patch{
		{Op: jsoncrdt.OpReplace, Path: "/a", Value: 2.0},
	}, jsoncrdt.ApplyOptions{})
	if err != nil {
		t.Fatalf("TryApplyPatch: %v", err)
	}

	patch, err := jsoncrdt.CRDTToJSONPatch(base.Doc, head.Doc, jsoncrdt.DiffOptions{})
	if err != nil {
		t.Fatalf("CRDTToJSONPatch: %v", err)
	}
	got := applyJSONPatch(t, mustToJSON(t, base), patch)
	want := mustToJSON(t, head)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestCRDTToFullReplace_ProducesASingleRootReplace(t *testing.T) {
	state := mustCreateState(t, "alice", `{"a":1,"b":[1,2,3]}`)
	patch, err := jsoncrdt.CRDTToFullReplace(state.Doc)
	if err != nil {
		t.Fatalf("CRDTToFullReplace: %v", err)
	}
	if len(patch) != 1 {
		t.Fatalf("len(patch) = %d, want 1", len(patch))
	}
	if patch[0].Op != jsoncrdt.OpReplace || patch[0].Path != "" {
		t.Fatalf("patch[0] = %#v, want a root replace", patch[0])
	}
	want := mustToJSON(t, state)
	if !reflect.DeepEqual(patch[0].Value, want) {
		t.Fatalf("patch[0].Value = %#v, want %#v", patch[0].Value, want)
	}
}
