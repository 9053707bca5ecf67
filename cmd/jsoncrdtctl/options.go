package main

import (
	"fmt"

	"github.com/agentflare-ai/jsoncrdt"
)

func parseSemantics(s string) (jsoncrdt.Semantics, error) {
	switch s {
	case "", "sequential":
		return jsoncrdt.SemanticsSequential, nil
	case "base":
		return jsoncrdt.SemanticsBase, nil
	default:
		return "", fmt.Errorf("unknown --semantics %q (want sequential or base)", s)
	}
}

func parseTestAgainst(s string) (jsoncrdt.TestAgainst, error) {
	switch s {
	case "", "head":
		return jsoncrdt.TestAgainstHead, nil
	case "base":
		return jsoncrdt.TestAgainstBase, nil
	default:
		return "", fmt.Errorf("unknown --test-against %q (want head or base)", s)
	}
}

func parseArrayStrategy(s string) (jsoncrdt.ArrayStrategy, error) {
	switch s {
	case "", "lcs":
		return jsoncrdt.ArrayStrategyLCS, nil
	case "atomic":
		return jsoncrdt.ArrayStrategyAtomic, nil
	default:
		return "", fmt.Errorf("unknown --array %q (want lcs or atomic)", s)
	}
}
