// Command jsoncrdtctl is a thin CLI over the jsoncrdt façade: apply a
// patch, diff two documents, merge or compact serialized states, and
// inspect or export one. Like the package it wraps, it is single
// threaded — no goroutines, no concurrent command execution.
package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentflare-ai/jsoncrdt"
)

func main() {
	var configPath string
	var cfg config

	rootCmd := &cobra.Command{
		Use:   "jsoncrdtctl",
		Short: "Inspect and drive jsoncrdt documents from the command line",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default actor, ApplyOptions)")

	rootCmd.AddCommand(
		newApplyCmd(&cfg),
		newDiffCmd(),
		newMergeCmd(&cfg),
		newCompactCmd(),
		newInspectCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newApplyCmd(cfg *config) *cobra.Command {
	var docPath, patchPath, actor, semantics, testAgainst string
	var strictParents bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a JSON Patch to a document and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc any
			if err := readJSON(docPath, &doc); err != nil {
				return err
			}
			var patch jsoncrdt.Patch
			if err := readJSON(patchPath, &patch); err != nil {
				return err
			}

			sem, err := parseSemantics(firstNonEmpty(semantics, cfg.Apply.Semantics))
			if err != nil {
				return err
			}
			tst, err := parseTestAgainst(firstNonEmpty(testAgainst, cfg.Apply.TestAgainst))
			if err != nil {
				return err
			}

			resolvedActor := firstNonEmpty(actor, cfg.Actor)
			if resolvedActor == "" {
				resolvedActor = uuid.NewString()
			}
			state, err := jsoncrdt.CreateState(doc, jsoncrdt.CreateOptions{Actor: resolvedActor})
			if err != nil {
				return err
			}

			newState, err := jsoncrdt.TryApplyPatch(state, patch, jsoncrdt.ApplyOptions{
				Semantics:     sem,
				TestAgainst:   tst,
				StrictParents: strictParents || cfg.Apply.StrictParents,
			})
			if err != nil {
				return err
			}

			result, err := jsoncrdt.ToJSON(newState)
			if err != nil {
				return err
			}
			return writeJSON("", result)
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "path to the initial document JSON")
	cmd.Flags().StringVar(&patchPath, "patch", "", "path to the RFC 6902 patch JSON")
	cmd.Flags().StringVar(&actor, "actor", "", "owning actor identity (default: config or a fresh uuid)")
	cmd.Flags().StringVar(&semantics, "semantics", "", "sequential or base (default: sequential)")
	cmd.Flags().StringVar(&testAgainst, "test-against", "", "head or base (default: head)")
	cmd.Flags().BoolVar(&strictParents, "strict-parents", false, "disable auto-creating a missing array parent")
	cmd.MarkFlagRequired("doc")
	cmd.MarkFlagRequired("patch")
	return cmd
}

func newDiffCmd() *cobra.Command {
	var basePath, nextPath, array string
	var lcsMaxCells int

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff two JSON documents and print the RFC 6902 patch",
		RunE: func(cmd *cobra.Command, args []string) error {
			var base, next any
			if err := readJSON(basePath, &base); err != nil {
				return err
			}
			if err := readJSON(nextPath, &next); err != nil {
				return err
			}

			strategy, err := parseArrayStrategy(array)
			if err != nil {
				return err
			}
			patch, err := jsoncrdt.DiffJsonPatch(base, next, jsoncrdt.DiffOptions{
				ArrayStrategy: strategy,
				LcsMaxCells:   lcsMaxCells,
			})
			if err != nil {
				return err
			}
			return writeJSON("", patch)
		},
	}
	cmd.Flags().StringVar(&basePath, "base", "", "path to the base document JSON")
	cmd.Flags().StringVar(&nextPath, "next", "", "path to the next document JSON")
	cmd.Flags().StringVar(&array, "array", "", "lcs or atomic (default: lcs)")
	cmd.Flags().IntVar(&lcsMaxCells, "lcs-max-cells", 0, "LCS table cell guardrail (default: jsoncrdt.DefaultLcsMaxCells)")
	cmd.MarkFlagRequired("base")
	cmd.MarkFlagRequired("next")
	return cmd
}

func newMergeCmd(cfg *config) *cobra.Command {
	var aPath, bPath, actor string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge two serialized states and print the merged serialized state",
		RunE: func(cmd *cobra.Command, args []string) error {
			aWire, err := readState(aPath)
			if err != nil {
				return err
			}
			bWire, err := readState(bPath)
			if err != nil {
				return err
			}
			aState, err := jsoncrdt.TryDeserializeState(aWire)
			if err != nil {
				return err
			}
			bState, err := jsoncrdt.TryDeserializeState(bWire)
			if err != nil {
				return err
			}

			merged, err := jsoncrdt.TryMergeState(aState, bState, jsoncrdt.MergeOptions{
				Actor: firstNonEmpty(actor, cfg.Actor),
			})
			if err != nil {
				return err
			}
			return writeJSON("", jsoncrdt.SerializeState(merged))
		},
	}
	cmd.Flags().StringVar(&aPath, "a", "", "path to the first serialized state")
	cmd.Flags().StringVar(&bPath, "b", "", "path to the second serialized state")
	cmd.Flags().StringVar(&actor, "actor", "", "owning actor for the merged state (default: config, else the first state's actor)")
	cmd.MarkFlagRequired("a")
	cmd.MarkFlagRequired("b")
	return cmd
}

func newCompactCmd() *cobra.Command {
	var statePath, stablePath string

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Prune causally-stable tombstones from a serialized state",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateWire, err := readState(statePath)
			if err != nil {
				return err
			}
			state, err := jsoncrdt.TryDeserializeState(stateWire)
			if err != nil {
				return err
			}

			var stable jsoncrdt.VV
			if stablePath != "" {
				if err := readJSON(stablePath, &stable); err != nil {
					return err
				}
			}

			compacted, stats, err := jsoncrdt.CompactStateTombstones(state, jsoncrdt.CompactOptions{Stable: stable})
			if err != nil {
				return err
			}
			fmt.Printf("pruned %d object tombstones, %d sequence tombstones\n",
				stats.ObjectTombstonesRemoved, stats.SequenceTombstonesRemoved)
			return writeJSON("", jsoncrdt.SerializeState(compacted))
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "path to the serialized state")
	cmd.Flags().StringVar(&stablePath, "stable", "", "path to a version vector JSON ({actor: ctr}) below which tombstones are pruned")
	cmd.MarkFlagRequired("state")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var statePath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a serialized state's materialized JSON plus its clock summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateWire, err := readState(statePath)
			if err != nil {
				return err
			}
			state, err := jsoncrdt.TryDeserializeState(stateWire)
			if err != nil {
				return err
			}
			materialized, err := jsoncrdt.ToJSON(state)
			if err != nil {
				return err
			}
			fmt.Printf("clock: actor=%s ctr=%d\n", state.Clock.Actor(), state.Clock.Ctr())
			return writeJSON("", materialized)
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "path to the serialized state")
	cmd.MarkFlagRequired("state")
	return cmd
}

func newExportCmd() *cobra.Command {
	var statePath, format, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Re-encode a serialized state in the requested codec",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateWire, err := readState(statePath)
			if err != nil {
				return err
			}
			return writeStateExport(outPath, format, stateWire)
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "path to the serialized state")
	cmd.Flags().StringVar(&format, "format", "json", "json or msgpack")
	cmd.Flags().StringVar(&outPath, "out", "", "output path (default: stdout)")
	cmd.MarkFlagRequired("state")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
