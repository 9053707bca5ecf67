package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/agentflare-ai/jsoncrdt/internal/wire"
)

// readJSON decodes path's contents into v.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}

// writeJSON encodes payload to path, or stdout when path is empty.
func writeJSON(path string, payload any) error {
	var out *os.File
	if path == "" {
		out = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("unable to create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

// readState decodes path's contents (the canonical JSON serialized form)
// into a wire.State.
func readState(path string) (wire.State, error) {
	var w wire.State
	err := readJSON(path, &w)
	return w, err
}

// writeStateExport encodes w to path (or stdout when empty) in the
// requested codec: "json" or "msgpack".
func writeStateExport(path, format string, w wire.State) error {
	switch format {
	case "", "json":
		return writeJSON(path, w)
	case "msgpack":
		data, err := msgpack.Marshal(w)
		if err != nil {
			return fmt.Errorf("msgpack encode failed: %w", err)
		}
		if path == "" {
			_, err := os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(path, data, 0o644)
	default:
		return fmt.Errorf("unsupported export format %q (want json or msgpack)", format)
	}
}
