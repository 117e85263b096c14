// Package output encodes statement graphs for consumers.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-stmt-graph/pkg/pdg"
)

// Format selects the wire encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a flag or config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatMsgpack:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Extension returns the file extension written for f.
func (f Format) Extension() string {
	if f == FormatMsgpack {
		return ".msgpack"
	}
	return ".json"
}

// Encode writes graphs to w. A single graph is written as an object, several
// as an array.
func Encode(w io.Writer, f Format, graphs []*pdg.Graph) error {
	var v any = graphs
	if len(graphs) == 1 {
		v = graphs[0]
	}

	switch f {
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding msgpack: %w", err)
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
	}
	return nil
}

// Decode reads graphs written by Encode, accepting both the object and the
// array form.
func Decode(r io.Reader, f Format) ([]*pdg.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading graphs: %w", err)
	}

	unmarshal := json.Unmarshal
	if f == FormatMsgpack {
		unmarshal = msgpack.Unmarshal
	}

	var many []*pdg.Graph
	if err := unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one pdg.Graph
	if err := unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decoding %s graphs: %w", f, err)
	}
	return []*pdg.Graph{&one}, nil
}
