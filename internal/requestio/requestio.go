// Package requestio reads schema requests and writes batch results.
package requestio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"schemagen/internal/safeio"
	"schemagen/internal/types"
)

type Format int

const (
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

// FormatFor picks the format from a file extension; unknown extensions
// fall back to content sniffing.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

// ErrEmpty is returned when the input holds no requests.
var ErrEmpty = errors.New("requestio: no requests in input")

// Decode reads a single request or a sequence of requests. Only the
// document structure is checked here; a request with a bad coordinate or
// object name is reported as its own failure when the batch runs.
func Decode(r io.Reader, format Format) ([]types.SchemaRequest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmpty
	}
	if format == FormatAuto {
		format = FormatYAML
		if trimmed[0] == '{' || trimmed[0] == '[' {
			format = FormatJSON
		}
	}

	var reqs []types.SchemaRequest
	switch format {
	case FormatJSON:
		reqs, err = decodeJSON(trimmed)
	default:
		reqs, err = decodeYAML(trimmed)
	}
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, ErrEmpty
	}
	return reqs, nil
}

func decodeJSON(b []byte) ([]types.SchemaRequest, error) {
	if b[0] == '[' {
		var reqs []types.SchemaRequest
		if err := json.Unmarshal(b, &reqs); err != nil {
			return nil, fmt.Errorf("decode request list: %w", err)
		}
		return reqs, nil
	}
	var one types.SchemaRequest
	if err := json.Unmarshal(b, &one); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return []types.SchemaRequest{one}, nil
}

func decodeYAML(b []byte) ([]types.SchemaRequest, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	doc := &node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind == yaml.SequenceNode {
		var reqs []types.SchemaRequest
		if err := doc.Decode(&reqs); err != nil {
			return nil, fmt.Errorf("decode request list: %w", err)
		}
		return reqs, nil
	}
	var one types.SchemaRequest
	if err := doc.Decode(&one); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return []types.SchemaRequest{one}, nil
}

// ReadFile decodes the requests stored at path.
func ReadFile(path string) ([]types.SchemaRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reqs, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reqs, nil
}

// Encode writes v as two-space indented JSON with a trailing newline.
func Encode(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// WriteResponses replaces path with the responses, never leaving a partial
// file behind.
func WriteResponses(path string, resps []types.SchemaResponse) error {
	if resps == nil {
		resps = []types.SchemaResponse{}
	}
	return writeJSON(path, resps)
}

// WriteFailures writes the failure report next to an output file.
func WriteFailures(path string, failures []types.Failure) error {
	return writeJSON(path, failures)
}

// FailuresPath derives "<out>.failures.json" from an output path.
func FailuresPath(out string) string {
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".failures.json"
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		return err
	}
	return safeio.WriteFileAtomic(path, &buf, 0o644)
}
