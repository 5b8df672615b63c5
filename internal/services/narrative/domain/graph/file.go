package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ToJSON converts an authoring document to JSON based on the file extension
// of name. JSONC comments and trailing commas are stripped; YAML is decoded
// and re-encoded. Unknown extensions are treated as JSON.
func ToJSON(name string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonc":
		return jsonc.ToJSON(data), nil
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml %s: %w", name, err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode yaml %s as json: %w", name, err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// ReadFile loads and normalizes a graph document from disk.
func ReadFile(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("read graph file: %w", err)
	}
	raw, err := ToJSON(path, data)
	if err != nil {
		return Graph{}, err
	}
	return Normalize(raw), nil
}
