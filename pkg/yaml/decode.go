package yaml

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// YAMLToJSON converts YAML bytes to JSON bytes
func YAMLToJSON(yamlBytes []byte) ([]byte, error) {
	var yamlObj interface{}
	if err := yaml.Unmarshal(yamlBytes, &yamlObj); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	jsonBytes, err := json.Marshal(yamlObj)
	if err != nil {
		return nil, fmt.Errorf("error converting to JSON: %w", err)
	}

	return jsonBytes, nil
}

// IsYAML reports whether path has a YAML extension.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Unmarshal decodes a JSON or YAML document into v, choosing the format from
// the file name. YAML is routed through JSON so json.Unmarshaler
// implementations on v apply to both formats.
func Unmarshal(path string, data []byte, v any) error {
	if IsYAML(path) {
		converted, err := YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		data = converted
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
