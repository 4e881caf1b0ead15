package manifest

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Load parses data as a manifest document, trying the YAML schema first
// and falling back to JSON (spec.md §4.15/§6). A leading "#$schema"
// comment in a YAML document is ignored automatically, since YAML
// comments never reach the parser's output. On success the manifest is
// validated against the invariants in spec.md §3 before being returned —
// an invalid manifest is never handed back to the caller.
func Load(data []byte) (*Manifest, error) {
	raw, err := unmarshalDocument(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse document: %w", err)
	}

	m, err := decodeManifest(raw)
	if err != nil {
		return nil, err
	}

	if err := Validate(m); err != nil {
		return nil, fmt.Errorf("manifest: validation failed: %w", err)
	}

	return m, nil
}

func unmarshalDocument(data []byte) (map[string]any, error) {
	var yamlDoc map[string]any
	if err := yaml.Unmarshal(data, &yamlDoc); err == nil && yamlDoc != nil {
		return yamlDoc, nil
	}

	var jsonDoc map[string]any
	if err := json.Unmarshal(data, &jsonDoc); err != nil {
		return nil, fmt.Errorf("document is neither valid YAML nor valid JSON: %w", err)
	}

	return jsonDoc, nil
}
