package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/transctl"
)

// LoadGlossary reads a flat term -> translation map from a JSON or YAML
// file. Anything other than non-empty string terms mapped to strings is a
// ConfigError.
func LoadGlossary(path string) (transctl.Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &transctl.ConfigError{Message: "read glossary " + path, Cause: err}
	}

	var raw map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("unsupported glossary format %q", ext)}
	}
	if err != nil {
		return nil, &transctl.ConfigError{Message: "malformed glossary " + path, Cause: err}
	}

	g := make(transctl.Glossary, len(raw))
	for term, v := range raw {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(term) == "" {
			return nil, &transctl.ConfigError{Message: fmt.Sprintf("malformed glossary %s: entry %q must map a term to a string", path, term)}
		}
		g[term] = s
	}
	return g, nil
}
