package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/provider"
)

// Template holds the values written to a new configuration file.
type Template struct {
	Source  string
	Targets []string
	Engine  string
	Params  map[string]string // Extra [engine] keys such as region or model
}

// engineParams lists the [engine] keys a template may set, and whether the
// value is an integer.
var engineParams = map[string]bool{
	"region":      false,
	"model":       false,
	"base_url":    false,
	"credentials": false,
	"timeout":     false,
	"max_retries": true,
	"rate_limit":  true,
}

// ParseParams parses KEY=VALUE pairs. Keys are lower-cased and a repeated
// key keeps its last value.
func ParseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, &transctl.ConfigError{Message: fmt.Sprintf("invalid parameter %q, want KEY=VALUE", pair)}
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}

// Init writes a configuration file built from tpl at path and loads it back.
// An existing file is replaced only when force is set.
func Init(path string, tpl Template, force bool) (*Config, error) {
	if !strings.HasSuffix(filepath.Base(path), FileName) {
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("configuration file must end with %q", FileName)}
	}
	if _, err := os.Stat(path); err == nil && !force {
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("%s already exists, use --force to overwrite", path)}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &transctl.ConfigError{Message: "check " + path, Cause: err}
	}

	v, err := tpl.settings()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &transctl.ConfigError{Message: "create configuration directory", Cause: err}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return nil, &transctl.ConfigError{Message: "write " + path, Cause: err}
	}
	return Load(path)
}

// settings validates tpl and returns the values to write.
func (tpl Template) settings() (*viper.Viper, error) {
	source := strings.TrimSpace(tpl.Source)
	if source == "" {
		source = "en"
	}
	if err := transctl.ValidateLanguage(source); err != nil {
		return nil, err
	}

	targets := []string{}
	for _, t := range tpl.Targets {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if err := transctl.ValidateLanguage(t); err != nil {
			return nil, &transctl.ConfigError{Message: "invalid target locale " + t, Cause: err}
		}
		targets = append(targets, t)
	}

	engine := strings.ToLower(strings.TrimSpace(tpl.Engine))
	if engine == "open-ai" {
		engine = provider.EngineOpenAI
	}
	if !slices.Contains(provider.Engines, engine) {
		return nil, &transctl.ConfigError{
			Message: fmt.Sprintf("unknown engine %q, want one of %s", tpl.Engine, strings.Join(provider.Engines, ", ")),
		}
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("locale.source", source)
	v.Set("locale.targets", targets)
	v.Set("engine.provider", engine)

	for key, value := range tpl.Params {
		isInt, ok := engineParams[key]
		if !ok {
			return nil, &transctl.ConfigError{Message: fmt.Sprintf("unknown engine parameter %q", key)}
		}
		if !isInt {
			v.Set("engine."+key, value)
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, &transctl.ConfigError{Message: fmt.Sprintf("engine parameter %s must be an integer", key), Cause: err}
		}
		v.Set("engine."+key, n)
	}
	return v, nil
}
