// Package config loads the .transctl.toml project file and turns it into
// the values the pipeline needs: languages, engine settings, resources,
// store location and prune policy.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/cache"
	"github.com/ZaguanLabs/transctl/provider"
)

// FileName is the project configuration file looked up in the working directory.
const FileName = ".transctl.toml"

// DefaultWorkDir holds the translation memory and the manifest.
const DefaultWorkDir = ".transctl"

// EnvPrefix prefixes environment overrides, e.g. TRANSCTL_ENGINE_PROVIDER.
const EnvPrefix = "TRANSCTL"

// Config is the parsed project configuration.
type Config struct {
	Locale       LocaleConfig               `mapstructure:"locale"`
	Engine       EngineConfig               `mapstructure:"engine"`
	ResourceDirs map[string]ResourceSection `mapstructure:"resources"` // Keyed by resource type
	Store        StoreConfig                `mapstructure:"store"`
	Prune        PruneConfig                `mapstructure:"prune"`
	Glossary     GlossaryConfig             `mapstructure:"glossary"`
	Protect      ProtectConfig              `mapstructure:"protect"`
	Schedule     ScheduleConfig             `mapstructure:"schedule"`

	path string
	root string
}

// LocaleConfig holds the source and target languages.
type LocaleConfig struct {
	Source  string   `mapstructure:"source"`
	Targets []string `mapstructure:"targets"`
}

// EngineConfig selects the translation provider.
type EngineConfig struct {
	Provider    string        `mapstructure:"provider"`
	Region      string        `mapstructure:"region"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Credentials string        `mapstructure:"credentials"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RateLimit   int           `mapstructure:"rate_limit"` // Requests per minute, 0 disables
}

// ResourceSection lists the resource directories of one type.
type ResourceSection struct {
	Dirs []ResourceDir `mapstructure:"dirs"`
}

// StoreConfig locates the working directory.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// PruneConfig is the translation memory eviction policy.
type PruneConfig struct {
	TTLDays int  `mapstructure:"ttl_days"`
	MaxRows int  `mapstructure:"max_rows"`
	MaxDBMB int  `mapstructure:"max_db_mb"`
	Vacuum  bool `mapstructure:"vacuum"`
	Auto    bool `mapstructure:"auto"` // Prune after every run
}

// GlossaryConfig points to a glossary file.
type GlossaryConfig struct {
	File string `mapstructure:"file"`
}

// ProtectConfig adds protection patterns after the built-in ones.
type ProtectConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// ScheduleConfig holds the cron expression used by the schedule command.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

func setDefaults(v *viper.Viper) {
	def := cache.DefaultPrunePolicy()
	v.SetDefault("locale.source", "")
	v.SetDefault("locale.targets", []string{})
	v.SetDefault("engine.provider", "")
	v.SetDefault("engine.region", "")
	v.SetDefault("engine.model", "")
	v.SetDefault("engine.base_url", "")
	v.SetDefault("engine.credentials", "")
	v.SetDefault("engine.timeout", 30*time.Second)
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.rate_limit", 0)
	v.SetDefault("store.dir", DefaultWorkDir)
	v.SetDefault("prune.ttl_days", def.TTLDays)
	v.SetDefault("prune.max_rows", def.MaxRows)
	v.SetDefault("prune.max_db_mb", def.MaxDBMB)
	v.SetDefault("prune.vacuum", def.Vacuum)
	v.SetDefault("prune.auto", true)
	v.SetDefault("glossary.file", "")
	v.SetDefault("schedule.cron", "")
}

// Load reads the configuration file at path. A .env file next to it, if
// any, is loaded into the environment first without overriding variables
// already set.
func Load(path string) (*Config, error) {
	if !strings.HasSuffix(filepath.Base(path), FileName) {
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("configuration file must end with %q", FileName)}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &transctl.ConfigError{Message: "no configuration found at " + path, Cause: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &transctl.ConfigError{Message: "resolve configuration path", Cause: err}
	}
	root := filepath.Dir(abs)

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &transctl.ConfigError{Message: "load .env", Cause: err}
	}

	v := viper.New()
	v.SetConfigFile(abs)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &transctl.ConfigError{Message: "parse " + abs, Cause: err}
	}

	cfg := &Config{path: abs, root: root}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &transctl.ConfigError{Message: "decode " + abs, Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find returns the configuration file in dir or in the closest parent
// directory that has one.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &transctl.ConfigError{Message: fmt.Sprintf("no %s found", FileName)}
		}
		dir = parent
	}
}

// Validate checks languages, engine, resource sections and patterns.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Locale.Source) == "" {
		return &transctl.ConfigError{Message: "no source locale specified"}
	}
	if err := transctl.ValidateLanguage(c.Locale.Source); err != nil {
		return err
	}
	for _, t := range c.Locale.Targets {
		if err := transctl.ValidateLanguage(t); err != nil {
			return &transctl.ConfigError{Message: "invalid target locale " + t, Cause: err}
		}
	}

	if strings.TrimSpace(c.Engine.Provider) == "" {
		return &transctl.ConfigError{Message: "no engine configured"}
	}

	for name, section := range c.ResourceDirs {
		if _, err := transctl.ParseResourceType(name); err != nil {
			return err
		}
		for _, dir := range section.Dirs {
			if err := dir.validate(); err != nil {
				return err
			}
		}
	}

	if _, err := c.Patterns(); err != nil {
		return err
	}
	return nil
}

// Path returns the absolute configuration file path.
func (c *Config) Path() string {
	return c.path
}

// Root returns the directory holding the configuration file. Relative
// paths in the configuration are resolved against it.
func (c *Config) Root() string {
	return c.root
}

// Targets returns the normalized target languages except the source
// language.
func (c *Config) Targets() []string {
	return transctl.TargetLanguages(c.Locale.Source, c.Locale.Targets)
}

// WorkDir returns the absolute working directory.
func (c *Config) WorkDir() string {
	return c.resolve(c.Store.Dir)
}

// StorePath returns the translation memory file path.
func (c *Config) StorePath() string {
	return filepath.Join(c.WorkDir(), cache.DefaultFileName)
}

// PrunePolicy returns the configured eviction policy.
func (c *Config) PrunePolicy() cache.PrunePolicy {
	return cache.PrunePolicy{
		TTLDays: c.Prune.TTLDays,
		MaxRows: c.Prune.MaxRows,
		MaxDBMB: c.Prune.MaxDBMB,
		Vacuum:  c.Prune.Vacuum,
	}
}

// ProviderConfig returns the provider settings with the API key taken from
// the engine's environment variable.
func (c *Config) ProviderConfig() provider.Config {
	engine := strings.ToLower(strings.TrimSpace(c.Engine.Provider))
	pc := provider.Config{
		Engine:          engine,
		Region:          c.Engine.Region,
		Model:           c.Engine.Model,
		BaseURL:         c.Engine.BaseURL,
		CredentialsFile: c.Engine.Credentials,
		Timeout:         c.Engine.Timeout,
	}
	if engine == "open-ai" {
		engine = provider.EngineOpenAI
	}
	if env, ok := provider.APIKeyEnv[engine]; ok {
		if engine == provider.EngineGoogle {
			if pc.CredentialsFile == "" {
				pc.CredentialsFile = os.Getenv(env)
			}
			pc.APIKey = os.Getenv("GOOGLE_TRANSLATE_API_KEY")
		} else {
			pc.APIKey = os.Getenv(env)
		}
	}
	if pc.CredentialsFile != "" {
		pc.CredentialsFile = c.resolve(pc.CredentialsFile)
	}
	return pc
}

// Patterns returns the built-in protection patterns followed by the
// configured ones.
func (c *Config) Patterns() ([]*regexp.Regexp, error) {
	patterns := transctl.DefaultPatterns()
	for _, expr := range c.Protect.Patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &transctl.ConfigError{Message: fmt.Sprintf("invalid protection pattern %q", expr), Cause: err}
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

// GlossaryPath returns the configured glossary file, "" if none.
func (c *Config) GlossaryPath() string {
	if c.Glossary.File == "" {
		return ""
	}
	return c.resolve(c.Glossary.File)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}
