package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/cache"
)

const sampleConfig = `
[locale]
source = "en"
targets = ["de", "fr", "en"]

[engine]
provider = "deepl"
timeout = "10s"

[[resources.html.dirs]]
path = "site/[source]/**/*.html"
layout = "by-language"

[[resources.json.dirs]]
path = "locales/app.json"

[prune]
ttl_days = 30

[protect]
patterns = ['SKU-\d+']
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireConfigError(t *testing.T, err error) {
	t.Helper()
	var cfgErr *transctl.ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.Locale.Source)
	assert.Equal(t, []string{"de", "fr"}, cfg.Targets())
	assert.Equal(t, "deepl", cfg.Engine.Provider)
	assert.Equal(t, 10*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, filepath.Dir(path), cfg.Root())
	assert.Equal(t, filepath.Join(filepath.Dir(path), DefaultWorkDir), cfg.WorkDir())
	assert.Equal(t, filepath.Join(cfg.WorkDir(), cache.DefaultFileName), cfg.StorePath())
	assert.Equal(t, cache.PrunePolicy{TTLDays: 30, MaxRows: 200000, MaxDBMB: 200, Vacuum: true}, cfg.PrunePolicy())
	assert.True(t, cfg.Prune.Auto, "runs prune by default")

	require.Contains(t, cfg.ResourceDirs, "html")
	assert.Equal(t, []ResourceDir{{Path: "site/[source]/**/*.html", Layout: LayoutByLanguage}}, cfg.ResourceDirs["html"].Dirs)

	patterns, err := cfg.Patterns()
	require.NoError(t, err)
	assert.Len(t, patterns, len(transctl.DefaultPatterns())+1)
	assert.True(t, patterns[len(patterns)-1].MatchString("SKU-42"))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRANSCTL_ENGINE_PROVIDER", "azure")
	t.Setenv("TRANSCTL_ENGINE_REGION", "westeurope")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "azure", cfg.Engine.Provider)
	assert.Equal(t, "westeurope", cfg.Engine.Region)
}

func TestLoad_DotEnv(t *testing.T) {
	t.Setenv("DEEPL_API_KEY", "")
	require.NoError(t, os.Unsetenv("DEEPL_API_KEY"))

	path := writeConfig(t, sampleConfig)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("DEEPL_API_KEY=from-dotenv\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	pc := cfg.ProviderConfig()
	assert.Equal(t, "deepl", pc.Engine)
	assert.Equal(t, "from-dotenv", pc.APIKey)
	assert.Equal(t, 10*time.Second, pc.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing source",
			content: "[locale]\ntargets = [\"de\"]\n[engine]\nprovider = \"deepl\"\n",
		},
		{
			name:    "unsupported target",
			content: "[locale]\nsource = \"en\"\ntargets = [\"xx\"]\n[engine]\nprovider = \"deepl\"\n",
		},
		{
			name:    "missing engine",
			content: "[locale]\nsource = \"en\"\ntargets = [\"de\"]\n",
		},
		{
			name:    "unknown resource type",
			content: "[locale]\nsource = \"en\"\n[engine]\nprovider = \"deepl\"\n[[resources.xml.dirs]]\npath = \"a.xml\"\n",
		},
		{
			name:    "invalid layout",
			content: "[locale]\nsource = \"en\"\n[engine]\nprovider = \"deepl\"\n[[resources.html.dirs]]\npath = \"a.html\"\nlayout = \"flat\"\n",
		},
		{
			name:    "by-language without tag",
			content: "[locale]\nsource = \"en\"\n[engine]\nprovider = \"deepl\"\n[[resources.html.dirs]]\npath = \"a.html\"\nlayout = \"by-language\"\n",
		},
		{
			name:    "invalid pattern",
			content: "[locale]\nsource = \"en\"\n[engine]\nprovider = \"deepl\"\n[protect]\npatterns = [\"(\"]\n",
		},
		{
			name:    "not toml",
			content: "[locale\nsource",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			requireConfigError(t, err)
		})
	}
}

func TestLoad_FileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	_, err := Load(path)
	requireConfigError(t, err)

	_, err = Load(filepath.Join(t.TempDir(), FileName))
	requireConfigError(t, err)
}

func TestFind(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	_, err = Find(t.TempDir())
	assert.Error(t, err)
}

func TestProviderConfig_Google(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")
	t.Setenv("GOOGLE_TRANSLATE_API_KEY", "")

	cfg := &Config{Engine: EngineConfig{Provider: "google"}, root: "/project"}
	pc := cfg.ProviderConfig()

	assert.Equal(t, "google", pc.Engine)
	assert.Equal(t, "/secrets/sa.json", pc.CredentialsFile)

	cfg.Engine.Credentials = "sa.json"
	assert.Equal(t, filepath.Join("/project", "sa.json"), cfg.ProviderConfig().CredentialsFile)
}
