package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: 8080
search:
  default_engines: [searx, Bing, nope, bing]
  allowed_engines: [searx, bing, mojeek]
  engine_timeout: 5s
  max_concurrency: 3
engines:
  searx:
    base_url: https://searx.example.org
    selectors:
      card: article.result
  mojeek:
    enabled: false
  altavista:
    base_url: https://example.com
transport:
  tls_fingerprint: true
log:
  level: debug
  format: JSON
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Server.Metrics)
	assert.Equal(t, []string{"searx", "bing"}, cfg.Search.DefaultEngines)
	assert.Equal(t, 5*time.Second, cfg.Search.EngineTimeout)
	assert.Equal(t, 3, cfg.Search.MaxConcurrency)
	assert.Equal(t, "https://searx.example.org", cfg.Engine("searx").BaseURL)
	assert.Equal(t, "article.result", cfg.Engine("searx").Selectors.Card)
	assert.NotContains(t, cfg.Engines, "altavista")
	assert.True(t, cfg.Transport.TLSFingerprint)
	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestIsEngineAllowed(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.True(t, cfg.IsEngineAllowed("searx"))
	assert.False(t, cfg.IsEngineAllowed("mojeek"), "disabled engine")
	assert.False(t, cfg.IsEngineAllowed("brave"), "not in allowed list")
	assert.False(t, cfg.IsEngineAllowed("google"), "unknown engine")

	def := Default()
	def.validate()
	for _, e := range ValidEngines {
		assert.True(t, def.IsEngineAllowed(e), e)
	}
}

func TestValidate_RepairsInvalid(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: 70000
search:
  default_engines: [google]
  engine_timeout: -1s
proxy:
  enabled: true
  url: ""
log:
  format: xml
`))
	require.NoError(t, err)

	assert.Equal(t, 3456, cfg.Server.Port)
	assert.Equal(t, []string{"duckduckgo", "searx"}, cfg.Search.DefaultEngines)
	assert.Equal(t, 15*time.Second, cfg.Search.EngineTimeout)
	assert.Equal(t, "http://127.0.0.1:7890", cfg.ProxyURL())
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate_DefaultFromAllowed(t *testing.T) {
	cfg, err := Parse([]byte(`
search:
  default_engines: [searx]
  allowed_engines: [wikipedia, brave]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"wikipedia"}, cfg.Search.DefaultEngines)
}

func TestValidate_DropsDisabledDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
search:
  default_engines: [duckduckgo, searx]
engines:
  searx:
    enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"duckduckgo"}, cfg.Search.DefaultEngines)
	for _, e := range cfg.Search.DefaultEngines {
		assert.True(t, cfg.IsEngineAllowed(e), e)
	}
}

func TestValidate_DisabledDefaultsFallback(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "builtin defaults",
			yaml: `
search:
  default_engines: [bing]
engines:
  bing:
    enabled: false
`,
			want: []string{"duckduckgo", "searx"},
		},
		{
			name: "first enabled allowed engine",
			yaml: `
search:
  default_engines: [wikipedia]
  allowed_engines: [wikipedia, brave, mojeek]
engines:
  wikipedia:
    enabled: false
  brave:
    enabled: false
`,
			want: []string{"mojeek"},
		},
		{
			name: "builtin defaults disabled too",
			yaml: `
search:
  default_engines: [searx]
engines:
  searx:
    enabled: false
  duckduckgo:
    enabled: false
`,
			want: []string{"bing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Search.DefaultEngines)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("server: [unclosed"))
	require.Error(t, err)
}

func TestLoad_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metasearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg := Load()
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "", cfg.ProxyURL())
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr())
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadFromFile_Example(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"duckduckgo", "searx"}, cfg.Search.DefaultEngines)
	assert.True(t, cfg.Engine("startpage").UseBrowser)
	assert.Equal(t, "#b_results>li.b_algo", cfg.Engine("bing").Selectors.Card)
	for _, e := range ValidEngines {
		assert.True(t, cfg.IsEngineAllowed(e), e)
	}
}
