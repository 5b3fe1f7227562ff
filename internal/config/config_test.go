package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/August26/proxytest-go/internal/model"
)

func parse(t *testing.T, args ...string) (model.Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("proxytest-go", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var flagged model.Config
	path := Bind(fs, &flagged)
	require.NoError(t, fs.Parse(args))
	return Load(fs, flagged, *path)
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxytest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(t, "1.2.3.4:8080")
	require.NoError(t, err)

	want := model.DefaultConfig()
	want.Proxies = []string{"1.2.3.4:8080"}
	assert.Equal(t, want, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestFileThenFlags(t *testing.T) {
	path := writeYAML(t, `
proxies: ["1.1.1.1:80", "2.2.2.2:81"]
backend: simple
number: 3
timeout: 0.5
workers: 4
repeat: 10
`)
	cfg, err := parse(t, "-config", path, "-number", "5")
	require.NoError(t, err)

	assert.Equal(t, []string{"1.1.1.1:80", "2.2.2.2:81"}, cfg.Proxies)
	assert.Equal(t, "simple", cfg.Backend)
	assert.Equal(t, 5, cfg.Number)
	assert.Equal(t, 0.5, cfg.TimeoutSecs)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10.0, cfg.RepeatSeconds)
	// unset flag defaults do not clobber file values
	assert.Equal(t, model.DefaultTestURL, cfg.URL)
}

func TestPositionalProxiesReplaceFile(t *testing.T) {
	path := writeYAML(t, "proxies:\n  - 1.1.1.1:80\n")
	cfg, err := parse(t, "-config", path, "none", "3.3.3.3")
	require.NoError(t, err)
	assert.Equal(t, []string{"none", "3.3.3.3"}, cfg.Proxies)
}

func TestUnknownFileKey(t *testing.T) {
	path := writeYAML(t, "numbr: 3\n")
	_, err := parse(t, "-config", path)
	assert.ErrorContains(t, err, "parse config")
}

func TestMissingFile(t *testing.T) {
	_, err := parse(t, "-config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEmptyFile(t *testing.T) {
	cfg, err := parse(t, "-config", writeYAML(t, ""))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestEnvBetweenFileAndFlags(t *testing.T) {
	path := writeYAML(t, "backend: simple\nnumber: 2\n")
	t.Setenv("PROXYTEST_BACKEND", "dummy")
	t.Setenv("PROXYTEST_NUMBER", "7")
	t.Setenv("PROXYTEST_TIMEOUT", "1.5")
	t.Setenv("PROXYTEST_PROXIES", "1.1.1.1:80,2.2.2.2:81")

	cfg, err := parse(t, "-config", path, "-backend", "dummy-error")
	require.NoError(t, err)

	assert.Equal(t, "dummy-error", cfg.Backend)
	assert.Equal(t, 7, cfg.Number)
	assert.Equal(t, 1.5, cfg.TimeoutSecs)
	assert.Equal(t, []string{"1.1.1.1:80", "2.2.2.2:81"}, cfg.Proxies)
}

func TestBadEnv(t *testing.T) {
	t.Setenv("PROXYTEST_WORKERS", "many")
	t.Setenv("PROXYTEST_REPEAT", "soon")

	_, err := parse(t)
	require.Error(t, err)
	assert.ErrorContains(t, err, "PROXYTEST_WORKERS")
	assert.ErrorContains(t, err, "PROXYTEST_REPEAT")
}

func TestValidate(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Number = 0
	cfg.TimeoutSecs = 0
	cfg.URL = "ftp://example.com"
	cfg.OutputFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"number", "timeout", "scheme", "output format"} {
		assert.ErrorContains(t, err, want)
	}
}
