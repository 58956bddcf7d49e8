package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"logcount/registry"
	"logcount/types"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfgFile, logLevel = "", ""
	scanSources, scanNoColor = nil, false
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadSourcesDefaults(t *testing.T) {
	resetConfig(t)
	setDefaults()
	viper.Set("log_dir", "/logs")

	sources, err := loadSources()
	require.NoError(t, err)
	require.Len(t, sources, len(registry.Defaults()))
	assert.Equal(t, "ArStatusUpdate", sources[0].Name)
	assert.Equal(t, filepath.Join("/logs", "ArStatusUpdate*.log"), sources[0].PathGlob)
}

func TestReadConfigSources(t *testing.T) {
	resetConfig(t)
	cfgFile = writeConfig(t, `
config_version: 1
log_dir: /srv/logs
workers: 4
sources:
  - name: api
    path: api-*.log
  - name: installer
    path: /opt/install.log
    grammar: delimited
    encoding: utf-16le
`)
	require.NoError(t, readConfig())
	assert.Equal(t, 4, viper.GetInt("workers"))
	assert.Equal(t, "127.0.0.1:9184", viper.GetString("listen"))

	sources, err := loadSources()
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, filepath.Join("/srv/logs", "api-*.log"), sources[0].PathGlob)
	assert.Equal(t, "/opt/install.log", sources[1].PathGlob)
	assert.Equal(t, "utf-16le", sources[1].Charset.String())
}

func TestReadConfigVersionMismatch(t *testing.T) {
	resetConfig(t)
	cfgFile = writeConfig(t, "config_version: 99\n")
	err := readConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config_version")
}

func TestReadConfigMissingExplicitFile(t *testing.T) {
	resetConfig(t)
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	assert.Error(t, readConfig())
}

func TestLoadSourcesRejectsInvalid(t *testing.T) {
	resetConfig(t)
	cfgFile = writeConfig(t, `
sources:
  - name: a
    path: a.log
  - name: a
    path: b.log
`)
	require.NoError(t, readConfig())
	_, err := loadSources()
	assert.Error(t, err)
}

func TestOpenCheckpointerBackends(t *testing.T) {
	resetConfig(t)
	setDefaults()

	cp, err := openCheckpointer(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)

	viper.Set("offsets.backend", "file")
	viper.Set("offsets.file", filepath.Join(t.TempDir(), "offsets.json"))
	cp, err = openCheckpointer(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cp)
	require.NoError(t, cp.Close())

	viper.Set("offsets.backend", "postgres")
	_, err = openCheckpointer(context.Background())
	assert.Error(t, err)

	viper.Set("offsets.backend", "redis")
	_, err = openCheckpointer(context.Background())
	assert.Error(t, err)
}

func TestRunScan(t *testing.T) {
	resetConfig(t)
	setDefaults()
	dir := t.TempDir()
	viper.Set("log_dir", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "IvsAgent.log"), []byte(
		"2024-05-01 10:00:00.000 +05:30 [ERROR] boom\n"+
			"System.NullReferenceException: x\n"+
			"   at Foo.Bar()\n"+
			"2024-05-01 10:00:01.000 +05:30 [WARN] careful\n"), 0644))

	scanSources = []string{"IvsAgent"}
	scanNoColor = true
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	require.NoError(t, RunScan(c, nil))

	text := out.String()
	assert.Contains(t, text, "SOURCE")
	assert.Regexp(t, `IvsAgent\s+ERROR\s+2`, text)
	assert.Regexp(t, `IvsAgent\s+WARN\s+1`, text)
	assert.Contains(t, text, "1 files, 4 lines, 3 counted")
}

func TestFilterSourcesUnknown(t *testing.T) {
	resetConfig(t)
	setDefaults()
	sources, err := loadSources()
	require.NoError(t, err)

	_, err = filterSources(sources, []string{"nope"})
	assert.Error(t, err)

	picked, err := filterSources(sources, []string{"wazuh-install", "IvsSync"})
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, "wazuh-install", picked[0].Name)
}

func TestSourcesCommandYAML(t *testing.T) {
	resetConfig(t)
	path := writeConfig(t, `
log_dir: /x
sources:
  - name: api
    path: api.log
`)
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"sources", "--config", path})
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetArgs(nil)
	})
	require.NoError(t, RootCmd.Execute())

	var doc struct {
		Sources []types.Source `yaml:"sources"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Sources, 1)
	assert.Equal(t, "api", doc.Sources[0].Name)
	assert.Equal(t, filepath.Join("/x", "api.log"), doc.Sources[0].Path)
	assert.Equal(t, "bracketed", doc.Sources[0].Grammar)
	assert.Equal(t, "auto", doc.Sources[0].Encoding)
}
