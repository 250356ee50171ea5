package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"outputDir": "/data/episodes",
		"numEpisodes": 50,
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strec.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "/data/episodes", viper.GetString("outputDir"))
	assert.Equal(t, 50, viper.GetInt("numEpisodes"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strec.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./streclogs", viper.GetString("logsDir"))
	assert.Equal(t, "data/spatiotemporal_episodes", viper.GetString("outputDir"))
	assert.Equal(t, 1000, viper.GetInt("numEpisodes"))
	assert.Equal(t, "gridworld", viper.GetString("explorer.type"))
	assert.Equal(t, "ffmpeg", viper.GetString("video.ffmpegPath"))
	assert.Equal(t, 30, viper.GetInt("video.framerate"))
	assert.Equal(t, false, viper.GetBool("catalog.enabled"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "strec", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "strec-metrics", viper.GetString("influx.org"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "", viper.GetString("otel.endpoint"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(filepath.Join(os.TempDir(), "strec-no-such-dir"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetCatalogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{"catalog": {"enabled": true, "sqlitePath": "/tmp/catalog.db"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strec.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	cc := GetCatalogConfig()
	assert.Equal(t, true, cc.Enabled)
	assert.Equal(t, "/tmp/catalog.db", cc.SqlitePath)
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{"otel": {"enabled": true, "endpoint": "localhost:4318", "insecure": true}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strec.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "localhost:4318", oc.Endpoint)
	assert.Equal(t, true, oc.Insecure)
}

func TestGetVideoConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{"video": {"ffmpegPath": "/usr/local/bin/ffmpeg", "framerate": 10}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strec.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	vc := GetVideoConfig()
	assert.Equal(t, "/usr/local/bin/ffmpeg", vc.FFmpegPath)
	assert.Equal(t, 10, vc.Framerate)
}

func TestExplorerSettings(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{"explorer": {"type": "gridworld", "sceneId": "scene_7", "maxSteps": 200}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strec.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	opts := ExplorerSettings()
	assert.Equal(t, "scene_7", opts["sceneid"])
	assert.Equal(t, 200, GetInt("explorer.maxSteps"))
}
