package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// CatalogConfig holds episode catalog database settings.
type CatalogConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	SqlitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
}

// OTelConfig holds OpenTelemetry export settings.
type OTelConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure" mapstructure:"insecure"`
}

// VideoConfig holds video encoder settings.
type VideoConfig struct {
	FFmpegPath string `json:"ffmpegPath" mapstructure:"ffmpegPath"`
	Framerate  int    `json:"framerate" mapstructure:"framerate"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName("strec.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults installs default values for all settings. Called by Load;
// exposed so tests and embedding callers can run without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./streclogs")

	viper.SetDefault("outputDir", "data/spatiotemporal_episodes")
	viper.SetDefault("numEpisodes", 1000)

	viper.SetDefault("explorer.type", "gridworld")

	viper.SetDefault("video.ffmpegPath", "ffmpeg")
	viper.SetDefault("video.framerate", 30)

	viper.SetDefault("catalog.enabled", false)
	viper.SetDefault("catalog.sqlitePath", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "strec")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "strec-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetCatalogConfig returns the episode catalog settings.
func GetCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Enabled:    viper.GetBool("catalog.enabled"),
		SqlitePath: viper.GetString("catalog.sqlitePath"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:  viper.GetBool("otel.enabled"),
		Endpoint: viper.GetString("otel.endpoint"),
		Insecure: viper.GetBool("otel.insecure"),
	}
}

// GetVideoConfig returns the video encoder settings.
func GetVideoConfig() VideoConfig {
	return VideoConfig{
		FFmpegPath: viper.GetString("video.ffmpegPath"),
		Framerate:  viper.GetInt("video.framerate"),
	}
}

// ExplorerSettings returns the configuration subtree for the configured
// explorer type, for handing to its factory.
func ExplorerSettings() map[string]any {
	sub := viper.Sub("explorer")
	if sub == nil {
		return map[string]any{}
	}
	return sub.AllSettings()
}
