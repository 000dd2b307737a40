package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config dir.
const FileName = "sightingmap.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. SIGHTINGMAP_HTTP_ADDR.
const EnvPrefix = "SIGHTINGMAP"

// HostConfig holds the HTTP and live channel settings.
type HostConfig struct {
	Addr           string        `json:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	FlushInterval  time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	StatusFile     string        `json:"statusFile" mapstructure:"statusFile"`
	StatusInterval time.Duration `json:"statusInterval" mapstructure:"statusInterval"`
}

// LiveConfig holds what a widget client needs to reach a host.
type LiveConfig struct {
	URL         string `json:"url" mapstructure:"url"`
	APIURL      string `json:"apiUrl" mapstructure:"apiUrl"`
	CSRFToken   string `json:"csrfToken" mapstructure:"csrfToken"`
	GeoJSONPath string `json:"geojsonPath" mapstructure:"geojsonPath"`
}

// SQLiteConfig holds the sqlite backend settings.
type SQLiteConfig struct {
	Path           string        `json:"path" mapstructure:"path"`
	BackupPath     string        `json:"backupPath" mapstructure:"backupPath"`
	BackupInterval time.Duration `json:"backupInterval" mapstructure:"backupInterval"`
}

// DBConfig holds postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	DB     DBConfig     `json:"db" mapstructure:"db"`
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// ViewConfig sizes the headless map view.
type ViewConfig struct {
	Width   int `json:"width" mapstructure:"width"`
	Height  int `json:"height" mapstructure:"height"`
	MaxZoom int `json:"maxZoom" mapstructure:"maxZoom"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("http.addr", ":4000")
	viper.SetDefault("http.allowedOrigins", []string{"*"})
	viper.SetDefault("http.flushInterval", "5s")
	viper.SetDefault("http.statusFile", "")
	viper.SetDefault("http.statusInterval", "1s")

	viper.SetDefault("live.url", "ws://localhost:4000/live")
	viper.SetDefault("live.apiUrl", "http://localhost:4000")
	viper.SetDefault("live.csrfToken", "")
	viper.SetDefault("live.geojsonPath", "")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./sightingmap.db")
	viper.SetDefault("storage.sqlite.backupPath", "")
	viper.SetDefault("storage.sqlite.backupInterval", "10m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "sightingmap")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "sporewatch")
	viper.SetDefault("influx.bucket", "sightingmap")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "sightingmap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("view.width", 1024)
	viper.SetDefault("view.height", 768)
	viper.SetDefault("view.maxZoom", 18)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file and an optional .env.
func Load(configDir string) error {
	setDefaults()

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env: %w", err)
	}
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// IsNotFound reports whether Load failed only because the config file is absent.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
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

// GetHostConfig returns the HTTP server settings.
func GetHostConfig() HostConfig {
	return HostConfig{
		Addr:           viper.GetString("http.addr"),
		AllowedOrigins: viper.GetStringSlice("http.allowedOrigins"),
		FlushInterval:  viper.GetDuration("http.flushInterval"),
		StatusFile:     viper.GetString("http.statusFile"),
		StatusInterval: viper.GetDuration("http.statusInterval"),
	}
}

// GetLiveConfig returns the widget client settings.
func GetLiveConfig() LiveConfig {
	return LiveConfig{
		URL:         viper.GetString("live.url"),
		APIURL:      viper.GetString("live.apiUrl"),
		CSRFToken:   viper.GetString("live.csrfToken"),
		GeoJSONPath: viper.GetString("live.geojsonPath"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path:           viper.GetString("storage.sqlite.path"),
			BackupPath:     viper.GetString("storage.sqlite.backupPath"),
			BackupInterval: viper.GetDuration("storage.sqlite.backupInterval"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetViewConfig returns the headless view dimensions.
func GetViewConfig() ViewConfig {
	return ViewConfig{
		Width:   viper.GetInt("view.width"),
		Height:  viper.GetInt("view.height"),
		MaxZoom: viper.GetInt("view.maxZoom"),
	}
}
