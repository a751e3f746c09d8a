package config

import (
	"path/filepath"
	"reflect"
	"strings"

	"mcp-manager/core/database"
	"mcp-manager/core/logger"
	"mcp-manager/core/server"
	"mcp-manager/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Data holds the location of the managed files and the backup policy seed.
	Data DataConfig `mapstructure:"data"`
	// Storage holds configuration for the optional backup mirror (S3, MinIO).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the optional preset database.
	Database database.Config `mapstructure:"database"`
	// Debug mirrors the DEBUG environment variable and forces debug logging.
	Debug bool `mapstructure:"debug" default:"false"`
}

// DataConfig locates the files this service owns.
type DataConfig struct {
	// Dir holds settings.json, the registry, presets.json and managed configs.
	Dir string `mapstructure:"dir" default:"./data"`
	// MaxBackups seeds settings.json when it is created for the first time.
	MaxBackups int `mapstructure:"max_backups" default:"5"`
	// WatchSettings reloads settings.json when it is edited outside the service.
	WatchSettings bool `mapstructure:"watch_settings" default:"false"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(filepath.Join(path, ".env"))

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain PORT is honoured as well as SERVER_PORT
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Debug {
		config.Log.Level = "debug"
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
