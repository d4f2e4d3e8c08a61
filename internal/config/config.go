// Package config loads application configuration from an optional
// config.yaml and URBANVIZ_* environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	WFS      WFSConfig      `yaml:"wfs" mapstructure:"wfs"`
	Imagery  ImageryConfig  `yaml:"imagery" mapstructure:"imagery"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeocoderConfig configures the address geocoder.
type GeocoderConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelaySecs int     `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WFSConfig configures the feature-service lookups.
type WFSConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ParcelLayer string `yaml:"parcel_layer" mapstructure:"parcel_layer"`
	ZoningLayer string `yaml:"zoning_layer" mapstructure:"zoning_layer"`
}

// ImageryConfig configures the street-imagery providers. The Mapillary
// token and Google key are credentials; either may be absent, degrading
// only the affected provider.
type ImageryConfig struct {
	MapillaryToken string `yaml:"mapillary_token" mapstructure:"mapillary_token"`
	GoogleKey      string `yaml:"google_key" mapstructure:"google_key"`
	Provider       string `yaml:"provider" mapstructure:"provider"`
	BaseRadiusM    int    `yaml:"base_radius_m" mapstructure:"base_radius_m"`
	PreferPano     bool   `yaml:"prefer_pano" mapstructure:"prefer_pano"`
	FOV            int    `yaml:"fov" mapstructure:"fov"`
}

// CacheConfig configures the advisory SQLite-backed lookup cache.
type CacheConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	Path           string `yaml:"path" mapstructure:"path"`
	GeocodeTTLMins int    `yaml:"geocode_ttl_mins" mapstructure:"geocode_ttl_mins"`
	ParcelTTLMins  int    `yaml:"parcel_ttl_mins" mapstructure:"parcel_ttl_mins"`
	ZoningTTLMins  int    `yaml:"zoning_ttl_mins" mapstructure:"zoning_ttl_mins"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("URBANVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "urbanviz-cli/1.0")
	v.SetDefault("geocoder.max_attempts", 3)
	v.SetDefault("geocoder.retry_delay_secs", 1)
	v.SetDefault("geocoder.rate_limit", 1.0)
	v.SetDefault("wfs.base_url", "https://data.geopf.fr/wfs/ows")
	v.SetDefault("imagery.mapillary_token", "")
	v.SetDefault("imagery.google_key", "")
	v.SetDefault("imagery.provider", "auto")
	v.SetDefault("imagery.base_radius_m", 150)
	v.SetDefault("imagery.prefer_pano", true)
	v.SetDefault("imagery.fov", 80)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "urbanviz.db")
	v.SetDefault("cache.geocode_ttl_mins", 60)
	v.SetDefault("cache.parcel_ttl_mins", 30)
	v.SetDefault("cache.zoning_ttl_mins", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
