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
	Quality  QualityConfig  `yaml:"quality" mapstructure:"quality"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Geo      GeoConfig      `yaml:"geo" mapstructure:"geo"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Queue    QueueConfig    `yaml:"queue" mapstructure:"queue"`
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// QualityConfig holds the image screening thresholds.
type QualityConfig struct {
	BlurByteFloor       int     `yaml:"blur_byte_floor" mapstructure:"blur_byte_floor"`
	BlurMinWidth        int     `yaml:"blur_min_width" mapstructure:"blur_min_width"`
	BlurMinHeight       int     `yaml:"blur_min_height" mapstructure:"blur_min_height"`
	DarkBrightnessFloor float64 `yaml:"dark_brightness_floor" mapstructure:"dark_brightness_floor"`
}

// ClassifyConfig configures the breed prediction backend.
type ClassifyConfig struct {
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxUploadDim    int      `yaml:"max_upload_dim" mapstructure:"max_upload_dim"`
	BreedCandidates []string `yaml:"breed_candidates" mapstructure:"breed_candidates"`
}

// GeoConfig configures location capture.
type GeoConfig struct {
	TimeoutMS  int `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	MaxAgeSecs int `yaml:"max_age_secs" mapstructure:"max_age_secs"`
}

// RegistryConfig configures the remote livestock registry.
type RegistryConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// QueueConfig configures the offline submission queue.
type QueueConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SessionConfig holds the field worker credentials.
type SessionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	UserID string `yaml:"user_id" mapstructure:"user_id"`
	FLWID  string `yaml:"flw_id" mapstructure:"flw_id"`
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
	v.SetEnvPrefix("FIELDCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("quality.blur_byte_floor", 50_000)
	v.SetDefault("quality.blur_min_width", 800)
	v.SetDefault("quality.blur_min_height", 600)
	v.SetDefault("quality.dark_brightness_floor", 80.0)
	v.SetDefault("classify.base_url", "http://localhost:8090")
	v.SetDefault("classify.timeout_secs", 30)
	v.SetDefault("classify.max_upload_dim", 1536)
	v.SetDefault("geo.timeout_ms", 8000)
	v.SetDefault("geo.max_age_secs", 60)
	v.SetDefault("registry.base_url", "http://localhost:8090")
	v.SetDefault("queue.path", "fieldcapture.db")
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
