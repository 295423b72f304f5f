package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Google  GoogleConfig  `yaml:"google" mapstructure:"google"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Weather WeatherConfig `yaml:"weather" mapstructure:"weather"`
	FEMA    FEMAConfig    `yaml:"fema" mapstructure:"fema"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds Google Maps Geocoding API credentials.
type GoogleConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// GeocodeConfig configures the geocoding pipeline.
type GeocodeConfig struct {
	Delay        float64 `yaml:"delay" mapstructure:"delay"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	PatternsFile string  `yaml:"patterns_file" mapstructure:"patterns_file"`
}

// DelayInterval returns the per-provider minimum spacing between calls.
func (c GeocodeConfig) DelayInterval() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}

// Timeout returns the per-call HTTP timeout for geocoding providers.
func (c GeocodeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// WeatherConfig configures the api.weather.gov client.
type WeatherConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-call HTTP timeout for weather.gov requests.
func (c WeatherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// FEMAConfig configures the OpenFEMA client.
type FEMAConfig struct {
	TimeoutSecs     int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxDeclarations int `yaml:"max_declarations" mapstructure:"max_declarations"`
}

// Timeout returns the per-call HTTP timeout for OpenFEMA requests.
func (c FEMAConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the settings a command depends on are sane. Mode is
// the command name: "geocode", "alerts", or "keycheck".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "geocode":
		if c.Geocode.Delay < 0 {
			problems = append(problems, "geocode.delay must be >= 0")
		}
		if c.Geocode.TimeoutSecs <= 0 {
			problems = append(problems, "geocode.timeout_secs must be > 0")
		}
		if c.Geocode.UserAgent == "" {
			problems = append(problems, "geocode.user_agent is required")
		}
		if c.Weather.TimeoutSecs <= 0 {
			problems = append(problems, "weather.timeout_secs must be > 0")
		}
	case "alerts":
		if c.Weather.TimeoutSecs <= 0 {
			problems = append(problems, "weather.timeout_secs must be > 0")
		}
		if c.FEMA.TimeoutSecs <= 0 {
			problems = append(problems, "fema.timeout_secs must be > 0")
		}
		if c.FEMA.MaxDeclarations < 1 || c.FEMA.MaxDeclarations > 1000 {
			problems = append(problems, "fema.max_declarations must be between 1 and 1000")
		}
	case "keycheck":
		if c.Google.APIKey == "" {
			problems = append(problems, "google.api_key is required (set GOOGLE_MAPS_API_KEY)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORGGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The legacy tooling reads the Google key from GOOGLE_MAPS_API_KEY.
	if err := v.BindEnv("google.api_key", "ORGGEO_GOOGLE_API_KEY", "GOOGLE_MAPS_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind google.api_key")
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("geocode.delay", 1.0)
	v.SetDefault("geocode.timeout_secs", 15)
	v.SetDefault("geocode.user_agent", "organization_geocoder_v1.0 (+https://github.com/brightline-research/orggeo)")
	v.SetDefault("weather.user_agent", "organization_geocoder_v1.0 (+https://github.com/brightline-research/orggeo)")
	v.SetDefault("weather.timeout_secs", 10)
	v.SetDefault("fema.timeout_secs", 15)
	v.SetDefault("fema.max_declarations", 50)

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
