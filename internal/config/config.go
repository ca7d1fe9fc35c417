// Package config loads configuration from config.yaml and SPATIAL_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/spatial"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Features FeaturesConfig `yaml:"features" mapstructure:"features"`
	Fishnet  FishnetConfig  `yaml:"fishnet" mapstructure:"fishnet"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
}

// FeaturesConfig configures feature generation.
type FeaturesConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	KPolicy     string `yaml:"k_policy" mapstructure:"k_policy"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// Options converts the section into generator options.
func (c FeaturesConfig) Options() ([]feature.Option, error) {
	b, err := spatial.ParseBackend(c.Backend)
	if err != nil {
		return nil, err
	}
	p, err := feature.ParseKPolicy(c.KPolicy)
	if err != nil {
		return nil, err
	}
	return []feature.Option{feature.WithBackend(b), feature.WithKPolicy(p)}, nil
}

// FishnetConfig configures grid construction.
type FishnetConfig struct {
	CellSize float64 `yaml:"cell_size" mapstructure:"cell_size"`
	MaxCells int     `yaml:"max_cells" mapstructure:"max_cells"`
}

// InputConfig names the columns and encodings of input layers.
type InputConfig struct {
	CRS         string `yaml:"crs" mapstructure:"crs"`
	XColumn     string `yaml:"x_column" mapstructure:"x_column"`
	YColumn     string `yaml:"y_column" mapstructure:"y_column"`
	IDColumn    string `yaml:"id_column" mapstructure:"id_column"`
	DBFEncoding string `yaml:"dbf_encoding" mapstructure:"dbf_encoding"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Disabled bool   `yaml:"disabled" mapstructure:"disabled"`
}

// PostgresConfig configures PostGIS export.
type PostgresConfig struct {
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	Mode          string `yaml:"mode" mapstructure:"mode"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst       int      `yaml:"burst" mapstructure:"burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxPoints   int      `yaml:"max_points" mapstructure:"max_points"`
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
	v.SetEnvPrefix("SPATIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("features.backend", string(spatial.DefaultBackend))
	v.SetDefault("features.k_policy", string(feature.KPolicyStrict))
	v.SetDefault("features.concurrency", 4)
	v.SetDefault("fishnet.cell_size", 500)
	v.SetDefault("fishnet.max_cells", 4_000_000)
	v.SetDefault("input.x_column", "x")
	v.SetDefault("input.y_column", "y")
	v.SetDefault("input.id_column", "id")
	v.SetDefault("input.crs", "")
	v.SetDefault("input.dbf_encoding", "")
	v.SetDefault("store.path", "spatial-features.db")
	v.SetDefault("store.disabled", false)
	v.SetDefault("postgres.database_url", "")
	v.SetDefault("postgres.mode", "append")
	v.SetDefault("postgres.retry_attempts", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_points", 100_000)

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

// Validate checks the settings a command mode depends on. Modes are
// "features", "fishnet", "export", "store" and "serve".
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	features := func() {
		if _, err := c.Features.Options(); err != nil {
			add("features: %v", err)
		}
		if c.Features.Concurrency < 1 || c.Features.Concurrency > 64 {
			add("features.concurrency must be between 1 and 64")
		}
		if c.Input.CRS != "" && model.IsGeographic(c.Input.CRS) {
			add("input.crs %s is geographic; reproject to a projected CRS", c.Input.CRS)
		}
	}
	fishnet := func() {
		if c.Fishnet.CellSize <= 0 {
			add("fishnet.cell_size must be > 0")
		}
		if c.Fishnet.MaxCells < 1 {
			add("fishnet.max_cells must be > 0")
		}
	}

	switch mode {
	case "features":
		features()
	case "fishnet":
		fishnet()
	case "export":
		if c.Postgres.DatabaseURL == "" {
			add("postgres.database_url is required")
		}
		switch c.Postgres.Mode {
		case "", "append", "replace", "upsert":
		default:
			add("postgres.mode %q must be append, replace or upsert", c.Postgres.Mode)
		}
		if c.Postgres.RetryAttempts < 1 {
			add("postgres.retry_attempts must be >= 1")
		}
	case "store":
		if !c.Store.Disabled && c.Store.Path == "" {
			add("store.path is required")
		}
	case "serve":
		features()
		fishnet()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimit <= 0 {
			add("server.rate_limit must be > 0")
		}
		if c.Server.Burst < 1 {
			add("server.burst must be >= 1")
		}
		if c.Server.MaxPoints < 1 {
			add("server.max_points must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
