package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/kolscout/internal/resolver"
	"github.com/sells-group/kolscout/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Matcher  resolver.Config `yaml:"matcher" mapstructure:"matcher"`
	Scoring  ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Registry RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string           `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ScoringConfig configures survey consolidation and batch scoring.
type ScoringConfig struct {
	PointsPerNomination    float64 `yaml:"points_per_nomination" mapstructure:"points_per_nomination"`
	MaxConcurrentCampaigns int     `yaml:"max_concurrent_campaigns" mapstructure:"max_concurrent_campaigns"`
}

// RegistryConfig locates the survey question map.
type RegistryConfig struct {
	QuestionMapPath string `yaml:"question_map_path" mapstructure:"question_map_path"`
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
	v.SetEnvPrefix("KOLSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "kolscout.db")
	v.SetDefault("matcher.auto_accept_threshold", 90)
	v.SetDefault("matcher.auto_accept_margin", 0)
	v.SetDefault("matcher.suggestion_limit", 10)
	v.SetDefault("scoring.points_per_nomination", 10)
	v.SetDefault("scoring.max_concurrent_campaigns", 4)
	v.SetDefault("registry.question_map_path", "questions.yaml")
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

// Validate checks that the configuration is usable for the given mode.
// Modes: "store" (any command that opens the database), "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Scoring.PointsPerNomination <= 0 {
			problems = append(problems, "scoring.points_per_nomination must be > 0")
		}
		if c.Scoring.MaxConcurrentCampaigns < 1 || c.Scoring.MaxConcurrentCampaigns > 32 {
			problems = append(problems, "scoring.max_concurrent_campaigns must be between 1 and 32")
		}
		if c.Matcher.AutoAcceptThreshold < 0 || c.Matcher.AutoAcceptThreshold > 100 {
			problems = append(problems, "matcher.auto_accept_threshold must be between 0 and 100")
		}
		if c.Matcher.AutoAcceptMargin < 0 {
			problems = append(problems, "matcher.auto_accept_margin must be >= 0")
		}
	}

	switch mode {
	case "store":
		checkStore()
	case "serve":
		checkStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
