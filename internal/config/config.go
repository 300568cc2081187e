package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Tiering TieringConfig `yaml:"tiering" mapstructure:"tiering"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend for persisted results.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourcesConfig configures the external source adapters.
type SourcesConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	BreakerTrips int     `yaml:"breaker_trips" mapstructure:"breaker_trips"`

	CompaniesMarketCapBaseURL string   `yaml:"companiesmarketcap_base_url" mapstructure:"companiesmarketcap_base_url"`
	PharmaCompassIndexPages   []string `yaml:"pharmacompass_index_pages" mapstructure:"pharmacompass_index_pages"`
	EdgarSearchURL            string   `yaml:"edgar_search_url" mapstructure:"edgar_search_url"`
	ClinicalTrialsAPIURL      string   `yaml:"clinicaltrials_api_url" mapstructure:"clinicaltrials_api_url"`
	ClinicalTrialsPageSize    int      `yaml:"clinicaltrials_page_size" mapstructure:"clinicaltrials_page_size"`
}

// EnrichConfig configures the aggregator.
type EnrichConfig struct {
	Parallel bool   `yaml:"parallel" mapstructure:"parallel"`
	SeedFile string `yaml:"seed_file" mapstructure:"seed_file"`
}

// TieringConfig holds the classifier thresholds and the upcoming-asset policy.
type TieringConfig struct {
	TopTAShareThreshold    float64 `yaml:"top_ta_share_threshold" mapstructure:"top_ta_share_threshold"`
	PlatformShareThreshold float64 `yaml:"platform_share_threshold" mapstructure:"platform_share_threshold"`
	UpcomingRatio          float64 `yaml:"upcoming_ratio" mapstructure:"upcoming_ratio"`
}

// BatchConfig configures bulk processing.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PHARMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pharma-enrich.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:5188", "http://localhost:5197"})
	v.SetDefault("batch.max_concurrent_companies", 5)
	v.SetDefault("enrich.parallel", true)
	v.SetDefault("enrich.seed_file", "")
	v.SetDefault("tiering.top_ta_share_threshold", 0.60)
	v.SetDefault("tiering.platform_share_threshold", 0.70)
	v.SetDefault("tiering.upcoming_ratio", 0.3)
	v.SetDefault("sources.timeout_secs", 30)
	v.SetDefault("sources.user_agent", "Mozilla/5.0 (compatible; EnrichmentBot/1.0)")
	v.SetDefault("sources.max_retries", 2)
	v.SetDefault("sources.rate_per_sec", 1.0)
	v.SetDefault("sources.breaker_trips", 0)
	v.SetDefault("sources.companiesmarketcap_base_url", "https://companiesmarketcap.com")
	v.SetDefault("sources.pharmacompass_index_pages", []string{
		"https://www.pharmacompass.com/pharma-data/top-drugs-by-sales",
		"https://www.pharmacompass.com/data-compilation",
	})
	v.SetDefault("sources.edgar_search_url", "https://www.sec.gov/edgar/search/#/entityName=%s&forms=10-K,20-F")
	v.SetDefault("sources.clinicaltrials_api_url", "https://clinicaltrials.gov/api/v2/studies")
	v.SetDefault("sources.clinicaltrials_page_size", 1000)

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

// Validate checks that the configuration is internally consistent for the
// given mode ("enrich", "bulk" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "enrich", "bulk":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, none")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres (PHARMA_STORE_DATABASE_URL)")
	}
	if c.Tiering.TopTAShareThreshold < 0 || c.Tiering.TopTAShareThreshold > 1 {
		errs = append(errs, "tiering.top_ta_share_threshold must be within [0,1]")
	}
	if c.Tiering.PlatformShareThreshold < 0 || c.Tiering.PlatformShareThreshold > 1 {
		errs = append(errs, "tiering.platform_share_threshold must be within [0,1]")
	}
	if c.Tiering.UpcomingRatio < 0 {
		errs = append(errs, "tiering.upcoming_ratio must be >= 0")
	}
	if c.Sources.BreakerTrips < 0 {
		errs = append(errs, "sources.breaker_trips must be >= 0")
	}
	if c.Sources.TimeoutSecs < 1 || c.Sources.TimeoutSecs > 120 {
		errs = append(errs, "sources.timeout_secs must be between 1 and 120")
	}
	if c.Batch.MaxConcurrentCompanies < 1 || c.Batch.MaxConcurrentCompanies > 50 {
		errs = append(errs, "batch.max_concurrent_companies must be between 1 and 50")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
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
