package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jengzang/zone-density/internal/logging"
	"github.com/jengzang/zone-density/internal/spatial"
)

// EnvPrefix prefixes environment overrides: ZONEDENSITY_DENSITY_RADIUS → density.radius
const EnvPrefix = "ZONEDENSITY"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      logging.Config `mapstructure:"log"`
	Density  DensityConfig  `mapstructure:"density"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port       string        `mapstructure:"port"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig enables bearer-token auth on write endpoints when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DensityConfig struct {
	Radius           float64       `mapstructure:"radius"`
	Workers          int           `mapstructure:"workers"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	DefaultRecordCRS string        `mapstructure:"default_record_crs"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

// IngestConfig names the GeoJSON property and CSV columns read on import
type IngestConfig struct {
	ZoneIDProperty string `mapstructure:"zone_id_property"`
	IDColumn       string `mapstructure:"id_column"`
	XColumn        string `mapstructure:"x_column"`
	YColumn        string `mapstructure:"y_column"`
	CRSColumn      string `mapstructure:"crs_column"`
	TimeColumn     string `mapstructure:"time_column"`
	BatchSize      int    `mapstructure:"batch_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window", time.Minute)
	v.SetDefault("database.path", "./data/zonedensity.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("density.radius", 800.0)
	v.SetDefault("density.workers", runtime.NumCPU())
	v.SetDefault("density.chunk_size", 4096)
	v.SetDefault("density.default_record_crs", "EPSG:4326")
	v.SetDefault("density.cache_ttl", 10*time.Minute)
	v.SetDefault("ingest.zone_id_property", "zone_id")
	v.SetDefault("ingest.id_column", "entity_id")
	v.SetDefault("ingest.x_column", "x")
	v.SetDefault("ingest.y_column", "y")
	v.SetDefault("ingest.crs_column", "crs")
	v.SetDefault("ingest.time_column", "recorded_at")
	v.SetDefault("ingest.batch_size", 1000)
}

// Load reads defaults, an optional config file and environment variables.
// An empty path searches ./config.yaml and ./configs/config.yaml; a missing
// file is fine there, but an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port == "" {
		errs = append(errs, "server.port is required")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "server.rate_limit must be positive")
	}
	if c.Server.RateWindow <= 0 {
		errs = append(errs, "server.rate_window must be positive")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}
	if c.Density.Radius <= 0 {
		errs = append(errs, fmt.Sprintf("density.radius must be positive, got %v", c.Density.Radius))
	}
	if c.Density.Workers < 0 {
		errs = append(errs, "density.workers must not be negative")
	}
	if c.Density.ChunkSize < 0 {
		errs = append(errs, "density.chunk_size must not be negative")
	}
	if c.Density.DefaultRecordCRS != "" {
		if _, err := spatial.LookupCRS(c.Density.DefaultRecordCRS); err != nil {
			errs = append(errs, "density.default_record_crs: "+err.Error())
		}
	}
	if c.Ingest.ZoneIDProperty == "" {
		errs = append(errs, "ingest.zone_id_property is required")
	}
	if c.Ingest.IDColumn == "" || c.Ingest.XColumn == "" || c.Ingest.YColumn == "" {
		errs = append(errs, "ingest id, x and y columns are required")
	}
	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, "ingest.batch_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
