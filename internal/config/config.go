package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"prodsync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Sync       SyncConfig       `yaml:"sync"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SyncConfig describes the replication scope: one master tenant and the
// set of target tenants replicas are pushed to.
type SyncConfig struct {
	MasterTenant  string   `yaml:"master_tenant"`
	TargetTenants []string `yaml:"target_tenants"`
	BatchSize     int      `yaml:"batch_size"`
	TimerInterval string   `yaml:"timer_interval"`
}

// Interval parses the timer trigger period, defaulting to 5 minutes.
func (c SyncConfig) Interval() time.Duration {
	if c.TimerInterval == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.TimerInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

type StorageConfig struct {
	UploadsPath string `yaml:"uploads_path"`
	ReportsPath string `yaml:"reports_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; the environment may already be populated
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Sync.MasterTenant == "" {
		return errors.New("sync master_tenant is required")
	}

	return ValidateTenants(c.Sync.MasterTenant, c.Sync.TargetTenants)
}

// ValidateTenants rejects duplicate targets and targets equal to the master.
func ValidateTenants(master string, targets []string) error {
	seen := make(map[string]bool)
	for _, tenant := range targets {
		if tenant == "" {
			return errors.New("target tenant with empty id")
		}
		if tenant == master {
			return fmt.Errorf("target tenant %q is the master tenant", tenant)
		}
		if seen[tenant] {
			return fmt.Errorf("duplicate target tenant: %s", tenant)
		}
		seen[tenant] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = models.DefaultBatchSize
	}
	if c.Storage.UploadsPath == "" {
		c.Storage.UploadsPath = "data/uploads"
	}
	if c.Storage.ReportsPath == "" {
		c.Storage.ReportsPath = "data/reports"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
}
