package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// defaultConfigYAML seeds every option with its spec-mandated default. A
// variable, not a constant, so callers can override it before New in
// tests or embedding scenarios.
var defaultConfigYAML = `
host: "0.0.0.0"
port: 27117
debug: false
logFilePath: ""
metrics:
  enabled: true
  host: "0.0.0.0"
  port: 9117
auth:
  enabled: true
  bootstrapUsername: ""
  bootstrapPassword: ""
  credentialsFile: ""
tls: null
cursor:
  idleTimeout: 10m
  sweepInterval: 1m
cdc:
  enabled: false
  endpoint: ""
  bucket: ""
  accessKey: ""
  secretKey: ""
  insecure: false
  path: ""
  format: "JSONEachRow"
  pollIntervalMs: 1000
  maxThreads: 4
  maxBlockSize: 65536
  afterProcessing: "keep"
  orderedMode: false
  destination:
    dsn: ""
    database: "mongosrv"
    table: "cdc_events"
    perCollection: false
    partitioned: true
    ttlDays: 0
`

// GetDefaultConfig returns the embedded default configuration document.
func GetDefaultConfig() string {
	return defaultConfigYAML
}

// SetDefaultConfig overrides the embedded defaults, for callers that ship
// their own baked-in config (e.g. an enterprise build).
func SetDefaultConfig(cfgYAML string) {
	defaultConfigYAML = cfgYAML
}

// New returns a Config populated from the embedded defaults.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("config: parse embedded defaults: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal defaults: %w", err)
	}
	return &cfg, nil
}

// Load layers a user-supplied YAML file over the embedded defaults; unset
// keys in path keep their default value.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("config: parse embedded defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: merge %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("MONGOSRV")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// PollInterval converts the millisecond config field to a time.Duration
// for pkg/cdc.Config.
func (c CDCConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
