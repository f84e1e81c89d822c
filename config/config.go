// Package config defines mongosrv's configuration surface: the wire
// server's bind/TLS/auth options, the CDC ingester's staged-queue and
// destination-table settings, and ambient logging. Tags follow the
// json/yaml/mapstructure triple-tag convention so the same struct binds
// whether values arrive from a YAML file, environment variables, or CLI
// flags via spf13/viper.
package config

import "time"

// Config is the top-level configuration for a mongosrv instance.
type Config struct {
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	Debug       bool   `json:"debug" yaml:"debug" mapstructure:"debug"`
	LogFilePath string `json:"logFilePath" yaml:"logFilePath" mapstructure:"logFilePath"`

	Metrics Metrics `json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	Auth Auth `json:"auth" yaml:"auth" mapstructure:"auth"`
	TLS  *TLS `json:"tls" yaml:"tls" mapstructure:"tls"`

	Cursor CursorConfig `json:"cursor" yaml:"cursor" mapstructure:"cursor"`

	CDC CDCConfig `json:"cdc" yaml:"cdc" mapstructure:"cdc"`
}

// Metrics controls the Prometheus scrape endpoint (ambient stack).
type Metrics struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" yaml:"host" mapstructure:"host"`
	Port    int    `json:"port" yaml:"port" mapstructure:"port"`
}

// Auth controls whether the command router gates on SCRAM authentication
// and the bootstrap admin user created at startup (spec §6.4).
type Auth struct {
	Enabled           bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BootstrapUsername string `json:"bootstrapUsername" yaml:"bootstrapUsername" mapstructure:"bootstrapUsername"`
	BootstrapPassword string `json:"bootstrapPassword" yaml:"bootstrapPassword" mapstructure:"bootstrapPassword"`
	// CredentialsFile, when set, backs the credentials.Provider with a
	// JSON file (pkg/credentials/file) shared by `serve` and `createuser`
	// so users created by the CLI survive a server restart. Empty means
	// an in-memory store scoped to the bootstrap user only.
	CredentialsFile string `json:"credentialsFile" yaml:"credentialsFile" mapstructure:"credentialsFile"`
}

// TLS mirrors spec §6.5's recognized options. MinVersion and MaxVersion
// are not passed on by `serve`; the listener always negotiates TLS 1.2
// through 1.3. With RequestCert set, RejectUnauthorized left false (its
// zero value) only requests a client certificate without verifying it.
type TLS struct {
	KeyFile            string   `json:"key" yaml:"key" mapstructure:"key"`
	CertFile           string   `json:"cert" yaml:"cert" mapstructure:"cert"`
	CAFile             string   `json:"ca" yaml:"ca" mapstructure:"ca"`
	Passphrase         string   `json:"passphrase" yaml:"passphrase" mapstructure:"passphrase"`
	RequestCert        bool     `json:"requestCert" yaml:"requestCert" mapstructure:"requestCert"`
	RejectUnauthorized bool     `json:"rejectUnauthorized" yaml:"rejectUnauthorized" mapstructure:"rejectUnauthorized"`
	MinVersion         string   `json:"minVersion" yaml:"minVersion" mapstructure:"minVersion"`
	MaxVersion         string   `json:"maxVersion" yaml:"maxVersion" mapstructure:"maxVersion"`
	ServerName         string   `json:"serverName" yaml:"serverName" mapstructure:"serverName"`
	ALPNProtocols      []string `json:"alpnProtocols" yaml:"alpnProtocols" mapstructure:"alpnProtocols"`
}

// CursorConfig controls server-side cursor idle expiry (spec §4.5).
// `serve` uses only SweepInterval; IdleTimeout is not read, and the cursor
// manager always expires cursors after cursor.DefaultIdleTimeout.
type CursorConfig struct {
	IdleTimeout   time.Duration `json:"idleTimeout" yaml:"idleTimeout" mapstructure:"idleTimeout"`
	SweepInterval time.Duration `json:"sweepInterval" yaml:"sweepInterval" mapstructure:"sweepInterval"`
}

// CDCConfig binds spec §4.7's ingester options plus the destination table
// it writes into (spec §4.8/§6.6).
type CDCConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	Endpoint  string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	AccessKey string `json:"accessKey" yaml:"accessKey" mapstructure:"accessKey"`
	SecretKey string `json:"secretKey" yaml:"secretKey" mapstructure:"secretKey"`
	Insecure  bool   `json:"insecure" yaml:"insecure" mapstructure:"insecure"`

	Path            string `json:"path" yaml:"path" mapstructure:"path"`
	Format          string `json:"format" yaml:"format" mapstructure:"format"`
	PollIntervalMs  int    `json:"pollIntervalMs" yaml:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	MaxThreads      int    `json:"maxThreads" yaml:"maxThreads" mapstructure:"maxThreads"`
	MaxBlockSize    int    `json:"maxBlockSize" yaml:"maxBlockSize" mapstructure:"maxBlockSize"`
	AfterProcessing string `json:"afterProcessing" yaml:"afterProcessing" mapstructure:"afterProcessing"`
	OrderedMode     bool   `json:"orderedMode" yaml:"orderedMode" mapstructure:"orderedMode"`

	Destination Destination `json:"destination" yaml:"destination" mapstructure:"destination"`
}

// Destination names the ClickHouse-dialect table the CDC ingester writes
// into (spec §4.8/§6.6).
type Destination struct {
	DSN           string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	Database      string `json:"database" yaml:"database" mapstructure:"database"`
	Table         string `json:"table" yaml:"table" mapstructure:"table"`
	PerCollection bool   `json:"perCollection" yaml:"perCollection" mapstructure:"perCollection"`
	Partitioned   bool   `json:"partitioned" yaml:"partitioned" mapstructure:"partitioned"`
	TTLDays       int    `json:"ttlDays" yaml:"ttlDays" mapstructure:"ttlDays"`
}
