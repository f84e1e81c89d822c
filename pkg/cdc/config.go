// Package cdc implements the change-data-capture queue ingester (spec
// §4.7): a polling task lists immutable staged files under an
// object-store prefix, a bounded worker pool claims and processes each
// file exactly once, and rows are upserted into the columnar
// destination via pkg/chql's dedup-by-version engine.
package cdc

import (
	"fmt"
	"time"
)

// Format names the per-file row encoding.
type Format string

const (
	FormatParquet     Format = "Parquet"
	FormatJSONEachRow Format = "JSONEachRow"
	FormatCSV         Format = "CSV"
)

// AfterProcessing controls what happens to a staged file once it has been
// durably ingested. Delete is irreversible: once a file is removed, it
// cannot be replayed into a second destination or reprocessed after a
// destination-side data loss. Operators who need replayability should use
// Keep and handle retention in the object store's own lifecycle policy.
type AfterProcessing string

const (
	AfterProcessingKeep   AfterProcessing = "keep"
	AfterProcessingDelete AfterProcessing = "delete"
)

// Config enumerates the CDC ingester's options (spec §4.7 table).
type Config struct {
	Endpoint  string // object-store base URL; must be HTTPS outside tests
	Bucket    string
	AccessKey string
	SecretKey string
	Insecure  bool // allow plain HTTP; only for local/dev endpoints

	Path            string // glob with "*"/"{placeholder}" segments
	Format          Format
	PollInterval    time.Duration
	MaxThreads      int
	MaxBlockSize    int
	AfterProcessing AfterProcessing
	OrderedMode     bool
}

// WithDefaults returns a copy of c with unset fields filled to the spec's
// documented defaults, and orderedMode's forced clamp applied.
func (c Config) WithDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.PollInterval < 100*time.Millisecond {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = 4
	}
	if c.MaxThreads > 64 {
		c.MaxThreads = 64
	}
	if c.MaxBlockSize <= 0 {
		c.MaxBlockSize = 65536
	}
	if c.AfterProcessing == "" {
		c.AfterProcessing = AfterProcessingKeep
	}
	if c.OrderedMode {
		// spec §4.7: "orderedMode... maxThreads is silently clamped to 1".
		c.MaxThreads = 1
	}
	return c
}

// Validate checks the option bounds the spec enumerates.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("cdc: endpoint is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("cdc: bucket is required")
	}
	if c.Path == "" {
		return fmt.Errorf("cdc: path is required")
	}
	switch c.Format {
	case FormatParquet, FormatJSONEachRow, FormatCSV:
	default:
		return fmt.Errorf("cdc: unsupported format %q", c.Format)
	}
	if c.MaxThreads < 1 || c.MaxThreads > 64 {
		return fmt.Errorf("cdc: maxThreads must be in [1,64], got %d", c.MaxThreads)
	}
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("cdc: pollIntervalMs must be >= 100ms")
	}
	switch c.AfterProcessing {
	case AfterProcessingKeep, AfterProcessingDelete:
	default:
		return fmt.Errorf("cdc: afterProcessing must be keep or delete, got %q", c.AfterProcessing)
	}
	return nil
}
