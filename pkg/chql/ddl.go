// Package chql emits DDL and read/write SQL for the dedup-by-version
// destination columnar store (spec §4.8/§6.6). It targets the
// ClickHouse SQL dialect via github.com/ClickHouse/clickhouse-go/v2,
// chosen because the spec itself pins ClickHouse-specific vocabulary
// (ReplacingMergeTree, FINAL, toYYYYMM, column TTL) rather than a
// generic SQL surface.
package chql

import (
	"fmt"
	"strings"
)

// TableSpec names the destination table and its partitioning/TTL options
// (spec §4.8: "Optional partitioning by (collection, month(updated_at));
// optional table TTL updated_at + INTERVAL N DAY").
type TableSpec struct {
	Database string
	Table    string
	// PerCollection true orders by (doc_id) alone, for a per-collection
	// table; false orders by (collection, doc_id), for the shared table.
	PerCollection bool
	Partitioned   bool
	TTLDays       int // 0 disables TTL
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// qualifiedName returns db.table, both backtick-quoted.
func (t TableSpec) qualifiedName() string {
	return quoteIdent(t.Database) + "." + quoteIdent(t.Table)
}

// CreateRealtimeTable emits the CREATE TABLE DDL for the shared CDC
// destination (spec §3.6/§6.6): a ReplacingMergeTree keyed by version,
// dedup-by-version on merge/FINAL read.
func (t TableSpec) CreateRealtimeTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.qualifiedName())
	b.WriteString("    collection LowCardinality(String),\n")
	b.WriteString("    doc_id String,\n")
	b.WriteString("    data String,\n")
	b.WriteString("    updated_at DateTime64(3),\n")
	b.WriteString("    version UInt64,\n")
	b.WriteString("    is_deleted UInt8 DEFAULT 0\n")
	b.WriteString(") ENGINE = ReplacingMergeTree(version)\n")

	if t.Partitioned {
		b.WriteString("PARTITION BY (collection, toYYYYMM(updated_at))\n")
	}

	orderKey := "(collection, doc_id)"
	if t.PerCollection {
		orderKey = "(doc_id)"
	}
	fmt.Fprintf(&b, "ORDER BY %s\n", orderKey)

	if t.TTLDays > 0 {
		fmt.Fprintf(&b, "TTL updated_at + INTERVAL %d DAY\n", t.TTLDays)
	}
	b.WriteString(";")
	return b.String()
}

// CreateTombstoneTable emits the DDL for the companion tombstone table
// (spec §6.6): plain MergeTree, keyed (collection, database, doc_id), TTL
// on deleted_at.
func (t TableSpec) CreateTombstoneTable(ttlDays int) string {
	name := quoteIdent(t.Database) + "." + quoteIdent(t.Table+"_tombstones")
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", name)
	b.WriteString("    collection LowCardinality(String),\n")
	b.WriteString("    database String,\n")
	b.WriteString("    doc_id String,\n")
	b.WriteString("    deleted_at DateTime64(3)\n")
	b.WriteString(") ENGINE = MergeTree\n")
	b.WriteString("ORDER BY (collection, database, doc_id)\n")
	if ttlDays > 0 {
		fmt.Fprintf(&b, "TTL deleted_at + INTERVAL %d DAY\n", ttlDays)
	}
	b.WriteString(";")
	return b.String()
}

// CreateProcessedFilesTable emits the marker table the CDC ingester uses
// for compare-and-set claim semantics (spec §4.7).
func (t TableSpec) CreateProcessedFilesTable() string {
	name := quoteIdent(t.Database) + ".`processed_files`"
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", name)
	b.WriteString("    file_path String,\n")
	b.WriteString("    status LowCardinality(String),\n")
	b.WriteString("    error String,\n")
	b.WriteString("    processed_at DateTime64(3)\n")
	b.WriteString(") ENGINE = ReplacingMergeTree(processed_at)\n")
	b.WriteString("ORDER BY (file_path)\n;")
	return b.String()
}
