package chql_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/pkg/chql"
)

func sampleTable() chql.TableSpec {
	return chql.TableSpec{Database: "analytics", Table: "cdc_events", Partitioned: true, TTLDays: 90}
}

func TestCreateRealtimeTableDDL(t *testing.T) {
	ddl := sampleTable().CreateRealtimeTable()
	require.Contains(t, ddl, "ReplacingMergeTree(version)")
	require.Contains(t, ddl, "ORDER BY (collection, doc_id)")
	require.Contains(t, ddl, "PARTITION BY (collection, toYYYYMM(updated_at))")
	require.Contains(t, ddl, "TTL updated_at + INTERVAL 90 DAY")
}

func TestCreateRealtimeTablePerCollectionOrdersByDocIDAlone(t *testing.T) {
	table := sampleTable()
	table.PerCollection = true
	ddl := table.CreateRealtimeTable()
	require.Contains(t, ddl, "ORDER BY (doc_id)")
	require.NotContains(t, ddl, "ORDER BY (collection, doc_id)")
}

func TestCreateTombstoneTableDDL(t *testing.T) {
	ddl := sampleTable().CreateTombstoneTable(30)
	require.Contains(t, ddl, "ENGINE = MergeTree")
	require.Contains(t, ddl, "ORDER BY (collection, database, doc_id)")
	require.Contains(t, ddl, "TTL deleted_at + INTERVAL 30 DAY")
}

func TestReadQueryExcludeDeletedAndFinal(t *testing.T) {
	sql := chql.NewReadQuery(sampleTable()).Final().Collection("users").ExcludeDeleted().Limit(10).SQL()
	require.True(t, strings.HasPrefix(sql, "SELECT"))
	require.Contains(t, sql, "FINAL")
	require.Contains(t, sql, "collection = 'users'")
	require.Contains(t, sql, "is_deleted = 0")
	require.Contains(t, sql, "LIMIT 10")
}

func TestReadQueryEscapesSingleQuotes(t *testing.T) {
	sql := chql.NewReadQuery(sampleTable()).Collection("o'brien").SQL()
	require.Contains(t, sql, "collection = 'o''brien'")
}

func TestClaimStatusSQLFiltersByQuotedPath(t *testing.T) {
	sql := chql.ClaimStatusSQL(sampleTable(), "cdc/a'b.parquet")
	require.Contains(t, sql, "FINAL")
	require.Contains(t, sql, "file_path = 'cdc/a''b.parquet'")
}

func TestInsertBatchSQLIncludesAllRows(t *testing.T) {
	rows := []chql.InsertRow{
		{Collection: "users", DocID: "u1", Data: `{"n":"a"}`, UpdatedAt: time.Unix(0, 0), Version: 1},
		{Collection: "users", DocID: "u2", Data: `{"n":"b"}`, UpdatedAt: time.Unix(0, 0), Version: 2, IsDeleted: true},
	}
	sql := chql.InsertBatchSQL(sampleTable(), rows)
	require.Contains(t, sql, "'u1'")
	require.Contains(t, sql, "'u2'")
	require.Contains(t, sql, ", 1, 0)")
	require.Contains(t, sql, ", 2, 1)")
}
