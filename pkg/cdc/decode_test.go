package cdc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONEachRow(t *testing.T) {
	input := strings.Join([]string{
		`{"collection":"users","doc_id":"u1","data":{"n":"a"},"updated_at":1000,"version":1,"is_deleted":false}`,
		`{"collection":"users","doc_id":"u2","data":{"n":"b"},"updated_at":2000,"version":1,"is_deleted":true}`,
	}, "\n")

	rows, err := decodeRows(FormatJSONEachRow, []byte(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "u1", rows[0].DocID)
	assert.False(t, rows[0].IsDeleted)
	assert.True(t, rows[1].IsDeleted)
}

func TestDecodeCSV(t *testing.T) {
	input := "collection,doc_id,data,updated_at,version,is_deleted\n" +
		"users,u1,\"{\"\"n\"\":\"\"a\"\"}\",1000,1,false\n"

	rows, err := decodeRows(FormatCSV, []byte(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "users", rows[0].Collection)
	assert.Equal(t, uint64(1), rows[0].Version)
}

func TestDecodeCSVMissingColumnErrors(t *testing.T) {
	_, err := decodeRows(FormatCSV, []byte("collection,doc_id\nusers,u1\n"))
	require.Error(t, err)
}

func TestMatchesPathWithPlaceholders(t *testing.T) {
	pattern := "cdc/{database}/{collection}/202601/abc.parquet"
	assert.True(t, matchesPath(pattern, "cdc/analytics/users/202601/abc.parquet"))
	assert.False(t, matchesPath(pattern, "cdc/analytics/users/202601/other.parquet"))
}

func TestGlobPrefixStopsAtFirstWildcardSegment(t *testing.T) {
	assert.Equal(t, "cdc/", globPrefix("cdc/{database}/{collection}/*.parquet"))
	assert.Equal(t, "cdc/fixed/", globPrefix("cdc/fixed/*.json"))
}
