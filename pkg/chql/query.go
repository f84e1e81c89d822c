package chql

import (
	"fmt"
	"strings"
	"time"
)

// quoteLiteral escapes a SQL string literal by doubling single quotes
// (spec §4.8: "All string literals are quoted with doubled single-quote
// escaping").
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ReadQuery builds `SELECT <cols> FROM <db>.<tbl> [FINAL] [WHERE …]
// [ORDER BY …] [LIMIT n] [OFFSET k]` statements via typed predicate
// methods (spec §4.8).
type ReadQuery struct {
	table      TableSpec
	final      bool
	conditions []string
	orderBy    string
	limit      int64
	offset     int64
	columns    []string
}

// NewReadQuery starts a read-query builder over table.
func NewReadQuery(table TableSpec) *ReadQuery {
	return &ReadQuery{table: table, columns: []string{"collection", "doc_id", "data", "updated_at", "version", "is_deleted"}}
}

// Final requests the deduplicating FINAL modifier.
func (q *ReadQuery) Final() *ReadQuery {
	q.final = true
	return q
}

// Collection filters to a single collection.
func (q *ReadQuery) Collection(name string) *ReadQuery {
	q.conditions = append(q.conditions, fmt.Sprintf("collection = %s", quoteLiteral(name)))
	return q
}

// DocID filters to a single document id.
func (q *ReadQuery) DocID(id string) *ReadQuery {
	q.conditions = append(q.conditions, fmt.Sprintf("doc_id = %s", quoteLiteral(id)))
	return q
}

// ExcludeDeleted filters out soft-deleted rows (spec §4.8/§8 invariant 9).
func (q *ReadQuery) ExcludeDeleted() *ReadQuery {
	q.conditions = append(q.conditions, "is_deleted = 0")
	return q
}

// UpdatedAfter filters to rows updated at or after t.
func (q *ReadQuery) UpdatedAfter(t time.Time) *ReadQuery {
	q.conditions = append(q.conditions, fmt.Sprintf("updated_at >= %s", quoteLiteral(t.UTC().Format("2006-01-02 15:04:05.000"))))
	return q
}

// UpdatedBefore filters to rows updated strictly before t.
func (q *ReadQuery) UpdatedBefore(t time.Time) *ReadQuery {
	q.conditions = append(q.conditions, fmt.Sprintf("updated_at < %s", quoteLiteral(t.UTC().Format("2006-01-02 15:04:05.000"))))
	return q
}

// Raw appends an arbitrary pre-formed WHERE clause fragment, for
// predicates the typed methods don't cover.
func (q *ReadQuery) Raw(clause string) *ReadQuery {
	if clause != "" {
		q.conditions = append(q.conditions, clause)
	}
	return q
}

// OrderBy sets the ORDER BY clause text, e.g. "updated_at DESC".
func (q *ReadQuery) OrderBy(clause string) *ReadQuery { q.orderBy = clause; return q }

// Limit/Offset cap the result set.
func (q *ReadQuery) Limit(n int64) *ReadQuery  { q.limit = n; return q }
func (q *ReadQuery) Offset(n int64) *ReadQuery { q.offset = n; return q }

// SQL renders the final query text.
func (q *ReadQuery) SQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.columns, ", "), q.table.qualifiedName())
	if q.final {
		b.WriteString(" FINAL")
	}
	if len(q.conditions) > 0 {
		fmt.Fprintf(&b, " WHERE %s", strings.Join(q.conditions, " AND "))
	}
	if q.orderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", q.orderBy)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.offset)
	}
	return b.String()
}

// InsertRow is one row of the realtime table (spec §3.6).
type InsertRow struct {
	Collection string
	DocID      string
	Data       string // semi-structured JSON blob, stored as String
	UpdatedAt  time.Time
	Version    uint64
	IsDeleted  bool
}

// InsertBatchSQL renders a multi-row INSERT for the dedup-by-version
// engine; the CDC ingester relies on ReplacingMergeTree to collapse
// duplicates rather than performing an application-level upsert.
func InsertBatchSQL(table TableSpec, rows []InsertRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (collection, doc_id, data, updated_at, version, is_deleted) VALUES ", table.qualifiedName())
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		deleted := 0
		if r.IsDeleted {
			deleted = 1
		}
		fmt.Fprintf(&b, "(%s, %s, %s, %s, %d, %d)",
			quoteLiteral(r.Collection),
			quoteLiteral(r.DocID),
			quoteLiteral(r.Data),
			quoteLiteral(r.UpdatedAt.UTC().Format("2006-01-02 15:04:05.000")),
			r.Version,
			deleted,
		)
	}
	return b.String()
}

// ClaimStatusSQL renders the FINAL lookup the CDC ingester issues before
// processing a file, to discover whether a prior attempt already left a
// successful marker (spec §4.7: "A file is processed only if no successful
// marker exists").
func ClaimStatusSQL(table TableSpec, filePath string) string {
	return fmt.Sprintf(
		"SELECT status, error FROM %s.`processed_files` FINAL WHERE file_path = %s",
		quoteIdent(table.Database),
		quoteLiteral(filePath),
	)
}

// MarkerUpsertSQL renders the processed_files marker write the ingester
// performs in the same logical unit as the batch insert (spec §4.7: "the
// marker is written in the same transaction as the batch insert").
func MarkerUpsertSQL(db, filePath, status, errMsg string, processedAt time.Time) string {
	return fmt.Sprintf(
		"INSERT INTO %s.`processed_files` (file_path, status, error, processed_at) VALUES (%s, %s, %s, %s)",
		quoteIdent(db),
		quoteLiteral(filePath),
		quoteLiteral(status),
		quoteLiteral(errMsg),
		quoteLiteral(processedAt.UTC().Format("2006-01-02 15:04:05.000")),
	)
}
