package cdc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mongobridge/mongosrv/pkg/chql"
)

// markerStatus mirrors the processed_files.status column values. claimed is
// a write-then-verify reservation: a worker that wins the race to have the
// latest processed_at for a path may proceed; one that loses backs off and
// treats the file as owned by someone else.
const (
	markerClaimed = "claimed"
	markerSuccess = "success"
	markerFailed  = "failed"
)

// Destination is the write-side collaborator the ingester drives: claim a
// file via the marker table's compare-and-set, batch-insert its decoded
// rows, and record the outcome (spec §4.7).
type Destination interface {
	TryClaim(ctx context.Context, path string) (claimed bool, err error)
	InsertBatch(ctx context.Context, rows []Row) error
	// InsertBatchAndMarkSuccess inserts the file's final batch (possibly
	// empty, for a zero-row file) and writes the success marker as one
	// unit, so a crash between the two never leaves a fully-ingested file
	// without its marker (spec §4.7: "the marker is written in the same
	// transaction as the batch insert").
	InsertBatchAndMarkSuccess(ctx context.Context, rows []Row, path string) error
	MarkFailed(ctx context.Context, path string, cause error) error
}

// SQLDestination drives a database/sql connection (the ClickHouse driver,
// github.com/ClickHouse/clickhouse-go/v2, registers under this interface)
// using SQL text emitted by pkg/chql.
type SQLDestination struct {
	db    *sql.DB
	table chql.TableSpec
	now   func() time.Time
}

// NewSQLDestination wires a *sql.DB (opened by the caller against the
// clickhouse-go driver) to the given destination table.
func NewSQLDestination(db *sql.DB, table chql.TableSpec) *SQLDestination {
	return &SQLDestination{db: db, table: table, now: time.Now}
}

func (d *SQLDestination) readMarker(ctx context.Context, path string) (status, token string, err error) {
	row := d.db.QueryRowContext(ctx, chql.ClaimStatusSQL(d.table, path))
	err = row.Scan(&status, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	return status, token, err
}

// TryClaim implements the marker table's compare-and-set (spec §4.7): a
// file is processed only if no successful marker exists. Since ClickHouse
// offers no transactional unique-constraint enforcement across concurrent
// writers, the claim is optimistic — write a uniquely-tokened "claimed"
// marker, then re-read through the same ReplacingMergeTree(processed_at)
// FINAL view the marker table uses for dedup. The worker whose token comes
// back on re-read won the race; everyone else backs off. A prior "failed"
// marker does not block a retry, only a prior "success" or someone else's
// still-fresher "claimed" token does.
func (d *SQLDestination) TryClaim(ctx context.Context, path string) (bool, error) {
	status, _, err := d.readMarker(ctx, path)
	if err != nil {
		return false, fmt.Errorf("cdc: claim status lookup for %s: %w", path, err)
	}
	if status == markerSuccess {
		return false, nil
	}

	token := uuid.NewString()
	_, err = d.db.ExecContext(ctx, chql.MarkerUpsertSQL(d.table.Database, path, markerClaimed, token, d.now()))
	if err != nil {
		return false, fmt.Errorf("cdc: write claim marker for %s: %w", path, err)
	}

	wonStatus, wonToken, err := d.readMarker(ctx, path)
	if err != nil {
		return false, fmt.Errorf("cdc: verify claim for %s: %w", path, err)
	}
	if wonStatus == markerSuccess {
		return false, nil
	}
	return wonStatus == markerClaimed && wonToken == token, nil
}

func toInsertRows(rows []Row) []chql.InsertRow {
	insertRows := make([]chql.InsertRow, len(rows))
	for i, r := range rows {
		insertRows[i] = chql.InsertRow{
			Collection: r.Collection,
			DocID:      r.DocID,
			Data:       r.Data,
			UpdatedAt:  r.UpdatedAt,
			Version:    r.Version,
			IsDeleted:  r.IsDeleted,
		}
	}
	return insertRows
}

// InsertBatch inserts rows using the dedup-by-version engine; ClickHouse's
// ReplacingMergeTree collapses duplicate (collection, doc_id) keys on
// merge/FINAL read rather than requiring an application-level upsert.
func (d *SQLDestination) InsertBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := d.db.ExecContext(ctx, chql.InsertBatchSQL(d.table, toInsertRows(rows)))
	return err
}

// InsertBatchAndMarkSuccess commits the file's final batch and its success
// marker through a single *sql.Tx. clickhouse-go/v2 batches writes
// client-side within a transaction rather than giving ClickHouse itself a
// cross-statement ACID guarantee, but grouping the dispatch this way closes
// the window where a crash lands the batch without the marker (or vice
// versa) that a plain two-call sequence leaves open.
func (d *SQLDestination) InsertBatchAndMarkSuccess(ctx context.Context, rows []Row, path string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cdc: begin commit tx for %s: %w", path, err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(rows) > 0 {
		if _, err := tx.ExecContext(ctx, chql.InsertBatchSQL(d.table, toInsertRows(rows))); err != nil {
			return fmt.Errorf("cdc: insert final batch for %s: %w", path, err)
		}
	}
	if _, err := tx.ExecContext(ctx, chql.MarkerUpsertSQL(d.table.Database, path, markerSuccess, "", d.now())); err != nil {
		return fmt.Errorf("cdc: write success marker for %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cdc: commit final batch and marker for %s: %w", path, err)
	}
	return nil
}

func (d *SQLDestination) MarkFailed(ctx context.Context, path string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := d.db.ExecContext(ctx, chql.MarkerUpsertSQL(d.table.Database, path, markerFailed, msg, d.now()))
	return err
}
