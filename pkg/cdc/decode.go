package cdc

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Row is one change record as staged by the upstream producer (spec
// §3.6/§3.7): collection, doc_id, a semi-structured JSON data blob,
// updated_at, version, and the soft-delete flag.
type Row struct {
	Collection string
	DocID      string
	Data       string
	UpdatedAt  time.Time
	Version    uint64
	IsDeleted  bool
}

// jsonRow mirrors one JSONEachRow line or one CSV record's textual shape.
type jsonRow struct {
	Collection string          `json:"collection"`
	DocID      string          `json:"doc_id"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  int64           `json:"updated_at"` // epoch millis
	Version    uint64          `json:"version"`
	IsDeleted  bool            `json:"is_deleted"`
}

func (j jsonRow) toRow() Row {
	return Row{
		Collection: j.Collection,
		DocID:      j.DocID,
		Data:       string(j.Data),
		UpdatedAt:  time.UnixMilli(j.UpdatedAt).UTC(),
		Version:    j.Version,
		IsDeleted:  j.IsDeleted,
	}
}

// decodeJSONEachRow decodes a ClickHouse JSONEachRow-style stream: one
// JSON object per line, no enclosing array.
func decodeJSONEachRow(r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	var rows []Row
	for dec.More() {
		var jr jsonRow
		if err := dec.Decode(&jr); err != nil {
			return nil, fmt.Errorf("cdc: decode JSONEachRow: %w", err)
		}
		rows = append(rows, jr.toRow())
	}
	return rows, nil
}

var csvColumns = []string{"collection", "doc_id", "data", "updated_at", "version", "is_deleted"}

// decodeCSV decodes a header-led CSV file with the fixed column order
// csvColumns; data is carried as a JSON-text cell.
func decodeCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("cdc: read CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, want := range csvColumns {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("cdc: CSV missing column %q", want)
		}
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cdc: read CSV record: %w", err)
		}
		millis, err := strconv.ParseInt(record[idx["updated_at"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cdc: parse updated_at: %w", err)
		}
		version, err := strconv.ParseUint(record[idx["version"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cdc: parse version: %w", err)
		}
		deleted, err := strconv.ParseBool(record[idx["is_deleted"]])
		if err != nil {
			return nil, fmt.Errorf("cdc: parse is_deleted: %w", err)
		}
		rows = append(rows, Row{
			Collection: record[idx["collection"]],
			DocID:      record[idx["doc_id"]],
			Data:       record[idx["data"]],
			UpdatedAt:  time.UnixMilli(millis).UTC(),
			Version:    version,
			IsDeleted:  deleted,
		})
	}
	return rows, nil
}

// parquetRow is the on-disk columnar shape decodeParquet reads via
// parquet-go's generic reader.
type parquetRow struct {
	Collection string `parquet:"collection"`
	DocID      string `parquet:"doc_id"`
	Data       string `parquet:"data"`
	UpdatedAt  int64  `parquet:"updated_at"`
	Version    uint64 `parquet:"version"`
	IsDeleted  bool   `parquet:"is_deleted"`
}

// decodeParquet decodes a Parquet file held fully in memory; parquet-go's
// reader requires io.ReaderAt, which an in-memory buffer satisfies
// without a temp file.
func decodeParquet(data []byte) ([]Row, error) {
	reader := parquet.NewGenericReader[parquetRow](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	total := int(reader.NumRows())
	if total == 0 {
		return nil, nil
	}
	buf := make([]parquetRow, total)
	n, err := reader.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("cdc: decode Parquet: %w", err)
	}

	rows := make([]Row, 0, n)
	for _, pr := range buf[:n] {
		rows = append(rows, Row{
			Collection: pr.Collection,
			DocID:      pr.DocID,
			Data:       pr.Data,
			UpdatedAt:  time.UnixMilli(pr.UpdatedAt).UTC(),
			Version:    pr.Version,
			IsDeleted:  pr.IsDeleted,
		})
	}
	return rows, nil
}

// decodeRows dispatches to the format-specific decoder.
func decodeRows(format Format, data []byte) ([]Row, error) {
	switch format {
	case FormatJSONEachRow:
		return decodeJSONEachRow(bytes.NewReader(data))
	case FormatCSV:
		return decodeCSV(bytes.NewReader(data))
	case FormatParquet:
		return decodeParquet(data)
	default:
		return nil, fmt.Errorf("cdc: unsupported format %q", format)
	}
}
