package sandbox

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dbadmin/internal/domain"
	"dbadmin/pkg/api"
	"dbadmin/pkg/records"
)

type record struct {
	pk   string
	data map[string]any
}

func loadRecords(ctx context.Context, q querier, tableOID int64) ([]record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT pk, data FROM records WHERE table_oid = ?
		ORDER BY CAST(pk AS INTEGER), pk`, tableOID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var out []record
	for rows.Next() {
		var (
			r   record
			raw string
		)
		if err := rows.Scan(&r.pk, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.data, err = decodeData(raw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadRecord(ctx context.Context, q querier, tableOID int64, pk string) (map[string]any, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM records WHERE table_oid = ? AND pk = ?`, tableOID, pk).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("record %s not found", pk)
	}
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	return decodeData(raw)
}

func saveRecord(ctx context.Context, tx *sql.Tx, tableOID int64, pk string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (table_oid, pk, data) VALUES (?, ?, ?)
		ON CONFLICT (table_oid, pk) DO UPDATE SET data = excluded.data`,
		tableOID, pk, string(raw))
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// project returns the values of row for the current columns only.
func project(cols []columnRow, row map[string]any) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		out[columnKey(c.ID)] = row[columnKey(c.ID)]
	}
	return out
}

// applyValues casts payload values onto row. Keys must be column ids and
// the primary key cannot change.
func applyValues(cols []columnRow, row, payload map[string]any) error {
	byKey := make(map[string]columnRow, len(cols))
	for _, c := range cols {
		byKey[columnKey(c.ID)] = c
	}
	for k, v := range payload {
		col, ok := byKey[k]
		if !ok {
			return domain.ErrValidation("unknown column %q", k)
		}
		if col.PrimaryKey {
			return domain.ErrValidation("primary key column %q cannot be changed", col.Name)
		}
		if v == nil && !col.Nullable {
			return domain.ErrValidation("column %q cannot be null", col.Name)
		}
		cast, err := castValue(v, col.Type)
		if err != nil {
			return domain.ErrValidation("column %q: %v", col.Name, err)
		}
		row[k] = cast
	}
	return nil
}

// InsertRecord adds a record with the next integer key and returns the key.
func (s *Store) InsertRecord(ctx context.Context, tableOID int64, values map[string]any) (string, error) {
	var pk string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := tableSchema(ctx, tx, tableOID); err != nil {
			return err
		}
		cols, err := listColumns(ctx, tx, tableOID)
		if err != nil {
			return err
		}
		pk, err = insertRecord(ctx, tx, tableOID, cols, values)
		return err
	})
	return pk, err
}

func insertRecord(ctx context.Context, tx *sql.Tx, tableOID int64, cols []columnRow, values map[string]any) (string, error) {
	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(pk AS INTEGER)), 0) + 1 FROM records WHERE table_oid = ?`, tableOID).Scan(&next); err != nil {
		return "", fmt.Errorf("allocate key: %w", err)
	}
	row := map[string]any{}
	if err := applyValues(cols, row, values); err != nil {
		return "", err
	}
	pk := strconv.FormatInt(next, 10)
	row[columnKey(pkAttnum)] = next
	return pk, saveRecord(ctx, tx, tableOID, pk, row)
}

// GetRecord returns one record with preview rows for its foreign keys.
func (s *Store) GetRecord(ctx context.Context, tableOID int64, pk string) (domain.RecordResponse, error) {
	return recordResponse(ctx, s.read, tableOID, pk)
}

// PatchRecord updates one record and returns it as GetRecord does.
func (s *Store) PatchRecord(ctx context.Context, tableOID int64, pk string, payload map[string]any) (domain.RecordResponse, error) {
	var resp domain.RecordResponse
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := tableSchema(ctx, tx, tableOID); err != nil {
			return err
		}
		cols, err := listColumns(ctx, tx, tableOID)
		if err != nil {
			return err
		}
		row, err := loadRecord(ctx, tx, tableOID, pk)
		if err != nil {
			return err
		}
		if err := applyValues(cols, row, payload); err != nil {
			return err
		}
		if err := saveRecord(ctx, tx, tableOID, pk, row); err != nil {
			return err
		}
		resp, err = recordResponse(ctx, tx, tableOID, pk)
		return err
	})
	return resp, err
}

func recordResponse(ctx context.Context, q querier, tableOID int64, pk string) (domain.RecordResponse, error) {
	if _, _, err := tableSchema(ctx, q, tableOID); err != nil {
		return domain.RecordResponse{}, err
	}
	cols, err := listColumns(ctx, q, tableOID)
	if err != nil {
		return domain.RecordResponse{}, err
	}
	row, err := loadRecord(ctx, q, tableOID, pk)
	if err != nil {
		return domain.RecordResponse{}, err
	}
	values := project(cols, row)
	result, err := rawRow(values)
	if err != nil {
		return domain.RecordResponse{}, err
	}

	resp := domain.RecordResponse{Count: 1, Results: []map[string]json.RawMessage{result}}
	for _, c := range cols {
		if !c.fkTable.Valid {
			continue
		}
		ref := values[columnKey(c.ID)]
		if ref == nil {
			continue
		}
		preview, err := previewFor(ctx, q, c.fkTable.Int64, records.Stringify(ref))
		if err != nil {
			return domain.RecordResponse{}, err
		}
		preview.Column = c.ID
		resp.PreviewData = append(resp.PreviewData, preview)
	}
	return resp, nil
}

// previewFor returns the referenced record of a foreign key as a preview
// row. A dangling reference yields an empty data list.
func previewFor(ctx context.Context, q querier, tableOID int64, pk string) (domain.PreviewData, error) {
	t, err := tableByOID(ctx, q, tableOID)
	if err != nil {
		return domain.PreviewData{}, err
	}
	cols, err := listColumns(ctx, q, tableOID)
	if err != nil {
		return domain.PreviewData{}, err
	}
	out := domain.PreviewData{
		Table:    tableOID,
		Template: summaryTemplate(t.Metadata, cols),
		Data:     []map[string]any{},
	}
	row, err := loadRecord(ctx, q, tableOID, pk)
	if domain.IsNotFound(err) {
		return out, nil
	}
	if err != nil {
		return domain.PreviewData{}, err
	}
	values := project(cols, row)
	values[records.PreviewKeyField] = row[columnKey(pkAttnum)]
	out.Data = append(out.Data, values)
	return out, nil
}

func tableByOID(ctx context.Context, q querier, tableOID int64) (domain.Table, error) {
	databaseID, _, err := tableSchema(ctx, q, tableOID)
	if err != nil {
		return domain.Table{}, err
	}
	return getTable(ctx, q, databaseID, tableOID, true)
}

// summaryTemplate is the stored template or the first non key column.
func summaryTemplate(md *domain.TableMetadata, cols []columnRow) string {
	if md != nil && md.RecordSummaryTemplate != nil && *md.RecordSummaryTemplate != "" {
		return *md.RecordSummaryTemplate
	}
	for _, c := range cols {
		if !c.PrimaryKey {
			return fmt.Sprintf("{%d}", c.ID)
		}
	}
	return fmt.Sprintf("{%d}", pkAttnum)
}

func rawRow(values map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cell %s: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}

// TableEntry returns the REST representation of a table.
func (s *Store) TableEntry(ctx context.Context, tableOID int64) (domain.TableEntry, error) {
	t, err := tableByOID(ctx, s.read, tableOID)
	if err != nil {
		return domain.TableEntry{}, err
	}
	cols, err := listColumns(ctx, s.read, tableOID)
	if err != nil {
		return domain.TableEntry{}, err
	}
	return domain.TableEntry{
		ID:   t.OID,
		Name: t.Name,
		Settings: domain.TableSettings{
			PreviewSettings: domain.PreviewSettings{Template: summaryTemplate(t.Metadata, cols)},
		},
	}, nil
}

// === Data files and import ===

// DataFileInput is an uploaded delimited text file.
type DataFileInput struct {
	Name      string `json:"name"`
	Paste     string `json:"paste"`
	Header    *bool  `json:"header"`
	Delimiter string `json:"delimiter"`
}

// CreateDataFile stores an uploaded file for a later tables.import.
func (s *Store) CreateDataFile(ctx context.Context, in DataFileInput) (domain.DataFile, error) {
	if strings.TrimSpace(in.Paste) == "" {
		return domain.DataFile{}, domain.ErrValidation("data file is empty")
	}
	if in.Name == "" {
		in.Name = "Untitled"
	}
	if in.Delimiter == "" {
		in.Delimiter = ","
	}
	if len([]rune(in.Delimiter)) != 1 {
		return domain.DataFile{}, domain.ErrValidation("delimiter must be a single character")
	}
	header := in.Header == nil || *in.Header

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO data_files (name, header, delimiter, content) VALUES (?, ?, ?, ?)`,
			in.Name, header, in.Delimiter, in.Paste)
		if err != nil {
			return fmt.Errorf("insert data file: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return domain.DataFile{ID: id}, err
}

type dataFile struct {
	name      string
	header    bool
	delimiter rune
	content   string
}

func loadDataFile(ctx context.Context, q querier, id int64) (dataFile, error) {
	var (
		f     dataFile
		delim string
	)
	err := q.QueryRowContext(ctx, `SELECT name, header, delimiter, content FROM data_files WHERE id = ?`, id).
		Scan(&f.name, &f.header, &delim, &f.content)
	if errors.Is(err, sql.ErrNoRows) {
		return dataFile{}, domain.ErrNotFound("data file %d not found", id)
	}
	if err != nil {
		return dataFile{}, fmt.Errorf("load data file: %w", err)
	}
	f.delimiter = []rune(delim)[0]
	return f, nil
}

func (f dataFile) rows() (header []string, body [][]string, err error) {
	r := csv.NewReader(strings.NewReader(f.content))
	r.Comma = f.delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, domain.ErrValidation("parse data file: %v", err)
		}
		body = append(body, rec)
	}
	if len(body) == 0 {
		return nil, nil, domain.ErrValidation("data file has no rows")
	}
	width := 0
	for _, rec := range body {
		width = max(width, len(rec))
	}
	if f.header {
		header, body = body[0], body[1:]
	}
	names := make([]string, width)
	for i := range names {
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			names[i] = strings.TrimSpace(header[i])
		} else {
			names[i] = fmt.Sprintf("Column %d", i+1)
		}
	}
	return dedupeNames(names), body, nil
}

// dedupeNames suffixes repeated names, and never yields the key column name.
func dedupeNames(names []string) []string {
	seen := map[string]bool{pkName: true}
	out := make([]string, len(names))
	for i, n := range names {
		candidate := n
		for k := 1; seen[candidate]; k++ {
			candidate = fmt.Sprintf("%s_%d", n, k)
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}

// ImportTable creates a text-typed table from a data file.
func (s *Store) ImportTable(ctx context.Context, databaseID, schemaOID, dataFileID int64, name string) (api.AddedTable, error) {
	var added api.AddedTable
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		f, err := loadDataFile(ctx, tx, dataFileID)
		if err != nil {
			return err
		}
		names, body, err := f.rows()
		if err != nil {
			return err
		}
		if name == "" {
			name = f.name
		}
		creatable := make([]domain.CreatableColumn, len(names))
		for i, n := range names {
			creatable[i] = domain.CreatableColumn{Name: n, Type: TypeText}
		}
		if added, err = createTable(ctx, tx, databaseID, schemaOID, name, "", creatable); err != nil {
			return err
		}
		cols, err := listColumns(ctx, tx, added.OID)
		if err != nil {
			return err
		}
		for _, rec := range body {
			values := make(map[string]any, len(rec))
			for i, cell := range rec {
				values[columnKey(cols[i+1].ID)] = cell
			}
			if _, err := insertRecord(ctx, tx, added.OID, cols, values); err != nil {
				return err
			}
		}
		return nil
	})
	return added, err
}

// ImportPreview returns up to limit records of a table with the requested
// column casts applied, without changing stored data.
func (s *Store) ImportPreview(ctx context.Context, databaseID, tableOID int64, casts []api.PreviewColumn, limit int) ([]map[string]any, error) {
	if _, err := getTable(ctx, s.read, databaseID, tableOID, false); err != nil {
		return nil, err
	}
	cols, err := listColumns(ctx, s.read, tableOID)
	if err != nil {
		return nil, err
	}
	types := make(map[string]string, len(cols))
	for _, c := range cols {
		types[columnKey(c.ID)] = c.Type
	}
	for _, pc := range casts {
		key := columnKey(pc.ID)
		if _, ok := types[key]; !ok {
			return nil, domain.ErrNotFound("column %d not found", pc.ID)
		}
		if !knownType(pc.Type) {
			return nil, domain.ErrValidation("unsupported column type %q", pc.Type)
		}
		types[key] = pc.Type
	}

	recs, err := loadRecords(ctx, s.read, tableOID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		row := project(cols, r.data)
		for k, v := range row {
			cast, err := castValue(v, types[k])
			if err != nil {
				return nil, domain.ErrValidation("record %s: %v", r.pk, err)
			}
			row[k] = cast
		}
		out = append(out, row)
	}
	return out, nil
}

// SuggestTypes infers a column type for every non key column from its
// stored values. Keys are stringified attnums.
func (s *Store) SuggestTypes(ctx context.Context, databaseID, tableOID int64) (map[string]string, error) {
	if _, err := getTable(ctx, s.read, databaseID, tableOID, false); err != nil {
		return nil, err
	}
	cols, err := listColumns(ctx, s.read, tableOID)
	if err != nil {
		return nil, err
	}
	recs, err := loadRecords(ctx, s.read, tableOID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		if c.PrimaryKey {
			continue
		}
		key := columnKey(c.ID)
		values := make([]any, 0, len(recs))
		for _, r := range recs {
			values = append(values, r.data[key])
		}
		out[key] = inferType(values)
	}
	return out, nil
}
