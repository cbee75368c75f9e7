package sandbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dbadmin/internal/ddl"
	"dbadmin/internal/domain"
	"dbadmin/pkg/api"
)

const (
	pkAttnum   = 1
	pkName     = "id"
	pkType     = "integer"
	defaultTyp = "text"
)

const tableColumns = `t.oid, t.name, t.schema_oid, t.description, t.metadata`

func scanTable(sc interface{ Scan(...any) error }, withMetadata bool) (domain.Table, error) {
	var (
		t    domain.Table
		desc sql.NullString
		md   sql.NullString
	)
	if err := sc.Scan(&t.OID, &t.Name, &t.Schema, &desc, &md); err != nil {
		return domain.Table{}, err
	}
	t.Description = stringPtr(desc)
	if withMetadata {
		t.Metadata = &domain.TableMetadata{}
		if md.Valid && md.String != "" {
			if err := json.Unmarshal([]byte(md.String), t.Metadata); err != nil {
				return domain.Table{}, fmt.Errorf("decode metadata of table %d: %w", t.OID, err)
			}
		}
	}
	return t, nil
}

// ListTables returns the tables of a schema ordered by oid.
func (s *Store) ListTables(ctx context.Context, databaseID, schemaOID int64, withMetadata bool) ([]domain.Table, error) {
	if err := checkSchema(ctx, s.read, databaseID, schemaOID); err != nil {
		return nil, err
	}
	rows, err := s.read.QueryContext(ctx,
		`SELECT `+tableColumns+` FROM tables t WHERE t.schema_oid = ? ORDER BY t.oid`, schemaOID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	out := []domain.Table{}
	for rows.Next() {
		t, err := scanTable(rows, withMetadata)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTable returns one table of the given database.
func (s *Store) GetTable(ctx context.Context, databaseID, tableOID int64, withMetadata bool) (domain.Table, error) {
	return getTable(ctx, s.read, databaseID, tableOID, withMetadata)
}

func getTable(ctx context.Context, q querier, databaseID, tableOID int64, withMetadata bool) (domain.Table, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+tableColumns+`
		FROM tables t JOIN schemas s ON s.oid = t.schema_oid
		WHERE t.oid = ? AND s.database_id = ?`, tableOID, databaseID)
	t, err := scanTable(row, withMetadata)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Table{}, domain.ErrNotFound("table %d not found", tableOID)
	}
	return t, err
}

// AddTable creates a table with a default integer primary key column
// followed by the given columns. An empty name is replaced by a generated
// one.
func (s *Store) AddTable(ctx context.Context, databaseID, schemaOID int64, p api.AddTableParams) (api.AddedTable, error) {
	var added api.AddedTable
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		added, err = createTable(ctx, tx, databaseID, schemaOID, p.TableName, p.Comment, p.Columns)
		return err
	})
	return added, err
}

func createTable(ctx context.Context, tx *sql.Tx, databaseID, schemaOID int64, name, comment string, cols []domain.CreatableColumn) (api.AddedTable, error) {
	if err := checkSchema(ctx, tx, databaseID, schemaOID); err != nil {
		return api.AddedTable{}, err
	}
	oid, err := nextOID(ctx, tx)
	if err != nil {
		return api.AddedTable{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Table %d", oid)
	}
	if err := ddl.ValidateName("table", name); err != nil {
		return api.AddedTable{}, err
	}
	var desc *string
	if comment != "" {
		desc = &comment
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tables (oid, schema_oid, name, description) VALUES (?, ?, ?, ?)`,
		oid, schemaOID, name, nullString(desc)); err != nil {
		return api.AddedTable{}, mapConstraint(err, "table %q already exists", name)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO columns (table_oid, attnum, name, type, nullable, primary_key)
		VALUES (?, ?, ?, ?, 0, 1)`, oid, pkAttnum, pkName, pkType); err != nil {
		return api.AddedTable{}, fmt.Errorf("insert primary key column: %w", err)
	}
	if _, err := insertColumns(ctx, tx, oid, cols); err != nil {
		return api.AddedTable{}, err
	}
	return api.AddedTable{OID: oid, Name: name}, nil
}

// DeleteTable drops a table and returns its name.
func (s *Store) DeleteTable(ctx context.Context, databaseID, tableOID int64) (string, error) {
	var name string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTable(ctx, tx, databaseID, tableOID, false)
		if err != nil {
			return err
		}
		name = t.Name
		_, err = tx.ExecContext(ctx, `DELETE FROM tables WHERE oid = ?`, tableOID)
		return err
	})
	return name, err
}

// PatchTable renames a table or changes its description and returns the
// resulting name.
func (s *Store) PatchTable(ctx context.Context, databaseID, tableOID int64, data api.TablePatchData) (string, error) {
	if data.Name != nil {
		n, err := ddl.NormalizeName("table", *data.Name)
		if err != nil {
			return "", err
		}
		data.Name = &n
	}
	var name string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTable(ctx, tx, databaseID, tableOID, false)
		if err != nil {
			return err
		}
		name = t.Name
		if data.Name != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE tables SET name = ? WHERE oid = ?`, *data.Name, tableOID); err != nil {
				return mapConstraint(err, "table %q already exists", *data.Name)
			}
			name = *data.Name
		}
		if data.Description != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE tables SET description = ? WHERE oid = ?`, *data.Description, tableOID); err != nil {
				return fmt.Errorf("update table: %w", err)
			}
		}
		return nil
	})
	return name, err
}

// SetTableMetadata merges the set fields of md into the stored metadata.
func (s *Store) SetTableMetadata(ctx context.Context, databaseID, tableOID int64, md domain.TableMetadata) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := getTable(ctx, tx, databaseID, tableOID, true)
		if err != nil {
			return err
		}
		merged := mergeMetadata(*t.Metadata, md)
		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE tables SET metadata = ? WHERE oid = ?`, string(raw), tableOID)
		return err
	})
}

func mergeMetadata(base, patch domain.TableMetadata) domain.TableMetadata {
	if patch.DataFileID != nil {
		base.DataFileID = patch.DataFileID
	}
	if patch.ImportVerified != nil {
		base.ImportVerified = patch.ImportVerified
	}
	if patch.ColumnOrder != nil {
		base.ColumnOrder = append([]int(nil), patch.ColumnOrder...)
	}
	if patch.RecordSummaryTemplate != nil {
		base.RecordSummaryTemplate = patch.RecordSummaryTemplate
	}
	if patch.AddedPKeyAttnum != nil {
		base.AddedPKeyAttnum = patch.AddedPKeyAttnum
	}
	return base
}

// tableSchema returns the database and schema owning a table.
func tableSchema(ctx context.Context, q querier, tableOID int64) (databaseID, schemaOID int64, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT s.database_id, s.oid FROM tables t JOIN schemas s ON s.oid = t.schema_oid
		WHERE t.oid = ?`, tableOID).Scan(&databaseID, &schemaOID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, domain.ErrNotFound("table %d not found", tableOID)
	}
	return databaseID, schemaOID, err
}
