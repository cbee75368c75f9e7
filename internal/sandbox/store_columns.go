package sandbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dbadmin/internal/ddl"
	"dbadmin/internal/domain"
	"dbadmin/pkg/api"
)

type columnRow struct {
	domain.Column
	fkTable sql.NullInt64
}

func listColumns(ctx context.Context, q querier, tableOID int64) ([]columnRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT attnum, name, type, nullable, primary_key, description, fk_table_oid
		FROM columns WHERE table_oid = ? ORDER BY attnum`, tableOID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var out []columnRow
	for rows.Next() {
		var (
			c    columnRow
			desc sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Nullable, &c.PrimaryKey, &desc, &c.fkTable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Description = stringPtr(desc)
		if c.PrimaryKey {
			c.Default = &domain.ColumnDefault{Value: "identity", IsDynamic: true}
		}
		c.HasDependents = c.PrimaryKey
		out = append(out, c)
	}
	return out, rows.Err()
}

func plainColumns(rows []columnRow) []domain.Column {
	out := make([]domain.Column, len(rows))
	for i, r := range rows {
		out[i] = r.Column
	}
	return out
}

// ListColumns returns the columns of a table ordered by attnum.
func (s *Store) ListColumns(ctx context.Context, databaseID, tableOID int64) ([]domain.Column, error) {
	if _, err := getTable(ctx, s.read, databaseID, tableOID, false); err != nil {
		return nil, err
	}
	rows, err := listColumns(ctx, s.read, tableOID)
	if err != nil {
		return nil, err
	}
	return plainColumns(rows), nil
}

// ColumnsPage returns one page of a table's columns and the total count.
func (s *Store) ColumnsPage(ctx context.Context, tableOID int64, limit, offset int) ([]domain.Column, int, error) {
	if _, _, err := tableSchema(ctx, s.read, tableOID); err != nil {
		return nil, 0, err
	}
	rows, err := listColumns(ctx, s.read, tableOID)
	if err != nil {
		return nil, 0, err
	}
	cols := plainColumns(rows)
	total := len(cols)
	if offset > total {
		offset = total
	}
	cols = cols[offset:]
	if limit > 0 && limit < len(cols) {
		cols = cols[:limit]
	}
	return cols, total, nil
}

func insertColumns(ctx context.Context, tx *sql.Tx, tableOID int64, cols []domain.CreatableColumn) ([]int, error) {
	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attnum), 0) + 1 FROM columns WHERE table_oid = ?`, tableOID).Scan(&next); err != nil {
		return nil, fmt.Errorf("allocate attnum: %w", err)
	}

	attnums := make([]int, 0, len(cols))
	for _, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = fmt.Sprintf("Column %d", next)
		}
		if err := ddl.ValidateName("column", name); err != nil {
			return nil, err
		}
		typ := c.Type
		if typ == "" {
			typ = defaultTyp
		}
		if !knownType(typ) {
			return nil, domain.ErrValidation("unsupported column type %q", typ)
		}
		nullable := c.Nullable == nil || *c.Nullable
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO columns (table_oid, attnum, name, type, nullable, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			tableOID, next, name, typ, nullable, nullString(c.Description)); err != nil {
			return nil, mapConstraint(err, "column %q already exists", name)
		}
		attnums = append(attnums, next)
		next++
	}
	return attnums, nil
}

// AddColumns appends columns to a table and returns their attnums.
func (s *Store) AddColumns(ctx context.Context, databaseID, tableOID int64, cols []domain.CreatableColumn) ([]int, error) {
	var attnums []int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTable(ctx, tx, databaseID, tableOID, false); err != nil {
			return err
		}
		var err error
		attnums, err = insertColumns(ctx, tx, tableOID, cols)
		return err
	})
	return attnums, err
}

// PatchColumns alters existing columns. A type change recasts stored
// values and fails when any value cannot be cast.
func (s *Store) PatchColumns(ctx context.Context, databaseID, tableOID int64, specs []domain.ColumnPatchSpec) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTable(ctx, tx, databaseID, tableOID, false); err != nil {
			return err
		}
		cols, err := listColumns(ctx, tx, tableOID)
		if err != nil {
			return err
		}
		byID := make(map[int]columnRow, len(cols))
		for _, c := range cols {
			byID[c.ID] = c
		}

		for _, spec := range specs {
			col, ok := byID[spec.ID]
			if !ok {
				return domain.ErrNotFound("column %d not found", spec.ID)
			}
			if spec.Name != nil {
				name, err := ddl.NormalizeName("column", *spec.Name)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, `UPDATE columns SET name = ? WHERE table_oid = ? AND attnum = ?`,
					name, tableOID, spec.ID); err != nil {
					return mapConstraint(err, "column %q already exists", name)
				}
			}
			if spec.Description != nil {
				if _, err := tx.ExecContext(ctx, `UPDATE columns SET description = ? WHERE table_oid = ? AND attnum = ?`,
					*spec.Description, tableOID, spec.ID); err != nil {
					return fmt.Errorf("update column: %w", err)
				}
			}
			if spec.Nullable != nil {
				if col.PrimaryKey && *spec.Nullable {
					return domain.ErrValidation("primary key column %q cannot be nullable", col.Name)
				}
				if _, err := tx.ExecContext(ctx, `UPDATE columns SET nullable = ? WHERE table_oid = ? AND attnum = ?`,
					*spec.Nullable, tableOID, spec.ID); err != nil {
					return fmt.Errorf("update column: %w", err)
				}
			}
			if spec.Type != nil && *spec.Type != col.Type {
				if col.PrimaryKey {
					return domain.ErrValidation("cannot change the type of primary key column %q", col.Name)
				}
				if err := recastColumn(ctx, tx, tableOID, spec.ID, *spec.Type); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, `UPDATE columns SET type = ? WHERE table_oid = ? AND attnum = ?`,
					*spec.Type, tableOID, spec.ID); err != nil {
					return fmt.Errorf("update column: %w", err)
				}
			}
		}
		return nil
	})
}

func recastColumn(ctx context.Context, tx *sql.Tx, tableOID int64, attnum int, typ string) error {
	if !knownType(typ) {
		return domain.ErrValidation("unsupported column type %q", typ)
	}
	recs, err := loadRecords(ctx, tx, tableOID)
	if err != nil {
		return err
	}
	key := columnKey(attnum)
	for _, r := range recs {
		v, ok := r.data[key]
		if !ok {
			continue
		}
		cast, err := castValue(v, typ)
		if err != nil {
			return domain.ErrValidation("record %s: %v", r.pk, err)
		}
		r.data[key] = cast
		if err := saveRecord(ctx, tx, tableOID, r.pk, r.data); err != nil {
			return err
		}
	}
	return nil
}

// DeleteColumns drops columns and their stored values. The primary key
// column cannot be dropped.
func (s *Store) DeleteColumns(ctx context.Context, databaseID, tableOID int64, attnums []int) (int, error) {
	var deleted int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTable(ctx, tx, databaseID, tableOID, false); err != nil {
			return err
		}
		for _, attnum := range attnums {
			if attnum == pkAttnum {
				return domain.ErrValidation("cannot delete the primary key column")
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM columns WHERE table_oid = ? AND attnum = ?`, tableOID, attnum)
			if err != nil {
				return fmt.Errorf("delete column: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			deleted++
			if _, err := tx.ExecContext(ctx,
				`UPDATE records SET data = json_remove(data, ?) WHERE table_oid = ?`,
				fmt.Sprintf(`$."%d"`, attnum), tableOID); err != nil {
				return fmt.Errorf("strip column values: %w", err)
			}
		}
		return nil
	})
	return deleted, err
}

// AddForeignKeyColumn adds an integer column to referrer that references
// the primary key of referent.
func (s *Store) AddForeignKeyColumn(ctx context.Context, databaseID, referrerOID, referentOID int64, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTable(ctx, tx, databaseID, referrerOID, false); err != nil {
			return err
		}
		if _, err := getTable(ctx, tx, databaseID, referentOID, false); err != nil {
			return err
		}
		return addForeignKey(ctx, tx, referrerOID, referentOID, name)
	})
}

func addForeignKey(ctx context.Context, tx *sql.Tx, referrerOID, referentOID int64, name string) error {
	attnums, err := insertColumns(ctx, tx, referrerOID, []domain.CreatableColumn{{Name: name, Type: pkType}})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE columns SET fk_table_oid = ? WHERE table_oid = ? AND attnum = ?`,
		referentOID, referrerOID, attnums[0])
	return err
}

// AddMappingTable creates a table whose columns each reference another
// table, modelling a many-to-many relationship.
func (s *Store) AddMappingTable(ctx context.Context, databaseID, schemaOID int64, name string, cols []api.MappingColumn) error {
	if len(cols) == 0 {
		return domain.ErrValidation("a mapping table needs at least one column")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		added, err := createTable(ctx, tx, databaseID, schemaOID, name, "", nil)
		if err != nil {
			return err
		}
		for _, mc := range cols {
			if _, err := getTable(ctx, tx, databaseID, mc.ReferentTableOID, false); err != nil {
				return err
			}
			if err := addForeignKey(ctx, tx, added.OID, mc.ReferentTableOID, mc.ColumnName); err != nil {
				return err
			}
		}
		return nil
	})
}

// columnKey is the record payload key of a column.
func columnKey(attnum int) string { return strconv.Itoa(attnum) }

// decodeData decodes a stored record payload keeping numbers exact.
func decodeData(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
