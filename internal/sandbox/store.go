package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"dbadmin/internal/ddl"
	"dbadmin/internal/domain"
)

// Store persists the sandbox catalog (databases, schemas, tables, columns)
// and table records in SQLite. Writes go through a single-connection pool.
type Store struct {
	write *sql.DB
	read  *sql.DB
}

// NewStore wraps a migrated write/read pool pair.
func NewStore(writeDB, readDB *sql.DB) *Store {
	if readDB == nil {
		readDB = writeDB
	}
	return &Store{write: writeDB, read: readDB}
}

// inTx runs fn in a write transaction and commits when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// nextOID allocates an oid shared by schemas and tables, mirroring the
// single oid space of a Postgres catalog.
func nextOID(ctx context.Context, tx *sql.Tx) (int64, error) {
	var oid int64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(oid), 0) + 1 FROM (
			SELECT oid FROM schemas UNION ALL SELECT oid FROM tables
		)`).Scan(&oid)
	if err != nil {
		return 0, fmt.Errorf("allocate oid: %w", err)
	}
	return oid, nil
}

// mapConstraint turns SQLite unique violations into conflict errors.
func mapConstraint(err error, format string, args ...any) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return domain.ErrConflict(format, args...)
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// === Databases ===

// ListDatabases returns the registered databases, optionally filtered by
// server.
func (s *Store) ListDatabases(ctx context.Context, serverID *int64) ([]domain.Database, error) {
	q := `SELECT id, name, server_id FROM databases`
	var args []any
	if serverID != nil {
		q += ` WHERE server_id = ?`
		args = append(args, *serverID)
	}
	rows, err := s.read.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	out := []domain.Database{}
	for rows.Next() {
		var d domain.Database
		if err := rows.Scan(&d.ID, &d.Name, &d.ServerID); err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListServers returns the known servers.
func (s *Store) ListServers(ctx context.Context) ([]domain.Server, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT id, host, port FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	out := []domain.Server{}
	for rows.Next() {
		var sv domain.Server
		if err := rows.Scan(&sv.ID, &sv.Host, &sv.Port); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func checkDatabase(ctx context.Context, q querier, databaseID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM databases WHERE id = ?`, databaseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("database %d not found", databaseID)
	}
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// === Schemas ===

// ListSchemas returns the schemas of a database with their table counts.
func (s *Store) ListSchemas(ctx context.Context, databaseID int64) ([]domain.Schema, error) {
	if err := checkDatabase(ctx, s.read, databaseID); err != nil {
		return nil, err
	}
	rows, err := s.read.QueryContext(ctx, `
		SELECT s.oid, s.name, s.description,
		       (SELECT COUNT(*) FROM tables t WHERE t.schema_oid = s.oid)
		FROM schemas s
		WHERE s.database_id = ?
		ORDER BY s.oid`, databaseID)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	out := []domain.Schema{}
	for rows.Next() {
		var (
			sc   domain.Schema
			desc sql.NullString
		)
		if err := rows.Scan(&sc.OID, &sc.Name, &desc, &sc.TableCount); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		sc.Description = stringPtr(desc)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// AddSchema creates a schema and returns its oid.
func (s *Store) AddSchema(ctx context.Context, databaseID int64, name string, description *string) (int64, error) {
	name, err := ddl.NormalizeName("schema", name)
	if err != nil {
		return 0, err
	}
	var oid int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkDatabase(ctx, tx, databaseID); err != nil {
			return err
		}
		var err error
		if oid, err = nextOID(ctx, tx); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schemas (oid, database_id, name, description) VALUES (?, ?, ?, ?)`,
			oid, databaseID, name, nullString(description))
		return mapConstraint(err, "schema %q already exists", name)
	})
	return oid, err
}

// DeleteSchema drops a schema together with its tables.
func (s *Store) DeleteSchema(ctx context.Context, databaseID, schemaOID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM schemas WHERE oid = ? AND database_id = ?`, schemaOID, databaseID)
		if err != nil {
			return fmt.Errorf("delete schema: %w", err)
		}
		return requireAffected(res, "schema %d not found", schemaOID)
	})
}

// PatchSchema renames a schema or changes its description.
func (s *Store) PatchSchema(ctx context.Context, databaseID, schemaOID int64, patch domain.SchemaPatch) error {
	if patch.Name != nil {
		name, err := ddl.NormalizeName("schema", *patch.Name)
		if err != nil {
			return err
		}
		patch.Name = &name
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkSchema(ctx, tx, databaseID, schemaOID); err != nil {
			return err
		}
		if patch.Name != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE schemas SET name = ? WHERE oid = ?`, *patch.Name, schemaOID); err != nil {
				return mapConstraint(err, "schema %q already exists", *patch.Name)
			}
		}
		if patch.Description != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE schemas SET description = ? WHERE oid = ?`, *patch.Description, schemaOID); err != nil {
				return fmt.Errorf("update schema: %w", err)
			}
		}
		return nil
	})
}

func checkSchema(ctx context.Context, q querier, databaseID, schemaOID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM schemas WHERE oid = ? AND database_id = ?`, schemaOID, databaseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("schema %d not found", schemaOID)
	}
	return err
}

func requireAffected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound(format, args...)
	}
	return nil
}
