package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dbadmin/internal/domain"
	"dbadmin/pkg/api"
	"dbadmin/pkg/tables"
)

func newTablesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List, create, import and manage tables",
	}

	cmd.AddCommand(newTablesListCmd(a))
	cmd.AddCommand(newTablesGetCmd(a))
	cmd.AddCommand(newTablesCreateCmd(a))
	cmd.AddCommand(newTablesImportCmd(a))
	cmd.AddCommand(newTablesRenameCmd(a))
	cmd.AddCommand(newTablesDeleteCmd(a))
	cmd.AddCommand(newTablesWatchCmd(a))
	return cmd
}

// tablesRegistry returns a registry backed by the API client. Callers
// must Close it.
func (a *app) tablesRegistry(cmd *cobra.Command) (*tables.Registry, *api.Client, error) {
	client, err := a.api(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return tables.New(client, tables.WithLogger(a.logger)), client, nil
}

// loadSchema fills the registry's store for a schema and returns it.
func loadSchema(reg *tables.Registry, key domain.TablesKey) (tables.TablesData, error) {
	st := reg.Store(key.DatabaseID, key.SchemaOID)
	reg.Wait()
	data := st.Get()
	if data.RequestStatus.IsFailure() {
		return data, fmt.Errorf("list tables of schema %d: %s", key.SchemaOID, strings.Join(data.RequestStatus.Errors, "; "))
	}
	return data, nil
}

func (a *app) schemaKey(schema int64) (domain.TablesKey, error) {
	if schema <= 0 {
		return domain.TablesKey{}, errors.New("--schema is required")
	}
	return domain.TablesKey{DatabaseID: a.database, SchemaOID: schema}, nil
}

func importState(t domain.Table) string {
	if tables.RequiresImportConfirmation(t) {
		return "pending"
	}
	return ""
}

func printTables(cmd *cobra.Command, list []domain.Table) error {
	return render(cmd, list, func(w io.Writer) {
		rows := make([][]string, len(list))
		for i, t := range list {
			rows[i] = []string{strconv.FormatInt(t.OID, 10), t.Name, formatCell(t.Description), importState(t)}
		}
		PrintTable(w, []string{"oid", "name", "description", "import"}, rows)
	})
}

func newTablesListCmd(a *app) *cobra.Command {
	var (
		schema       int64
		verifiedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tables of a schema sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := a.schemaKey(schema)
			if err != nil {
				return err
			}
			reg, _, err := a.tablesRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			data, err := loadSchema(reg, key)
			if err != nil {
				return err
			}
			list := data.Tables.Values()
			if verifiedOnly {
				list = slices.DeleteFunc(list, tables.RequiresImportConfirmation)
			}
			return printTables(cmd, list)
		},
	}
	cmd.Flags().Int64VarP(&schema, "schema", "s", 0, "Schema oid (required)")
	cmd.Flags().BoolVar(&verifiedOnly, "verified-only", false, "Hide tables awaiting import confirmation")
	return cmd
}

func newTablesGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <oid>",
		Short: "Show a table and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			reg, _, err := a.tablesRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			t, err := reg.GetTableFromStoreOrAPI(cmd.Context(), a.database, oid)
			if err != nil {
				return err
			}
			return render(cmd, t, func(w io.Writer) {
				fields := map[string]any{
					"oid":         t.OID,
					"name":        t.Name,
					"schema":      t.Schema,
					"description": t.Description,
				}
				if md := t.Metadata; md != nil {
					if md.RecordSummaryTemplate != nil {
						fields["summary_template"] = *md.RecordSummaryTemplate
					}
					if md.DataFileID != nil {
						fields["data_file"] = *md.DataFileID
					}
					fields["import"] = importState(t)
				}
				PrintDetail(w, fields)
			})
		},
	}
}

// parseColumnSpec parses "name" or "name:type".
func parseColumnSpec(spec string) (domain.CreatableColumn, error) {
	name, typ, _ := strings.Cut(spec, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.CreatableColumn{}, fmt.Errorf("invalid column %q: name is empty", spec)
	}
	return domain.CreatableColumn{Name: name, Type: strings.TrimSpace(typ)}, nil
}

func newTablesCreateCmd(a *app) *cobra.Command {
	var (
		schema  int64
		name    string
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a table",
		Long:  "Create a table. Without --name or --column the server picks a default name and columns.",
		Example: `  dba tables create -s 2200
  dba tables create -s 2200 --name authors --column first --column born:integer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := a.schemaKey(schema)
			if err != nil {
				return err
			}
			reg, client, err := a.tablesRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			if name == "" && len(columns) == 0 {
				created, err := reg.CreateTable(cmd.Context(), key)
				if err != nil {
					return err
				}
				return printTables(cmd, []domain.Table{created})
			}

			params := api.AddTableParams{TableName: name}
			for _, spec := range columns {
				col, err := parseColumnSpec(spec)
				if err != nil {
					return err
				}
				params.Columns = append(params.Columns, col)
			}
			added, err := client.Tables.Add(cmd.Context(), key.DatabaseID, key.SchemaOID, params)
			if err != nil {
				return err
			}
			return printTables(cmd, []domain.Table{{OID: added.OID, Name: added.Name, Schema: key.SchemaOID}})
		},
	}
	cmd.Flags().Int64VarP(&schema, "schema", "s", 0, "Schema oid (required)")
	cmd.Flags().StringVar(&name, "name", "", "Table name")
	cmd.Flags().StringArrayVar(&columns, "column", nil, "Column as name or name:type (repeatable)")
	return cmd
}

// parseDelimiter accepts a single character or the word "tab".
func parseDelimiter(s string) (string, error) {
	switch {
	case s == "":
		return "", nil
	case strings.EqualFold(s, "tab"), s == `\t`:
		return "\t", nil
	case len([]rune(s)) == 1:
		return s, nil
	default:
		return "", fmt.Errorf("invalid delimiter %q: use a single character or 'tab'", s)
	}
}

func newTablesImportCmd(a *app) *cobra.Command {
	var (
		schema       int64
		name         string
		delimiter    string
		noHeader     bool
		suggestTypes bool
		verify       bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upload a CSV or TSV file and import it as a new table",
		Example: `  dba tables import -s 2200 players.csv --suggest-types --verify
  dba tables import -s 2200 data.tsv --delimiter tab --no-header`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.schemaKey(schema)
			if err != nil {
				return err
			}
			delim, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read data file: %w", err)
			}
			base := filepath.Base(args[0])
			if name == "" {
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}

			reg, client, err := a.tablesRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()
			// The import updates the new table inside its schema's store.
			if _, err := loadSchema(reg, key); err != nil {
				return err
			}

			upload := api.DataFileUpload{Name: base, Paste: string(content), Delimiter: delim}
			if noHeader {
				header := false
				upload.Header = &header
			}
			df, err := client.DataFiles.Create(cmd.Context(), upload)
			if err != nil {
				return fmt.Errorf("upload data file: %w", err)
			}
			created, err := reg.CreateTableFromDataFile(cmd.Context(), key, df.ID, name)
			if err != nil {
				return err
			}

			var specs []domain.ColumnPatchSpec
			if suggestTypes {
				suggested, err := client.DataModeling.SuggestTypes(cmd.Context(), key.DatabaseID, created.OID)
				if err != nil {
					return err
				}
				specs = typeChanges(suggested)
			}
			if len(specs) > 0 || verify {
				patch := domain.TablePatch{OID: created.OID}
				if verify {
					verified := true
					patch.Metadata = &domain.TableMetadata{ImportVerified: &verified}
				}
				if created, err = reg.UpdateTable(cmd.Context(), key.DatabaseID, patch, specs, nil); err != nil {
					return err
				}
			}
			return printTables(cmd, []domain.Table{created})
		},
	}
	cmd.Flags().Int64VarP(&schema, "schema", "s", 0, "Schema oid (required)")
	cmd.Flags().StringVar(&name, "name", "", "Table name (default: file name without extension)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "Field delimiter (default ',')")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "The first row holds data, not column names")
	cmd.Flags().BoolVar(&suggestTypes, "suggest-types", false, "Apply the column types suggested by the server")
	cmd.Flags().BoolVar(&verify, "verify", false, "Mark the import as confirmed")
	return cmd
}

// typeChanges turns suggested types into column alterations, skipping
// columns that stay text. Specs are ordered by column id.
func typeChanges(suggested map[string]string) []domain.ColumnPatchSpec {
	specs := make([]domain.ColumnPatchSpec, 0, len(suggested))
	for k, typ := range suggested {
		id, err := strconv.Atoi(k)
		if err != nil || typ == "" || typ == "text" {
			continue
		}
		specs = append(specs, domain.ColumnPatchSpec{ID: id, Type: &typ})
	}
	slices.SortFunc(specs, func(x, y domain.ColumnPatchSpec) int { return x.ID - y.ID })
	return specs
}

func newTablesRenameCmd(a *app) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "rename <oid> <new-name>",
		Short: "Rename a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			reg, client, err := a.tablesRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			t, err := client.Tables.Get(cmd.Context(), a.database, oid)
			if err != nil {
				return err
			}
			if _, err := loadSchema(reg, domain.TablesKey{DatabaseID: a.database, SchemaOID: t.Schema}); err != nil {
				return err
			}
			validate, err := reg.NameValidator(a.database, t)
			if err != nil {
				return err
			}
			if msgs := validate(args[1]); len(msgs) > 0 {
				return fmt.Errorf("cannot rename table %d: %s", oid, strings.Join(msgs, "; "))
			}

			patch := domain.TablePatch{OID: oid, Name: &args[1]}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			updated, err := reg.UpdateTable(cmd.Context(), a.database, patch, nil, nil)
			if err != nil {
				return err
			}
			return printTables(cmd, []domain.Table{updated})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "New table description")
	return cmd
}

func newTablesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <oid>",
		Short: "Delete a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			reg, client, err := a.tablesRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			t, err := client.Tables.Get(cmd.Context(), a.database, oid)
			if err != nil {
				return err
			}
			key := domain.TablesKey{DatabaseID: a.database, SchemaOID: t.Schema}
			if err := reg.DeleteTable(cmd.Context(), key, oid); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted table %q (%d)\n", t.Name, oid)
			return nil
		},
	}
}
