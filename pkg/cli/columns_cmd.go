package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"dbadmin/internal/domain"
)

func newColumnsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Inspect and alter table columns",
	}

	cmd.AddCommand(newColumnsListCmd(a))
	cmd.AddCommand(newColumnsAddCmd(a))
	cmd.AddCommand(newColumnsSetTypeCmd(a))
	cmd.AddCommand(newColumnsDeleteCmd(a))
	return cmd
}

func printColumns(cmd *cobra.Command, cols []domain.Column) error {
	return render(cmd, cols, func(w io.Writer) {
		rows := make([][]string, len(cols))
		for i, c := range cols {
			pk := ""
			if c.PrimaryKey {
				pk = "yes"
			}
			rows[i] = []string{strconv.Itoa(c.ID), c.Name, c.Type, strconv.FormatBool(c.Nullable), pk, formatCell(c.Description)}
		}
		PrintTable(w, []string{"id", "name", "type", "nullable", "pk", "description"}, rows)
	})
}

func newColumnsListCmd(a *app) *cobra.Command {
	var viaREST bool

	cmd := &cobra.Command{
		Use:   "list <table-oid>",
		Short: "List the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			if viaREST {
				page, err := client.Columns.ListREST(cmd.Context(), oid)
				if err != nil {
					return err
				}
				return printColumns(cmd, page.Results)
			}
			cols, err := client.Columns.List(cmd.Context(), a.database, oid)
			if err != nil {
				return err
			}
			return printColumns(cmd, cols)
		},
	}
	cmd.Flags().BoolVar(&viaREST, "rest", false, "Use the paginated REST listing")
	return cmd
}

func newColumnsAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <table-oid> <name[:type]>...",
		Short: "Add columns to a table",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			specs := make([]domain.CreatableColumn, 0, len(args)-1)
			for _, arg := range args[1:] {
				col, err := parseColumnSpec(arg)
				if err != nil {
					return err
				}
				specs = append(specs, col)
			}
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := client.Columns.Add(cmd.Context(), a.database, oid, specs)
			if err != nil {
				return err
			}
			return render(cmd, ids, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Added columns %v to table %d\n", ids, oid)
			})
		},
	}
}

func newColumnsSetTypeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-type <table-oid> <column-id> <type>",
		Short: "Change a column's type, converting its values",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			id, err := strconv.Atoi(args[1])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid column id %q", args[1])
			}
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			typ := args[2]
			if err := client.Columns.Patch(cmd.Context(), a.database, oid, []domain.ColumnPatchSpec{{ID: id, Type: &typ}}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Column %d of table %d is now %s\n", id, oid, typ)
			return nil
		},
	}
}

func newColumnsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table-oid> <column-id>...",
		Short: "Delete columns from a table",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			ids := make([]int, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := strconv.Atoi(arg)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid column id %q", arg)
				}
				ids = append(ids, id)
			}
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			n, err := client.Columns.Delete(cmd.Context(), a.database, oid, ids)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d columns from table %d\n", n, oid)
			return nil
		},
	}
}
