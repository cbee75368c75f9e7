package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"dbadmin/internal/domain"
	"dbadmin/pkg/schemas"
)

func newSchemasCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List and manage schemas of the selected database",
	}

	cmd.AddCommand(newSchemasListCmd(a))
	cmd.AddCommand(newSchemasCreateCmd(a))
	cmd.AddCommand(newSchemasRenameCmd(a))
	cmd.AddCommand(newSchemasDeleteCmd(a))
	return cmd
}

// schemaCache returns a schema cache backed by the API client.
func (a *app) schemaCache(cmd *cobra.Command) (*schemas.Cache, error) {
	client, err := a.api(cmd.Context())
	if err != nil {
		return nil, err
	}
	return schemas.New(client, schemas.WithLogger(a.logger)), nil
}

func printSchemas(cmd *cobra.Command, list []domain.Schema) error {
	return render(cmd, list, func(w io.Writer) {
		rows := make([][]string, len(list))
		for i, s := range list {
			rows[i] = []string{strconv.FormatInt(s.OID, 10), s.Name, strconv.Itoa(s.TableCount), formatCell(s.Description)}
		}
		PrintTable(w, []string{"oid", "name", "tables", "description"}, rows)
	})
}

func newSchemasListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schemas sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := a.schemaCache(cmd)
			if err != nil {
				return err
			}
			data, err := cache.Refetch(cmd.Context(), a.database)
			if err != nil {
				return err
			}
			return printSchemas(cmd, data.Schemas)
		},
	}
}

func newSchemasCreateCmd(a *app) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.schemaCache(cmd)
			if err != nil {
				return err
			}
			var desc *string
			if cmd.Flags().Changed("description") {
				desc = &description
			}
			created, err := cache.Add(cmd.Context(), a.database, args[0], desc)
			if err != nil {
				return err
			}
			return printSchemas(cmd, []domain.Schema{created})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Schema description")
	return cmd
}

func newSchemasRenameCmd(a *app) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "rename <oid> <new-name>",
		Short: "Rename a schema or change its description",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			patch := domain.SchemaPatch{Name: &args[1]}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			cache, err := a.schemaCache(cmd)
			if err != nil {
				return err
			}
			if err := cache.Patch(cmd.Context(), a.database, oid, patch); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Renamed schema %d to %q\n", oid, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "New schema description")
	return cmd
}

func newSchemasDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <oid>",
		Short: "Delete a schema and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			cache, err := a.schemaCache(cmd)
			if err != nil {
				return err
			}
			if err := cache.Delete(cmd.Context(), a.database, oid); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted schema %d\n", oid)
			return nil
		},
	}
}
