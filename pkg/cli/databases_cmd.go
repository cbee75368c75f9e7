package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func newDatabasesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "databases",
		Aliases: []string{"db"},
		Short:   "Inspect the databases registered with the server",
	}

	var serverID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			var filter *int64
			if cmd.Flags().Changed("server") {
				filter = &serverID
			}
			dbs, err := client.Databases.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return render(cmd, dbs, func(w io.Writer) {
				rows := make([][]string, len(dbs))
				for i, d := range dbs {
					rows[i] = []string{strconv.FormatInt(d.ID, 10), d.Name, strconv.FormatInt(d.ServerID, 10)}
				}
				PrintTable(w, []string{"id", "name", "server"}, rows)
			})
		},
	}
	list.Flags().Int64Var(&serverID, "server", 0, "Only databases on this server")

	cmd.AddCommand(list)
	return cmd
}
