package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandEntry describes one leaf command of the dba tree.
type commandEntry struct {
	Path    string      `json:"path"`
	Group   string      `json:"group"`
	Short   string      `json:"short"`
	Args    string      `json:"args,omitempty"`
	Aliases []string    `json:"aliases,omitempty"`
	Flags   []flagEntry `json:"flags,omitempty"`
}

type flagEntry struct {
	Name     string `json:"name"`
	Short    string `json:"shorthand,omitempty"`
	Type     string `json:"type"`
	Default  string `json:"default,omitempty"`
	Usage    string `json:"usage,omitempty"`
	Required bool   `json:"required,omitempty"`
}

func newCommandsCmd() *cobra.Command {
	var filter, group string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List every dba command with its arguments and flags",
		Long:  "Walks the command tree without contacting the server.",
		Example: `  dba commands --group tables
  dba commands --filter import -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := filterCommands(walkCommands(cmd.Root(), ""), group, filter)
			return render(cmd, entries, func(w io.Writer) {
				rows := make([][]string, len(entries))
				for i, e := range entries {
					rows[i] = []string{e.Path, e.Args, e.Short}
				}
				PrintTable(w, []string{"command", "args", "description"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Case-insensitive substring of the command path or description")
	cmd.Flags().StringVar(&group, "group", "", "Only commands under this top-level group (e.g. tables)")
	return cmd
}

func filterCommands(entries []commandEntry, group, filter string) []commandEntry {
	filter = strings.ToLower(filter)
	out := make([]commandEntry, 0, len(entries))
	for _, e := range entries {
		if group != "" && e.Group != group {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(e.Path+" "+e.Short), filter) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// walkCommands collects the leaf commands below cmd in declaration order.
func walkCommands(cmd *cobra.Command, parent string) []commandEntry {
	var entries []commandEntry
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" {
			continue
		}
		path := strings.TrimSpace(parent + " " + child.Name())
		if child.HasSubCommands() {
			entries = append(entries, walkCommands(child, path)...)
			continue
		}
		group, _, _ := strings.Cut(path, " ")
		_, args, _ := strings.Cut(child.Use, " ")
		entries = append(entries, commandEntry{
			Path:    path,
			Group:   group,
			Short:   child.Short,
			Args:    args,
			Aliases: child.Aliases,
			Flags:   collectFlags(child.LocalFlags()),
		})
	}
	return entries
}

func collectFlags(fs *pflag.FlagSet) []flagEntry {
	var flags []flagEntry
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		e := flagEntry{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		}
		if ann := f.Annotations[cobra.BashCompOneRequiredFlag]; len(ann) > 0 && ann[0] == "true" {
			e.Required = true
		}
		flags = append(flags, e)
	})
	return flags
}
