package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dbadmin/internal/domain"
	"dbadmin/pkg/records"
)

func newRecordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Read and edit single records",
	}

	cmd.AddCommand(newRecordsGetCmd(a))
	cmd.AddCommand(newRecordsPatchCmd(a))
	cmd.AddCommand(newRecordsCreateCmd(a))
	return cmd
}

// recordView is the printed form of a record page.
type recordView struct {
	Table   int64          `json:"table"`
	PK      string         `json:"pk"`
	Summary string         `json:"summary"`
	Fields  map[string]any `json:"fields"`
}

func viewOf(rs *records.RecordStore) recordView {
	fields := rs.FieldValues.Snapshot()
	out := make(map[string]any, len(fields))
	fk := rs.Summaries.Get()
	for id, v := range fields {
		if s, ok := fk.Lookup(id, v); ok {
			v = fmt.Sprintf("%s (%s)", records.Stringify(v), s)
		}
		out[strconv.Itoa(id)] = v
	}
	return recordView{Table: rs.Table.ID, PK: rs.RecordPK, Summary: rs.Summary().Get(), Fields: out}
}

func printRecord(cmd *cobra.Command, rs *records.RecordStore) error {
	view := viewOf(rs)
	return render(cmd, view, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "%s #%s: %s\n", rs.Table.Name, view.PK, view.Summary)
		ids := slices.SortedFunc(maps.Keys(view.Fields), func(x, y string) int {
			xi, _ := strconv.Atoi(x)
			yi, _ := strconv.Atoi(y)
			return xi - yi
		})
		rows := make([][]string, len(ids))
		for i, id := range ids {
			rows[i] = []string{id, formatCell(view.Fields[id])}
		}
		PrintTable(w, []string{"column", "value"}, rows)
	})
}

// parseAssignments parses column=value pairs. Values that parse as JSON
// keep their JSON type; anything else is text.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q: expected column=value", arg)
		}
		if _, err := strconv.Atoi(k); err != nil {
			return nil, fmt.Errorf("invalid assignment %q: column must be a numeric id", arg)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// openRecord loads the table entry and the record.
func (a *app) openRecord(cmd *cobra.Command, tableArg, pk string) (*records.RecordStore, error) {
	oid, err := domain.ParseOID(tableArg)
	if err != nil {
		return nil, err
	}
	client, err := a.api(cmd.Context())
	if err != nil {
		return nil, err
	}
	entry, err := client.Tables.Entry(cmd.Context(), oid)
	if err != nil {
		return nil, err
	}
	return records.Open(cmd.Context(), client, entry, pk)
}

func newRecordsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table-oid> <pk>",
		Short: "Show a record with its summary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showRecord(cmd, args[0], args[1])
		},
	}
}

func newRecordsPatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "patch <table-oid> <pk> <column=value>...",
		Short:   "Change fields of a record",
		Example: `  dba records patch 2201 1 2=Ursula 3=null`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := client.Tables.Entry(cmd.Context(), oid)
			if err != nil {
				return err
			}
			rs := records.New(client, entry, args[1])
			if err := rs.Patch(cmd.Context(), values); err != nil {
				return err
			}
			return printRecord(cmd, rs)
		},
	}
}

func newRecordsCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <table-oid> <column=value>...",
		Short: "Insert a record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			oid, err := domain.ParseOID(args[0])
			if err != nil {
				return err
			}
			client, err := a.api(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := client.Records.Create(cmd.Context(), oid, values)
			if err != nil {
				return err
			}
			if len(resp.Results) == 0 {
				return fmt.Errorf("create record in table %d: empty response", oid)
			}
			pk := records.Stringify(decodeRaw(resp.Results[0]["1"]))
			return a.showRecord(cmd, args[0], pk)
		},
	}
}

func (a *app) showRecord(cmd *cobra.Command, tableArg, pk string) error {
	rs, err := a.openRecord(cmd, tableArg, pk)
	if err != nil {
		return err
	}
	return printRecord(cmd, rs)
}

func decodeRaw(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
