package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"dbadmin/pkg/tables"
)

// tableChange is one difference between two listings of a schema.
type tableChange struct {
	Kind    string `json:"kind"` // added, removed or renamed
	OID     int64  `json:"oid"`
	Name    string `json:"name"`
	OldName string `json:"old_name,omitempty"`
}

func (c tableChange) String() string {
	switch c.Kind {
	case "renamed":
		return fmt.Sprintf("renamed  %d  %s -> %s", c.OID, c.OldName, c.Name)
	default:
		return fmt.Sprintf("%-7s  %d  %s", c.Kind, c.OID, c.Name)
	}
}

// diffTables lists the changes from prev to next ordered by oid.
func diffTables(prev, next tables.TablesMap) []tableChange {
	var changes []tableChange
	for _, t := range next.Values() {
		old, ok := prev.Get(t.OID)
		switch {
		case !ok:
			changes = append(changes, tableChange{Kind: "added", OID: t.OID, Name: t.Name})
		case old.Name != t.Name:
			changes = append(changes, tableChange{Kind: "renamed", OID: t.OID, Name: t.Name, OldName: old.Name})
		}
	}
	for _, t := range prev.Values() {
		if !next.Has(t.OID) {
			changes = append(changes, tableChange{Kind: "removed", OID: t.OID, Name: t.Name})
		}
	}
	slices.SortFunc(changes, func(x, y tableChange) int {
		switch {
		case x.OID < y.OID:
			return -1
		case x.OID > y.OID:
			return 1
		}
		return 0
	})
	return changes
}

// tableWatcher prints the changes between successive successful listings.
type tableWatcher struct {
	mu     sync.Mutex
	w      io.Writer
	json   bool
	primed bool
	prev   tables.TablesMap
}

func (tw *tableWatcher) observe(data tables.TablesData) {
	if !data.RequestStatus.IsSuccess() {
		return
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !tw.primed {
		tw.primed = true
		tw.prev = data.Tables
		if !tw.json {
			_, _ = fmt.Fprintf(tw.w, "watching %d tables\n", data.Tables.Len())
		}
		return
	}
	changes := diffTables(tw.prev, data.Tables)
	tw.prev = data.Tables
	for _, c := range changes {
		if tw.json {
			_ = PrintJSON(tw.w, c)
			continue
		}
		_, _ = fmt.Fprintf(tw.w, "%s  %s\n", time.Now().Format(time.TimeOnly), c)
	}
}

func newTablesWatchCmd(a *app) *cobra.Command {
	var (
		schema   int64
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a schema on a schedule and print table changes",
		Long: `Poll a schema and print tables that were added, removed or renamed.
The schedule is a cron expression or a descriptor such as "@every 30s".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := a.schemaKey(schema)
			if err != nil {
				return err
			}
			if _, err := cron.ParseStandard(schedule); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
			reg, _, err := a.tablesRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			ctx := cmd.Context()
			watcher := &tableWatcher{w: cmd.OutOrStdout(), json: getOutputFormat(cmd) == "json"}
			unsubscribe := reg.Store(key.DatabaseID, key.SchemaOID).Subscribe(watcher.observe)
			defer unsubscribe()

			c := cron.New()
			_, err = c.AddFunc(schedule, func() {
				if _, err := reg.Refetch(ctx, key.DatabaseID, key.SchemaOID); err != nil && !errors.Is(err, tables.ErrSuperseded) {
					a.logger.Warn("refetch tables", "schema", key.SchemaOID, "error", err)
				}
			})
			if err != nil {
				return fmt.Errorf("schedule refetch: %w", err)
			}
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().Int64VarP(&schema, "schema", "s", 0, "Schema oid (required)")
	cmd.Flags().StringVar(&schedule, "schedule", "@every 30s", "Polling schedule")
	return cmd
}
