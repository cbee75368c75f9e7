// Package records holds the state of a single record page: the record's
// field values, summaries of the records its foreign keys point to, and
// the record's own summary.
package records

import (
	"context"
	"fmt"
	"strconv"

	"dbadmin/internal/domain"
	"dbadmin/pkg/store"
)

// fetchFallbackMessage is shown when a failed fetch carries no message.
const fetchFallbackMessage = "Error in fetching record"

// RecordStore holds one record identified by table and primary key.
type RecordStore struct {
	Table    domain.TableEntry
	RecordPK string

	// FetchStatus is nil until the first Fetch.
	FetchStatus *store.Writable[*domain.RequestStatus]
	// FieldValues is keyed by column id.
	FieldValues *store.WritableMap[int, any]
	Summaries   *store.Writable[Summaries]

	summary store.Readable[string]
	svc     domain.RecordsService
}

// New creates a RecordStore without fetching.
func New(svc domain.RecordsService, table domain.TableEntry, pk string) *RecordStore {
	rs := &RecordStore{
		Table:       table,
		RecordPK:    pk,
		FetchStatus: store.NewWritable[*domain.RequestStatus](nil),
		FieldValues: store.NewWritableMap[int, any](),
		Summaries:   store.NewWritable(Summaries{}),
		svc:         svc,
	}
	template := table.Settings.PreviewSettings.Template
	rs.summary = store.Derive2[map[int]any, Summaries, string](rs.FieldValues, rs.Summaries,
		func(fields map[int]any, fk Summaries) string {
			return RenderTransitiveSummary(template, fields, fk)
		})
	return rs
}

// Open creates a RecordStore and fetches the record. The store is returned
// even when the fetch fails; its FetchStatus holds the failure.
func Open(ctx context.Context, svc domain.RecordsService, table domain.TableEntry, pk string) (*RecordStore, error) {
	rs := New(svc, table, pk)
	return rs, rs.Fetch(ctx)
}

// Summary is the observable summary of the record, rendered from the
// table's template.
func (rs *RecordStore) Summary() store.Readable[string] { return rs.summary }

// Fetch loads the record and records the outcome in FetchStatus.
func (rs *RecordStore) Fetch(ctx context.Context) error {
	processing := domain.Processing()
	rs.FetchStatus.Set(&processing)

	resp, err := rs.svc.GetRecord(ctx, rs.Table.ID, rs.RecordPK)
	if err == nil {
		err = rs.apply(resp)
	}
	if err != nil {
		failed := domain.FailureFromError(err, fetchFallbackMessage)
		rs.FetchStatus.Set(&failed)
		return fmt.Errorf("fetch record %s of table %d: %w", rs.RecordPK, rs.Table.ID, err)
	}
	success := domain.Success()
	rs.FetchStatus.Set(&success)
	return nil
}

// Patch updates the record. Keys of payload are stringified column ids.
// FetchStatus is not touched.
func (rs *RecordStore) Patch(ctx context.Context, payload map[string]any) error {
	resp, err := rs.svc.PatchRecord(ctx, rs.Table.ID, rs.RecordPK, payload)
	if err != nil {
		return fmt.Errorf("patch record %s of table %d: %w", rs.RecordPK, rs.Table.ID, err)
	}
	return rs.apply(resp)
}

func (rs *RecordStore) apply(resp domain.RecordResponse) error {
	if len(resp.Results) == 0 {
		return domain.ErrNotFound("record %s not found", rs.RecordPK)
	}
	fields := make(map[int]any, len(resp.Results[0]))
	for k, raw := range resp.Results[0] {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("decode column %s: %w", k, err)
		}
		fields[id] = v
	}
	rs.FieldValues.Reconstruct(fields)
	if resp.PreviewData != nil {
		rs.Summaries.Set(BuildSummaries(resp.PreviewData))
	}
	return nil
}
