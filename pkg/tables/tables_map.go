package tables

import (
	"cmp"
	"slices"
	"strings"

	"dbadmin/internal/domain"
)

// TablesMap is an immutable map of tables keyed by OID that iterates in
// name order. Methods that change it return a new value.
type TablesMap struct {
	order []int64
	byOID map[int64]domain.Table
}

// NewTablesMap builds a TablesMap from tables in any order. Later entries
// win when OIDs repeat.
func NewTablesMap(tables []domain.Table) TablesMap {
	byOID := make(map[int64]domain.Table, len(tables))
	for _, t := range tables {
		byOID[t.OID] = t
	}
	return fromMap(byOID)
}

func fromMap(byOID map[int64]domain.Table) TablesMap {
	sorted := make([]domain.Table, 0, len(byOID))
	for _, t := range byOID {
		sorted = append(sorted, t)
	}
	sorted = SortTables(sorted)
	order := make([]int64, len(sorted))
	for i, t := range sorted {
		order[i] = t.OID
	}
	return TablesMap{order: order, byOID: byOID}
}

// Len returns the number of tables.
func (m TablesMap) Len() int { return len(m.order) }

// Get returns the table with the given OID.
func (m TablesMap) Get(oid int64) (domain.Table, bool) {
	t, ok := m.byOID[oid]
	return t, ok
}

// Has reports whether oid is present.
func (m TablesMap) Has(oid int64) bool {
	_, ok := m.byOID[oid]
	return ok
}

// Values returns the tables sorted by name.
func (m TablesMap) Values() []domain.Table {
	out := make([]domain.Table, len(m.order))
	for i, oid := range m.order {
		out[i] = m.byOID[oid]
	}
	return out
}

// OIDs returns the table OIDs in name order.
func (m TablesMap) OIDs() []int64 { return slices.Clone(m.order) }

// With returns a copy of m containing t, replacing any table with the same
// OID.
func (m TablesMap) With(t domain.Table) TablesMap {
	next := make(map[int64]domain.Table, len(m.byOID)+1)
	for k, v := range m.byOID {
		next[k] = v
	}
	next[t.OID] = t
	return fromMap(next)
}

// Without returns a copy of m without oid.
func (m TablesMap) Without(oid int64) TablesMap {
	if !m.Has(oid) {
		return m
	}
	next := make(map[int64]domain.Table, len(m.byOID))
	for k, v := range m.byOID {
		if k != oid {
			next[k] = v
		}
	}
	order := slices.DeleteFunc(slices.Clone(m.order), func(o int64) bool { return o == oid })
	return TablesMap{order: order, byOID: next}
}

// Filter returns the tables for which keep returns true.
func (m TablesMap) Filter(keep func(domain.Table) bool) TablesMap {
	next := make(map[int64]domain.Table)
	order := make([]int64, 0, len(m.order))
	for _, oid := range m.order {
		if t := m.byOID[oid]; keep(t) {
			next[oid] = t
			order = append(order, oid)
		}
	}
	return TablesMap{order: order, byOID: next}
}

// SortTables returns a copy of tables ordered by name, case-insensitively,
// with OID as the tie breaker.
func SortTables(tables []domain.Table) []domain.Table {
	out := slices.Clone(tables)
	slices.SortStableFunc(out, func(a, b domain.Table) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.OID, b.OID)
	})
	return out
}

// MergeTables applies patch on top of t. Nil patch fields keep the
// existing value; metadata is merged field by field.
func MergeTables(t domain.Table, patch domain.TablePatch) domain.Table {
	out := t
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Description != nil {
		d := *patch.Description
		out.Description = &d
	}
	if patch.Metadata != nil {
		out.Metadata = mergeMetadata(t.Metadata, patch.Metadata)
	}
	return out
}

func mergeMetadata(old, patch *domain.TableMetadata) *domain.TableMetadata {
	var out domain.TableMetadata
	if old != nil {
		out = *old
	}
	if patch.DataFileID != nil {
		out.DataFileID = patch.DataFileID
	}
	if patch.ImportVerified != nil {
		out.ImportVerified = patch.ImportVerified
	}
	if patch.ColumnOrder != nil {
		out.ColumnOrder = slices.Clone(patch.ColumnOrder)
	}
	if patch.RecordSummaryTemplate != nil {
		out.RecordSummaryTemplate = patch.RecordSummaryTemplate
	}
	if patch.AddedPKeyAttnum != nil {
		out.AddedPKeyAttnum = patch.AddedPKeyAttnum
	}
	return &out
}

// RequiresImportConfirmation reports whether t was imported from a data
// file and the import has not been confirmed yet.
func RequiresImportConfirmation(t domain.Table) bool {
	return t.Metadata != nil && t.Metadata.ImportVerified != nil && !*t.Metadata.ImportVerified
}
