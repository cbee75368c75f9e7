package tables

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbadmin/internal/domain"
	"dbadmin/internal/testutil"
)

func TestSelection_EmptyUntilSelected(t *testing.T) {
	r := New(&testutil.MockTablesService{})
	defer r.Close()
	sel := r.NewSelection()

	assert.Equal(t, EmptyTablesData(), sel.TablesData())
	assert.Empty(t, sel.Tables())
	_, ok := sel.Table()
	assert.False(t, ok)
	require.NoError(t, sel.RefetchCurrent(t.Context()))
}

func TestSelection_FollowsSelectedSchema(t *testing.T) {
	svc := &testutil.MockTablesService{
		ListTablesWithMetadataFn: func(_ context.Context, _, schema int64) ([]domain.Table, error) {
			return []domain.Table{{OID: 30, Name: "zebra", Schema: schema}, {OID: 31, Name: "ant", Schema: schema}}, nil
		},
	}
	r := newPreloaded(t, svc)
	sel := r.NewSelection()

	var seen []int
	unsub := sel.Data().Subscribe(func(d TablesData) { seen = append(seen, d.Tables.Len()) })
	defer unsub()

	sel.Select(1, 2200)
	assert.Equal(t, []string{"customers", "orders"}, names(sel.TablesMap()))

	sel.Select(1, 2201)
	r.Wait()
	assert.Equal(t, []string{"ant", "zebra"}, names(sel.TablesMap()))
	assert.Equal(t, domain.TablesKey{DatabaseID: 1, SchemaOID: 2201}, sel.Key())

	sel.Select(0, 0)
	assert.Zero(t, sel.TablesMap().Len())

	assert.Equal(t, 0, seen[0])
	assert.Contains(t, seen, 2)
	assert.Equal(t, 0, seen[len(seen)-1])
}

func TestSelection_CurrentTable(t *testing.T) {
	r := newPreloaded(t, &testutil.MockTablesService{})
	sel := r.NewSelection()
	sel.Select(1, 2200)

	var current []*domain.Table
	unsub := sel.CurrentTable().Subscribe(func(tb *domain.Table) { current = append(current, tb) })
	defer unsub()

	sel.SelectTable(10)
	tb, ok := sel.Table()
	require.True(t, ok)
	assert.Equal(t, "orders", tb.Name)

	sel.SelectTable(999)
	_, ok = sel.Table()
	assert.False(t, ok)

	require.Len(t, current, 3)
	assert.Nil(t, current[0])
	assert.Equal(t, int64(10), current[1].OID)
	assert.Nil(t, current[2])
}

func TestSelection_ValidateNewTableName(t *testing.T) {
	r := newPreloaded(t, &testutil.MockTablesService{})
	sel := r.NewSelection()
	sel.Select(1, 2200)

	require.NoError(t, sel.ValidateNewTableName("invoices"))
	err := sel.ValidateNewTableName("orders")
	require.Error(t, err)
	assert.Equal(t, MsgTableNameExists, err.Error())
}

func TestSelection_RefetchCurrent(t *testing.T) {
	svc := &testutil.MockTablesService{}
	r := newPreloaded(t, svc)
	sel := r.NewSelection()
	sel.Select(1, 2200)

	svc.ListTablesWithMetadataFn = func(context.Context, int64, int64) ([]domain.Table, error) {
		return []domain.Table{{OID: 40, Name: "only"}}, nil
	}
	require.NoError(t, sel.RefetchCurrent(t.Context()))
	assert.Equal(t, []string{"only"}, names(sel.TablesMap()))
}

func TestSelection_ImportVerifiedTables(t *testing.T) {
	tables := []domain.Table{
		{OID: 1, Name: "a", Metadata: &domain.TableMetadata{ImportVerified: ptr(false)}},
		{OID: 2, Name: "b", Metadata: &domain.TableMetadata{ImportVerified: ptr(true)}},
		{OID: 3, Name: "c"},
	}
	r := New(&testutil.MockTablesService{}, WithPreload(preloadFor(publicKey, tables)))
	defer r.Close()
	sel := r.NewSelection()
	sel.Select(1, 2200)

	assert.Equal(t, []int64{2, 3}, sel.ImportVerifiedTables().OIDs())
}
