package schemas

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbadmin/internal/domain"
	"dbadmin/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func seeded(t *testing.T, svc *testutil.MockSchemasService) *Cache {
	t.Helper()
	return New(svc, WithPreload(&domain.CommonData{
		CurrentDatabase: ptr(int64(1)),
		Schemas: []domain.Schema{
			{OID: 2200, Name: "public", TableCount: 2},
			{OID: 2201, Name: "archive", TableCount: 0},
		},
	}))
}

func schemaNames(d SchemasData) []string {
	var out []string
	for _, s := range d.Schemas {
		out = append(out, s.Name)
	}
	return out
}

func TestPreloadSeedsCurrentDatabase(t *testing.T) {
	c := seeded(t, &testutil.MockSchemasService{})
	d := c.Store(1).Get()
	assert.True(t, d.RequestStatus.IsSuccess())
	assert.Equal(t, []string{"archive", "public"}, schemaNames(d))

	assert.True(t, c.Store(2).Get().RequestStatus.IsProcessing())
}

func TestRefetch(t *testing.T) {
	svc := &testutil.MockSchemasService{
		ListSchemasFn: func(_ context.Context, db int64) ([]domain.Schema, error) {
			return []domain.Schema{{OID: 1, Name: "b"}, {OID: 2, Name: "A"}}, nil
		},
	}
	c := New(svc)
	d, err := c.Refetch(t.Context(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "b"}, schemaNames(d))
	assert.Equal(t, d, c.Store(3).Get())
}

func TestRefetch_FailureKeepsSchemas(t *testing.T) {
	svc := &testutil.MockSchemasService{
		ListSchemasFn: func(context.Context, int64) ([]domain.Schema, error) { return nil, errors.New("timeout") },
	}
	c := seeded(t, svc)
	d, err := c.Refetch(t.Context(), 1)
	require.Error(t, err)
	assert.Equal(t, domain.Failure("timeout"), d.RequestStatus)
	assert.Len(t, d.Schemas, 2)
}

func TestRefetch_OlderResponseArrivingLateIsDiscarded(t *testing.T) {
	firstStarted := make(chan context.Context, 1)
	releaseFirst := make(chan struct{})
	var calls atomic.Int32
	svc := &testutil.MockSchemasService{
		ListSchemasFn: func(ctx context.Context, _ int64) ([]domain.Schema, error) {
			if calls.Add(1) == 1 {
				firstStarted <- ctx
				<-releaseFirst
				return []domain.Schema{{OID: 1, Name: "stale"}}, nil
			}
			return []domain.Schema{{OID: 2, Name: "fresh"}}, nil
		},
	}
	c := seeded(t, svc)

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Refetch(context.Background(), 1)
		firstErr <- err
	}()
	firstCtx := <-firstStarted

	d, err := c.Refetch(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, schemaNames(d))
	assert.Error(t, firstCtx.Err(), "the older request is cancelled")

	close(releaseFirst)
	require.ErrorIs(t, <-firstErr, ErrSuperseded)

	cur := c.Store(1).Get()
	assert.Equal(t, []string{"fresh"}, schemaNames(cur))
	assert.True(t, cur.RequestStatus.IsSuccess())
}

func TestRefetchAll_DuplicateDatabaseIsNotAnError(t *testing.T) {
	svc := &testutil.MockSchemasService{
		ListSchemasFn: func(ctx context.Context, db int64) ([]domain.Schema, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
			return []domain.Schema{{OID: db, Name: "s"}}, nil
		},
	}
	c := New(svc, WithMaxConcurrency(2))

	require.NoError(t, c.RefetchAll(t.Context(), 4, 4))
	assert.True(t, c.Store(4).Get().RequestStatus.IsSuccess())
	assert.Equal(t, []string{"s"}, schemaNames(c.Store(4).Get()))
}

func TestRefetchAll(t *testing.T) {
	var calls atomic.Int32
	svc := &testutil.MockSchemasService{
		ListSchemasFn: func(_ context.Context, db int64) ([]domain.Schema, error) {
			calls.Add(1)
			if db == 3 {
				return nil, errors.New("unreachable")
			}
			return []domain.Schema{{OID: db, Name: "s"}}, nil
		},
	}
	c := New(svc, WithMaxConcurrency(2))

	require.NoError(t, c.RefetchAll(t.Context(), 1, 2))
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, c.Store(2).Get().RequestStatus.IsSuccess())

	err := c.RefetchAll(t.Context(), 3)
	require.Error(t, err)
	assert.True(t, c.Store(3).Get().RequestStatus.IsFailure())
}

func TestAddDeletePatch(t *testing.T) {
	svc := &testutil.MockSchemasService{
		AddSchemaFn:    func(context.Context, int64, string, *string) (int64, error) { return 3000, nil },
		DeleteSchemaFn: func(context.Context, int64, int64) error { return nil },
		PatchSchemaFn:  func(context.Context, int64, int64, domain.SchemaPatch) error { return nil },
	}
	c := seeded(t, svc)
	ctx := t.Context()

	added, err := c.Add(ctx, 1, "staging", ptr("scratch space"))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), added.OID)
	assert.Zero(t, added.TableCount)
	assert.Equal(t, []string{"archive", "public", "staging"}, schemaNames(c.Store(1).Get()))

	require.NoError(t, c.Patch(ctx, 1, 3000, domain.SchemaPatch{Name: ptr("aa_staging")}))
	assert.Equal(t, []string{"aa_staging", "archive", "public"}, schemaNames(c.Store(1).Get()))

	require.NoError(t, c.Delete(ctx, 1, 2201))
	assert.Equal(t, []string{"aa_staging", "public"}, schemaNames(c.Store(1).Get()))
}

func TestMutationErrorsLeaveStore(t *testing.T) {
	svc := &testutil.MockSchemasService{
		DeleteSchemaFn: func(context.Context, int64, int64) error { return errors.New("has dependents") },
	}
	c := seeded(t, svc)
	require.Error(t, c.Delete(t.Context(), 1, 2200))
	assert.Len(t, c.Store(1).Get().Schemas, 2)
}

func TestTableCounts(t *testing.T) {
	c := seeded(t, &testutil.MockSchemasService{})

	c.AdjustTableCount(1, 2200, 1)
	s, _ := c.Store(1).Get().Find(2200)
	assert.Equal(t, 3, s.TableCount)

	c.AdjustTableCount(1, 2201, -1)
	s, _ = c.Store(1).Get().Find(2201)
	assert.Equal(t, 0, s.TableCount, "counts never go negative")

	c.UpdateTableCount(1, 2200, 10)
	s, _ = c.Store(1).Get().Find(2200)
	assert.Equal(t, 10, s.TableCount)

	// Unknown databases are ignored.
	c.AdjustTableCount(42, 1, 1)
	_, ok := c.lookup(42)
	assert.False(t, ok)
}
