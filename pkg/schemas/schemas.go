// Package schemas caches the schemas of each database and keeps their
// table counts in step with table creation and deletion.
package schemas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"dbadmin/internal/domain"
	"dbadmin/pkg/store"
)

// fetchFallbackMessage is shown when a failed list carries no message.
const fetchFallbackMessage = "Error in fetching schemas"

// ErrSuperseded is returned by Refetch when a newer refetch of the same
// database started before the response arrived.
var ErrSuperseded = errors.New("schemas: request superseded")

// SchemasData is the value held by each database's store. Schemas are
// sorted by name.
type SchemasData struct {
	Schemas       []domain.Schema
	RequestStatus domain.RequestStatus
}

// Find returns the schema with the given OID.
func (d SchemasData) Find(oid int64) (domain.Schema, bool) {
	i := slices.IndexFunc(d.Schemas, func(s domain.Schema) bool { return s.OID == oid })
	if i < 0 {
		return domain.Schema{}, false
	}
	return d.Schemas[i], true
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPreload seeds the store of the payload's current database with the
// payload's schemas.
func WithPreload(cd *domain.CommonData) Option {
	return func(c *Cache) { c.preload = cd }
}

// WithMaxConcurrency limits parallel requests made by RefetchAll.
func WithMaxConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// Cache holds one schemas store per database. It is safe for concurrent
// use.
type Cache struct {
	svc            domain.SchemasService
	logger         *slog.Logger
	preload        *domain.CommonData
	maxConcurrency int

	mu      sync.Mutex
	entries map[int64]*entry
}

type entry struct {
	data   *store.Writable[SchemasData]
	gen    atomic.Uint64
	cancel context.CancelFunc // guarded by Cache.mu
}

// New creates a Cache backed by svc.
func New(svc domain.SchemasService, opts ...Option) *Cache {
	c := &Cache{
		svc:            svc,
		logger:         slog.Default(),
		maxConcurrency: 4,
		entries:        make(map[int64]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cd := c.preload; cd != nil && cd.CurrentDatabase != nil {
		c.entries[*cd.CurrentDatabase] = &entry{data: store.NewWritable(SchemasData{
			Schemas:       sortSchemas(cd.Schemas),
			RequestStatus: domain.Success(),
		})}
	}
	return c
}

// Store returns the store of a database, creating an empty one in the
// processing state when needed. It never fetches; call Refetch for that.
func (c *Cache) Store(databaseID int64) *store.Writable[SchemasData] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryLocked(databaseID).data
}

func (c *Cache) entryLocked(databaseID int64) *entry {
	e, ok := c.entries[databaseID]
	if !ok {
		e = &entry{data: store.NewWritable(SchemasData{RequestStatus: domain.Processing()})}
		c.entries[databaseID] = e
	}
	return e
}

func (c *Cache) lookup(databaseID int64) (*store.Writable[SchemasData], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[databaseID]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Refetch lists the schemas of a database and replaces the store contents.
// On failure the previous schemas are kept. Starting a refetch cancels the
// one in flight for the same database, whose response is then dropped.
func (c *Cache) Refetch(ctx context.Context, databaseID int64) (SchemasData, error) {
	c.mu.Lock()
	e := c.entryLocked(databaseID)
	if e.cancel != nil {
		e.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	gen := e.gen.Add(1)
	c.mu.Unlock()
	defer c.release(e, gen, cancel)

	err := e.data.TryUpdate(func(cur SchemasData) (SchemasData, error) {
		if e.gen.Load() != gen {
			return cur, ErrSuperseded
		}
		cur.RequestStatus = domain.Processing()
		return cur, nil
	})
	if err != nil {
		return SchemasData{}, err
	}

	list, err := c.svc.ListSchemas(reqCtx, databaseID)

	var result SchemasData
	applyErr := e.data.TryUpdate(func(cur SchemasData) (SchemasData, error) {
		if e.gen.Load() != gen {
			return cur, ErrSuperseded
		}
		if err != nil {
			cur.RequestStatus = domain.FailureFromError(err, fetchFallbackMessage)
		} else {
			cur = SchemasData{Schemas: sortSchemas(list), RequestStatus: domain.Success()}
		}
		result = cur
		return cur, nil
	})
	if applyErr != nil {
		c.logger.Debug("discarding superseded schemas response", "database_id", databaseID)
		return SchemasData{}, applyErr
	}
	if err != nil {
		return result, fmt.Errorf("list schemas of database %d: %w", databaseID, err)
	}
	return result, nil
}

func (c *Cache) release(e *entry, gen uint64, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.gen.Load() == gen {
		e.cancel = nil
	}
}

// RefetchAll refetches several databases in parallel and returns the first
// error. Every store is updated regardless. A refetch superseded by a newer
// one is not an error.
func (c *Cache) RefetchAll(ctx context.Context, databaseIDs ...int64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for _, id := range databaseIDs {
		g.Go(func() error {
			_, err := c.Refetch(ctx, id)
			if errors.Is(err, ErrSuperseded) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Add creates a schema and inserts it with a zero table count.
func (c *Cache) Add(ctx context.Context, databaseID int64, name string, description *string) (domain.Schema, error) {
	oid, err := c.svc.AddSchema(ctx, databaseID, name, description)
	if err != nil {
		return domain.Schema{}, fmt.Errorf("add schema %q: %w", name, err)
	}
	schema := domain.Schema{OID: oid, Name: name, Description: description}
	if s, ok := c.lookup(databaseID); ok {
		s.Update(func(cur SchemasData) SchemasData {
			cur.Schemas = sortSchemas(append(slices.Clone(cur.Schemas), schema))
			return cur
		})
	}
	return schema, nil
}

// Delete drops a schema and removes it from the store.
func (c *Cache) Delete(ctx context.Context, databaseID, schemaOID int64) error {
	if err := c.svc.DeleteSchema(ctx, databaseID, schemaOID); err != nil {
		return fmt.Errorf("delete schema %d: %w", schemaOID, err)
	}
	c.modify(databaseID, func(list []domain.Schema) []domain.Schema {
		return slices.DeleteFunc(list, func(s domain.Schema) bool { return s.OID == schemaOID })
	})
	return nil
}

// Patch renames a schema or changes its description.
func (c *Cache) Patch(ctx context.Context, databaseID, schemaOID int64, patch domain.SchemaPatch) error {
	if err := c.svc.PatchSchema(ctx, databaseID, schemaOID, patch); err != nil {
		return fmt.Errorf("patch schema %d: %w", schemaOID, err)
	}
	c.modify(databaseID, func(list []domain.Schema) []domain.Schema {
		for i := range list {
			if list[i].OID != schemaOID {
				continue
			}
			if patch.Name != nil {
				list[i].Name = *patch.Name
			}
			if patch.Description != nil {
				d := *patch.Description
				list[i].Description = &d
			}
		}
		return sortSchemas(list)
	})
	return nil
}

// UpdateTableCount sets the table count of a cached schema.
func (c *Cache) UpdateTableCount(databaseID, schemaOID int64, count int) {
	c.setCount(databaseID, schemaOID, func(int) int { return count })
}

// AdjustTableCount implements domain.SchemaTableCounter.
func (c *Cache) AdjustTableCount(databaseID, schemaOID int64, delta int) {
	c.setCount(databaseID, schemaOID, func(n int) int { return max(n+delta, 0) })
}

func (c *Cache) setCount(databaseID, schemaOID int64, fn func(int) int) {
	c.modify(databaseID, func(list []domain.Schema) []domain.Schema {
		for i := range list {
			if list[i].OID == schemaOID {
				list[i].TableCount = fn(list[i].TableCount)
			}
		}
		return list
	})
}

// modify applies fn to a copy of the cached schema list, if the database
// has a store.
func (c *Cache) modify(databaseID int64, fn func([]domain.Schema) []domain.Schema) {
	s, ok := c.lookup(databaseID)
	if !ok {
		return
	}
	s.Update(func(cur SchemasData) SchemasData {
		cur.Schemas = fn(slices.Clone(cur.Schemas))
		return cur
	})
}

func sortSchemas(list []domain.Schema) []domain.Schema {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b domain.Schema) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

var _ domain.SchemaTableCounter = (*Cache)(nil)
