package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"dbadmin/internal/domain"
	"dbadmin/pkg/store"
)

// ErrSuperseded is returned by Refetch when a newer refetch for the same
// key started, or the store was removed, before the response arrived.
var ErrSuperseded = errors.New("tables: request superseded")

// fetchFallbackMessage is shown when a failed list carries no message.
const fetchFallbackMessage = "Error in fetching tables"

// TablesData is the value held by each tables store.
type TablesData struct {
	Tables        TablesMap
	RequestStatus domain.RequestStatus
}

// EmptyTablesData is the value used when no schema is selected.
func EmptyTablesData() TablesData {
	return TablesData{RequestStatus: domain.Success()}
}

type entry struct {
	data   *store.Writable[TablesData]
	gen    atomic.Uint64
	cancel context.CancelFunc // guarded by Registry.mu
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPreload seeds the first store created for the payload's current
// database and schema, instead of fetching it.
func WithPreload(cd *domain.CommonData) Option {
	return func(r *Registry) {
		r.preload = cd
		r.preloadPending = cd != nil
	}
}

// WithSchemaCounter sets the hook notified when tables are created or
// deleted.
func WithSchemaCounter(c domain.SchemaTableCounter) Option {
	return func(r *Registry) {
		if c != nil {
			r.counter = c
		}
	}
}

type noopCounter struct{}

func (noopCounter) AdjustTableCount(int64, int64, int) {}

// Registry owns the tables stores. It is safe for concurrent use.
type Registry struct {
	svc     domain.TablesService
	counter domain.SchemaTableCounter
	logger  *slog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	lookup singleflight.Group

	mu             sync.Mutex
	entries        map[domain.TablesKey]*entry
	preload        *domain.CommonData
	preloadPending bool
}

// New creates a Registry backed by svc.
func New(svc domain.TablesService, opts ...Option) *Registry {
	ctx, stop := context.WithCancel(context.Background())
	r := &Registry{
		svc:     svc,
		counter: noopCounter{},
		logger:  slog.Default(),
		ctx:     ctx,
		stop:    stop,
		entries: make(map[domain.TablesKey]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close cancels background refetches and waits for them to return.
func (r *Registry) Close() {
	r.stop()
	r.wg.Wait()
}

// Wait blocks until background refetches started so far have returned.
func (r *Registry) Wait() { r.wg.Wait() }

// Keys returns the keys of every existing store.
func (r *Registry) Keys() []domain.TablesKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]domain.TablesKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Lookup returns the store for key without creating it.
func (r *Registry) Lookup(key domain.TablesKey) (*store.Writable[TablesData], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Store returns the store for a schema, creating it when needed. A new
// store starts in the processing state and is filled either from the
// preload payload (only ever for the first store created) or by a
// background refetch. An existing store whose last request failed is
// refetched.
func (r *Registry) Store(databaseID, schemaOID int64) *store.Writable[TablesData] {
	key := domain.TablesKey{DatabaseID: databaseID, SchemaOID: schemaOID}

	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		r.mu.Unlock()
		if e.data.Get().RequestStatus.IsFailure() {
			r.refetchInBackground(key)
		}
		return e.data
	}

	e = &entry{data: store.NewWritable(TablesData{RequestStatus: domain.Processing()})}
	r.entries[key] = e
	usePreload := r.preloadPending && r.preload.IsCurrent(key)
	r.preloadPending = false
	var preloaded []domain.Table
	if usePreload {
		preloaded = r.preload.Tables
	}
	r.mu.Unlock()

	if usePreload {
		r.logger.Debug("tables store seeded from preload", "key", key.String(), "tables", len(preloaded))
		e.data.Set(TablesData{Tables: NewTablesMap(preloaded), RequestStatus: domain.Success()})
	} else {
		r.refetchInBackground(key)
	}
	return e.data
}

func (r *Registry) refetchInBackground(key domain.TablesKey) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, err := r.Refetch(r.ctx, key.DatabaseID, key.SchemaOID)
		if err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, context.Canceled) {
			r.logger.Warn("tables refetch failed", "key", key.String(), "error", err)
		}
	}()
}

// Refetch lists the tables of a schema and replaces the store contents.
// The store must already exist. On failure the previous tables are kept
// and the status records the error message.
func (r *Registry) Refetch(ctx context.Context, databaseID, schemaOID int64) (TablesData, error) {
	key := domain.TablesKey{DatabaseID: databaseID, SchemaOID: schemaOID}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		r.logger.Error("tables store not found", "key", key.String())
		return TablesData{}, domain.ErrNotFound("tables store not found for %s", key)
	}
	if e.cancel != nil {
		e.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	gen := e.gen.Add(1)
	r.mu.Unlock()
	defer r.release(e, gen, cancel)

	err := e.data.TryUpdate(func(cur TablesData) (TablesData, error) {
		if e.gen.Load() != gen {
			return cur, ErrSuperseded
		}
		cur.RequestStatus = domain.Processing()
		return cur, nil
	})
	if err != nil {
		return TablesData{}, err
	}

	tables, err := r.svc.ListTablesWithMetadata(reqCtx, databaseID, schemaOID)

	var result TablesData
	applyErr := e.data.TryUpdate(func(cur TablesData) (TablesData, error) {
		if e.gen.Load() != gen {
			return cur, ErrSuperseded
		}
		if err != nil {
			cur.RequestStatus = domain.FailureFromError(err, fetchFallbackMessage)
		} else {
			cur = TablesData{Tables: NewTablesMap(tables), RequestStatus: domain.Success()}
		}
		result = cur
		return cur, nil
	})
	if applyErr != nil {
		r.logger.Debug("discarding superseded tables response", "key", key.String())
		return TablesData{}, applyErr
	}
	if err != nil {
		return result, fmt.Errorf("list tables for %s: %w", key, err)
	}
	return result, nil
}

// release clears the in-flight marker if it still belongs to gen.
func (r *Registry) release(e *entry, gen uint64, cancel context.CancelFunc) {
	cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.gen.Load() == gen {
		e.cancel = nil
	}
}

// Remove drops the store for a schema and cancels its in-flight request.
func (r *Registry) Remove(databaseID, schemaOID int64) {
	key := domain.TablesKey{DatabaseID: databaseID, SchemaOID: schemaOID}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return
	}
	e.gen.Add(1)
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	delete(r.entries, key)
}

// findStoreContaining returns the store of databaseID that holds oid.
func (r *Registry) findStoreContaining(databaseID, oid int64) (*store.Writable[TablesData], bool) {
	r.mu.Lock()
	candidates := make([]*entry, 0, len(r.entries))
	for k, e := range r.entries {
		if k.DatabaseID == databaseID {
			candidates = append(candidates, e)
		}
	}
	r.mu.Unlock()

	for _, e := range candidates {
		if e.data.Get().Tables.Has(oid) {
			return e.data, true
		}
	}
	return nil, false
}
