// Package httpapi exposes the store's write/read surface over plain
// net/http, grounded on go/ingest/http_api.go and go/ingest/apis.go's
// gorilla/mux-routed, error-returning handler idiom.
package httpapi

import (
	"errors"
	"sync"

	"github.com/mynosql/dbcore/dbtable"
	"github.com/mynosql/dbcore/microtime"
)

// ErrTableNotFound is returned by Registry operations against a table
// that has never been created.
var ErrTableNotFound = errors.New("table not found")

// ErrTableAlreadyExists is returned by CreateTable when tableName is
// already registered.
var ErrTableAlreadyExists = errors.New("table already exists")

// ErrRecordAlreadyExists is returned when an insert-only operation
// targets a (PartitionKey, RowKey) that is already occupied.
var ErrRecordAlreadyExists = errors.New("record already exists")

// Registry is the multi-table namespace the HTTP surface addresses by
// tableName query parameter. It sits above dbtable.Table (a single
// table has no notion of its own name-uniqueness among siblings); the
// core itself never needs one since every test and embedding caller
// owns exactly one *dbtable.Table directly.
type Registry struct {
	mu         sync.RWMutex
	tables     map[string]*dbtable.Table
	masterNode bool
}

// NewRegistry constructs an empty table registry.
func NewRegistry(masterNode bool) *Registry {
	return &Registry{
		tables:     make(map[string]*dbtable.Table),
		masterNode: masterNode,
	}
}

// CreateTable registers a new, empty table under name. It fails if name
// is already taken.
func (r *Registry) CreateTable(name string, now microtime.Micros) (*dbtable.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[name]; ok {
		return nil, ErrTableAlreadyExists
	}
	t := dbtable.New(name, r.masterNode, now)
	r.tables[name] = t
	return t, nil
}

// CreateTableIfNotExists registers name if absent, returning the table
// either way and whether it was newly created.
func (r *Registry) CreateTableIfNotExists(name string, now microtime.Micros) (*dbtable.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tables[name]; ok {
		return t, false
	}
	t := dbtable.New(name, r.masterNode, now)
	r.tables[name] = t
	return t, true
}

// GetTable returns the table registered under name, if any.
func (r *Registry) GetTable(name string) (*dbtable.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// TableNames returns every registered table name.
func (r *Registry) TableNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	return names
}
