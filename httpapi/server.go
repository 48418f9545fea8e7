package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/mynosql/dbcore/dbentity"
	"github.com/mynosql/dbcore/dbtable"
	"github.com/mynosql/dbcore/microtime"
	"github.com/mynosql/dbcore/syncqueue"
)

// Server wires a Registry onto the REST surface spec.md §6 names. It is
// deliberately thin: every handler does one registry/table operation and
// translates the result to the wire shape; all store semantics live in
// dbtable/dbpartition/dbentity.
type Server struct {
	registry   *Registry
	queues     *syncqueue.Queues
	masterNode bool
}

// NewServer constructs a Server over registry. queues may be nil if the
// embedding process does not run a sync-to-main flush loop (a
// single-node deployment with no read replicas).
func NewServer(registry *Registry, queues *syncqueue.Queues) *Server {
	return &Server{registry: registry, queues: queues, masterNode: true}
}

// RegisterRoutes attaches every handler to router, grounded on
// go/ingest/apis.go's RegisterAPIs: one *mux.Router, one route per
// resource/method pair, each wrapped to centralize error translation.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/Tables/Create", s.wrap(s.handleTablesCreate)).Methods(http.MethodPost)
	router.HandleFunc("/Tables/CreateIfNotExists", s.wrap(s.handleTablesCreateIfNotExists)).Methods(http.MethodPost)
	router.HandleFunc("/Tables/List", s.wrap(s.handleTablesList)).Methods(http.MethodGet)

	router.HandleFunc("/Row", s.wrap(s.handleRowGet)).Methods(http.MethodGet)
	router.HandleFunc("/Row", s.wrap(s.handleRowPost)).Methods(http.MethodPost)
	router.HandleFunc("/Row", s.wrap(s.handleRowDelete)).Methods(http.MethodDelete)

	router.HandleFunc("/Rows", s.wrap(s.handleRowsGet)).Methods(http.MethodGet)

	router.HandleFunc("/Bulk/InsertOrReplace", s.wrap(s.handleBulkInsertOrReplace)).Methods(http.MethodPost)
	router.HandleFunc("/Bulk/CleanAndBulkInsert", s.wrap(s.handleBulkCleanAndBulkInsert)).Methods(http.MethodPost)

	router.HandleFunc("/Partitions", s.wrap(s.handlePartitionsGet)).Methods(http.MethodGet)
	router.HandleFunc("/Partitions", s.wrap(s.handlePartitionsDelete)).Methods(http.MethodDelete)
}

// wrap centralizes error logging/translation, matching
// go/ingest/http_api.go's doServeHTTPJSON pattern: handlers return an
// error, wrap writes it as the structured {reason, message} body and
// logs it with request context.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			if err == errNotFound {
				writeNotFound(w)
				return
			}
			log.WithFields(log.Fields{
				"err":    err,
				"url":    r.URL.String(),
				"method": r.Method,
			}).Warn("request failed")
			writeError(w, err)
		}
	}
}

var errNotFound = fmt.Errorf("not found")

func (s *Server) handleTablesCreate(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, err := s.registry.CreateTable(p.tableName, microtime.Now())
	if err != nil {
		return err
	}
	s.applyAttributes(t, p)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleTablesCreateIfNotExists(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, created := s.registry.CreateTableIfNotExists(p.tableName, microtime.Now())
	if created {
		s.applyAttributes(t, p)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleTablesList(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, s.registry.TableNames())
	return nil
}

func (s *Server) applyAttributes(t *dbtable.Table, p requestParams) {
	t.SetAttributes(dbtable.Attributes{
		MaxPartitionsAmount:       p.maxPartitionsAmount,
		MaxRowsPerPartitionAmount: p.maxRowsPerPartitionAmount,
		Persist:                   p.persist,
	})
}

func (s *Server) handleRowGet(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	partition, ok := t.GetPartition(p.partitionKey)
	if !ok {
		return errNotFound
	}
	row, ok := partition.GetRow(p.rowKey)
	if !ok {
		return errNotFound
	}

	now := microtime.Now()
	row.UpdateLastReadAccess(now)
	if s.queues != nil {
		s.queues.PushRowLastRead(p.partitionKey, p.rowKey, now)
	}
	writeRawJSONArray(w, row.WriteJSON())
	return nil
}

func (s *Server) handleRowPost(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}

	now := microtime.Now()
	row, err := dbentity.NewRow(body, s.masterNode, now)
	if err != nil {
		return err
	}

	if isTrue(r.Header.Get("X-Insert-Only")) {
		_, inserted := t.InsertRow(row, now)
		if !inserted {
			return ErrRecordAlreadyExists
		}
	} else {
		t.InsertOrReplaceRow(row, now)
	}

	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleRowDelete(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	removed, _ := t.RemoveRow(p.partitionKey, p.rowKey, p.deleteEmptyPartition)
	if removed == nil {
		return errNotFound
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleRowsGet(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	if p.partitionKey == "" {
		writeRawJSONArray(w, t.GetTableAsJSONArray())
		return nil
	}

	body, ok := t.GetPartitionAsJSONArray(p.partitionKey)
	if !ok {
		return errNotFound
	}

	now := microtime.Now()
	if s.queues != nil {
		s.queues.PushPartitionLastRead(p.partitionKey, now)
	}
	writeRawJSONArray(w, body)
	return nil
}

// handleBulkInsertOrReplace splits the request body's top-level JSON
// array into per-row raw slices with jsonparser.ArrayEach rather than a
// full encoding/json unmarshal into []json.RawMessage, matching the
// teacher's zero-copy offset-location idiom (go/flow/raw_json.go) for
// the one place this package handles more than a single small body.
func (s *Server) handleBulkInsertOrReplace(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	now := microtime.Now()
	rows, err := s.parseRowArray(r, now)
	if err != nil {
		return err
	}

	t.BulkInsertOrReplace(p.partitionKey, rows, now)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleBulkCleanAndBulkInsert(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	now := microtime.Now()
	rows, err := s.parseRowArray(r, now)
	if err != nil {
		return err
	}

	t.CleanAndBulkInsert(p.partitionKey, rows, now)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) parseRowArray(r *http.Request, now microtime.Micros) ([]*dbentity.Row, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	var rows []*dbentity.Row
	var parseErr error
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, entryErr error) {
		if parseErr != nil || entryErr != nil {
			if entryErr != nil {
				parseErr = entryErr
			}
			return
		}
		row, rowErr := dbentity.NewRow(value, s.masterNode, now)
		if rowErr != nil {
			parseErr = rowErr
			return
		}
		rows = append(rows, row)
	})
	if err != nil {
		return nil, dbentity.ErrJSONParseFail
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

func (s *Server) handlePartitionsGet(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	partitions := t.GetPartitions()
	keys := make([]string, len(partitions))
	for i, part := range partitions {
		keys[i] = part.PartitionKey
	}
	writeJSON(w, keys)
	return nil
}

func (s *Server) handlePartitionsDelete(w http.ResponseWriter, r *http.Request) error {
	p := parseParams(r)
	t, ok := s.registry.GetTable(p.tableName)
	if !ok {
		return ErrTableNotFound
	}

	_, ok = t.RemovePartition(p.partitionKey)
	if !ok {
		return errNotFound
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func isTrue(s string) bool { return s == "1" || s == "true" || s == "True" }
