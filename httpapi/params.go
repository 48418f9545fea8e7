package httpapi

import (
	"net/http"
	"strconv"

	"github.com/mynosql/dbcore/syncqueue"
)

// requestParams is the parsed set of query-string parameters the REST
// surface shares across endpoints (spec.md §6).
type requestParams struct {
	tableName                 string
	partitionKey              string
	rowKey                    string
	syncPeriod                syncqueue.Period
	persist                   bool
	maxPartitionsAmount       *int
	maxRowsPerPartitionAmount *int
	deleteEmptyPartition      bool
}

func parseParams(r *http.Request) requestParams {
	q := r.URL.Query()

	p := requestParams{
		tableName:            q.Get("tableName"),
		partitionKey:         q.Get("partitionKey"),
		rowKey:               q.Get("rowKey"),
		syncPeriod:           syncqueue.ParsePeriod(q.Get("syncPeriod")),
		persist:              parseBool(q.Get("persist")),
		deleteEmptyPartition: parseBool(q.Get("deleteEmptyPartition")),
	}

	if v, ok := parseIntPtr(q.Get("maxPartitionsAmount")); ok {
		p.maxPartitionsAmount = v
	}
	if v, ok := parseIntPtr(q.Get("maxRowsPerPartitionAmount")); ok {
		p.maxRowsPerPartitionAmount = v
	}

	return p
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return v
}

func parseIntPtr(s string) (*int, bool) {
	if s == "" {
		return nil, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, false
	}
	return &v, true
}
