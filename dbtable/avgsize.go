package dbtable

import "github.com/mynosql/dbcore/dbentity"

// emaWeight controls how quickly the estimate tracks recent row sizes: a
// higher weight favors recent writes over the accumulated history. 0.1
// matches a ~10-write convergence window, reasonable for the row sizes
// this store typically sees (tens of bytes to a few KB).
const emaWeight = 0.1

// AvgSize is an exponential-moving-average estimator of row size, used to
// pre-size buffers when serializing a table or partition as a JSON array
// without walking every row twice.
type AvgSize struct {
	value float64
	seen  bool
}

// NewAvgSize constructs a zero-valued estimator.
func NewAvgSize() *AvgSize {
	return &AvgSize{}
}

// Add folds row's content size into the running estimate.
func (a *AvgSize) Add(row *dbentity.Row) {
	size := float64(row.ContentSize())
	if !a.seen {
		a.value = size
		a.seen = true
		return
	}
	a.value = a.value*(1-emaWeight) + size*emaWeight
}

// Get returns the current estimate, or 0 if no row has been observed yet.
func (a *AvgSize) Get() int {
	return int(a.value)
}
