package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mynosql/dbcore/dbentity"
)

// errorBody is the {reason, message} shape every 400 response carries.
type errorBody struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

const (
	reasonTableAlreadyExists           = "TableAlreadyExists"
	reasonTableNotFound                = "TableNotFound"
	reasonRecordAlreadyExists          = "RecordAlreadyExists"
	reasonRequiredEntityFieldIsMissing = "RequiredEntityFieldIsMissing"
	reasonJSONParseFail                = "JsonParseFail"
)

// classify maps a core/registry error to its HTTP status and wire reason.
func classify(err error) (status int, reason string) {
	var missing *dbentity.RequiredFieldMissingError

	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, reasonRequiredEntityFieldIsMissing
	case errors.Is(err, dbentity.ErrJSONParseFail):
		return http.StatusBadRequest, reasonJSONParseFail
	case errors.Is(err, ErrTableAlreadyExists):
		return http.StatusBadRequest, reasonTableAlreadyExists
	case errors.Is(err, ErrTableNotFound):
		return http.StatusBadRequest, reasonTableNotFound
	case errors.Is(err, ErrRecordAlreadyExists):
		return http.StatusBadRequest, reasonRecordAlreadyExists
	default:
		return http.StatusBadRequest, reasonJSONParseFail
	}
}

// writeError writes err as a {reason, message} JSON body, per spec.md's
// HTTP client surface (§6): every failure mode surfaces as 400 with a
// structured reason, never a bare 500.
func writeError(w http.ResponseWriter, err error) {
	status, reason := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Reason: reason, Message: err.Error()})
}

// writeNotFound writes a bare 404: "not present" is not an error per
// spec.md, so it carries no body beyond the status code.
func writeNotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}

// writeJSON writes v as a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeRawJSONArray writes a pre-built JSON array body (the byte-level
// table/partition snapshots produced by dbtable.GetTableAsJSONArray /
// GetPartitionAsJSONArray) without a redundant marshal pass.
func writeRawJSONArray(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
