package dbentity

import "fmt"

// ErrJSONParseFail is returned when the input is not a well-formed JSON
// object.
var ErrJSONParseFail = fmt.Errorf("json parse failed")

// RequiredFieldMissingError is returned by Parse when PartitionKey or
// RowKey is absent. It wraps no sentinel by design: callers compare
// against the Field value, matching the taxonomy in the store's §7 error
// design (RequiredFieldMissing("PartitionKey"|"RowKey")).
type RequiredFieldMissingError struct {
	Field string
}

func (e *RequiredFieldMissingError) Error() string {
	return fmt.Sprintf("required field missing: %s", e.Field)
}
