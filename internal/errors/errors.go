// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrIntegrationNotFound is returned when a user has no active integration for a provider.
var ErrIntegrationNotFound = stderrors.New("integration not found")

// ErrUnknownCollection is wrapped by the query layer when a caller names a collection that
// is not registered.
var ErrUnknownCollection = stderrors.New("unknown collection")

// InvalidQueryError is returned when a listing request carries a field or value the
// collection does not accept.
type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query parameter %q: %s", e.Field, e.Reason)
}

// InvalidDocumentError is returned by the store when a record cannot be written because
// its natural key is incomplete.
type InvalidDocumentError struct {
	Kind string
	Key  string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid %s document: incomplete key %s", e.Kind, e.Key)
}
