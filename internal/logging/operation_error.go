package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// OperationError ties a pipeline failure to the operation that raised it
// and, when known, the verification request being processed. It unwraps to
// the underlying cause so callers can keep matching sentinel errors with
// errors.Is and errors.As.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

// NewOperationError wraps err with operation context. A nil err returns nil
// so call sites can wrap unconditionally.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

func (e *OperationError) Error() string {
	switch {
	case e == nil || e.Err == nil:
		return ""
	case e.RequestID == "":
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	default:
		return fmt.Sprintf("%s: %v (request %s)", e.Operation, e.Err, e.RequestID)
	}
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorFields renders err as zap fields, lifting the operation and request
// identifiers out of an OperationError when the chain carries one.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		fields = append(fields, zap.String("failed_operation", opErr.Operation))
		if opErr.RequestID != "" {
			fields = append(fields, zap.String("request_id", opErr.RequestID))
		}
	}
	return fields
}
