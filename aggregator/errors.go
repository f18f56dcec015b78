package aggregator

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned synchronously for malformed requests.
// No operation is started when it is returned.
var ErrInvalidArgument = errors.New("invalid argument")

// OperationError describes one failed operation. Err is the service's
// error, untouched.
type OperationError struct {
	Index     int
	ServiceID string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s) failed: %v", e.Index, e.ServiceID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// AggregateError rejects the aggregate future under AllOrNothing and
// FailFast. Cause is the first failure observed; when several operations
// fail close together which one wins is not deterministic.
type AggregateError struct {
	Policy    Policy
	RequestID string
	Cause     *OperationError
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%s aggregate %s failed: %v", e.Policy, e.RequestID, e.Cause)
}

func (e *AggregateError) Unwrap() error {
	return e.Cause
}
