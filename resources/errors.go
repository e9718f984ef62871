package resources

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
)

// Kind classifies the outcome of a resource call.
type Kind int

const (
	// Fatal is any unexpected failure; it is propagated to the caller.
	Fatal Kind = iota
	// NotFound means the resource does not (yet) exist.
	NotFound
	// Conflict means the resource already exists or is already in the desired state.
	Conflict
	// Throttled means the call was rate limited and may be retried.
	Throttled
	// Timeout means a bounded wait expired before the resource converged.
	Timeout
	// Malformed means an input could not be parsed.
	Malformed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case Conflict:
		return "conflict"
	case Throttled:
		return "throttled"
	case Timeout:
		return "timeout"
	case Malformed:
		return "malformed"
	default:
		return "fatal"
	}
}

// Error is a classified resource error.
type Error struct {
	Kind     Kind
	Resource string // e.g. table, delivery-pipe, function, binding
	Name     string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v %v: %v", e.Resource, e.Name, e.Kind)
	}
	return fmt.Sprintf("%v %v: %v: %v", e.Resource, e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error without an underlying aws error.
func Errorf(kind Kind, resource, name, format string, args ...interface{}) error {
	return &Error{Kind: kind, Resource: resource, Name: name, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err; unclassified errors are Fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

func IsNotFound(err error) bool  { return err != nil && KindOf(err) == NotFound }
func IsConflict(err error) bool  { return err != nil && KindOf(err) == Conflict }
func IsThrottled(err error) bool { return err != nil && KindOf(err) == Throttled }
func IsTimeout(err error) bool   { return err != nil && KindOf(err) == Timeout }

// Classify maps an aws error code onto a Kind at the point of the call.
func Classify(err error, resource, name string) error {
	if err == nil {
		return nil
	}
	kind := Fatal
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "ResourceNotFoundException":
			kind = NotFound
		case "ResourceConflictException", "ResourceInUseException", "ResourceAlreadyExistsException":
			kind = Conflict
		case "LimitExceededException", "ThrottlingException", "TooManyRequestsException",
			"ProvisionedThroughputExceededException", "RequestLimitExceeded", "ServiceUnavailableException":
			kind = Throttled
		}
	}
	return &Error{Kind: kind, Resource: resource, Name: name, Err: err}
}
