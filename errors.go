package curator

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("curator: entity not found")

	// ErrUnauthorized is returned when an operation is denied by the ACL.
	ErrUnauthorized = errors.New("curator: unauthorized")

	// ErrEngine is returned when a call to the business process engine fails.
	// The detailed cause is logged server-side and never exposed to callers.
	ErrEngine = errors.New("curator: business engine error")
)

// NotFoundError represents an error when an entity, form or outcome
// is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("curator: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("curator: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// UserInputError represents a missing or malformed client argument.
type UserInputError struct {
	Arg string // Name of the offending argument
}

// Error returns the error string.
func (e *UserInputError) Error() string {
	return fmt.Sprintf("curator: missing required argument %q", e.Arg)
}

// NewUserInputError returns a new UserInputError for the given argument.
func NewUserInputError(arg string) *UserInputError {
	return &UserInputError{Arg: arg}
}

// IsUserInput returns true if the error is a UserInputError.
func IsUserInput(err error) bool {
	if err == nil {
		return false
	}
	var e *UserInputError
	return errors.As(err, &e)
}

// AuthorizationError represents an ACL denial: access, read restriction,
// write, create, destroy, task or owner-scope failure.
type AuthorizationError struct {
	Action string   // ACL action that was denied
	Fields []string // Offending fields for write denials
}

// Error returns the error string.
func (e *AuthorizationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("curator: %s not authorized for fields [%s]", e.Action, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("curator: %s not authorized", e.Action)
}

// Is reports whether the target error matches AuthorizationError.
func (e *AuthorizationError) Is(err error) bool {
	return err == ErrUnauthorized
}

// NewAuthorizationError returns a new AuthorizationError for the given action.
func NewAuthorizationError(action string, fields ...string) *AuthorizationError {
	return &AuthorizationError{Action: action, Fields: fields}
}

// IsAuthorization returns true if the error is an AuthorizationError.
func IsAuthorization(err error) bool {
	if err == nil {
		return false
	}
	var e *AuthorizationError
	return errors.As(err, &e) || errors.Is(err, ErrUnauthorized)
}

// LogicError represents a model or workflow misconfiguration detected at
// request time, such as an outcome that is not of the Complete result or an
// update against a model not marked as input.
type LogicError struct {
	msg string
}

// Error returns the error string.
func (e *LogicError) Error() string {
	return "curator: " + e.msg
}

// NewLogicError returns a new LogicError with a formatted message.
func NewLogicError(format string, a ...any) *LogicError {
	return &LogicError{msg: fmt.Sprintf(format, a...)}
}

// IsLogic returns true if the error is a LogicError.
func IsLogic(err error) bool {
	if err == nil {
		return false
	}
	var e *LogicError
	return errors.As(err, &e)
}

// EngineError wraps a business process engine failure. Its message is
// uniformly opaque; the wrapped cause and operation are retained for logging.
type EngineError struct {
	Op   string // Engine operation (e.g. "start-process", "complete-task")
	Wrap error  // Underlying transport or engine error
}

// Error returns the opaque error string.
func (e *EngineError) Error() string {
	return ErrEngine.Error()
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Wrap
}

// Is reports whether the target error matches EngineError.
func (e *EngineError) Is(err error) bool {
	return err == ErrEngine
}

// NewEngineError returns a new EngineError for the given engine operation.
func NewEngineError(op string, wrap error) *EngineError {
	return &EngineError{Op: op, Wrap: wrap}
}

// IsEngine returns true if the error is an EngineError.
func IsEngine(err error) bool {
	if err == nil {
		return false
	}
	var e *EngineError
	return errors.As(err, &e) || errors.Is(err, ErrEngine)
}
