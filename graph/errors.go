package graph

import (
	"errors"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/syssam/curator"
)

// Extension codes attached to presented errors.
const (
	CodeBadUserInput = "BAD_USER_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeLogic        = "LOGIC"
	CodeEngine       = "ENGINE"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

// Present maps a curator error to a GraphQL error with a machine-readable
// extension code. Engine errors stay opaque; their detail is already
// logged where they occurred.
func Present(err error) *gqlerror.Error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	switch {
	case curator.IsUserInput(err):
		code = CodeBadUserInput
	case curator.IsNotFound(err):
		code = CodeNotFound
	case curator.IsAuthorization(err):
		code = CodeForbidden
	case curator.IsLogic(err):
		code = CodeLogic
	case curator.IsEngine(err):
		code = CodeEngine
	}
	out := &gqlerror.Error{
		Message:    err.Error(),
		Extensions: map[string]any{"code": code},
	}
	var ae *curator.AuthorizationError
	if errors.As(err, &ae) && len(ae.Fields) > 0 {
		out.Extensions["fields"] = ae.Fields
	}
	return out
}
