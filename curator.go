// Package curator provides the core types shared by the model-driven
// instance resolver: entity instances, authenticated subjects, the task
// completion result set and the error taxonomy.
//
// The resolver itself lives in the resolver package; persistence, workflow
// engine access and event publication are behind the storage, workflow and
// pubsub packages.
package curator

// Subject is the authenticated identity a request acts on behalf of.
// A nil *Subject means the request is anonymous.
type Subject struct {
	ID            string
	Email         string
	EmailVerified bool
	Admin         bool
}

// CompletionResult is the closed set of policy outcomes a task completion
// may return. Fatal conditions are reported as errors instead.
type CompletionResult string

const (
	// Success indicates the task was completed on the engine.
	Success CompletionResult = "Success"

	// ValidatedEmailRequired indicates the outcome requires a submitter
	// with a verified email address and the subject has none.
	ValidatedEmailRequired CompletionResult = "ValidatedEmailRequired"

	// ValidationFailed indicates the server-side validation set rejected
	// the entity. The entity is left unchanged.
	ValidationFailed CompletionResult = "ValidationFailed"
)
