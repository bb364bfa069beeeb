// Package workflow bridges the instance resolver to the external business
// process engine: process start and cancellation, task listing and task
// completion with state variables.
package workflow

import "context"

// Variable is a single engine process variable.
type Variable struct {
	Value any `json:"value"`
}

// Variables is the engine wire shape for process variables.
type Variables map[string]Variable

// MarshalState converts state-field values to engine variables. Only
// strings, numbers and nil are forwarded; values of any other type are
// dropped silently.
func MarshalState(state map[string]any) Variables {
	vars := make(Variables, len(state))
	for k, v := range state {
		switch v.(type) {
		case nil, string, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, float32, float64:
			vars[k] = Variable{Value: v}
		}
	}
	return vars
}

// StartAfterActivity instructs the engine to begin execution after the
// named activity, used when restarting a process for an existing entity.
const StartAfterActivity = "startAfterActivity"

// StartInstruction positions a newly started process instance.
type StartInstruction struct {
	Type       string `json:"type"`
	ActivityID string `json:"activityId,omitempty"`
}

// StartProcessRequest begins a process keyed by an entity id.
type StartProcessRequest struct {
	Key               string
	BusinessKey       string
	StartInstructions []StartInstruction
	Variables         Variables
}

// ProcessInstance is a running (or historic) engine process.
type ProcessInstance struct {
	ID          string `json:"id"`
	BusinessKey string `json:"businessKey"`
}

// Task is one open user task of a process instance.
type Task struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	TaskDefinitionKey string `json:"taskDefinitionKey"`
	ProcessInstanceID string `json:"processInstanceId,omitempty"`
	Assignee          string `json:"assignee,omitempty"`
	Created           string `json:"created,omitempty"`

	// Links carries the engine's HAL transport links; they are stripped
	// before tasks are returned to clients.
	Links any `json:"_links,omitempty"`
}

// StripLinks removes transport links from every task.
func StripLinks(tasks []Task) []Task {
	for i := range tasks {
		tasks[i].Links = nil
	}
	return tasks
}

// TaskQuery filters task listings.
type TaskQuery struct {
	ProcessInstanceBusinessKey string
}

// InstanceQuery filters process instance listings.
type InstanceQuery struct {
	BusinessKey string
}

// Engine is the business process engine surface the resolver requires.
// Implementations must be safe for concurrent use. All failures are
// reported as curator.EngineError.
type Engine interface {
	// StartProcess begins a process keyed by the entity id.
	StartProcess(ctx context.Context, req StartProcessRequest) (*ProcessInstance, error)

	// ListTasks returns open tasks in engine order.
	ListTasks(ctx context.Context, q TaskQuery) ([]Task, error)

	// ListProcessInstances returns instances matching the query.
	ListProcessInstances(ctx context.Context, q InstanceQuery) ([]ProcessInstance, error)

	// DeleteProcessInstance cancels an instance. Deleting an already
	// deleted instance is not an error.
	DeleteProcessInstance(ctx context.Context, id string) error

	// CompleteTask marks a task done with the given variables.
	CompleteTask(ctx context.Context, taskID string, vars Variables) error
}
