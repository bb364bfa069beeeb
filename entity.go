package curator

import (
	"maps"
	"time"
)

// Well-known entity fields present on every instance.
const (
	FieldID      = "id"
	FieldCreated = "created"
	FieldUpdated = "updated"

	// FieldRestrictedFields is the synthetic result field listing the
	// requested fields the read ACL withheld.
	FieldRestrictedFields = "restrictedFields"

	// FieldTasks is the synthetic result field resolved against the
	// workflow engine rather than the store.
	FieldTasks = "tasks"
)

// Entity is a single persisted instance of a declared model. Values are
// keyed by element field name; eagerly loaded relations are attached under
// their element field as nested entities.
type Entity map[string]any

// ID returns the entity identifier, or the empty string when unset.
func (e Entity) ID() string {
	id, _ := e[FieldID].(string)
	return id
}

// Created returns the creation timestamp, or the zero time when unset.
func (e Entity) Created() time.Time {
	return e.timeField(FieldCreated)
}

// Updated returns the last-modification timestamp, or the zero time when unset.
func (e Entity) Updated() time.Time {
	return e.timeField(FieldUpdated)
}

func (e Entity) timeField(field string) time.Time {
	switch v := e[field].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

// Touch refreshes the updated timestamp.
func (e Entity) Touch(now time.Time) {
	e[FieldUpdated] = now.UTC()
}

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	return maps.Clone(e)
}

// Empty reports whether the given field is absent, nil or the empty string.
// Identifier-sequence assignment uses it to decide whether a field still
// needs a value.
func (e Entity) Empty(field string) bool {
	v, ok := e[field]
	if !ok || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
