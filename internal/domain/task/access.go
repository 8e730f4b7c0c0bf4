package task

import (
	"github.com/taskops/taskboard/internal/domain/identity"
)

// Denial reasons surfaced to callers.
const (
	ReasonNotAssignee = "not authorized to update this task"
	ReasonStatusOnly  = "users can only update task status"
	ReasonNotCreator  = "not authorized to delete this task"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanUpdate decides whether the actor may apply a patch with the given
// field set to the task.
//
// Admins may change any field without an ownership check. Everyone else
// must be the current assignee and may only touch the status field: a patch
// containing any other field is rejected whole, it is never partially
// applied. An unassigned task has no assignee, so non-admin updates to it
// always fail closed.
func CanUpdate(actor identity.Actor, t *Task, fields []Field) Decision {
	if actor.Role.IsAdmin() {
		return Allow()
	}

	if !t.IsAssignedTo(actor.ID) {
		return Deny(ReasonNotAssignee)
	}

	for _, f := range fields {
		if f != FieldStatus {
			return Deny(ReasonStatusOnly)
		}
	}

	return Allow()
}

// CanDelete decides whether the actor may delete the task:
// admins and the task's creator may, nobody else.
func CanDelete(actor identity.Actor, t *Task) Decision {
	if actor.Role.IsAdmin() || t.IsCreatedBy(actor.ID) {
		return Allow()
	}
	return Deny(ReasonNotCreator)
}
