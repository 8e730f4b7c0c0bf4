package task

import (
	"fmt"
	"time"

	"github.com/taskops/taskboard/internal/domain/errs"
	"github.com/taskops/taskboard/internal/domain/uuid"
)

// Field names a patchable task field. The field set of a patch is what
// authorization inspects: presence of a disallowed field rejects the whole
// patch, there is no per-field filtering.
type Field string

// Patchable fields.
const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldDueDate     Field = "dueDate"
	FieldAssignedTo  Field = "assignedTo"
)

// Patch is a partial update to a task. Only fields explicitly set are part
// of the patch; a patch is applied atomically or not at all.
//
// The assignee arrives as a raw string because callers clear an assignment
// by sending an empty string, the literal "null", or a JSON null.
// NormalizeAssignee resolves the raw value before the patch is applied.
type Patch struct {
	title       *string
	description *string
	status      *Status
	priority    *Priority

	dueDate    *time.Time
	dueDateSet bool

	assigneeRaw *string
	assigneeSet bool
	assigneeID  *uuid.UUID
	normalized  bool
}

// NewPatch creates an empty patch.
func NewPatch() *Patch {
	return &Patch{}
}

// SetTitle sets the title field.
func (p *Patch) SetTitle(title string) *Patch {
	p.title = &title
	return p
}

// SetDescription sets the description field.
func (p *Patch) SetDescription(description string) *Patch {
	p.description = &description
	return p
}

// SetStatus sets the status field.
func (p *Patch) SetStatus(status Status) *Patch {
	p.status = &status
	return p
}

// SetPriority sets the priority field.
func (p *Patch) SetPriority(priority Priority) *Patch {
	p.priority = &priority
	return p
}

// SetDueDate sets the due date field. A nil value clears the due date.
func (p *Patch) SetDueDate(dueDate *time.Time) *Patch {
	p.dueDate = dueDate
	p.dueDateSet = true
	return p
}

// SetAssigneeRaw sets the assignee field from its wire value.
// A nil pointer stands for JSON null.
func (p *Patch) SetAssigneeRaw(raw *string) *Patch {
	p.assigneeRaw = raw
	p.assigneeSet = true
	p.normalized = false
	return p
}

// SetAssignee sets the assignee field to an already-parsed user id.
// A nil id clears the assignment.
func (p *Patch) SetAssignee(id *uuid.UUID) *Patch {
	p.assigneeID = id
	p.assigneeSet = true
	p.normalized = true
	return p
}

// NormalizeAssignee coerces the raw assignee value: nil, "" and the literal
// "null" become an explicit unset; anything else must be a valid user id.
func (p *Patch) NormalizeAssignee() error {
	if !p.assigneeSet || p.normalized {
		return nil
	}

	if p.assigneeRaw == nil || *p.assigneeRaw == "" || *p.assigneeRaw == "null" {
		p.assigneeID = nil
		p.normalized = true
		return nil
	}

	id, err := uuid.ParseUUID(*p.assigneeRaw)
	if err != nil {
		return fmt.Errorf("%w: invalid assignee id %q", errs.ErrInvalidInput, *p.assigneeRaw)
	}
	p.assigneeID = &id
	p.normalized = true
	return nil
}

// Fields returns the set of fields present in the patch.
func (p *Patch) Fields() []Field {
	fields := make([]Field, 0, 6)
	if p.title != nil {
		fields = append(fields, FieldTitle)
	}
	if p.description != nil {
		fields = append(fields, FieldDescription)
	}
	if p.status != nil {
		fields = append(fields, FieldStatus)
	}
	if p.priority != nil {
		fields = append(fields, FieldPriority)
	}
	if p.dueDateSet {
		fields = append(fields, FieldDueDate)
	}
	if p.assigneeSet {
		fields = append(fields, FieldAssignedTo)
	}
	return fields
}

// Has reports whether the patch contains the given field.
func (p *Patch) Has(field Field) bool {
	for _, f := range p.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the patch contains no fields.
func (p *Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Title returns the title value and whether it is set.
func (p *Patch) Title() (string, bool) {
	if p.title == nil {
		return "", false
	}
	return *p.title, true
}

// Description returns the description value and whether it is set.
func (p *Patch) Description() (string, bool) {
	if p.description == nil {
		return "", false
	}
	return *p.description, true
}

// Status returns the status value and whether it is set.
func (p *Patch) Status() (Status, bool) {
	if p.status == nil {
		return "", false
	}
	return *p.status, true
}

// Priority returns the priority value and whether it is set.
func (p *Patch) Priority() (Priority, bool) {
	if p.priority == nil {
		return "", false
	}
	return *p.priority, true
}

// DueDate returns the due date value and whether it is set.
// A nil value with true means the due date is cleared.
func (p *Patch) DueDate() (*time.Time, bool) {
	return p.dueDate, p.dueDateSet
}

// Assignee returns the normalized assignee id and whether the field is set.
// A nil id with true means the assignment is cleared.
// NormalizeAssignee must have run first.
func (p *Patch) Assignee() (*uuid.UUID, bool) {
	return p.assigneeID, p.assigneeSet && p.normalized
}

// ApplyTo applies the patch to a task in place. CreatedBy and the comment
// sequence are not patchable and stay untouched.
func (p *Patch) ApplyTo(t *Task) {
	if title, ok := p.Title(); ok {
		t.Title = title
	}
	if description, ok := p.Description(); ok {
		t.Description = description
	}
	if status, ok := p.Status(); ok {
		t.Status = status
	}
	if priority, ok := p.Priority(); ok {
		t.Priority = priority
	}
	if dueDate, ok := p.DueDate(); ok {
		t.DueDate = dueDate
	}
	if assignee, ok := p.Assignee(); ok {
		t.AssignedTo = assignee
	}
}
