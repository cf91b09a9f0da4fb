package review

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows review queue listings. Nil fields are not applied.
type ListFilter struct {
	PatientID  *uuid.UUID
	Status     *ItemStatus
	Priority   *Priority
	AssignedTo *string
}

// Resolution holds the fields written by a resolve or escalate transition.
type Resolution struct {
	Decision         ItemStatus
	ResolvedBy       string
	ResolvedAt       time.Time
	Notes            *string
	EscalationReason *string
}

// Repository persists review queue items. Items are never deleted.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error)
	// ListOverdue returns unresolved items whose SLA deadline is before now.
	ListOverdue(ctx context.Context, now time.Time, limit, offset int) ([]*Item, int, error)
	// Assign conditionally sets the assignee and moves the item to IN_REVIEW.
	// Only PENDING_REVIEW and IN_REVIEW items may be assigned; anything else
	// returns ErrInvalidTransition, a missing item returns ErrNotFound.
	Assign(ctx context.Context, id uuid.UUID, assignee string, at time.Time) (*Item, error)
	// Resolve conditionally applies a terminal decision. The transition only
	// fires when the current status is one of allowedFrom; the precondition
	// and the metadata write land in a single statement.
	Resolve(ctx context.Context, id uuid.UUID, res Resolution, allowedFrom []ItemStatus) (*Item, error)
}
