package safety

import (
	"context"

	"github.com/google/uuid"

	"github.com/Prism-Clinical/prism-graphql-sub003/pkg/pagination"
)

// ListFilter narrows safety check listings. Nil fields are not applied.
type ListFilter struct {
	PatientID   *uuid.UUID
	EncounterID *uuid.UUID
	CheckType   *CheckType
	Status      *CheckStatus
	Severity    *Severity
}

// Repository persists safety checks. Checks are never deleted.
type Repository interface {
	Create(ctx context.Context, check *SafetyCheck) error
	GetByID(ctx context.Context, id uuid.UUID) (*SafetyCheck, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*SafetyCheck, int, error)
	ListAfter(ctx context.Context, filter ListFilter, after *pagination.Cursor, limit int) ([]*SafetyCheck, error)
	// ActiveAlerts returns checks with severity CRITICAL or CONTRAINDICATED
	// and status FLAGGED or BLOCKED for one patient.
	ActiveAlerts(ctx context.Context, patientID uuid.UUID) ([]*SafetyCheck, error)
	// Override conditionally transitions a BLOCKED or FLAGGED check to
	// OVERRIDDEN and stamps the override metadata in the same statement.
	// Returns ErrNotFound if the check does not exist and ErrNotOverridable
	// if it exists but is not in an overridable state.
	Override(ctx context.Context, id uuid.UUID, ov Override) (*SafetyCheck, error)
}
