// Package review implements the human review queue: priority-derived SLA
// deadlines, assignment, resolution and escalation over items created from
// safety checks.
package review

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/domain/safety"
)

var (
	// ErrNotFound indicates the target review item does not exist.
	ErrNotFound = errors.New("review item not found")
	// ErrInvalidTransition indicates the requested transition is not allowed
	// from the item's current state.
	ErrInvalidTransition = errors.New("invalid review state transition")
	// ErrInvalidInput indicates a caller-supplied field failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// ItemStatus is the review workflow state.
// PENDING_REVIEW → IN_REVIEW → {APPROVED, REJECTED, ESCALATED}; escalation is
// also reachable directly from PENDING_REVIEW. Terminal states never change.
type ItemStatus string

const (
	StatusPendingReview ItemStatus = "PENDING_REVIEW"
	StatusInReview      ItemStatus = "IN_REVIEW"
	StatusApproved      ItemStatus = "APPROVED"
	StatusRejected      ItemStatus = "REJECTED"
	StatusEscalated     ItemStatus = "ESCALATED"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case StatusPendingReview, StatusInReview, StatusApproved, StatusRejected, StatusEscalated:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave the state.
func (s ItemStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusEscalated:
		return true
	}
	return false
}

// Priority determines the SLA deadline assigned at creation.
type Priority string

const (
	P0Critical Priority = "P0_CRITICAL"
	P1High     Priority = "P1_HIGH"
	P2Medium   Priority = "P2_MEDIUM"
	P3Low      Priority = "P3_LOW"
)

func (p Priority) Valid() bool {
	switch p {
	case P0Critical, P1High, P2Medium, P3Low:
		return true
	}
	return false
}

// SLA returns the resolution window for the priority.
func (p Priority) SLA() time.Duration {
	switch p {
	case P0Critical:
		return time.Hour
	case P1High:
		return 4 * time.Hour
	case P2Medium:
		return 24 * time.Hour
	default:
		return 72 * time.Hour
	}
}

// PriorityForSeverity maps a safety check's severity onto a queue priority.
func PriorityForSeverity(sev safety.Severity) Priority {
	switch sev {
	case safety.SeverityContraindicated:
		return P0Critical
	case safety.SeverityCritical:
		return P1High
	case safety.SeverityWarning:
		return P2Medium
	default:
		return P3Low
	}
}

// Item maps to the review_queue_item table. SLADeadline is frozen at
// creation; Overdue is derived at read time and never persisted.
type Item struct {
	ID                 uuid.UUID   `db:"id" json:"id"`
	PatientID          uuid.UUID   `db:"patient_id" json:"patient_id"`
	SafetyCheckID      uuid.UUID   `db:"safety_check_id" json:"safety_check_id"`
	RecommendationID   *string     `db:"recommendation_id" json:"recommendation_id,omitempty"`
	Status             ItemStatus  `db:"status" json:"status"`
	Priority           Priority    `db:"priority" json:"priority"`
	AssignedTo         *string     `db:"assigned_to" json:"assigned_to,omitempty"`
	AssignedAt         *time.Time  `db:"assigned_at" json:"assigned_at,omitempty"`
	SLADeadline        time.Time   `db:"sla_deadline" json:"sla_deadline"`
	ResolvedBy         *string     `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionDecision *ItemStatus `db:"resolution_decision" json:"resolution_decision,omitempty"`
	ResolutionNotes    *string     `db:"resolution_notes" json:"resolution_notes,omitempty"`
	EscalationReason   *string     `db:"escalation_reason" json:"escalation_reason,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
	Overdue            bool        `db:"-" json:"overdue"`
}

// IsOverdue reports whether the item has breached its SLA and still awaits
// resolution.
func (i *Item) IsOverdue(now time.Time) bool {
	if i.Status != StatusPendingReview && i.Status != StatusInReview {
		return false
	}
	return now.After(i.SLADeadline)
}
