package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/domain/safety"
)

const minEscalationReasonLen = 10

// Service is the review queue workflow: enqueueing checks that need human
// attention and driving the assign/resolve/escalate transitions.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// EnqueueForCheck creates a review item for a safety check. The priority is
// derived from the check's severity and the SLA deadline is computed once,
// here, and never recomputed. The creation timestamp is taken from the same
// clock reading so the deadline is exactly created_at plus the SLA.
// Implements safety.ReviewEnqueuer.
func (s *Service) EnqueueForCheck(ctx context.Context, check *safety.SafetyCheck) error {
	priority := PriorityForSeverity(check.Severity)
	now := s.now()

	item := &Item{
		PatientID:        check.PatientID,
		SafetyCheckID:    check.ID,
		RecommendationID: check.RecommendationID,
		Status:           StatusPendingReview,
		Priority:         priority,
		CreatedAt:        now,
		SLADeadline:      now.Add(priority.SLA()),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return err
	}

	log.Info().
		Str("item_id", item.ID.String()).
		Str("check_id", check.ID.String()).
		Str("priority", string(priority)).
		Time("sla_deadline", item.SLADeadline).
		Msg("safety check enqueued for review")
	return nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Overdue = item.IsOverdue(s.now())
	return item, nil
}

func (s *Service) ListItems(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error) {
	items, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.markOverdue(items)
	return items, total, nil
}

// MyQueue returns the caller's unresolved assignments.
func (s *Service) MyQueue(ctx context.Context, assignee string, limit, offset int) ([]*Item, int, error) {
	if assignee == "" {
		return nil, 0, fmt.Errorf("%w: assignee is required", ErrInvalidInput)
	}
	status := StatusInReview
	items, total, err := s.repo.List(ctx, ListFilter{AssignedTo: &assignee, Status: &status}, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.markOverdue(items)
	return items, total, nil
}

// OverdueItems returns unresolved items past their SLA deadline, evaluated
// against the current clock.
func (s *Service) OverdueItems(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	items, total, err := s.repo.ListOverdue(ctx, s.now(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.markOverdue(items)
	return items, total, nil
}

func (s *Service) markOverdue(items []*Item) {
	now := s.now()
	for _, item := range items {
		item.Overdue = item.IsOverdue(now)
	}
}

// Assign moves a pending item into IN_REVIEW for the assignee. Re-assignment
// of an item already in review is allowed; resolved items are not.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, assignee string) (*Item, error) {
	if assignee == "" {
		return nil, fmt.Errorf("%w: assignee is required", ErrInvalidInput)
	}
	item, err := s.repo.Assign(ctx, id, assignee, s.now())
	if err != nil {
		return nil, err
	}
	item.Overdue = item.IsOverdue(s.now())
	return item, nil
}

// Resolve applies an APPROVED or REJECTED decision. The item must currently
// be IN_REVIEW; escalation has its own entry point.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, decision ItemStatus, resolvedBy string, notes *string) (*Item, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return nil, fmt.Errorf("%w: decision must be APPROVED or REJECTED", ErrInvalidInput)
	}
	if resolvedBy == "" {
		return nil, fmt.Errorf("%w: resolver is required", ErrInvalidInput)
	}

	item, err := s.repo.Resolve(ctx, id, Resolution{
		Decision:   decision,
		ResolvedBy: resolvedBy,
		ResolvedAt: s.now(),
		Notes:      notes,
	}, []ItemStatus{StatusInReview})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", id.String()).
		Str("decision", string(decision)).
		Str("resolved_by", resolvedBy).
		Msg("review item resolved")
	return item, nil
}

// Escalate is resolution with the decision fixed to ESCALATED. It is
// reachable from both PENDING_REVIEW and IN_REVIEW, so an item can be
// escalated without a prior assignment.
func (s *Service) Escalate(ctx context.Context, id uuid.UUID, reason, escalatedBy string) (*Item, error) {
	if len(reason) < minEscalationReasonLen {
		return nil, fmt.Errorf("%w: escalation reason must be at least %d characters", ErrInvalidInput, minEscalationReasonLen)
	}
	if escalatedBy == "" {
		return nil, fmt.Errorf("%w: resolver is required", ErrInvalidInput)
	}

	item, err := s.repo.Resolve(ctx, id, Resolution{
		Decision:         StatusEscalated,
		ResolvedBy:       escalatedBy,
		ResolvedAt:       s.now(),
		EscalationReason: &reason,
	}, []ItemStatus{StatusPendingReview, StatusInReview})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", id.String()).
		Str("escalated_by", escalatedBy).
		Msg("review item escalated")
	return item, nil
}
