package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/domain/safety"
)

type mockRepo struct {
	items map[uuid.UUID]*Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) Create(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	i, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return i, nil
}

func (m *mockRepo) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error) {
	out := []*Item{}
	for _, i := range m.items {
		if filter.PatientID != nil && i.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != nil && i.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && i.Priority != *filter.Priority {
			continue
		}
		if filter.AssignedTo != nil && (i.AssignedTo == nil || *i.AssignedTo != *filter.AssignedTo) {
			continue
		}
		out = append(out, i)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListOverdue(ctx context.Context, now time.Time, limit, offset int) ([]*Item, int, error) {
	out := []*Item{}
	for _, i := range m.items {
		if i.IsOverdue(now) {
			out = append(out, i)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Assign(ctx context.Context, id uuid.UUID, assignee string, at time.Time) (*Item, error) {
	i, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if i.Status != StatusPendingReview && i.Status != StatusInReview {
		return nil, ErrInvalidTransition
	}
	i.Status = StatusInReview
	i.AssignedTo = &assignee
	i.AssignedAt = &at
	return i, nil
}

func (m *mockRepo) Resolve(ctx context.Context, id uuid.UUID, res Resolution, allowedFrom []ItemStatus) (*Item, error) {
	i, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	allowed := false
	for _, s := range allowedFrom {
		if i.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}
	i.Status = res.Decision
	decision := res.Decision
	i.ResolutionDecision = &decision
	i.ResolvedBy = &res.ResolvedBy
	at := res.ResolvedAt
	i.ResolvedAt = &at
	i.ResolutionNotes = res.Notes
	i.EscalationReason = res.EscalationReason
	return i, nil
}

func newTestService(repo *mockRepo, now time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func check(severity safety.Severity) *safety.SafetyCheck {
	return &safety.SafetyCheck{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Severity:  severity,
		Status:    safety.StatusBlocked,
	}
}

func TestPriorityForSeverity(t *testing.T) {
	tests := []struct {
		severity safety.Severity
		want     Priority
	}{
		{safety.SeverityContraindicated, P0Critical},
		{safety.SeverityCritical, P1High},
		{safety.SeverityWarning, P2Medium},
		{safety.SeverityInfo, P3Low},
	}
	for _, tt := range tests {
		if got := PriorityForSeverity(tt.severity); got != tt.want {
			t.Errorf("PriorityForSeverity(%s) = %s, want %s", tt.severity, got, tt.want)
		}
	}
}

func TestEnqueueForCheck_SLADeadlines(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		severity safety.Severity
		deadline time.Time
	}{
		{safety.SeverityContraindicated, now.Add(time.Hour)},
		{safety.SeverityCritical, now.Add(4 * time.Hour)},
		{safety.SeverityWarning, now.Add(24 * time.Hour)},
		{safety.SeverityInfo, now.Add(72 * time.Hour)},
	}
	for _, tt := range tests {
		repo := newMockRepo()
		svc := newTestService(repo, now)

		if err := svc.EnqueueForCheck(context.Background(), check(tt.severity)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		for _, item := range repo.items {
			if !item.SLADeadline.Equal(tt.deadline) {
				t.Errorf("%s: deadline %v, want %v", tt.severity, item.SLADeadline, tt.deadline)
			}
			if !item.CreatedAt.Equal(now) {
				t.Errorf("%s: created_at %v, want %v", tt.severity, item.CreatedAt, now)
			}
			if !item.SLADeadline.Equal(item.CreatedAt.Add(item.Priority.SLA())) {
				t.Errorf("%s: deadline must equal created_at plus the SLA window", tt.severity)
			}
			if item.Status != StatusPendingReview {
				t.Errorf("new item should be PENDING_REVIEW, got %s", item.Status)
			}
		}
	}
}

func TestIsOverdue(t *testing.T) {
	deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := deadline.Add(time.Minute)
	before := deadline.Add(-time.Minute)

	tests := []struct {
		name   string
		status ItemStatus
		now    time.Time
		want   bool
	}{
		{"pending past deadline", StatusPendingReview, past, true},
		{"in review past deadline", StatusInReview, past, true},
		{"pending before deadline", StatusPendingReview, before, false},
		{"approved past deadline", StatusApproved, past, false},
		{"rejected past deadline", StatusRejected, past, false},
		{"escalated past deadline", StatusEscalated, past, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Item{Status: tt.status, SLADeadline: deadline}
			if got := item.IsOverdue(tt.now); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssignThenResolve(t *testing.T) {
	now := time.Now()
	repo := newMockRepo()
	svc := newTestService(repo, now)
	ctx := context.Background()

	if err := svc.EnqueueForCheck(ctx, check(safety.SeverityCritical)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var id uuid.UUID
	for itemID := range repo.items {
		id = itemID
	}

	item, err := svc.Assign(ctx, id, "nurse-42")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if item.Status != StatusInReview || item.AssignedTo == nil || *item.AssignedTo != "nurse-42" {
		t.Errorf("after assign: %+v", item)
	}

	notes := "reviewed against current labs"
	item, err = svc.Resolve(ctx, id, StatusApproved, "nurse-42", &notes)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.Status != StatusApproved {
		t.Errorf("status: got %s", item.Status)
	}
	if item.AssignedTo == nil || *item.AssignedTo != "nurse-42" {
		t.Error("assignee must be retained through resolution")
	}
	if item.ResolutionDecision == nil || *item.ResolutionDecision != StatusApproved {
		t.Error("resolution decision not stored")
	}
}

func TestResolve_RequiresInReview(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, time.Now())
	ctx := context.Background()

	if err := svc.EnqueueForCheck(ctx, check(safety.SeverityCritical)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var id uuid.UUID
	for itemID := range repo.items {
		id = itemID
	}

	if _, err := svc.Resolve(ctx, id, StatusApproved, "nurse-42", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resolving a PENDING_REVIEW item: got %v", err)
	}
}

func TestEscalate_DirectlyFromPending(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, time.Now())
	ctx := context.Background()

	if err := svc.EnqueueForCheck(ctx, check(safety.SeverityContraindicated)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var id uuid.UUID
	for itemID := range repo.items {
		id = itemID
	}

	reason := "needs specialist input and more history"
	item, err := svc.Escalate(ctx, id, reason, "dr-x")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if item.Status != StatusEscalated {
		t.Errorf("status: got %s", item.Status)
	}
	if item.EscalationReason == nil || *item.EscalationReason != reason {
		t.Error("escalation reason not stored")
	}
	if item.AssignedTo != nil {
		t.Error("direct escalation should not invent an assignee")
	}
}

func TestEscalate_ShortReason(t *testing.T) {
	svc := newTestService(newMockRepo(), time.Now())
	if _, err := svc.Escalate(context.Background(), uuid.New(), "too short", "dr-x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v", err)
	}
}

func TestResolve_InvalidDecision(t *testing.T) {
	svc := newTestService(newMockRepo(), time.Now())
	if _, err := svc.Resolve(context.Background(), uuid.New(), StatusEscalated, "dr-x", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ESCALATED via resolve: got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), uuid.New(), StatusInReview, "dr-x", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("non-terminal decision: got %v", err)
	}
}

func TestTerminalStatesAreFrozen(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, time.Now())
	ctx := context.Background()

	if err := svc.EnqueueForCheck(ctx, check(safety.SeverityCritical)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var id uuid.UUID
	for itemID := range repo.items {
		id = itemID
	}

	if _, err := svc.Assign(ctx, id, "nurse-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Resolve(ctx, id, StatusRejected, "nurse-1", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := svc.Assign(ctx, id, "nurse-2"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("assign on resolved item: got %v", err)
	}
	if _, err := svc.Escalate(ctx, id, "a long enough escalation reason", "dr-x"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("escalate on resolved item: got %v", err)
	}
}

func TestAssign_NotFound(t *testing.T) {
	svc := newTestService(newMockRepo(), time.Now())
	if _, err := svc.Assign(context.Background(), uuid.New(), "nurse-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestMyQueue(t *testing.T) {
	now := time.Now()
	repo := newMockRepo()
	svc := newTestService(repo, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.EnqueueForCheck(ctx, check(safety.SeverityCritical)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	var assigned uuid.UUID
	for id := range repo.items {
		assigned = id
		break
	}
	if _, err := svc.Assign(ctx, assigned, "nurse-42"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	items, total, err := svc.MyQueue(ctx, "nurse-42", 20, 0)
	if err != nil {
		t.Fatalf("my queue: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected exactly the assigned item, got %d", total)
	}

	if _, _, err := svc.MyQueue(ctx, "", 20, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty assignee: got %v", err)
	}
}
