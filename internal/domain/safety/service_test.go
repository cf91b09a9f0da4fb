package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/cache"
)

type memCache struct {
	entries map[string][]byte
	gets    int
	deletes int
}

func newMemCache() *memCache { return &memCache{entries: make(map[string][]byte)} }

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.gets++
	b, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, keys ...string) error {
	m.deletes++
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedCheck(repo *mockRepo, status CheckStatus, severity Severity) *SafetyCheck {
	check := &SafetyCheck{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		CheckType: CheckDrugInteraction,
		Status:    status,
		Severity:  severity,
	}
	repo.checks[check.ID] = check
	return check
}

func TestOverrideCheck(t *testing.T) {
	repo := newMockRepo()
	check := seedCheck(repo, StatusBlocked, SeverityContraindicated)

	svc := NewService(repo, newMemCache(), time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)

	hours := 2
	got, err := svc.OverrideCheck(context.Background(), check.ID, ReasonClinicalJudgment, "patient monitored in ICU", &hours, "dr-smith")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got.Status != StatusOverridden {
		t.Errorf("status: got %s", got.Status)
	}
	if got.OverrideReason == nil || *got.OverrideReason != ReasonClinicalJudgment {
		t.Error("override reason not stored")
	}
	if got.OverriddenBy == nil || *got.OverriddenBy != "dr-smith" {
		t.Error("overridden_by not stored")
	}
	if got.OverrideExpiresAt == nil || !got.OverrideExpiresAt.Equal(now.Add(2*time.Hour)) {
		t.Errorf("expiry: got %v, want %v", got.OverrideExpiresAt, now.Add(2*time.Hour))
	}
}

func TestOverrideCheck_NoExpiry(t *testing.T) {
	repo := newMockRepo()
	check := seedCheck(repo, StatusFlagged, SeverityCritical)
	svc := NewService(repo, newMemCache(), time.Minute)

	got, err := svc.OverrideCheck(context.Background(), check.ID, ReasonSpecialistApproved, "cardiology approved this plan", nil, "dr-jones")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got.OverrideExpiresAt != nil {
		t.Errorf("expected permanent override, got expiry %v", got.OverrideExpiresAt)
	}
}

func TestOverrideCheck_Validation(t *testing.T) {
	repo := newMockRepo()
	check := seedCheck(repo, StatusBlocked, SeverityContraindicated)
	svc := NewService(repo, newMemCache(), time.Minute)
	ctx := context.Background()

	if _, err := svc.OverrideCheck(ctx, check.ID, "GUT_FEELING", "a perfectly long justification", nil, "dr-x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown reason: got %v", err)
	}
	if _, err := svc.OverrideCheck(ctx, check.ID, ReasonClinicalJudgment, "too short", nil, "dr-x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short justification: got %v", err)
	}
	if _, err := svc.OverrideCheck(ctx, check.ID, ReasonClinicalJudgment, "a perfectly long justification", nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing overridden_by: got %v", err)
	}
	neg := -1
	if _, err := svc.OverrideCheck(ctx, check.ID, ReasonClinicalJudgment, "a perfectly long justification", &neg, "dr-x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative expiry: got %v", err)
	}
}

func TestOverrideCheck_GuardsTerminalStates(t *testing.T) {
	repo := newMockRepo()
	passed := seedCheck(repo, StatusPassed, SeverityInfo)
	svc := NewService(repo, newMemCache(), time.Minute)

	if _, err := svc.OverrideCheck(context.Background(), passed.ID, ReasonClinicalJudgment, "a perfectly long justification", nil, "dr-x"); !errors.Is(err, ErrNotOverridable) {
		t.Errorf("expected ErrNotOverridable for PASSED check, got %v", err)
	}

	if _, err := svc.OverrideCheck(context.Background(), uuid.New(), ReasonClinicalJudgment, "a perfectly long justification", nil, "dr-x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing check, got %v", err)
	}
}

func TestActiveAlerts_ReadThroughCache(t *testing.T) {
	repo := newMockRepo()
	check := seedCheck(repo, StatusBlocked, SeverityContraindicated)
	mc := newMemCache()
	svc := NewService(repo, mc, time.Minute)
	ctx := context.Background()

	alerts, err := svc.ActiveAlerts(ctx, check.PatientID)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}

	// Second read is served from cache even if the row disappears.
	delete(repo.checks, check.ID)
	alerts, err = svc.ActiveAlerts(ctx, check.PatientID)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("expected cached alert, got %d", len(alerts))
	}
}

func TestOverrideCheck_InvalidatesActiveAlertsCache(t *testing.T) {
	repo := newMockRepo()
	check := seedCheck(repo, StatusBlocked, SeverityContraindicated)
	mc := newMemCache()
	svc := NewService(repo, mc, time.Minute)
	ctx := context.Background()

	if _, err := svc.ActiveAlerts(ctx, check.PatientID); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := svc.OverrideCheck(ctx, check.ID, ReasonMonitoringInPlace, "telemetry monitoring in place", nil, "dr-x"); err != nil {
		t.Fatalf("override: %v", err)
	}

	alerts, err := svc.ActiveAlerts(ctx, check.PatientID)
	if err != nil {
		t.Fatalf("read after override: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("overridden check must leave the active alerts view, got %d", len(alerts))
	}
}
