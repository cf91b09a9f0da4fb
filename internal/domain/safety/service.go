package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/cache"
	"github.com/Prism-Clinical/prism-graphql-sub003/pkg/pagination"
)

const minJustificationLen = 10

// Service is the safety check ledger: reads, the override operation, and the
// cached patient active-alerts view.
type Service struct {
	repo     Repository
	cache    cache.Store
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(repo Repository, store cache.Store, cacheTTL time.Duration) *Service {
	if store == nil {
		store = cache.Noop{}
	}
	return &Service{
		repo:     repo,
		cache:    store,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func (s *Service) GetCheck(ctx context.Context, id uuid.UUID) (*SafetyCheck, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListChecks(ctx context.Context, filter ListFilter, limit, offset int) ([]*SafetyCheck, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// ListChecksAfter pages through checks with an opaque keyset cursor. Returns
// the page and the cursor for the next page, empty when the page is short.
func (s *Service) ListChecksAfter(ctx context.Context, filter ListFilter, cursor string, limit int) ([]*SafetyCheck, string, error) {
	var after *pagination.Cursor
	if cursor != "" {
		cur, err := pagination.DecodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		after = &cur
	}

	checks, err := s.repo.ListAfter(ctx, filter, after, limit)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(checks) == limit && limit > 0 {
		last := checks[len(checks)-1]
		next = pagination.EncodeCursor(last.CreatedAt, last.ID)
	}
	return checks, next, nil
}

func activeAlertsKey(patientID uuid.UUID) string {
	return "safety:active-alerts:" + patientID.String()
}

// ActiveAlerts returns the patient's high-severity unresolved checks through
// a read-through cache. Cache failures fall back to the database.
func (s *Service) ActiveAlerts(ctx context.Context, patientID uuid.UUID) ([]*SafetyCheck, error) {
	key := activeAlertsKey(patientID)

	if b, err := s.cache.Get(ctx, key); err == nil {
		var checks []*SafetyCheck
		if err := json.Unmarshal(b, &checks); err == nil {
			return checks, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("active alerts cache read failed")
	}

	checks, err := s.repo.ActiveAlerts(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(checks); err == nil {
		if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("active alerts cache write failed")
		}
	}
	return checks, nil
}

// OverrideCheck records a clinician's documented decision to proceed despite
// a flagged or blocked check. expiresInHours nil means the override has no
// expiry.
func (s *Service) OverrideCheck(ctx context.Context, id uuid.UUID, reason OverrideReason, justification string, expiresInHours *int, overriddenBy string) (*SafetyCheck, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown override reason %q", ErrInvalidInput, reason)
	}
	if len(justification) < minJustificationLen {
		return nil, fmt.Errorf("%w: justification must be at least %d characters", ErrInvalidInput, minJustificationLen)
	}
	if overriddenBy == "" {
		return nil, fmt.Errorf("%w: overridden_by is required", ErrInvalidInput)
	}

	now := s.now()
	ov := Override{
		Reason:        reason,
		Justification: justification,
		OverriddenBy:  overriddenBy,
		OverriddenAt:  now,
	}
	if expiresInHours != nil {
		if *expiresInHours <= 0 {
			return nil, fmt.Errorf("%w: expires_in_hours must be positive", ErrInvalidInput)
		}
		expires := now.Add(time.Duration(*expiresInHours) * time.Hour)
		ov.ExpiresAt = &expires
	}

	check, err := s.repo.Override(ctx, id, ov)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, activeAlertsKey(check.PatientID)); err != nil {
		log.Warn().Err(err).Str("patient_id", check.PatientID.String()).Msg("active alerts cache invalidation failed")
	}

	log.Info().
		Str("check_id", id.String()).
		Str("reason", string(reason)).
		Str("overridden_by", overriddenBy).
		Msg("safety check overridden")
	return check, nil
}

// InvalidateActiveAlerts drops the cached active-alerts view for a patient.
// Called after validation runs create new checks.
func (s *Service) InvalidateActiveAlerts(ctx context.Context, patientID uuid.UUID) {
	if err := s.cache.Delete(ctx, activeAlertsKey(patientID)); err != nil {
		log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("active alerts cache invalidation failed")
	}
}
