package safety

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/validator"
)

// ValidatorClient is the slice of the validator adapter the orchestrator needs.
type ValidatorClient interface {
	Health(ctx context.Context) bool
	ValidateRecommendation(ctx context.Context, req validator.ValidationRequest) (*validator.Result, error)
	ValidateBatch(ctx context.Context, reqs []validator.ValidationRequest) ([]validator.BatchItem, error)
}

// ReviewEnqueuer routes checks that need human attention into the review
// queue. Implemented by the review domain.
type ReviewEnqueuer interface {
	EnqueueForCheck(ctx context.Context, check *SafetyCheck) error
}

// ValidationDetail is the per-recommendation audit entry of a validation run.
// Entries preserve the input order of the recommendations.
type ValidationDetail struct {
	Recommendation validator.Recommendation `json:"recommendation"`
	Result         *validator.Result        `json:"result,omitempty"`
	GeneratedCheck *SafetyCheck             `json:"generated_check,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

// ValidationOutcome is the partitioned result of one validation run.
type ValidationOutcome struct {
	Checks         []*SafetyCheck     `json:"checks"`
	Blockers       []*SafetyCheck     `json:"blockers"`
	Warnings       []*SafetyCheck     `json:"warnings"`
	Passed         []*SafetyCheck     `json:"passed"`
	Details        []ValidationDetail `json:"validation_details"`
	IsValid        bool               `json:"is_valid"`
	RequiresReview bool               `json:"requires_review"`
}

func emptyOutcome() *ValidationOutcome {
	return &ValidationOutcome{
		Checks:   []*SafetyCheck{},
		Blockers: []*SafetyCheck{},
		Warnings: []*SafetyCheck{},
		Passed:   []*SafetyCheck{},
		Details:  []ValidationDetail{},
		IsValid:  true,
	}
}

// Orchestrator drives validation of recommendation batches: fan-out to the
// validator, classification, persistence, and review-queue routing.
type Orchestrator struct {
	validator      ValidatorClient
	repo           Repository
	reviews        ReviewEnqueuer
	maxConcurrency int
}

func NewOrchestrator(vc ValidatorClient, repo Repository, reviews ReviewEnqueuer, maxConcurrency int) *Orchestrator {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Orchestrator{
		validator:      vc,
		repo:           repo,
		reviews:        reviews,
		maxConcurrency: maxConcurrency,
	}
}

// ValidateAndGenerateChecks validates each recommendation independently and
// classifies every non-clean result into a persisted SafetyCheck. A failing
// item is logged and skipped; it never aborts its siblings. When the
// validator is unhealthy the batch degrades to an empty successful outcome
// without calling the validate endpoints. A non-empty checkTypes restricts
// the run to checks of those types; classifications outside the set are
// recorded in Details without producing a SafetyCheck.
func (o *Orchestrator) ValidateAndGenerateChecks(ctx context.Context, patientID uuid.UUID, encounterID *uuid.UUID, pctx validator.PatientContext, recs []validator.Recommendation, checkTypes []CheckType) (*ValidationOutcome, error) {
	if len(recs) == 0 {
		return emptyOutcome(), nil
	}
	if !o.validator.Health(ctx) {
		log.Warn().Str("patient_id", patientID.String()).Msg("validator unhealthy, skipping safety validation")
		return emptyOutcome(), nil
	}

	results := make([]*validator.Result, len(recs))
	itemErrs := make([]error, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)
	for i := range recs {
		i := i
		g.Go(func() error {
			res, err := o.validator.ValidateRecommendation(gctx, validator.ValidationRequest{
				PatientContext: pctx,
				Recommendation: recs[i],
			})
			results[i], itemErrs[i] = res, err
			return nil
		})
	}
	g.Wait()

	return o.assemble(ctx, patientID, encounterID, pctx, recs, results, itemErrs, checkTypes, false)
}

// DetectAnomalies runs one batch validator call and classifies only the
// results flagged as anomalies.
func (o *Orchestrator) DetectAnomalies(ctx context.Context, patientID uuid.UUID, encounterID *uuid.UUID, pctx validator.PatientContext, recs []validator.Recommendation, checkTypes []CheckType) (*ValidationOutcome, error) {
	if len(recs) == 0 {
		return emptyOutcome(), nil
	}
	if !o.validator.Health(ctx) {
		log.Warn().Str("patient_id", patientID.String()).Msg("validator unhealthy, skipping anomaly detection")
		return emptyOutcome(), nil
	}

	reqs := make([]validator.ValidationRequest, len(recs))
	for i, rec := range recs {
		reqs[i] = validator.ValidationRequest{PatientContext: pctx, Recommendation: rec}
	}
	items, err := o.validator.ValidateBatch(ctx, reqs)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("validator batch call failed")
		return emptyOutcome(), nil
	}

	results := make([]*validator.Result, len(recs))
	itemErrs := make([]error, len(recs))
	for i, item := range items {
		results[i], itemErrs[i] = item.Result, item.Err
	}
	return o.assemble(ctx, patientID, encounterID, pctx, recs, results, itemErrs, checkTypes, true)
}

// assemble classifies per-item results, persists generated checks, routes
// review items, and partitions the outcome. anomaliesOnly restricts
// classification to results with IsAnomaly set; a non-empty checkTypes
// restricts which classified checks are emitted.
func (o *Orchestrator) assemble(ctx context.Context, patientID uuid.UUID, encounterID *uuid.UUID, pctx validator.PatientContext, recs []validator.Recommendation, results []*validator.Result, itemErrs []error, checkTypes []CheckType, anomaliesOnly bool) (*ValidationOutcome, error) {
	out := emptyOutcome()

	wanted := make(map[CheckType]struct{}, len(checkTypes))
	for _, t := range checkTypes {
		wanted[t] = struct{}{}
	}

	for i, rec := range recs {
		detail := ValidationDetail{Recommendation: rec}

		if err := itemErrs[i]; err != nil {
			log.Warn().Err(err).
				Str("patient_id", patientID.String()).
				Str("recommendation", rec.Text).
				Msg("recommendation validation failed, skipping")
			detail.Error = err.Error()
			out.Details = append(out.Details, detail)
			continue
		}

		res := results[i]
		detail.Result = res

		skip := res.CleanPass()
		if anomaliesOnly {
			skip = !res.IsAnomaly
		}
		if skip {
			out.Details = append(out.Details, detail)
			continue
		}

		check := Classify(patientID, encounterID, pctx, rec, res)
		if len(wanted) > 0 {
			if _, ok := wanted[check.CheckType]; !ok {
				out.Details = append(out.Details, detail)
				continue
			}
		}
		if err := o.repo.Create(ctx, check); err != nil {
			return nil, err
		}
		if o.reviews != nil && RequiresReview(check, res) {
			if err := o.reviews.EnqueueForCheck(ctx, check); err != nil {
				return nil, err
			}
		}

		detail.GeneratedCheck = check
		out.Details = append(out.Details, detail)
		out.Checks = append(out.Checks, check)

		switch check.Status {
		case StatusBlocked:
			out.Blockers = append(out.Blockers, check)
		case StatusFlagged, StatusPending:
			out.Warnings = append(out.Warnings, check)
		default:
			out.Passed = append(out.Passed, check)
		}
	}

	out.IsValid = len(out.Blockers) == 0
	out.RequiresReview = len(out.Blockers) > 0
	for _, w := range out.Warnings {
		if w.Severity.Rank() >= SeverityCritical.Rank() {
			out.RequiresReview = true
			break
		}
	}
	return out, nil
}
