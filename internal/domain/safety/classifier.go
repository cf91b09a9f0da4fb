package safety

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/validator"
)

// factorRule associates deviation-factor keywords with a check type.
// Factors are not mutually exclusive, so classification scans the rules in a
// fixed precedence order and the first match wins.
type factorRule struct {
	keywords  []string
	checkType CheckType
}

var factorRules = []factorRule{
	{[]string{"contraindication"}, CheckContraindication},
	{[]string{"drug", "interaction"}, CheckDrugInteraction},
	{[]string{"allergy"}, CheckAllergyConflict},
	{[]string{"dosage", "dose"}, CheckDosageValidation},
	{[]string{"duplicate", "therapy"}, CheckDuplicateTherapy},
	{[]string{"age", "pediatric", "geriatric"}, CheckAgeAppropriateness},
	{[]string{"pregnancy"}, CheckPregnancySafety},
	{[]string{"renal", "kidney"}, CheckRenalAdjustment},
	{[]string{"hepatic", "liver"}, CheckHepaticAdjustment},
}

// InferCheckType maps deviation factors onto a check type by case-insensitive
// substring match in precedence order. With no matching factor, medication
// recommendations default to DRUG_INTERACTION and everything else to
// CONTRAINDICATION.
func InferCheckType(deviationFactors []string, recommendationType string) CheckType {
	for _, rule := range factorRules {
		for _, factor := range deviationFactors {
			lower := strings.ToLower(factor)
			for _, kw := range rule.keywords {
				if strings.Contains(lower, kw) {
					return rule.checkType
				}
			}
		}
	}
	if strings.EqualFold(recommendationType, validator.RecommendationTypeMedication) {
		return CheckDrugInteraction
	}
	return CheckContraindication
}

// SeverityForAlert maps the validator's alert level onto a severity.
// Total: every alert level, including unknown, yields a severity.
func SeverityForAlert(level validator.AlertLevel) Severity {
	switch level {
	case validator.AlertCritical:
		return SeverityContraindicated
	case validator.AlertHigh:
		return SeverityCritical
	case validator.AlertMedium:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// StatusForResult derives the check status from alert level and tier.
func StatusForResult(res *validator.Result) CheckStatus {
	switch {
	case res.AlertLevel == validator.AlertCritical || res.ValidationTier == validator.TierBlocked:
		return StatusBlocked
	case res.AlertLevel == validator.AlertHigh || res.AlertLevel == validator.AlertMedium:
		return StatusFlagged
	case res.ValidationTier == validator.TierNeedsReview:
		return StatusPending
	default:
		return StatusPassed
	}
}

var checkTypeNames = map[CheckType]string{
	CheckDrugInteraction:    "Drug Interaction",
	CheckAllergyConflict:    "Allergy Conflict",
	CheckContraindication:   "Contraindication",
	CheckDosageValidation:   "Dosage Validation",
	CheckDuplicateTherapy:   "Duplicate Therapy",
	CheckAgeAppropriateness: "Age Appropriateness",
	CheckPregnancySafety:    "Pregnancy Safety",
	CheckRenalAdjustment:    "Renal Adjustment",
	CheckHepaticAdjustment:  "Hepatic Adjustment",
}

func buildTitle(checkType CheckType, res *validator.Result) string {
	name := checkTypeNames[checkType]
	switch {
	case res.IsAnomaly:
		return "Anomaly Detected: " + name
	case !res.IsValid:
		return "Validation Failed: " + name
	case res.ValidationTier == validator.TierNeedsReview:
		return "Review Required: " + name
	default:
		return "Safety Check: " + name
	}
}

func buildDescription(res *validator.Result) string {
	parts := make([]string, 0, 2)
	if res.AlertMessage != "" {
		parts = append(parts, res.AlertMessage)
	}
	if len(res.DeviationFactors) > 0 {
		parts = append(parts, "Deviation factors: "+strings.Join(res.DeviationFactors, ", "))
	}
	return strings.Join(parts, ". ")
}

func buildRationale(res *validator.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Validator confidence: %.0f%%.", res.ConfidenceScore*100)
	if res.IsAnomaly {
		fmt.Fprintf(&b, " Anomaly score: %.0f%%.", res.AnomalyScore*100)
	}
	if res.AlternativeRecommendation != "" {
		fmt.Fprintf(&b, " Suggested alternative: %s (%.0f%% confidence).",
			res.AlternativeRecommendation, res.AlternativeConfidence*100)
	}
	if len(res.SimilarPlanIDs) > 0 {
		ids := res.SimilarPlanIDs
		if len(ids) > 3 {
			ids = ids[:3]
		}
		fmt.Fprintf(&b, " Similar plans: %s.", strings.Join(ids, ", "))
	}
	return b.String()
}

// Classify turns one validator result, with the recommendation and patient
// context that produced it, into an unsaved SafetyCheck. Pure transform:
// sparse input degrades to empty strings and lists, never to a missing
// severity or status.
func Classify(patientID uuid.UUID, encounterID *uuid.UUID, pctx validator.PatientContext, rec validator.Recommendation, res *validator.Result) *SafetyCheck {
	checkType := InferCheckType(res.DeviationFactors, rec.Type)

	check := &SafetyCheck{
		PatientID:           patientID,
		EncounterID:         encounterID,
		CheckType:           checkType,
		Status:              StatusForResult(res),
		Severity:            SeverityForAlert(res.AlertLevel),
		Title:               buildTitle(checkType, res),
		Description:         buildDescription(res),
		ClinicalRationale:   buildRationale(res),
		MedicationCodes:     pctx.MedicationCodes,
		ConditionCodes:      pctx.ConditionCodes,
		AllergyCodes:        pctx.AllergyCodes,
		GuidelineReferences: []string{},
	}
	if rec.ID != "" {
		id := rec.ID
		check.RecommendationID = &id
	}
	if check.MedicationCodes == nil {
		check.MedicationCodes = []string{}
	}
	if check.ConditionCodes == nil {
		check.ConditionCodes = []string{}
	}
	if check.AllergyCodes == nil {
		check.AllergyCodes = []string{}
	}
	return check
}

// RequiresReview reports whether a classified check must be routed to the
// human review queue.
func RequiresReview(check *SafetyCheck, res *validator.Result) bool {
	return check.Severity.Rank() >= SeverityCritical.Rank() ||
		check.Status == StatusBlocked ||
		res.ValidationTier == validator.TierNeedsReview
}
