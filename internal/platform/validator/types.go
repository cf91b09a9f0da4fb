// Package validator is the HTTP adapter to the external ML recommendation
// validator service. It exposes single-item and batch validation plus a
// health probe, and validates enum values at the boundary so unknown
// strings never propagate into persisted records.
package validator

import "fmt"

// AlertLevel is the validator's urgency signal.
type AlertLevel string

const (
	AlertNone     AlertLevel = "NONE"
	AlertLow      AlertLevel = "LOW"
	AlertMedium   AlertLevel = "MEDIUM"
	AlertHigh     AlertLevel = "HIGH"
	AlertCritical AlertLevel = "CRITICAL"
)

func (a AlertLevel) Valid() bool {
	switch a {
	case AlertNone, AlertLow, AlertMedium, AlertHigh, AlertCritical:
		return true
	}
	return false
}

// Tier is the validator's confidence bucket.
type Tier string

const (
	TierHighConfidence Tier = "HIGH_CONFIDENCE"
	TierNeedsReview    Tier = "NEEDS_REVIEW"
	TierBlocked        Tier = "BLOCKED"
)

func (t Tier) Valid() bool {
	switch t {
	case TierHighConfidence, TierNeedsReview, TierBlocked:
		return true
	}
	return false
}

// PatientContext carries the clinical context sent alongside each recommendation.
type PatientContext struct {
	ConditionCodes  []string           `json:"conditionCodes"`
	MedicationCodes []string           `json:"medicationCodes,omitempty"`
	AllergyCodes    []string           `json:"allergyCodes,omitempty"`
	LabValues       map[string]float64 `json:"labValues,omitempty"`
	AgeYears        *int               `json:"ageYears,omitempty"`
	Sex             string             `json:"sex,omitempty"`
	IsPregnant      *bool              `json:"isPregnant,omitempty"`
}

// Recommendation is one proposed care action to be validated.
type Recommendation struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	Text      string `json:"text"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// RecommendationTypeMedication is the recommendation type that defaults
// unmatched deviation factors to a drug-interaction check.
const RecommendationTypeMedication = "MEDICATION"

// ValidationRequest is the payload for /validate/recommendation.
type ValidationRequest struct {
	PatientContext PatientContext `json:"patientContext"`
	Recommendation Recommendation `json:"recommendation"`
	Guideline      string         `json:"guideline,omitempty"`
}

// Result is the validator's scored verdict for one recommendation.
type Result struct {
	IsValid                   bool       `json:"isValid"`
	ConfidenceScore           float64    `json:"confidenceScore"`
	ValidationTier            Tier       `json:"validationTier"`
	IsAnomaly                 bool       `json:"isAnomaly"`
	AnomalyScore              float64    `json:"anomalyScore"`
	DeviationFactors          []string   `json:"deviationFactors"`
	AlternativeRecommendation string     `json:"alternativeRecommendation,omitempty"`
	AlternativeConfidence     float64    `json:"alternativeConfidence,omitempty"`
	AlertLevel                AlertLevel `json:"alertLevel"`
	AlertMessage              string     `json:"alertMessage,omitempty"`
	SimilarPlanIDs            []string   `json:"similarPlanIds,omitempty"`
}

// Validate rejects results carrying enum values outside the documented contract.
func (r *Result) Validate() error {
	if !r.AlertLevel.Valid() {
		return fmt.Errorf("validator returned unknown alert level %q", r.AlertLevel)
	}
	if !r.ValidationTier.Valid() {
		return fmt.Errorf("validator returned unknown validation tier %q", r.ValidationTier)
	}
	return nil
}

// CleanPass reports whether the result raises no concern at all.
func (r *Result) CleanPass() bool {
	return r.AlertLevel == AlertNone && r.ValidationTier == TierHighConfidence
}
