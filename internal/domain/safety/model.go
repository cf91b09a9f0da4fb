// Package safety implements the clinical-safety core: classification of ML
// validator output into safety checks, the validation orchestrator, and the
// append-only safety check ledger with its override lifecycle.
package safety

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the target safety check does not exist.
	ErrNotFound = errors.New("safety check not found")
	// ErrNotOverridable indicates the check is not in an overridable state.
	ErrNotOverridable = errors.New("safety check is not in an overridable state")
	// ErrInvalidInput indicates a caller-supplied field failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// CheckType is the category of safety concern.
type CheckType string

const (
	CheckDrugInteraction    CheckType = "DRUG_INTERACTION"
	CheckAllergyConflict    CheckType = "ALLERGY_CONFLICT"
	CheckContraindication   CheckType = "CONTRAINDICATION"
	CheckDosageValidation   CheckType = "DOSAGE_VALIDATION"
	CheckDuplicateTherapy   CheckType = "DUPLICATE_THERAPY"
	CheckAgeAppropriateness CheckType = "AGE_APPROPRIATENESS"
	CheckPregnancySafety    CheckType = "PREGNANCY_SAFETY"
	CheckRenalAdjustment    CheckType = "RENAL_ADJUSTMENT"
	CheckHepaticAdjustment  CheckType = "HEPATIC_ADJUSTMENT"
)

func (t CheckType) Valid() bool {
	switch t {
	case CheckDrugInteraction, CheckAllergyConflict, CheckContraindication,
		CheckDosageValidation, CheckDuplicateTherapy, CheckAgeAppropriateness,
		CheckPregnancySafety, CheckRenalAdjustment, CheckHepaticAdjustment:
		return true
	}
	return false
}

// Severity orders safety concerns: INFO < WARNING < CRITICAL < CONTRAINDICATED.
type Severity string

const (
	SeverityInfo            Severity = "INFO"
	SeverityWarning         Severity = "WARNING"
	SeverityCritical        Severity = "CRITICAL"
	SeverityContraindicated Severity = "CONTRAINDICATED"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical, SeverityContraindicated:
		return true
	}
	return false
}

// Rank returns the ordinal position of the severity for comparisons.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	case SeverityContraindicated:
		return 3
	}
	return -1
}

// CheckStatus is the lifecycle state of a safety check.
type CheckStatus string

const (
	StatusPending    CheckStatus = "PENDING"
	StatusPassed     CheckStatus = "PASSED"
	StatusFlagged    CheckStatus = "FLAGGED"
	StatusBlocked    CheckStatus = "BLOCKED"
	StatusOverridden CheckStatus = "OVERRIDDEN"
)

func (s CheckStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPassed, StatusFlagged, StatusBlocked, StatusOverridden:
		return true
	}
	return false
}

// OverrideReason is the documented ground for proceeding despite a check.
type OverrideReason string

const (
	ReasonClinicalJudgment       OverrideReason = "CLINICAL_JUDGMENT"
	ReasonPatientInformedConsent OverrideReason = "PATIENT_INFORMED_CONSENT"
	ReasonNoAlternative          OverrideReason = "NO_ALTERNATIVE_AVAILABLE"
	ReasonMonitoringInPlace      OverrideReason = "MONITORING_IN_PLACE"
	ReasonDosageAdjusted         OverrideReason = "DOSAGE_ADJUSTED"
	ReasonSpecialistApproved     OverrideReason = "SPECIALIST_APPROVED"
)

func (r OverrideReason) Valid() bool {
	switch r {
	case ReasonClinicalJudgment, ReasonPatientInformedConsent, ReasonNoAlternative,
		ReasonMonitoringInPlace, ReasonDosageAdjusted, ReasonSpecialistApproved:
		return true
	}
	return false
}

// SafetyCheck maps to the safety_check table. Records are append-only:
// the override operation is the only mutation after creation.
type SafetyCheck struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	PatientID             uuid.UUID       `db:"patient_id" json:"patient_id"`
	EncounterID           *uuid.UUID      `db:"encounter_id" json:"encounter_id,omitempty"`
	RecommendationID      *string         `db:"recommendation_id" json:"recommendation_id,omitempty"`
	CheckType             CheckType       `db:"check_type" json:"check_type"`
	Status                CheckStatus     `db:"status" json:"status"`
	Severity              Severity        `db:"severity" json:"severity"`
	Title                 string          `db:"title" json:"title"`
	Description           string          `db:"description" json:"description"`
	ClinicalRationale     string          `db:"clinical_rationale" json:"clinical_rationale"`
	MedicationCodes       []string        `db:"medication_codes" json:"medication_codes"`
	ConditionCodes        []string        `db:"condition_codes" json:"condition_codes"`
	AllergyCodes          []string        `db:"allergy_codes" json:"allergy_codes"`
	GuidelineReferences   []string        `db:"guideline_references" json:"guideline_references"`
	OverrideReason        *OverrideReason `db:"override_reason" json:"override_reason,omitempty"`
	OverrideJustification *string         `db:"override_justification" json:"override_justification,omitempty"`
	OverriddenBy          *string         `db:"overridden_by" json:"overridden_by,omitempty"`
	OverriddenAt          *time.Time      `db:"overridden_at" json:"overridden_at,omitempty"`
	OverrideExpiresAt     *time.Time      `db:"override_expires_at" json:"override_expires_at,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// Override holds the fields written by the override operation.
type Override struct {
	Reason        OverrideReason
	Justification string
	OverriddenBy  string
	OverriddenAt  time.Time
	ExpiresAt     *time.Time
}
