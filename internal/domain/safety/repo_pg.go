package safety

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/db"
	"github.com/Prism-Clinical/prism-graphql-sub003/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const checkCols = `id, patient_id, encounter_id, recommendation_id, check_type, status, severity,
	title, description, clinical_rationale, medication_codes, condition_codes, allergy_codes,
	guideline_references, override_reason, override_justification, overridden_by, overridden_at,
	override_expires_at, created_at, updated_at`

func scanCheck(row pgx.Row) (*SafetyCheck, error) {
	var c SafetyCheck
	err := row.Scan(&c.ID, &c.PatientID, &c.EncounterID, &c.RecommendationID, &c.CheckType, &c.Status, &c.Severity,
		&c.Title, &c.Description, &c.ClinicalRationale, &c.MedicationCodes, &c.ConditionCodes, &c.AllergyCodes,
		&c.GuidelineReferences, &c.OverrideReason, &c.OverrideJustification, &c.OverriddenBy, &c.OverriddenAt,
		&c.OverrideExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, check *SafetyCheck) error {
	check.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO safety_check (id, patient_id, encounter_id, recommendation_id, check_type, status, severity,
			title, description, clinical_rationale, medication_codes, condition_codes, allergy_codes,
			guideline_references)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		check.ID, check.PatientID, check.EncounterID, check.RecommendationID, check.CheckType, check.Status, check.Severity,
		check.Title, check.Description, check.ClinicalRationale, check.MedicationCodes, check.ConditionCodes, check.AllergyCodes,
		check.GuidelineReferences)
	return row.Scan(&check.CreatedAt, &check.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*SafetyCheck, error) {
	c, err := scanCheck(r.conn(ctx).QueryRow(ctx, `SELECT `+checkCols+` FROM safety_check WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// filterClause builds the WHERE clause for a ListFilter, appending bind args.
func filterClause(filter ListFilter, args []interface{}) (string, []interface{}) {
	where := " WHERE 1=1"
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if filter.EncounterID != nil {
		args = append(args, *filter.EncounterID)
		where += fmt.Sprintf(" AND encounter_id = $%d", len(args))
	}
	if filter.CheckType != nil {
		args = append(args, *filter.CheckType)
		where += fmt.Sprintf(" AND check_type = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Severity != nil {
		args = append(args, *filter.Severity)
		where += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	return where, args
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*SafetyCheck, int, error) {
	where, args := filterClause(filter, nil)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM safety_check`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+checkCols+` FROM safety_check`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	checks := []*SafetyCheck{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, 0, err
		}
		checks = append(checks, c)
	}
	return checks, total, rows.Err()
}

func (r *repoPG) ListAfter(ctx context.Context, filter ListFilter, after *pagination.Cursor, limit int) ([]*SafetyCheck, error) {
	where, args := filterClause(filter, nil)
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit)

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+checkCols+` FROM safety_check`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := []*SafetyCheck{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (r *repoPG) ActiveAlerts(ctx context.Context, patientID uuid.UUID) ([]*SafetyCheck, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+checkCols+` FROM safety_check
		WHERE patient_id = $1
		  AND severity IN ('CRITICAL', 'CONTRAINDICATED')
		  AND status IN ('FLAGGED', 'BLOCKED')
		ORDER BY created_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := []*SafetyCheck{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

// Override is a single conditional UPDATE so concurrent overrides of the same
// check cannot interleave: the status precondition and the metadata write
// land atomically or not at all.
func (r *repoPG) Override(ctx context.Context, id uuid.UUID, ov Override) (*SafetyCheck, error) {
	c, err := scanCheck(r.conn(ctx).QueryRow(ctx, `
		UPDATE safety_check
		SET status = 'OVERRIDDEN',
		    override_reason = $2,
		    override_justification = $3,
		    overridden_by = $4,
		    overridden_at = $5,
		    override_expires_at = $6,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('BLOCKED', 'FLAGGED')
		RETURNING `+checkCols,
		id, ov.Reason, ov.Justification, ov.OverriddenBy, ov.OverriddenAt, ov.ExpiresAt))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// No row updated: distinguish a missing check from a non-overridable one.
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM safety_check WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrNotOverridable
}
