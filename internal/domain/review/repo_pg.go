package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/db"
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

const itemCols = `id, patient_id, safety_check_id, recommendation_id, status, priority,
	assigned_to, assigned_at, sla_deadline, resolved_by, resolved_at,
	resolution_decision, resolution_notes, escalation_reason, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.PatientID, &i.SafetyCheckID, &i.RecommendationID, &i.Status, &i.Priority,
		&i.AssignedTo, &i.AssignedAt, &i.SLADeadline, &i.ResolvedBy, &i.ResolvedAt,
		&i.ResolutionDecision, &i.ResolutionNotes, &i.EscalationReason, &i.CreatedAt, &i.UpdatedAt)
	return &i, err
}

// Create inserts the caller's timestamps rather than defaulting to the
// database clock, keeping created_at and sla_deadline on one clock.
func (r *repoPG) Create(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	item.UpdatedAt = item.CreatedAt
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO review_queue_item (id, patient_id, safety_check_id, recommendation_id, status, priority, sla_deadline, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		item.ID, item.PatientID, item.SafetyCheckID, item.RecommendationID, item.Status, item.Priority, item.SLADeadline, item.CreatedAt, item.UpdatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	i, err := scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM review_queue_item WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return i, err
}

func filterClause(filter ListFilter, args []interface{}) (string, []interface{}) {
	where := " WHERE 1=1"
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		where += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		where += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}
	return where, args
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Item, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM review_queue_item`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+itemCols+` FROM review_queue_item`+where+
		fmt.Sprintf(` ORDER BY priority ASC, sla_deadline ASC, id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error) {
	where, args := filterClause(filter, nil)
	return r.list(ctx, where, args, limit, offset)
}

func (r *repoPG) ListOverdue(ctx context.Context, now time.Time, limit, offset int) ([]*Item, int, error) {
	where := " WHERE sla_deadline < $1 AND status IN ('PENDING_REVIEW', 'IN_REVIEW')"
	return r.list(ctx, where, []interface{}{now}, limit, offset)
}

func (r *repoPG) Assign(ctx context.Context, id uuid.UUID, assignee string, at time.Time) (*Item, error) {
	i, err := scanItem(r.conn(ctx).QueryRow(ctx, `
		UPDATE review_queue_item
		SET status = 'IN_REVIEW', assigned_to = $2, assigned_at = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING_REVIEW', 'IN_REVIEW')
		RETURNING `+itemCols,
		id, assignee, at))
	if err == nil {
		return i, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return nil, r.transitionError(ctx, id)
}

func (r *repoPG) Resolve(ctx context.Context, id uuid.UUID, res Resolution, allowedFrom []ItemStatus) (*Item, error) {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}

	i, err := scanItem(r.conn(ctx).QueryRow(ctx, `
		UPDATE review_queue_item
		SET status = $2,
		    resolution_decision = $2,
		    resolved_by = $3,
		    resolved_at = $4,
		    resolution_notes = $5,
		    escalation_reason = $6,
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($7)
		RETURNING `+itemCols,
		id, res.Decision, res.ResolvedBy, res.ResolvedAt, res.Notes, res.EscalationReason, from))
	if err == nil {
		return i, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return nil, r.transitionError(ctx, id)
}

// transitionError distinguishes a missing item from a guarded transition that
// did not fire.
func (r *repoPG) transitionError(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM review_queue_item WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}
