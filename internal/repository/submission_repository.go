package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicstack/form-engine/internal/domain"
)

// ErrConflict signals a lost optimistic-concurrency race: the row was
// updated by another writer between read and write.
var ErrConflict = errors.New("submission modified concurrently")

// SubmissionFilter captures listing parameters.
type SubmissionFilter struct {
	FormID      *string
	Statuses    []domain.SubmissionStatus
	AssignedTo  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SubmissionRepository encapsulates submission persistence. Status and
// assignment writes are guarded by the version the caller read; a stale
// version yields ErrConflict, never a lost update.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *domain.Submission) error
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	ListWithFilter(ctx context.Context, filter SubmissionFilter) ([]domain.Submission, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Submission, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, next domain.SubmissionStatus, resolvedAt *time.Time) error
	UpdateAssignment(ctx context.Context, id string, expectedVersion int64, assignee *string) error
}

type submissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository instantiates repository.
func NewSubmissionRepository(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepository{pool: pool}
}

func (r *submissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	data, err := json.Marshal(submission.Data)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(submission.FieldSnapshot)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO submissions (form_id, data, status, assigned_to, field_snapshot, sla_due)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, version`
	return r.pool.QueryRow(ctx, query,
		submission.FormID,
		data,
		submission.Status,
		submission.AssignedTo,
		snapshot,
		submission.SLADue,
	).Scan(&submission.ID, &submission.CreatedAt, &submission.Version)
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	const query = `
        SELECT id, form_id, data, status, assigned_to, field_snapshot, created_at, sla_due, resolved_at, version
        FROM submissions WHERE id=$1`
	return scanSubmission(r.pool.QueryRow(ctx, query, id))
}

func (r *submissionRepository) ListWithFilter(ctx context.Context, filter SubmissionFilter) ([]domain.Submission, error) {
	base := `SELECT id, form_id, data, status, assigned_to, field_snapshot, created_at, sla_due, resolved_at, version
             FROM submissions`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.FormID != nil {
		args = append(args, *filter.FormID)
		clauses = append(clauses, fmt.Sprintf("form_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// ListOverdue delegates the overdue filter to the store rather than scanning
// in memory: non-terminal, not yet escalated, due time in the past.
func (r *submissionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, form_id, data, status, assigned_to, field_snapshot, created_at, sla_due, resolved_at, version
        FROM submissions
        WHERE status IN ('PENDING','IN_PROGRESS') AND sla_due < $1
        ORDER BY sla_due ASC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, next domain.SubmissionStatus, resolvedAt *time.Time) error {
	const query = `
        UPDATE submissions SET status=$1, resolved_at=$2, version=version+1
        WHERE id=$3 AND version=$4`
	cmd, err := r.pool.Exec(ctx, query, next, resolvedAt, id, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

func (r *submissionRepository) UpdateAssignment(ctx context.Context, id string, expectedVersion int64, assignee *string) error {
	const query = `
        UPDATE submissions SET assigned_to=$1, version=version+1
        WHERE id=$2 AND version=$3`
	cmd, err := r.pool.Exec(ctx, query, assignee, id, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

func (r *submissionRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM submissions WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return pgx.ErrNoRows
}

func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var submission domain.Submission
	var data, snapshot []byte
	if err := row.Scan(
		&submission.ID,
		&submission.FormID,
		&data,
		&submission.Status,
		&submission.AssignedTo,
		&snapshot,
		&submission.CreatedAt,
		&submission.SLADue,
		&submission.ResolvedAt,
		&submission.Version,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &submission.Data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &submission.FieldSnapshot); err != nil {
		return nil, err
	}
	return &submission, nil
}

func scanSubmissions(rows pgx.Rows) ([]domain.Submission, error) {
	var result []domain.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *submission)
	}
	return result, rows.Err()
}
