package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicstack/form-engine/internal/domain"
)

// HistoryRepository stores the append-only submission status trail.
// There is deliberately no update or delete operation.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) error
	ListBySubmission(ctx context.Context, submissionID string, limit, offset int) ([]domain.HistoryEntry, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository instantiates repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO submission_history (submission_id, status, actor_id, note)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.SubmissionID,
		entry.Status,
		entry.ActorID,
		entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListBySubmission(ctx context.Context, submissionID string, limit, offset int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, submission_id, status, actor_id, note, created_at
        FROM submission_history
        WHERE submission_id=$1
        ORDER BY created_at ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, submissionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.SubmissionID, &entry.Status, &entry.ActorID, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
