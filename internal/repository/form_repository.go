package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicstack/form-engine/internal/domain"
)

// FormRepository encapsulates form definition persistence.
type FormRepository interface {
	Create(ctx context.Context, form *domain.FormDefinition) error
	Update(ctx context.Context, form *domain.FormDefinition) error
	GetByID(ctx context.Context, id string) (*domain.FormDefinition, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.FormDefinition, error)
	Deactivate(ctx context.Context, id string) error
}

type formRepository struct {
	pool *pgxpool.Pool
}

// NewFormRepository instantiates repository.
func NewFormRepository(pool *pgxpool.Pool) FormRepository {
	return &formRepository{pool: pool}
}

func (r *formRepository) Create(ctx context.Context, form *domain.FormDefinition) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(form.Settings)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO forms (title, fields, settings, active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, form.Title, fields, settings, form.Active).
		Scan(&form.ID, &form.CreatedAt, &form.UpdatedAt)
}

func (r *formRepository) Update(ctx context.Context, form *domain.FormDefinition) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(form.Settings)
	if err != nil {
		return err
	}
	const query = `
        UPDATE forms SET title=$1, fields=$2, settings=$3, active=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query, form.Title, fields, settings, form.Active, form.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *formRepository) GetByID(ctx context.Context, id string) (*domain.FormDefinition, error) {
	const query = `
        SELECT id, title, fields, settings, active, created_at, updated_at
        FROM forms WHERE id=$1`
	return scanForm(r.pool.QueryRow(ctx, query, id))
}

func (r *formRepository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.FormDefinition, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `
        SELECT id, title, fields, settings, active, created_at, updated_at
        FROM forms`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY updated_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FormDefinition
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *form)
	}
	return result, rows.Err()
}

func (r *formRepository) Deactivate(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE forms SET active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanForm(row pgx.Row) (*domain.FormDefinition, error) {
	var form domain.FormDefinition
	var fields, settings []byte
	if err := row.Scan(&form.ID, &form.Title, &fields, &settings, &form.Active, &form.CreatedAt, &form.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &form.Fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &form.Settings); err != nil {
		return nil, err
	}
	return &form, nil
}
