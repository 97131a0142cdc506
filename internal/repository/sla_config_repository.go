package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicstack/form-engine/internal/domain"
)

// SLAConfigRepository stores per-category due-date rules.
type SLAConfigRepository interface {
	// Get returns the stored config for a category, or the category default
	// when none exists.
	Get(ctx context.Context, category string) (domain.SLAConfig, error)
	Upsert(ctx context.Context, cfg domain.SLAConfig) error
}

type slaConfigRepository struct {
	pool *pgxpool.Pool
}

// NewSLAConfigRepository instantiates repository.
func NewSLAConfigRepository(pool *pgxpool.Pool) SLAConfigRepository {
	return &slaConfigRepository{pool: pool}
}

func (r *slaConfigRepository) Get(ctx context.Context, category string) (domain.SLAConfig, error) {
	const query = `
        SELECT category, sla_days, escalation_threshold_days, use_business_days, buffer_days, updated_at
        FROM sla_configs WHERE category=$1`
	var cfg domain.SLAConfig
	err := r.pool.QueryRow(ctx, query, category).Scan(
		&cfg.Category,
		&cfg.SLADays,
		&cfg.EscalationThresholdDays,
		&cfg.UseBusinessDays,
		&cfg.BufferDays,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSLAConfig(category), nil
	}
	if err != nil {
		return domain.SLAConfig{}, err
	}
	return cfg, nil
}

func (r *slaConfigRepository) Upsert(ctx context.Context, cfg domain.SLAConfig) error {
	const query = `
        INSERT INTO sla_configs (category, sla_days, escalation_threshold_days, use_business_days, buffer_days)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (category) DO UPDATE SET
            sla_days=EXCLUDED.sla_days,
            escalation_threshold_days=EXCLUDED.escalation_threshold_days,
            use_business_days=EXCLUDED.use_business_days,
            buffer_days=EXCLUDED.buffer_days,
            updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query,
		cfg.Category,
		cfg.SLADays,
		cfg.EscalationThresholdDays,
		cfg.UseBusinessDays,
		cfg.BufferDays,
	)
	return err
}
