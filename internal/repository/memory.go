package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicstack/form-engine/internal/domain"
)

// In-memory implementations backing tests and local development without a
// database. They honor the same optimistic-concurrency contract as the pgx
// implementations.

// MemorySubmissionRepository is a mutex-guarded SubmissionRepository.
type MemorySubmissionRepository struct {
	mu          sync.Mutex
	submissions map[string]*domain.Submission
	nextID      int
}

// NewMemorySubmissionRepository creates an empty store.
func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{submissions: make(map[string]*domain.Submission)}
}

func (r *MemorySubmissionRepository) Create(_ context.Context, submission *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	submission.ID = "sub-" + strconv.Itoa(r.nextID)
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	submission.Version = 1
	clone := *submission
	r.submissions[submission.ID] = &clone
	return nil
}

func (r *MemorySubmissionRepository) GetByID(_ context.Context, id string) (*domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.submissions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *MemorySubmissionRepository) ListWithFilter(_ context.Context, filter SubmissionFilter) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Submission
	for _, stored := range r.submissions {
		if filter.FormID != nil && stored.FormID != *filter.FormID {
			continue
		}
		if filter.AssignedTo != nil && (stored.AssignedTo == nil || *stored.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		if filter.CreatedFrom != nil && stored.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && stored.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (r *MemorySubmissionRepository) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Submission
	for _, stored := range r.submissions {
		if stored.Status != domain.StatusPending && stored.Status != domain.StatusInProgress {
			continue
		}
		if !stored.SLADue.Before(now) {
			continue
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SLADue.Before(result[j].SLADue) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemorySubmissionRepository) UpdateStatus(_ context.Context, id string, expectedVersion int64, next domain.SubmissionStatus, resolvedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.submissions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	stored.Status = next
	stored.ResolvedAt = resolvedAt
	stored.Version++
	return nil
}

func (r *MemorySubmissionRepository) UpdateAssignment(_ context.Context, id string, expectedVersion int64, assignee *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.submissions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != expectedVersion {
		return ErrConflict
	}
	stored.AssignedTo = assignee
	stored.Version++
	return nil
}

// MemoryHistoryRepository is a mutex-guarded HistoryRepository.
type MemoryHistoryRepository struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	nextID  int
}

// NewMemoryHistoryRepository creates an empty trail.
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{}
}

func (r *MemoryHistoryRepository) Append(_ context.Context, entry *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = "hist-" + strconv.Itoa(r.nextID)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *MemoryHistoryRepository) ListBySubmission(_ context.Context, submissionID string, limit, offset int) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.HistoryEntry
	for _, entry := range r.entries {
		if entry.SubmissionID == submissionID {
			result = append(result, entry)
		}
	}
	return paginate(result, limit, offset), nil
}

// MemoryFormRepository is a mutex-guarded FormRepository.
type MemoryFormRepository struct {
	mu     sync.Mutex
	forms  map[string]*domain.FormDefinition
	nextID int
}

// NewMemoryFormRepository creates an empty store.
func NewMemoryFormRepository() *MemoryFormRepository {
	return &MemoryFormRepository{forms: make(map[string]*domain.FormDefinition)}
}

func (r *MemoryFormRepository) Create(_ context.Context, form *domain.FormDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	form.ID = "form-" + strconv.Itoa(r.nextID)
	now := time.Now().UTC()
	form.CreatedAt = now
	form.UpdatedAt = now
	clone := *form
	r.forms[form.ID] = &clone
	return nil
}

func (r *MemoryFormRepository) Update(_ context.Context, form *domain.FormDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.forms[form.ID]; !ok {
		return pgx.ErrNoRows
	}
	form.UpdatedAt = time.Now().UTC()
	clone := *form
	r.forms[form.ID] = &clone
	return nil
}

func (r *MemoryFormRepository) GetByID(_ context.Context, id string) (*domain.FormDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.forms[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *MemoryFormRepository) List(_ context.Context, activeOnly bool, limit, offset int) ([]domain.FormDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.FormDefinition
	for _, stored := range r.forms {
		if activeOnly && !stored.Active {
			continue
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return paginate(result, limit, offset), nil
}

func (r *MemoryFormRepository) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.forms[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Active = false
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// MemorySLAConfigRepository is a mutex-guarded SLAConfigRepository.
type MemorySLAConfigRepository struct {
	mu      sync.Mutex
	configs map[string]domain.SLAConfig
}

// NewMemorySLAConfigRepository creates an empty store.
func NewMemorySLAConfigRepository() *MemorySLAConfigRepository {
	return &MemorySLAConfigRepository{configs: make(map[string]domain.SLAConfig)}
}

func (r *MemorySLAConfigRepository) Get(_ context.Context, category string) (domain.SLAConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.configs[category]; ok {
		return cfg, nil
	}
	return domain.DefaultSLAConfig(category), nil
}

func (r *MemorySLAConfigRepository) Upsert(_ context.Context, cfg domain.SLAConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.UpdatedAt = time.Now().UTC()
	r.configs[cfg.Category] = cfg
	return nil
}

func containsStatus(statuses []domain.SubmissionStatus, status domain.SubmissionStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
