package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one recorded action. The log is write-only from this core's
// point of view.
type Entry struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Diff         map[string]any
}

// Recorder persists audit entries. Every state transition and every SLA
// configuration change records exactly one entry.
type Recorder interface {
	Record(ctx context.Context, actorID, action, resourceType, resourceID string, diff map[string]any) error
}

type pgRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder writes entries to the audit_log table.
func NewPGRecorder(pool *pgxpool.Pool) Recorder {
	return &pgRecorder{pool: pool}
}

func (r *pgRecorder) Record(ctx context.Context, actorID, action, resourceType, resourceID string, diff map[string]any) error {
	payload, err := json.Marshal(diff)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO audit_log (actor_id, action, resource_type, resource_id, diff)
        VALUES ($1,$2,$3,$4,$5)`
	_, err = r.pool.Exec(ctx, query, actorID, action, resourceType, resourceID, payload)
	return err
}

// MemoryRecorder collects entries in memory for tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	Entries []Entry
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, actorID, action, resourceType, resourceID string, diff map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, Entry{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Diff:         diff,
	})
	return nil
}
