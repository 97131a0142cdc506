package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicstack/form-engine/internal/audit"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/events"
	"github.com/civicstack/form-engine/internal/repository"
)

// countingSender tallies Send calls per submission and event kind.
type countingSender struct {
	mu    sync.Mutex
	sends map[string]int
}

func newCountingSender() *countingSender {
	return &countingSender{sends: map[string]int{}}
}

func (s *countingSender) Send(_ context.Context, submissionID string, event string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends[submissionID+"/"+event]++
	return nil
}

func (s *countingSender) count(submissionID, event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends[submissionID+"/"+event]
}

type escalationFixture struct {
	service     *EscalationService
	submissions *repository.MemorySubmissionRepository
	history     *repository.MemoryHistoryRepository
	auditLog    *audit.MemoryRecorder
	sender      *countingSender
	now         time.Time
}

func newEscalationFixture(t *testing.T) *escalationFixture {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	sender := newCountingSender()
	NewNotificationService(dispatcher, sender, zap.NewNop(), 1).RegisterHandlers()

	fixture := &escalationFixture{
		submissions: repository.NewMemorySubmissionRepository(),
		history:     repository.NewMemoryHistoryRepository(),
		auditLog:    audit.NewMemoryRecorder(),
		sender:      sender,
		now:         time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	fixture.service = NewEscalationService(EscalationDependencies{
		SubmissionRepo: fixture.submissions,
		HistoryRepo:    fixture.history,
		AuditLog:       fixture.auditLog,
		Dispatcher:     dispatcher,
		Logger:         zap.NewNop(),
		Now:            func() time.Time { return fixture.now },
	})
	return fixture
}

func (f *escalationFixture) seedSubmission(t *testing.T, status domain.SubmissionStatus, slaDue time.Time) *domain.Submission {
	t.Helper()
	submission := &domain.Submission{
		FormID:    "form-1",
		Status:    status,
		CreatedAt: f.now.Add(-7 * 24 * time.Hour),
		SLADue:    slaDue,
	}
	require.NoError(t, f.submissions.Create(context.Background(), submission))
	return submission
}

func TestRunOnceEscalatesOverdueSubmission(t *testing.T) {
	fixture := newEscalationFixture(t)
	overdue := fixture.seedSubmission(t, domain.StatusPending, fixture.now.Add(-2*time.Hour))
	onTrack := fixture.seedSubmission(t, domain.StatusPending, fixture.now.Add(48*time.Hour))

	report, err := fixture.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Escalated)
	assert.Equal(t, 0, report.Failed)

	escalated, err := fixture.submissions.GetByID(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, escalated.Status)

	untouched, err := fixture.submissions.GetByID(context.Background(), onTrack.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, untouched.Status)

	trail, err := fixture.history.ListBySubmission(context.Background(), overdue.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.StatusEscalated, trail[0].Status)
	assert.Equal(t, "sla overdue", trail[0].Note)

	assert.Equal(t, 1, fixture.sender.count(overdue.ID, "escalated"))
	require.Len(t, fixture.auditLog.Entries, 1)
	assert.Equal(t, systemActorID, fixture.auditLog.Entries[0].ActorID)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	fixture := newEscalationFixture(t)
	overdue := fixture.seedSubmission(t, domain.StatusPending, fixture.now.Add(-time.Hour))

	_, err := fixture.service.RunOnce(context.Background())
	require.NoError(t, err)

	// The second pass finds nothing: ESCALATED submissions are not scanned
	// again, so no duplicate history, audit or notification is produced.
	report, err := fixture.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, 0, report.Escalated)

	trail, err := fixture.history.ListBySubmission(context.Background(), overdue.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
	assert.Equal(t, 1, fixture.sender.count(overdue.ID, "escalated"))
	assert.Len(t, fixture.auditLog.Entries, 1)
}

func TestRunOnceSkipsTerminalAndEscalated(t *testing.T) {
	fixture := newEscalationFixture(t)
	past := fixture.now.Add(-time.Hour)
	fixture.seedSubmission(t, domain.StatusResolved, past)
	fixture.seedSubmission(t, domain.StatusRejected, past)
	fixture.seedSubmission(t, domain.StatusEscalated, past)

	report, err := fixture.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, 0, report.Escalated)
}

func TestRunOnceIsolatesUnitFailures(t *testing.T) {
	fixture := newEscalationFixture(t)
	broken := fixture.seedSubmission(t, domain.StatusPending, fixture.now.Add(-time.Hour))
	healthy := fixture.seedSubmission(t, domain.StatusInProgress, fixture.now.Add(-time.Hour))

	fixture.service.submissions = &failingUpdateRepo{
		SubmissionRepository: fixture.submissions,
		failID:               broken.ID,
	}

	report, err := fixture.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Escalated)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Failures, broken.ID)

	escalated, err := fixture.submissions.GetByID(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, escalated.Status)
}

func TestRunOnceSkipsOnLostRace(t *testing.T) {
	fixture := newEscalationFixture(t)
	contested := fixture.seedSubmission(t, domain.StatusPending, fixture.now.Add(-time.Hour))

	fixture.service.submissions = &conflictingUpdateRepo{
		SubmissionRepository: fixture.submissions,
		conflictID:           contested.ID,
	}

	report, err := fixture.service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 0, report.Escalated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, fixture.sender.count(contested.ID, "escalated"))
}

// failingUpdateRepo fails status writes for one submission id.
type failingUpdateRepo struct {
	repository.SubmissionRepository
	failID string
}

func (r *failingUpdateRepo) UpdateStatus(ctx context.Context, id string, expectedVersion int64, next domain.SubmissionStatus, resolvedAt *time.Time) error {
	if id == r.failID {
		return errors.New("storage unavailable")
	}
	return r.SubmissionRepository.UpdateStatus(ctx, id, expectedVersion, next, resolvedAt)
}

// conflictingUpdateRepo reports a lost optimistic write for one id.
type conflictingUpdateRepo struct {
	repository.SubmissionRepository
	conflictID string
}

func (r *conflictingUpdateRepo) UpdateStatus(ctx context.Context, id string, expectedVersion int64, next domain.SubmissionStatus, resolvedAt *time.Time) error {
	if id == r.conflictID {
		return repository.ErrConflict
	}
	return r.SubmissionRepository.UpdateStatus(ctx, id, expectedVersion, next, resolvedAt)
}
