package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/form-engine/internal/audit"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/events"
	"github.com/civicstack/form-engine/internal/repository"
	"github.com/civicstack/form-engine/internal/sla"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// eventCollector records every published event for assertions.
type eventCollector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCollector) subscribeAll(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventSubmissionCreated,
		events.EventSubmissionStatus,
		events.EventSubmissionAssigned,
		events.EventSubmissionEscalated,
		events.EventSubmissionResolved,
	} {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.events = append(c.events, event)
			return nil
		})
	}
}

func (c *eventCollector) ofType(eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []events.Event
	for _, event := range c.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type submissionFixture struct {
	service     *SubmissionService
	submissions *repository.MemorySubmissionRepository
	history     *repository.MemoryHistoryRepository
	forms       *repository.MemoryFormRepository
	auditLog    *audit.MemoryRecorder
	collector   *eventCollector
	now         time.Time
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	collector := &eventCollector{}
	collector.subscribeAll(dispatcher)

	fixture := &submissionFixture{
		submissions: repository.NewMemorySubmissionRepository(),
		history:     repository.NewMemoryHistoryRepository(),
		forms:       repository.NewMemoryFormRepository(),
		auditLog:    audit.NewMemoryRecorder(),
		collector:   collector,
		now:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	fixture.service = NewSubmissionService(SubmissionDependencies{
		SubmissionRepo: fixture.submissions,
		FormRepo:       fixture.forms,
		HistoryRepo:    fixture.history,
		SLAConfigRepo:  repository.NewMemorySLAConfigRepository(),
		AuditLog:       fixture.auditLog,
		Dispatcher:     dispatcher,
		Now:            func() time.Time { return fixture.now },
	})
	return fixture
}

func (f *submissionFixture) createForm(t *testing.T, settings domain.FormSettings, fields ...domain.FieldDescriptor) *domain.FormDefinition {
	t.Helper()
	form := &domain.FormDefinition{
		Title:    "Noise complaint",
		Fields:   fields,
		Settings: settings,
		Active:   true,
	}
	require.NoError(t, f.forms.Create(context.Background(), form))
	return form
}

func anonymousSettings() domain.FormSettings {
	return domain.FormSettings{Category: "general", SLADays: 7, AllowAnonymous: true}
}

func TestCreateSubmission(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText, Required: true},
		domain.FieldDescriptor{ID: "photo", Type: domain.FieldTypeFile},
	)

	submission, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{
		"description": "loud music after midnight",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, submission.Status)
	assert.Equal(t, form.ID, submission.FormID)
	assert.Equal(t, form.Fields, submission.FieldSnapshot)
	assert.Equal(t, fixture.now.Add(7*24*time.Hour), submission.SLADue)

	trail, err := fixture.service.History(context.Background(), submission.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.StatusPending, trail[0].Status)
	assert.Equal(t, "submitted", trail[0].Note)

	created := fixture.collector.ofType(events.EventSubmissionCreated)
	require.Len(t, created, 1)
	assert.Equal(t, submission.ID, created[0].SubmissionID)
}

func TestCreateSubmissionRejectsInvalidPayload(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText, Required: true},
	)

	_, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// A rejected payload must leave no trace behind.
	listed, err := fixture.service.List(context.Background(), SubmissionListFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Empty(t, fixture.collector.ofType(events.EventSubmissionCreated))
}

func TestCreateSubmissionAuthRules(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, domain.FormSettings{Category: "general", SLADays: 7, RequiresAuth: true},
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)

	_, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	citizen := "citizen-9"
	_, err = fixture.service.CreateSubmission(context.Background(), &citizen, form.ID, map[string]any{})
	require.NoError(t, err)
}

func TestCreateSubmissionInactiveForm(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)
	require.NoError(t, fixture.forms.Deactivate(context.Background(), form.ID))

	_, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestTransitionResolveStampsTimestampAndIsTerminal(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)
	submission, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{
		"description": "pothole",
	})
	require.NoError(t, err)

	resolved, err := fixture.service.Transition(context.Background(), "op-1", submission.ID, domain.StatusResolved, "fixed on site")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, fixture.now, *resolved.ResolvedAt)

	// Terminal: nothing moves out of RESOLVED, not even back to PENDING.
	_, err = fixture.service.Transition(context.Background(), "op-1", submission.ID, domain.StatusPending, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	statusEvents := fixture.collector.ofType(events.EventSubmissionStatus)
	require.Len(t, statusEvents, 1)
	assert.Len(t, fixture.collector.ofType(events.EventSubmissionResolved), 1)
}

func TestTransitionRejectsEscalatedTarget(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)
	submission, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.NoError(t, err)

	_, err = fixture.service.Transition(context.Background(), "op-1", submission.ID, domain.StatusEscalated, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestTransitionConflictSurfacesAsConflict(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)
	submission, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.NoError(t, err)

	// A competing writer bumps the version between our read and our write.
	fixture.service.submissions = &staleReadRepo{SubmissionRepository: fixture.submissions}
	require.NoError(t, fixture.submissions.UpdateStatus(context.Background(), submission.ID, submission.Version, domain.StatusInProgress, nil))

	_, err = fixture.service.Transition(context.Background(), "op-1", submission.ID, domain.StatusResolved, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	// The losing write left no history entry behind.
	trail, err := fixture.history.ListBySubmission(context.Background(), submission.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "submitted", trail[0].Note)
}

// staleReadRepo serves reads with the version decremented, simulating a
// writer that raced in after our read.
type staleReadRepo struct {
	repository.SubmissionRepository
}

func (r *staleReadRepo) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	submission, err := r.SubmissionRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	submission.Version--
	return submission, nil
}

func TestAssignRecordsHistoryNote(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)
	submission, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.NoError(t, err)

	assignee := "op-2"
	assigned, err := fixture.service.Assign(context.Background(), "op-1", submission.ID, &assignee)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "op-2", *assigned.AssignedTo)
	assert.Equal(t, domain.StatusPending, assigned.Status)

	unassigned, err := fixture.service.Assign(context.Background(), "op-1", submission.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssignedTo)

	trail, err := fixture.history.ListBySubmission(context.Background(), submission.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "assigned to op-2", trail[1].Note)
	assert.Equal(t, "unassigned", trail[2].Note)
	assert.Len(t, fixture.collector.ofType(events.EventSubmissionAssigned), 2)
}

func TestClassifySLA(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)
	submission, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.NoError(t, err)

	state, ok := fixture.service.ClassifySLA(context.Background(), submission)
	require.True(t, ok)
	assert.Equal(t, sla.OnTrack, state)

	// Inside the threshold window the submission is flagged, past due it
	// is overdue.
	fixture.now = submission.SLADue.Add(-12 * time.Hour)
	state, _ = fixture.service.ClassifySLA(context.Background(), submission)
	assert.Equal(t, sla.DueSoon, state)

	fixture.now = submission.SLADue.Add(time.Minute)
	state, _ = fixture.service.ClassifySLA(context.Background(), submission)
	assert.Equal(t, sla.Overdue, state)

	// Terminal submissions have no SLA position.
	resolved, err := fixture.service.Transition(context.Background(), "op-1", submission.ID, domain.StatusResolved, "")
	require.NoError(t, err)
	_, ok = fixture.service.ClassifySLA(context.Background(), resolved)
	assert.False(t, ok)
}

func TestListFiltersByStatusAndForm(t *testing.T) {
	fixture := newSubmissionFixture(t)
	form := fixture.createForm(t, anonymousSettings(),
		domain.FieldDescriptor{ID: "description", Type: domain.FieldTypeText},
	)
	first, err := fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.NoError(t, err)
	_, err = fixture.service.CreateSubmission(context.Background(), nil, form.ID, map[string]any{})
	require.NoError(t, err)
	_, err = fixture.service.Transition(context.Background(), "op-1", first.ID, domain.StatusInProgress, "")
	require.NoError(t, err)

	pending, err := fixture.service.List(context.Background(), SubmissionListFilter{
		FormID:   &form.ID,
		Statuses: []domain.SubmissionStatus{domain.StatusPending},
	})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEqual(t, first.ID, pending[0].ID)
}
