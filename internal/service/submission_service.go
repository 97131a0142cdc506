package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicstack/form-engine/internal/audit"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/events"
	"github.com/civicstack/form-engine/internal/forms"
	"github.com/civicstack/form-engine/internal/repository"
	"github.com/civicstack/form-engine/internal/sla"
	apperrors "github.com/civicstack/form-engine/pkg/util/errorutil"
)

// SubmissionService coordinates submission intake and lifecycle.
type SubmissionService struct {
	submissions repository.SubmissionRepository
	formsRepo   repository.FormRepository
	history     repository.HistoryRepository
	slaConfigs  repository.SLAConfigRepository
	auditLog    audit.Recorder
	dispatcher  events.Dispatcher
	holidays    []time.Time
	now         func() time.Time
}

// SubmissionDependencies bundles collaborators for the submission service.
type SubmissionDependencies struct {
	SubmissionRepo repository.SubmissionRepository
	FormRepo       repository.FormRepository
	HistoryRepo    repository.HistoryRepository
	SLAConfigRepo  repository.SLAConfigRepository
	AuditLog       audit.Recorder
	Dispatcher     events.Dispatcher
	// Holidays is the injected fixed holiday calendar consulted in
	// business-day mode.
	Holidays []time.Time
	// Now overrides the clock for tests.
	Now func() time.Time
}

// SubmissionListFilter describes listing filters.
type SubmissionListFilter struct {
	FormID      *string
	Statuses    []domain.SubmissionStatus
	AssignedTo  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewSubmissionService constructs the service.
func NewSubmissionService(deps SubmissionDependencies) *SubmissionService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SubmissionService{
		submissions: deps.SubmissionRepo,
		formsRepo:   deps.FormRepo,
		history:     deps.HistoryRepo,
		slaConfigs:  deps.SLAConfigRepo,
		auditLog:    deps.AuditLog,
		dispatcher:  deps.Dispatcher,
		holidays:    deps.Holidays,
		now:         now,
	}
}

// CreateSubmission validates a payload against the form and, on acceptance,
// creates a PENDING submission. The field list and the SLA configuration in
// force right now are both snapshotted onto the record: later edits to the
// form or the SLA rules never alter commitments already made.
func (s *SubmissionService) CreateSubmission(ctx context.Context, citizenID *string, formID string, payload map[string]any) (*domain.Submission, error) {
	form, err := s.formsRepo.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !form.Active {
		return nil, apperrors.NewNotFound("form", map[string]any{"formId": formID})
	}
	if form.Settings.RequiresAuth && citizenID == nil {
		return nil, apperrors.NewUnauthorized("form requires authentication")
	}
	if !form.Settings.AllowAnonymous && citizenID == nil {
		return nil, apperrors.NewUnauthorized("anonymous submissions not allowed")
	}

	validator, err := forms.Compile(form.Fields)
	if err != nil {
		return nil, err
	}
	clean, err := validator.Validate(payload)
	if err != nil {
		return nil, err
	}

	cfg, err := s.slaConfigs.Get(ctx, form.Settings.Category)
	if err != nil {
		return nil, err
	}
	slaDays := form.Settings.SLADays
	if slaDays <= 0 {
		slaDays = cfg.SLADays
	}

	createdAt := s.now()
	submission := &domain.Submission{
		FormID:        form.ID,
		Data:          clean,
		Status:        domain.StatusPending,
		FieldSnapshot: form.Fields,
		CreatedAt:     createdAt,
		SLADue:        sla.ComputeDue(createdAt, slaDays, cfg, s.holidays),
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, err
	}

	if err := s.appendHistory(ctx, submission.ID, domain.StatusPending, citizenID, "submitted"); err != nil {
		return nil, err
	}
	s.record(ctx, actorOrSystem(citizenID), "submission.create", submission.ID, map[string]any{
		"form_id": form.ID,
		"status":  domain.StatusPending,
		"sla_due": submission.SLADue,
	})
	s.publishEvent(ctx, events.Event{
		Type:         events.EventSubmissionCreated,
		SubmissionID: submission.ID,
		Actor:        citizenActor(citizenID),
		Payload: events.SubmissionCreatedPayload{
			FormID:   form.ID,
			Category: form.Settings.Category,
			SLADue:   submission.SLADue,
		},
	})
	return submission, nil
}

// Transition moves a submission to a new status on behalf of an operator.
// ESCALATED is not a legal operator target: only the escalation engine may
// enter it. The write is optimistic: a concurrent writer on the same
// submission makes this attempt fail with a conflict instead of losing an
// update or double-appending history.
func (s *SubmissionService) Transition(ctx context.Context, operatorID, submissionID string, next domain.SubmissionStatus, note string) (*domain.Submission, error) {
	if next == domain.StatusEscalated {
		return nil, apperrors.NewInvalidTransition("", string(next))
	}
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(submission.Status, next) {
		return nil, apperrors.NewInvalidTransition(string(submission.Status), string(next))
	}

	oldStatus := submission.Status
	resolvedAt := submission.ResolvedAt
	if next == domain.StatusResolved {
		stamp := s.now()
		resolvedAt = &stamp
	}
	if err := s.submissions.UpdateStatus(ctx, submission.ID, submission.Version, next, resolvedAt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("submission changed concurrently, retry", map[string]any{"submissionId": submission.ID})
		}
		return nil, err
	}
	submission.Status = next
	submission.ResolvedAt = resolvedAt
	submission.Version++

	if err := s.appendHistory(ctx, submission.ID, next, &operatorID, note); err != nil {
		return nil, err
	}
	s.record(ctx, operatorID, "submission.transition", submission.ID, map[string]any{
		"old_status": oldStatus,
		"new_status": next,
		"note":       note,
	})
	s.publishEvent(ctx, events.Event{
		Type:         events.EventSubmissionStatus,
		SubmissionID: submission.ID,
		Actor:        operatorActor(operatorID),
		Payload: events.SubmissionStatusPayload{
			OldStatus: oldStatus,
			NewStatus: next,
			Note:      note,
		},
	})
	if next == domain.StatusResolved {
		s.publishEvent(ctx, events.Event{
			Type:         events.EventSubmissionResolved,
			SubmissionID: submission.ID,
			Actor:        operatorActor(operatorID),
			Payload:      events.SubmissionStatusPayload{OldStatus: oldStatus, NewStatus: next},
		})
	}
	return submission, nil
}

// Assign changes the assignee without touching status. The change is still
// recorded in history as a note.
func (s *SubmissionService) Assign(ctx context.Context, operatorID, submissionID string, assignee *string) (*domain.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := s.submissions.UpdateAssignment(ctx, submission.ID, submission.Version, assignee); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("submission changed concurrently, retry", map[string]any{"submissionId": submission.ID})
		}
		return nil, err
	}
	submission.AssignedTo = assignee
	submission.Version++

	note := "unassigned"
	if assignee != nil {
		note = fmt.Sprintf("assigned to %s", *assignee)
	}
	if err := s.appendHistory(ctx, submission.ID, submission.Status, &operatorID, note); err != nil {
		return nil, err
	}
	s.record(ctx, operatorID, "submission.assign", submission.ID, map[string]any{
		"assigned_to": assignee,
	})
	s.publishEvent(ctx, events.Event{
		Type:         events.EventSubmissionAssigned,
		SubmissionID: submission.ID,
		Actor:        operatorActor(operatorID),
		Payload:      events.SubmissionAssignedPayload{AssignedTo: assignee},
	})
	return submission, nil
}

// Get fetches one submission.
func (s *SubmissionService) Get(ctx context.Context, submissionID string) (*domain.Submission, error) {
	return s.submissions.GetByID(ctx, submissionID)
}

// List returns submissions matching the filter.
func (s *SubmissionService) List(ctx context.Context, filter SubmissionListFilter) ([]domain.Submission, error) {
	return s.submissions.ListWithFilter(ctx, repository.SubmissionFilter{
		FormID:      filter.FormID,
		Statuses:    filter.Statuses,
		AssignedTo:  filter.AssignedTo,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

// ClassifySLA buckets a submission against its due time using the
// escalation threshold configured for its form's category. Terminal
// submissions have no SLA position anymore.
func (s *SubmissionService) ClassifySLA(ctx context.Context, submission *domain.Submission) (sla.Classification, bool) {
	if submission.Status.Terminal() {
		return "", false
	}
	threshold := domain.DefaultSLAConfig("").EscalationThresholdDays
	if form, err := s.formsRepo.GetByID(ctx, submission.FormID); err == nil {
		if cfg, err := s.slaConfigs.Get(ctx, form.Settings.Category); err == nil {
			threshold = cfg.EscalationThresholdDays
		}
	}
	return sla.Classify(s.now(), submission.SLADue, threshold), true
}

// History returns the append-only trail for a submission.
func (s *SubmissionService) History(ctx context.Context, submissionID string, limit, offset int) ([]domain.HistoryEntry, error) {
	return s.history.ListBySubmission(ctx, submissionID, limit, offset)
}

func (s *SubmissionService) appendHistory(ctx context.Context, submissionID string, status domain.SubmissionStatus, actorID *string, note string) error {
	return s.history.Append(ctx, &domain.HistoryEntry{
		SubmissionID: submissionID,
		Status:       status,
		ActorID:      actorID,
		Note:         note,
	})
}

func (s *SubmissionService) record(ctx context.Context, actorID, action, resourceID string, diff map[string]any) {
	if s.auditLog == nil {
		return
	}
	_ = s.auditLog.Record(ctx, actorID, action, "submission", resourceID, diff)
}

func (s *SubmissionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func citizenActor(citizenID *string) events.Actor {
	if citizenID == nil {
		return events.Actor{Type: domain.SubjectTypeCitizen}
	}
	return events.Actor{Type: domain.SubjectTypeCitizen, CitizenID: citizenID}
}

func operatorActor(operatorID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeOperator, OperatorID: &operatorID}
}

func actorOrSystem(citizenID *string) string {
	if citizenID != nil {
		return *citizenID
	}
	return "anonymous"
}
