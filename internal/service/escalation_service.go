package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicstack/form-engine/internal/audit"
	"github.com/civicstack/form-engine/internal/domain"
	"github.com/civicstack/form-engine/internal/events"
	"github.com/civicstack/form-engine/internal/repository"
)

// systemActorID marks transitions performed by the engine, not a person.
const systemActorID = "system:escalation"

// EscalationReport summarizes one scan.
type EscalationReport struct {
	Scanned   int
	Escalated int
	Skipped   int
	Failed    int
	Failures  map[string]string
}

// EscalationService drives overdue submissions into ESCALATED. It is the
// only code path allowed to enter that status.
type EscalationService struct {
	submissions repository.SubmissionRepository
	history     repository.HistoryRepository
	auditLog    audit.Recorder
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	batchSize   int
	parallelism int
	now         func() time.Time
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	SubmissionRepo repository.SubmissionRepository
	HistoryRepo    repository.HistoryRepository
	AuditLog       audit.Recorder
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	BatchSize      int
	Parallelism    int
	Now            func() time.Time
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	parallelism := deps.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationService{
		submissions: deps.SubmissionRepo,
		history:     deps.HistoryRepo,
		auditLog:    deps.AuditLog,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		batchSize:   batchSize,
		parallelism: parallelism,
		now:         now,
	}
}

// RunOnce scans one bounded batch of overdue submissions and escalates each
// of them. Submissions are processed independently and in parallel up to the
// configured limit; one submission's failure never aborts the rest, and an
// already-escalated submission is skipped rather than re-escalated or
// re-notified. The scan is interruptible between units: cancellation can
// never leave a submission half-transitioned because each unit is a single
// guarded write.
func (s *EscalationService) RunOnce(ctx context.Context) (EscalationReport, error) {
	now := s.now()
	overdue, err := s.submissions.ListOverdue(ctx, now, s.batchSize)
	if err != nil {
		return EscalationReport{}, err
	}

	report := EscalationReport{Scanned: len(overdue), Failures: map[string]string{}}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelism)
	for _, candidate := range overdue {
		submission := candidate
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			outcome, unitErr := s.escalateOne(groupCtx, submission, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case unitErr != nil:
				report.Failed++
				report.Failures[submission.ID] = unitErr.Error()
				s.logger.Warn("escalation failed",
					zap.String("submission_id", submission.ID),
					zap.Error(unitErr))
			case outcome:
				report.Escalated++
			default:
				report.Skipped++
			}
			// unit failures are isolated; never abort the batch
			return nil
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return report, err
	}

	s.logger.Info("escalation scan complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("escalated", report.Escalated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, ctx.Err()
}

// escalateOne performs a single atomic escalation. The status-guarded write
// makes concurrent operator transitions safe: if someone resolves the
// submission mid-scan, our write loses the race and the submission is
// simply skipped this run.
func (s *EscalationService) escalateOne(ctx context.Context, submission domain.Submission, now time.Time) (bool, error) {
	if submission.Status == domain.StatusEscalated || submission.Status.Terminal() {
		return false, nil
	}
	if !domain.CanTransition(submission.Status, domain.StatusEscalated) {
		return false, nil
	}

	err := s.submissions.UpdateStatus(ctx, submission.ID, submission.Version, domain.StatusEscalated, submission.ResolvedAt)
	if errors.Is(err, repository.ErrConflict) {
		// another writer won; the next scheduled run re-evaluates
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.history.Append(ctx, &domain.HistoryEntry{
		SubmissionID: submission.ID,
		Status:       domain.StatusEscalated,
		Note:         "sla overdue",
	}); err != nil {
		return true, err
	}
	if s.auditLog != nil {
		_ = s.auditLog.Record(ctx, systemActorID, "submission.escalate", "submission", submission.ID, map[string]any{
			"old_status": submission.Status,
			"new_status": domain.StatusEscalated,
			"sla_due":    submission.SLADue,
		})
	}

	// Notification is a best-effort side effect behind the dispatcher; a
	// delivery failure never rolls back the committed transition.
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:           uuid.NewString(),
			Type:         events.EventSubmissionEscalated,
			SubmissionID: submission.ID,
			Actor:        events.Actor{Type: domain.SubjectTypeOperator, System: true},
			Timestamp:    now,
			Payload: events.SubmissionEscalatedPayload{
				SLADue:     submission.SLADue,
				OldStatus:  submission.Status,
				OverdueFor: now.Sub(submission.SLADue),
			},
		})
	}
	return true, nil
}
