package applications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

// JobDirectory resolves job and employer ownership for an acting user
type JobDirectory interface {
	ResolveJobContext(ctx context.Context, jobID, actorID uuid.UUID) (JobContext, error)
}

// Dispatcher delivers notification intents
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []NotificationIntent) error
}

// Service provides business logic for job applications
type Service struct {
	repo       Repository
	jobs       JobDirectory
	machine    *StateMachine
	notifier   *Notifier
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewService creates a new applications service. dispatcher may be nil, in
// which case intents are computed and returned but not delivered.
func NewService(repo Repository, jobs JobDirectory, machine *StateMachine, notifier *Notifier, dispatcher Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		jobs:       jobs,
		machine:    machine,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Submit creates an application at APPLIED for the job seeker in req
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Application, error) {
	if req.JobID == uuid.Nil || req.JobSeekerID == uuid.Nil {
		return nil, fmt.Errorf("%w: job_id and job seeker are required", ErrInvalidArgument)
	}

	job, err := s.jobs.ResolveJobContext(ctx, req.JobID, req.JobSeekerID)
	if err != nil {
		return nil, err
	}
	if !job.JobActive {
		return nil, ErrJobClosed
	}

	app := s.machine.NewApplication(req)
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.logger.Info("Application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("job_id", app.JobID.String()),
		zap.String("job_seeker_id", app.JobSeekerID.String()))

	return app, nil
}

// UpdateStatus runs one transition end to end: load, resolve ownership,
// apply, persist with a version check, then hand intents to the dispatcher.
// Delivery failures are logged and do not undo the transition.
func (s *Service) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*UpdateStatusResult, error) {
	app, err := s.repo.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.ResolveJobContext(ctx, app.JobID, req.ActorID)
	if err != nil {
		return nil, err
	}

	next, event, err := s.machine.Apply(app, TransitionRequest{
		ApplicationID: req.ApplicationID,
		TargetStatus:  req.Status,
		ActingUserID:  req.ActorID,
		ActingRole:    req.ActorRole,
		Note:          req.Note,
	}, job)
	if err != nil {
		s.logger.Warn("Status transition rejected",
			zap.String("application_id", req.ApplicationID.String()),
			zap.String("from", string(app.Status)),
			zap.String("to", string(req.Status)),
			zap.String("actor_id", req.ActorID.String()),
			zap.Error(err))
		return nil, err
	}

	if err := s.repo.SaveTransition(ctx, app, next); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			s.logger.Warn("Stale application snapshot",
				zap.String("application_id", app.ID.String()),
				zap.Int("loaded_version", app.Version))
		}
		return nil, err
	}

	intents := s.notifier.NotificationsFor(*event)
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, intents); err != nil {
			s.logger.Error("Failed to dispatch status notifications",
				zap.String("application_id", app.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Application status changed",
		zap.String("application_id", app.ID.String()),
		zap.String("from", string(event.FromStatus)),
		zap.String("to", string(event.ToStatus)),
		zap.String("actor_id", req.ActorID.String()),
		zap.Int("version", next.Version))

	return &UpdateStatusResult{
		Application:   next,
		Event:         event,
		Notifications: intents,
	}, nil
}

// AllowedNextStatuses lists the statuses the actor may request right now.
// Clients use it instead of embedding their own copy of the graph.
func (s *Service) AllowedNextStatuses(ctx context.Context, id, actorID uuid.UUID, role workflows.Role) ([]workflows.Status, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.ResolveJobContext(ctx, app.JobID, actorID)
	if err != nil {
		return nil, err
	}
	return s.machine.AllowedNext(app, role, job), nil
}

// Get returns an application visible to the actor: its job seeker or
// someone who manages the job's employer.
func (s *Service) Get(ctx context.Context, id, actorID uuid.UUID) (*Application, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.JobSeekerID == actorID {
		return app, nil
	}
	job, err := s.jobs.ResolveJobContext(ctx, app.JobID, actorID)
	if err != nil {
		return nil, err
	}
	if !job.ActorAuthorized {
		return nil, ErrNotAuthorized
	}
	return app, nil
}

// History returns the ordered status history of an application
func (s *Service) History(ctx context.Context, id, actorID uuid.UUID) ([]StatusHistoryEntry, error) {
	app, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	return app.StatusHistory, nil
}

// ListByJob lists the applications of a job for someone managing its employer
func (s *Service) ListByJob(ctx context.Context, jobID, actorID uuid.UUID, filters *ApplicationFilters) (*ApplicationListResponse, error) {
	job, err := s.jobs.ResolveJobContext(ctx, jobID, actorID)
	if err != nil {
		return nil, err
	}
	if !job.ActorAuthorized {
		return nil, ErrNotAuthorized
	}
	filters.JobID = &jobID
	filters.JobSeekerID = nil
	return s.list(ctx, filters)
}

// ListBySeeker lists a job seeker's own applications
func (s *Service) ListBySeeker(ctx context.Context, seekerID uuid.UUID, filters *ApplicationFilters) (*ApplicationListResponse, error) {
	filters.JobSeekerID = &seekerID
	filters.JobID = nil
	return s.list(ctx, filters)
}

// Pipeline returns the job context and every application of the job, for
// export. Only someone managing the job's employer may read it.
func (s *Service) Pipeline(ctx context.Context, jobID, actorID uuid.UUID, status *workflows.Status) (JobContext, []*Application, error) {
	job, err := s.jobs.ResolveJobContext(ctx, jobID, actorID)
	if err != nil {
		return JobContext{}, nil, err
	}
	if !job.ActorAuthorized {
		return JobContext{}, nil, ErrNotAuthorized
	}

	apps, _, err := s.repo.List(ctx, &ApplicationFilters{JobID: &jobID, Status: status, Page: 1})
	if err != nil {
		return JobContext{}, nil, err
	}
	return job, apps, nil
}

func (s *Service) list(ctx context.Context, filters *ApplicationFilters) (*ApplicationListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	apps, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &ApplicationListResponse{
		Applications: apps,
		TotalCount:   total,
		Page:         filters.Page,
		PageSize:     filters.PageSize,
		HasMore:      filters.PageSize > 0 && filters.Page*filters.PageSize < total,
	}, nil
}
