package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jobboard/application-portal/application-portal-backend/internal/applications"
)

// Resolver looks up job postings and employer membership with gorm
type Resolver struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewResolver creates a new job resolver
func NewResolver(db *gorm.DB, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{db: db, logger: logger}
}

// AutoMigrate creates the job and employer tables
func (r *Resolver) AutoMigrate() error {
	if err := r.db.AutoMigrate(&Employer{}, &EmployerMember{}, &Job{}); err != nil {
		return fmt.Errorf("failed to migrate job tables: %w", err)
	}
	return nil
}

// ResolveJobContext loads the job with its employer and members and decides
// whether actorID may manage its applications.
func (r *Resolver) ResolveJobContext(ctx context.Context, jobID, actorID uuid.UUID) (applications.JobContext, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Preload("Employer").
		Preload("Employer.Members").
		First(&job, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return applications.JobContext{}, applications.ErrJobNotFound
		}
		return applications.JobContext{}, fmt.Errorf("failed to load job: %w", err)
	}

	jc := jobContext(&job, actorID)
	r.logger.Debug("Resolved job context",
		zap.String("job_id", jobID.String()),
		zap.String("actor_id", actorID.String()),
		zap.Bool("authorized", jc.ActorAuthorized))
	return jc, nil
}

func jobContext(job *Job, actorID uuid.UUID) applications.JobContext {
	return applications.JobContext{
		JobID:           job.ID,
		JobTitle:        job.Title,
		JobActive:       job.IsActive,
		EmployerID:      job.EmployerID,
		EmployerUserID:  job.Employer.OwnerUserID,
		ActorAuthorized: job.Employer.CanManage(actorID),
	}
}
