package applications

import (
	"time"

	"github.com/google/uuid"

	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

// Application is one job seeker's submission against one job posting
type Application struct {
	ID            uuid.UUID            `json:"id" db:"id"`
	JobID         uuid.UUID            `json:"job_id" db:"job_id"`
	JobSeekerID   uuid.UUID            `json:"job_seeker_id" db:"job_seeker_id"`
	ResumeID      *uuid.UUID           `json:"resume_id,omitempty" db:"resume_id"`
	CoverLetter   *string              `json:"cover_letter,omitempty" db:"cover_letter"`
	Status        workflows.Status     `json:"status" db:"status"`
	Version       int                  `json:"version" db:"version"`
	StatusHistory []StatusHistoryEntry `json:"status_history" db:"-"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}

// StatusHistoryEntry is an immutable audit trail entry.
// Sequence starts at 1 and has no gaps.
type StatusHistoryEntry struct {
	ApplicationID uuid.UUID        `json:"application_id" db:"application_id"`
	Sequence      int              `json:"sequence" db:"sequence"`
	Status        workflows.Status `json:"status" db:"status"`
	ActingUserID  uuid.UUID        `json:"acting_user_id" db:"acting_user_id"`
	Timestamp     time.Time        `json:"timestamp" db:"created_at"`
	Note          *string          `json:"note,omitempty" db:"note"`
}

// LastEntry returns the most recent history entry, if any
func (a *Application) LastEntry() (StatusHistoryEntry, bool) {
	if len(a.StatusHistory) == 0 {
		return StatusHistoryEntry{}, false
	}
	return a.StatusHistory[len(a.StatusHistory)-1], true
}

// TransitionRequest is one attempted status change. It is never persisted.
type TransitionRequest struct {
	ApplicationID uuid.UUID
	TargetStatus  workflows.Status
	ActingUserID  uuid.UUID
	ActingRole    workflows.Role
	Note          *string
}

// JobContext is resolved from job and employer records before a transition
// is applied. ActorAuthorized is true when the acting user owns or
// administers the employer that posted the job.
type JobContext struct {
	JobID           uuid.UUID
	JobTitle        string
	JobActive       bool
	EmployerID      uuid.UUID
	EmployerUserID  uuid.UUID
	ActorAuthorized bool
}

// TransitionEvent describes a successfully applied transition with enough
// context for notification without further lookups.
type TransitionEvent struct {
	ApplicationID   uuid.UUID        `json:"application_id"`
	FromStatus      workflows.Status `json:"from_status"`
	ToStatus        workflows.Status `json:"to_status"`
	ActingUserID    uuid.UUID        `json:"acting_user_id"`
	Timestamp       time.Time        `json:"timestamp"`
	JobSeekerUserID uuid.UUID        `json:"job_seeker_user_id"`
	EmployerUserID  uuid.UUID        `json:"employer_user_id"`
	JobTitle        string           `json:"job_title"`
}

// NotificationIntent says who should be told what. Delivery happens elsewhere.
type NotificationIntent struct {
	RecipientUserID uuid.UUID        `json:"recipient_user_id"`
	RecipientRole   workflows.Role   `json:"recipient_role"`
	Type            string           `json:"type"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	ApplicationID   uuid.UUID        `json:"application_id"`
	Status          workflows.Status `json:"status"`
	JobTitle        string           `json:"job_title"`
	Channels        []string         `json:"channels"`
	CreatedAt       time.Time        `json:"created_at"`
}

// SubmitRequest creates a new application at APPLIED
type SubmitRequest struct {
	JobID       uuid.UUID  `json:"job_id" binding:"required"`
	ResumeID    *uuid.UUID `json:"resume_id,omitempty"`
	CoverLetter *string    `json:"cover_letter,omitempty"`
	JobSeekerID uuid.UUID  `json:"-"`
}

// UpdateStatusRequest is the service-level form of a PATCH status call
type UpdateStatusRequest struct {
	ApplicationID uuid.UUID
	Status        workflows.Status
	Note          *string
	ActorID       uuid.UUID
	ActorRole     workflows.Role
}

// UpdateStatusResult carries the persisted application and what was sent
type UpdateStatusResult struct {
	Application   *Application         `json:"application"`
	Event         *TransitionEvent     `json:"event"`
	Notifications []NotificationIntent `json:"notifications"`
}

// ApplicationFilters narrows list queries
type ApplicationFilters struct {
	JobID       *uuid.UUID
	JobSeekerID *uuid.UUID
	Status      *workflows.Status
	Page        int
	PageSize    int
}

// ApplicationListResponse is a paginated list of applications
type ApplicationListResponse struct {
	Applications []*Application `json:"applications"`
	TotalCount   int            `json:"total_count"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	HasMore      bool           `json:"has_more"`
}
