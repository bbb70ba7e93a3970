package applications

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

// StateMachine is the only code path allowed to change an application's status.
// It holds no mutable state and is safe for concurrent use.
type StateMachine struct {
	table *workflows.TransitionTable
	now   func() time.Time
}

// NewStateMachine creates a state machine over the given transition table.
// A nil clock defaults to UTC wall time.
func NewStateMachine(table *workflows.TransitionTable, now func() time.Time) *StateMachine {
	if table == nil {
		table = workflows.NewTransitionTable()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &StateMachine{table: table, now: now}
}

// Table exposes the transition policy
func (m *StateMachine) Table() *workflows.TransitionTable {
	return m.table
}

// NewApplication builds a freshly submitted application with its seed history entry
func (m *StateMachine) NewApplication(req SubmitRequest) *Application {
	now := m.now()
	id := uuid.New()
	return &Application{
		ID:          id,
		JobID:       req.JobID,
		JobSeekerID: req.JobSeekerID,
		ResumeID:    req.ResumeID,
		CoverLetter: req.CoverLetter,
		Status:      workflows.StatusApplied,
		Version:     1,
		StatusHistory: []StatusHistoryEntry{{
			ApplicationID: id,
			Sequence:      1,
			Status:        workflows.StatusApplied,
			ActingUserID:  req.JobSeekerID,
			Timestamp:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply validates req against app and job and returns the transitioned copy.
// The input application is never modified. Checks run in a fixed order and
// the first failure decides the error.
func (m *StateMachine) Apply(app *Application, req TransitionRequest, job JobContext) (*Application, *TransitionEvent, error) {
	if app == nil {
		return nil, nil, fmt.Errorf("%w: nil application", ErrInvalidArgument)
	}
	if req.ApplicationID != app.ID {
		return nil, nil, newTransitionError(KindMismatchedApplication, app, req.TargetStatus,
			fmt.Sprintf("request is for %s", req.ApplicationID))
	}
	if !job.ActorAuthorized {
		return nil, nil, newTransitionError(KindNotAuthorized, app, req.TargetStatus,
			fmt.Sprintf("user %s does not manage job %s", req.ActingUserID, app.JobID))
	}
	if !m.table.CanTransition(app.Status, req.TargetStatus) {
		return nil, nil, newTransitionError(KindIllegalTransition, app, req.TargetStatus, "")
	}
	if role, _ := m.table.RequiredRole(app.Status, req.TargetStatus); req.ActingRole != role {
		return nil, nil, newTransitionError(KindWrongRole, app, req.TargetStatus,
			fmt.Sprintf("requires %s, got %s", role, req.ActingRole))
	}

	now := m.now()

	history := make([]StatusHistoryEntry, len(app.StatusHistory), len(app.StatusHistory)+1)
	copy(history, app.StatusHistory)
	history = append(history, StatusHistoryEntry{
		ApplicationID: app.ID,
		Sequence:      len(app.StatusHistory) + 1,
		Status:        req.TargetStatus,
		ActingUserID:  req.ActingUserID,
		Timestamp:     now,
		Note:          req.Note,
	})

	next := *app
	next.Status = req.TargetStatus
	next.Version = app.Version + 1
	next.StatusHistory = history
	next.UpdatedAt = now

	event := &TransitionEvent{
		ApplicationID:   app.ID,
		FromStatus:      app.Status,
		ToStatus:        req.TargetStatus,
		ActingUserID:    req.ActingUserID,
		Timestamp:       now,
		JobSeekerUserID: app.JobSeekerID,
		EmployerUserID:  job.EmployerUserID,
		JobTitle:        job.JobTitle,
	}

	return &next, event, nil
}

// AllowedNext returns the statuses the actor may move app to right now
func (m *StateMachine) AllowedNext(app *Application, role workflows.Role, job JobContext) []workflows.Status {
	if app == nil || !job.ActorAuthorized {
		return []workflows.Status{}
	}
	out := []workflows.Status{}
	for _, to := range m.table.AllowedTargets(app.Status) {
		if required, ok := m.table.RequiredRole(app.Status, to); ok && required == role {
			out = append(out, to)
		}
	}
	return out
}
