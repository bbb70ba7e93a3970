package applications

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

// TransitionErrorKind classifies a rejected transition
type TransitionErrorKind string

const (
	KindMismatchedApplication  TransitionErrorKind = "MISMATCHED_APPLICATION"
	KindNotAuthorized          TransitionErrorKind = "NOT_AUTHORIZED"
	KindIllegalTransition      TransitionErrorKind = "ILLEGAL_TRANSITION"
	KindWrongRole              TransitionErrorKind = "WRONG_ROLE"
	KindConcurrentModification TransitionErrorKind = "CONCURRENT_MODIFICATION"
)

// Retryable is true only when reloading and resubmitting can succeed
func (k TransitionErrorKind) Retryable() bool {
	return k == KindConcurrentModification
}

var (
	// ErrMismatchedApplication is returned when the request targets another application.
	ErrMismatchedApplication = errors.New("request does not match application")
	// ErrNotAuthorized is returned when the actor does not own the job's employer.
	ErrNotAuthorized = errors.New("not authorized for this application")
	// ErrIllegalTransition is returned when the target is not reachable from the current status.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrWrongRole is returned when the actor's role cannot request this transition.
	ErrWrongRole = errors.New("wrong role for status transition")
	// ErrConcurrentModification is returned when the stored application changed since it was loaded.
	ErrConcurrentModification = errors.New("application was modified concurrently")

	// ErrApplicationNotFound signals a missing application.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrJobNotFound signals a missing job posting.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobClosed signals an application against an inactive posting.
	ErrJobClosed = errors.New("job is not accepting applications")
	// ErrAlreadyApplied signals a duplicate (job, job seeker) application.
	ErrAlreadyApplied = errors.New("already applied to this job")
	// ErrInvalidArgument signals failed input validation.
	ErrInvalidArgument = errors.New("invalid argument")
)

var kindSentinels = map[TransitionErrorKind]error{
	KindMismatchedApplication:  ErrMismatchedApplication,
	KindNotAuthorized:          ErrNotAuthorized,
	KindIllegalTransition:      ErrIllegalTransition,
	KindWrongRole:              ErrWrongRole,
	KindConcurrentModification: ErrConcurrentModification,
}

// TransitionError is the typed rejection of an attempted transition
type TransitionError struct {
	Kind          TransitionErrorKind
	ApplicationID uuid.UUID
	From          workflows.Status
	To            workflows.Status
	Reason        string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: application %s %s -> %s", kindSentinels[e.Kind], e.ApplicationID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is lets errors.Is match the kind's sentinel
func (e *TransitionError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newTransitionError(kind TransitionErrorKind, app *Application, to workflows.Status, reason string) *TransitionError {
	return &TransitionError{
		Kind:          kind,
		ApplicationID: app.ID,
		From:          app.Status,
		To:            to,
		Reason:        reason,
	}
}

// KindOf extracts the transition error kind, if err is one
func KindOf(err error) (TransitionErrorKind, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}
