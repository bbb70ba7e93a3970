package workflows

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a job application
type Status string

const (
	StatusApplied            Status = "APPLIED"
	StatusViewed             Status = "VIEWED"
	StatusShortlisted        Status = "SHORTLISTED"
	StatusInterviewScheduled Status = "INTERVIEW_SCHEDULED"
	StatusOffered            Status = "OFFERED"
	StatusHired              Status = "HIRED"
	StatusRejected           Status = "REJECTED"
)

// AllStatuses lists every known status in pipeline order
var AllStatuses = []Status{
	StatusApplied,
	StatusViewed,
	StatusShortlisted,
	StatusInterviewScheduled,
	StatusOffered,
	StatusHired,
	StatusRejected,
}

// ParseStatus converts a raw string to a Status, rejecting unknown values
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON rejects unknown statuses during request binding
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Role identifies which side of the marketplace is acting
type Role string

const (
	RoleJobSeeker   Role = "JOB_SEEKER"
	RoleJobProvider Role = "JOB_PROVIDER"
	RoleAdmin       Role = "ADMIN"
)

// ParseRole converts a raw string to a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleJobSeeker, RoleJobProvider, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type edge struct {
	from Status
	to   Status
}

// TransitionTable enforces application status transitions.
// Each edge carries the role that must request it.
type TransitionTable struct {
	edges   map[edge]Role
	targets map[Status][]Status
}

// NewTransitionTable creates the application pipeline policy
func NewTransitionTable() *TransitionTable {
	return newTransitionTable(map[Status][]Status{
		StatusApplied:            {StatusViewed, StatusRejected},
		StatusViewed:             {StatusShortlisted, StatusRejected},
		StatusShortlisted:        {StatusInterviewScheduled, StatusRejected},
		StatusInterviewScheduled: {StatusOffered, StatusRejected},
		StatusOffered:            {StatusHired, StatusRejected},
		StatusHired:              {},
		StatusRejected:           {},
	}, RoleJobProvider)
}

func newTransitionTable(graph map[Status][]Status, role Role) *TransitionTable {
	t := &TransitionTable{
		edges:   make(map[edge]Role),
		targets: make(map[Status][]Status, len(graph)),
	}
	for from, tos := range graph {
		t.targets[from] = tos
		for _, to := range tos {
			t.edges[edge{from: from, to: to}] = role
		}
	}
	return t
}

// AllowedTargets returns the statuses reachable in one step from the given status
func (t *TransitionTable) AllowedTargets(from Status) []Status {
	allowed, exists := t.targets[from]
	if !exists || len(allowed) == 0 {
		return []Status{}
	}
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// RequiredRole returns the role that must request from -> to.
// The second result is false when the transition is not defined.
func (t *TransitionTable) RequiredRole(from, to Status) (Role, bool) {
	role, ok := t.edges[edge{from: from, to: to}]
	return role, ok
}

// CanTransition checks if a status transition is allowed
func (t *TransitionTable) CanTransition(from, to Status) bool {
	_, ok := t.edges[edge{from: from, to: to}]
	return ok
}

// IsTerminal reports whether a status has no outgoing transitions
func (t *TransitionTable) IsTerminal(s Status) bool {
	allowed, exists := t.targets[s]
	return exists && len(allowed) == 0
}
