package workflows

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedTargets(t *testing.T) {
	table := NewTransitionTable()

	cases := map[Status][]Status{
		StatusApplied:            {StatusViewed, StatusRejected},
		StatusViewed:             {StatusShortlisted, StatusRejected},
		StatusShortlisted:        {StatusInterviewScheduled, StatusRejected},
		StatusInterviewScheduled: {StatusOffered, StatusRejected},
		StatusOffered:            {StatusHired, StatusRejected},
		StatusHired:              {},
		StatusRejected:           {},
	}

	for from, want := range cases {
		assert.ElementsMatch(t, want, table.AllowedTargets(from), "from %s", from)
	}
	assert.Empty(t, table.AllowedTargets(Status("ARCHIVED")))
}

func TestAllowedTargetsReturnsCopy(t *testing.T) {
	table := NewTransitionTable()

	got := table.AllowedTargets(StatusApplied)
	got[0] = StatusHired

	assert.Equal(t, StatusViewed, table.AllowedTargets(StatusApplied)[0])
}

func TestRequiredRole(t *testing.T) {
	table := NewTransitionTable()

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			role, ok := table.RequiredRole(from, to)
			assert.Equal(t, table.CanTransition(from, to), ok, "%s -> %s", from, to)
			if ok {
				assert.Equal(t, RoleJobProvider, role)
			} else {
				assert.Empty(t, role)
			}
		}
	}
}

func TestNoSelfLoops(t *testing.T) {
	table := NewTransitionTable()
	for _, s := range AllStatuses {
		assert.False(t, table.CanTransition(s, s), "self loop on %s", s)
	}
}

func TestIsTerminal(t *testing.T) {
	table := NewTransitionTable()

	assert.True(t, table.IsTerminal(StatusHired))
	assert.True(t, table.IsTerminal(StatusRejected))
	assert.False(t, table.IsTerminal(StatusOffered))
	assert.False(t, table.IsTerminal(Status("UNKNOWN")))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" interview_scheduled ")
	require.NoError(t, err)
	assert.Equal(t, StatusInterviewScheduled, s)

	_, err = ParseStatus("in_review")
	assert.Error(t, err)
}

func TestStatusUnmarshalJSON(t *testing.T) {
	var body struct {
		Status Status `json:"status"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"status":"shortlisted"}`), &body))
	assert.Equal(t, StatusShortlisted, body.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &body))
	assert.Error(t, json.Unmarshal([]byte(`{"status":3}`), &body))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("job_provider")
	require.NoError(t, err)
	assert.Equal(t, RoleJobProvider, r)

	_, err = ParseRole("recruiter")
	assert.Error(t, err)
}
