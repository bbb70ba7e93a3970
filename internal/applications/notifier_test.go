package applications

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

func TestNotificationsForMessages(t *testing.T) {
	n := NewNotifier(nil)

	cases := map[workflows.Status]string{
		workflows.StatusViewed:             "Your application has been viewed",
		workflows.StatusShortlisted:        "Congratulations! You have been shortlisted",
		workflows.StatusInterviewScheduled: "Interview has been scheduled",
		workflows.StatusOffered:            "Congratulations! You have received a job offer",
		workflows.StatusHired:              "Congratulations! You have been hired",
		workflows.StatusRejected:           "Your application status has been updated",
	}

	for status, want := range cases {
		event := TransitionEvent{
			ApplicationID:   uuid.New(),
			ToStatus:        status,
			JobSeekerUserID: uuid.New(),
			EmployerUserID:  uuid.New(),
			JobTitle:        "Data Analyst",
		}

		intents := n.NotificationsFor(event)

		require.Len(t, intents, 1, status)
		assert.Equal(t, want, intents[0].Message)
		assert.Equal(t, event.JobSeekerUserID, intents[0].RecipientUserID)
		assert.Equal(t, workflows.RoleJobSeeker, intents[0].RecipientRole)
		assert.NotEqual(t, event.EmployerUserID, intents[0].RecipientUserID)
		assert.Equal(t, status, intents[0].Status)
		assert.Equal(t, "Application update: Data Analyst", intents[0].Title)
	}
}

func TestNotificationsForIsDeterministic(t *testing.T) {
	n := NewNotifier([]string{"IN_APP"})
	event := TransitionEvent{
		ApplicationID:   uuid.New(),
		FromStatus:      workflows.StatusApplied,
		ToStatus:        workflows.StatusViewed,
		ActingUserID:    uuid.New(),
		Timestamp:       fixedNow,
		JobSeekerUserID: uuid.New(),
		EmployerUserID:  uuid.New(),
	}

	first := n.NotificationsFor(event)
	first[0].Channels[0] = "EMAIL"
	second := n.NotificationsFor(event)

	assert.Equal(t, []string{"IN_APP"}, second[0].Channels)
	first[0].Channels[0] = "IN_APP"
	assert.Equal(t, first, second)
}

func TestNotificationsForUnknownStatusFallsBack(t *testing.T) {
	intents := NewNotifier(nil).NotificationsFor(TransitionEvent{ToStatus: workflows.StatusApplied})

	require.Len(t, intents, 1)
	assert.Equal(t, "Your application status has been updated", intents[0].Message)
	assert.Equal(t, "Application update", intents[0].Title)
	assert.Equal(t, DefaultIntentChannels, intents[0].Channels)
}
