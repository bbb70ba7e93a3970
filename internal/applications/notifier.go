package applications

import (
	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

// IntentTypeApplicationStatus tags every intent produced by the notifier
const IntentTypeApplicationStatus = "APPLICATION_STATUS"

// DefaultIntentChannels is used when the notifier is built without channels
var DefaultIntentChannels = []string{"IN_APP", "WEBSOCKET", "EMAIL"}

const fallbackStatusMessage = "Your application status has been updated"

// statusMessages maps the new status to the message the job seeker sees
var statusMessages = map[workflows.Status]string{
	workflows.StatusViewed:             "Your application has been viewed",
	workflows.StatusShortlisted:        "Congratulations! You have been shortlisted",
	workflows.StatusInterviewScheduled: "Interview has been scheduled",
	workflows.StatusOffered:            "Congratulations! You have received a job offer",
	workflows.StatusHired:              "Congratulations! You have been hired",
	workflows.StatusRejected:           fallbackStatusMessage,
}

// Notifier turns applied transitions into notification intents
type Notifier struct {
	channels []string
}

// NewNotifier creates a notifier that addresses intents to the given channels
func NewNotifier(channels []string) *Notifier {
	if len(channels) == 0 {
		channels = DefaultIntentChannels
	}
	cp := make([]string, len(channels))
	copy(cp, channels)
	return &Notifier{channels: cp}
}

// NotificationsFor returns one intent for the job seeker. The employer made
// the change and is not notified.
func (n *Notifier) NotificationsFor(event TransitionEvent) []NotificationIntent {
	message, ok := statusMessages[event.ToStatus]
	if !ok {
		message = fallbackStatusMessage
	}

	title := "Application update"
	if event.JobTitle != "" {
		title = "Application update: " + event.JobTitle
	}

	channels := make([]string, len(n.channels))
	copy(channels, n.channels)

	return []NotificationIntent{{
		RecipientUserID: event.JobSeekerUserID,
		RecipientRole:   workflows.RoleJobSeeker,
		Type:            IntentTypeApplicationStatus,
		Title:           title,
		Message:         message,
		ApplicationID:   event.ApplicationID,
		Status:          event.ToStatus,
		JobTitle:        event.JobTitle,
		Channels:        channels,
		CreatedAt:       event.Timestamp,
	}}
}
