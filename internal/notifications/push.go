package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the part of the SNS client used for push delivery
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// PushSender publishes notifications to SNS. A user with a registered
// platform endpoint is targeted directly; otherwise the message goes to the
// shared topic with a user_id attribute for subscription filters.
type PushSender struct {
	client   SNSAPI
	contacts ContactLookup
	topicARN string
}

// NewPushSender creates an SNS push sender
func NewPushSender(client SNSAPI, contacts ContactLookup, topicARN string) *PushSender {
	return &PushSender{
		client:   client,
		contacts: contacts,
		topicARN: topicARN,
	}
}

func (s *PushSender) Channel() string { return ChannelPush }

func (s *PushSender) Send(ctx context.Context, n *SentNotification) (string, error) {
	input := &sns.PublishInput{
		Message: aws.String(n.Message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"user_id":  {DataType: aws.String("String"), StringValue: aws.String(n.UserID.String())},
			"category": {DataType: aws.String("String"), StringValue: aws.String(n.Category)},
		},
	}

	contact, err := s.contacts.GetContact(ctx, n.UserID)
	switch {
	case err == nil && contact.PushEndpointARN != "":
		input.TargetArn = aws.String(contact.PushEndpointARN)
	case s.topicARN != "":
		input.TopicArn = aws.String(s.topicARN)
		input.Subject = aws.String(truncate(n.Title, 100))
	case err != nil:
		return "", err
	default:
		return "", ErrRecipientUnavailable
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to publish push notification: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
