package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"
)

// SESAPI is the part of the SES v2 client used for email delivery
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// ContactLookup resolves a user's email address and push endpoint
type ContactLookup interface {
	GetContact(ctx context.Context, userID uuid.UUID) (*UserContact, error)
}

// EmailSender delivers notifications through Amazon SES
type EmailSender struct {
	client           SESAPI
	contacts         ContactLookup
	from             string
	configurationSet string
}

// NewEmailSender creates an SES email sender
func NewEmailSender(client SESAPI, contacts ContactLookup, from, configurationSet string) *EmailSender {
	return &EmailSender{
		client:           client,
		contacts:         contacts,
		from:             from,
		configurationSet: configurationSet,
	}
}

func (s *EmailSender) Channel() string { return ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, n *SentNotification) (string, error) {
	contact, err := s.contacts.GetContact(ctx, n.UserID)
	if err != nil {
		return "", err
	}
	if contact.Email == "" {
		return "", ErrRecipientUnavailable
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{contact.Email},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(n.Title), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(n.Message), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []sestypes.MessageTag{
			{Name: aws.String("category"), Value: aws.String(n.Category)},
		},
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
