package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"jobboard/application-portal/application-portal-backend/internal/config"
	"jobboard/application-portal/application-portal-backend/internal/notifications/websocket"
)

// AWSClients holds the SDK clients behind the email and push channels
type AWSClients struct {
	SES *sesv2.Client
	SNS *sns.Client
}

// NewAWSClients loads the SDK configuration and builds SES and SNS clients.
// Static keys are used when both are set; otherwise the default chain.
func NewAWSClients(ctx context.Context, cfg config.AWSConfig) (*AWSClients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &AWSClients{
		SES: sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		}),
		SNS: sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		}),
	}, nil
}

// BuildSenders returns the senders for the enabled channels. The websocket
// sender is only built when a manager is given, since sockets live in the
// API process.
func BuildSenders(ctx context.Context, cfg *config.Config, store Store, manager *websocket.Manager) ([]Sender, error) {
	senders := []Sender{}
	channels := &cfg.Notifications

	if channels.HasChannel(ChannelInApp) {
		senders = append(senders, InAppSender{})
	}
	if channels.HasChannel(ChannelWebSocket) && manager != nil {
		senders = append(senders, NewWebSocketSender(manager))
	}
	if !channels.HasChannel(ChannelEmail) && !channels.HasChannel(ChannelPush) {
		return senders, nil
	}

	clients, err := NewAWSClients(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	if channels.HasChannel(ChannelEmail) {
		senders = append(senders, NewEmailSender(clients.SES, store, channels.EmailFrom, channels.ConfigurationSet))
	}
	if channels.HasChannel(ChannelPush) {
		senders = append(senders, NewPushSender(clients.SNS, store, channels.SNSTopicARN))
	}
	return senders, nil
}
