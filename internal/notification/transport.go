package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"fleet-workflow/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/redis/go-redis/v9"
)

// SNSService is the subset of the SNS client used here, for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSTransport publishes each channel to its own topic.
type SNSTransport struct {
	client SNSService
	topics map[Channel]string
}

func NewSNSTransport(ctx context.Context, region string, topics map[string]string) (*SNSTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSNSTransportWithClient(sns.NewFromConfig(awsCfg), topics), nil
}

func NewSNSTransportWithClient(client SNSService, topics map[string]string) *SNSTransport {
	t := &SNSTransport{client: client, topics: make(map[Channel]string, len(topics))}
	for ch, arn := range topics {
		t.topics[Channel(ch)] = arn
	}
	return t
}

func (t *SNSTransport) SendToRole(ctx context.Context, channel Channel, msg Message) error {
	arn, ok := t.topics[channel]
	if !ok {
		return fmt.Errorf("no topic configured for channel %q", channel)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	_, err = t.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(arn),
		Subject:  aws.String(fmt.Sprintf("Order #%d", msg.OrderID)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"channel": {DataType: aws.String("String"), StringValue: aws.String(string(channel))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish to %s: %w", channel, err)
	}
	return nil
}

// RedisTransport publishes to <prefix><channel> over Redis pub/sub.
type RedisTransport struct {
	client *redis.Client
	prefix string
}

func NewRedisTransport(client *redis.Client, prefix string) *RedisTransport {
	return &RedisTransport{client: client, prefix: prefix}
}

func (t *RedisTransport) SendToRole(ctx context.Context, channel Channel, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := t.client.Publish(ctx, t.prefix+string(channel), body).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", channel, err)
	}
	return nil
}

// LogTransport only writes the message to the log. Used in development.
type LogTransport struct {
	logger logger.Logger
}

func NewLogTransport(log logger.Logger) *LogTransport {
	return &LogTransport{logger: log.WithFields(map[string]interface{}{"transport": "log"})}
}

func (t *LogTransport) SendToRole(_ context.Context, channel Channel, msg Message) error {
	t.logger.Info(msg.Text, map[string]interface{}{
		"channel":   string(channel),
		"userId":    msg.UserID,
		"orderId":   msg.OrderID,
		"messageId": msg.ID,
	})
	return nil
}
