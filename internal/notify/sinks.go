package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/segmentio/kafka-go"

	"github.com/complaintdesk/backend/internal/logger"
)

// LogSink writes every event to the application log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(ctx context.Context, ev Event) error {
	logger.Info("Complaint event", map[string]interface{}{
		"type":            ev.Type,
		"complaint_id":    ev.ComplaintID,
		"status":          ev.Status,
		"previous_status": ev.PreviousStatus,
		"actor":           ev.Actor,
		"technician_id":   ev.TechnicianID,
	})
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events keyed by complaint id, so one complaint's
// events stay on one partition and keep their order.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &KafkaSink{writer: writer, topic: topic}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Send(ctx context.Context, ev Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.ComplaintID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink enqueues events on an SQS queue for downstream mailers.
type SQSSink struct {
	client   sqsAPI
	queueURL string
}

// NewSQSSink builds a client from the default AWS configuration chain. When
// queueURL is empty the URL is looked up from queueName.
func NewSQSSink(ctx context.Context, queueURL, queueName string) (*SQSSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})

	if queueURL == "" {
		if queueName == "" {
			return nil, fmt.Errorf("either SQS_QUEUE_URL or SQS_QUEUE_NAME is required")
		}
		resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
		if err != nil {
			return nil, fmt.Errorf("failed to get SQS queue URL: %w", err)
		}
		queueURL = aws.ToString(resp.QueueUrl)
	}
	return &SQSSink{client: client, queueURL: queueURL}, nil
}

func (s *SQSSink) Name() string { return "sqs" }

func (s *SQSSink) Send(ctx context.Context, ev Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.Type)),
			},
			"complaintId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.ComplaintID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}
	return nil
}

// Settings selects and configures sinks by name.
type Settings struct {
	Sinks        []string
	KafkaBrokers []string
	KafkaTopic   string
	SQSQueueURL  string
	SQSQueueName string
}

// BuildSinks constructs the named sinks. Unknown names are an error.
func BuildSinks(ctx context.Context, s Settings) ([]Sink, error) {
	var sinks []Sink
	for _, name := range s.Sinks {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
			continue
		case "log":
			sinks = append(sinks, LogSink{})
		case "kafka":
			if len(s.KafkaBrokers) == 0 || s.KafkaTopic == "" {
				return nil, fmt.Errorf("kafka sink needs KAFKA_BROKERS and KAFKA_TOPIC")
			}
			sinks = append(sinks, NewKafkaSink(s.KafkaBrokers, s.KafkaTopic))
		case "sqs":
			sink, err := NewSQSSink(ctx, s.SQSQueueURL, s.SQSQueueName)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		default:
			return nil, fmt.Errorf("unknown notification sink %q", name)
		}
	}
	return sinks, nil
}
