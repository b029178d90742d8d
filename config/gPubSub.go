package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// JobKind values carried by JobMessage.
const (
	JobKindImport = "import"
	JobKindReport = "report"
)

// JobMessage is published on PUBSUB_JOBS_TOPIC and delivered back to /pubsub/jobs.
type JobMessage struct {
	Kind          string    `json:"kind"`
	TenantId      string    `json:"tenant_id"`
	ReferenceId   int       `json:"reference_id"`
	RequestedAt   time.Time `json:"requested_at"`
	CorrelationId string    `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

// EnsureJobsTopic creates PUBSUB_JOBS_TOPIC when it does not exist yet.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func EnsureJobsTopic(ctx context.Context) (*pubsub.Topic, error) {
	c, err := getPubSubClient(ctx)
	if err != nil {
		return nil, err
	}
	return CreateTopicIfNotExists(ctx, c, os.Getenv("PUBSUB_JOBS_TOPIC"))
}

// JobsTopicConfigured reports whether published jobs have somewhere to go.
// Without a topic the polling worker picks pending rows up instead.
func JobsTopicConfigured() bool {
	return os.Getenv("PUBSUB_JOBS_TOPIC") != "" && getPubSubProjectID() != ""
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	var client *pubsub.Client
	err := retry(ctx, "pubsub client "+projectID, 5, func(int) error {
		c, err := pubsub.NewClient(ctx, projectID, opts...)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}

	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		// lost the race to another caller
		_ = client.Close()
		return pubsubClient, nil
	}
	pubsubClient = client
	return client, nil
}

func CreateTopicIfNotExists(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}

// PublishJob publishes and returns the Pub/Sub server-assigned message ID.
func PublishJob(ctx context.Context, msg JobMessage) (string, error) {
	topicName := os.Getenv("PUBSUB_JOBS_TOPIC")
	if topicName == "" {
		return "", errors.New("PUBSUB_JOBS_TOPIC is required")
	}

	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := client.Topic(topicName).Publish(ctx, &pubsub.Message{
		Data: msgJSON,
		Attributes: map[string]string{
			"kind":      msg.Kind,
			"tenant_id": msg.TenantId,
		},
	})
	return result.Get(ctx)
}
