package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox/registry"
)

// brokerMessage is the broker-neutral form of one outbox row.
type brokerMessage struct {
	ID         string
	Topic      string
	RoutingKey string
	Data       []byte
	Attributes map[string]string
}

type broker interface {
	Name() string
	Ping(context.Context) error
	Publish(context.Context, brokerMessage) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type pubSubBroker struct {
	client  pubSubClient
	factory func(topic string) topicPublisher
}

func newPubSubBroker(client pubSubClient) *pubSubBroker {
	return &pubSubBroker{
		client: client,
		factory: func(topic string) topicPublisher {
			pub := client.Publisher(topic)
			if pub == nil {
				return nil
			}
			return &gcpPublisher{Publisher: pub}
		},
	}
}

func (b *pubSubBroker) Name() string { return config.OutboxBrokerPubSub }

func (b *pubSubBroker) Ping(ctx context.Context) error { return b.client.Ping(ctx) }

func (b *pubSubBroker) Publish(ctx context.Context, msg brokerMessage) error {
	pub := b.factory(msg.Topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", msg.Topic))
	}
	result := pub.Publish(ctx, &gcppubsub.Message{Data: msg.Data, Attributes: msg.Attributes})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", msg.Topic))
	}
	_, err := result.Get(ctx)
	return err
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

type amqpPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, routingKey, messageID string, body []byte, headers map[string]string) error
}

type rabbitBroker struct {
	publisher amqpPublisher
}

func (b *rabbitBroker) Name() string { return config.OutboxBrokerRabbitMQ }

func (b *rabbitBroker) Ping(ctx context.Context) error { return b.publisher.Ping(ctx) }

func (b *rabbitBroker) Publish(ctx context.Context, msg brokerMessage) error {
	if msg.RoutingKey == "" {
		return registry.NewNonRetryableError(fmt.Errorf("routing key missing for message %s", msg.ID))
	}
	return b.publisher.Publish(ctx, msg.RoutingKey, msg.ID, msg.Data, msg.Attributes)
}
