package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

const topicPrefix = "notifications:user:"

// Topic returns the live channel of a principal.
func Topic(recipient int64) string {
	return topicPrefix + strconv.FormatInt(recipient, 10)
}

// Broker is a topic based publish/subscribe transport.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription delivers payloads published to one topic until closed.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// RedisBroker implements Broker over Redis pub/sub, so every API instance
// reaches clients connected to any other instance.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker constructs a broker on client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

// Publish sends payload to topic. Publishing to a topic nobody listens on
// is not an error.
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins topic and waits for the server to confirm it.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("notify: subscribe %s: %w", topic, err)
	}
	sub := &redisSubscription{pubsub: pubsub, out: make(chan []byte, 16), done: make(chan struct{})}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

var _ Broker = (*RedisBroker)(nil)
