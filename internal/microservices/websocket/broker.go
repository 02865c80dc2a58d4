package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"villagehub/internal/microservices/http-api/models"
	"villagehub/internal/microservices/http-api/service"
	"villagehub/internal/queue"
)

const (
	DefaultIdleTimeout = 2 * time.Minute

	MetadataTopic      = "topic"
	MetadataVillageKey = "village_key"
)

var ErrBrokerClosed = errors.New("broker closed")

// Broker multiplexes dashboard sockets onto per-village admin topics and
// feeds published notifications through a ReliableQueue.
type Broker struct {
	hub         *TopicHub
	queue       *queue.ReliableQueue
	logger      *slog.Logger
	idleTimeout time.Duration
	maxRetries  int
	messageTTL  time.Duration
	closed      atomic.Bool
}

type BrokerOption func(*Broker)

func WithIdleTimeout(d time.Duration) BrokerOption {
	return func(b *Broker) {
		if d > 0 {
			b.idleTimeout = d
		}
	}
}

func WithMaxRetries(n int) BrokerOption {
	return func(b *Broker) { b.maxRetries = n }
}

// WithMessageTTL drops live pushes that could not be delivered within d. Zero keeps them until retries run out.
func WithMessageTTL(d time.Duration) BrokerOption {
	return func(b *Broker) { b.messageTTL = d }
}

func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroker wires the broker as q's sender, so every Enqueue starts a drain when the queue is idle.
func NewBroker(q *queue.ReliableQueue, opts ...BrokerOption) *Broker {
	b := &Broker{
		queue:       q,
		logger:      slog.Default(),
		idleTimeout: DefaultIdleTimeout,
		maxRetries:  queue.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.hub = NewTopicHub(b.logger)
	q.SetSender(b.deliver)
	return b
}

// Publish queues a live push of notification to its village's admin topic.
// An uncanonicalizable village key returns ErrInvalidTenantKey and queues nothing.
func (b *Broker) Publish(notification *models.Notification) (string, error) {
	return b.PublishData(notification.VillageKey, NotificationDataFrom(notification), isUrgent(notification))
}

// isUrgent decides the queue band of a live push: only urgent notifications jump to critical.
func isUrgent(notification *models.Notification) bool {
	return notification.Priority == string(service.PriorityUrgent)
}

// PublishData queues an ADMIN_NOTIFICATION carrying data for villageKey's topic.
func (b *Broker) PublishData(villageKey string, data any, urgent bool) (string, error) {
	if b.closed.Load() {
		return "", ErrBrokerClosed
	}
	topic, err := AdminTopic(villageKey)
	if err != nil {
		b.logger.Warn("publish_rejected", "village_key", villageKey, "error", err.Error())
		return "", err
	}

	priority := queue.PriorityNormal
	if urgent {
		priority = queue.PriorityCritical
	}

	id, err := b.queue.Enqueue(queue.EnqueueRequest{
		Type:       string(TypeAdminNotification),
		Payload:    data,
		Priority:   priority,
		MaxRetries: b.maxRetries,
		Metadata: map[string]string{
			MetadataTopic:      topic,
			MetadataVillageKey: CanonicalVillageKey(villageKey),
		},
		TTL: b.messageTTL,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue live push for %s: %w", topic, err)
	}
	return id, nil
}

// deliver is the queue's send function: resolve the topic and fan the frame out.
// Zero subscribers counts as delivered.
func (b *Broker) deliver(msg *queue.Message) error {
	if b.closed.Load() {
		return ErrBrokerClosed
	}
	topic := msg.Metadata[MetadataTopic]
	if topic == "" {
		return fmt.Errorf("message %s has no topic", msg.ID)
	}

	data, err := NewFrame(MessageType(msg.Type), msg.Payload).ToJSON()
	if err != nil {
		return err
	}
	n := b.hub.Publish(topic, data, msg.TargetClients)
	b.logger.Debug("live_push_delivered", "message_id", msg.ID, "topic", topic, "receivers", n)
	return nil
}

func (b *Broker) ConnectionCount() int {
	return b.hub.ConnectionCount()
}

// SubscriberCount reports how many sockets listen on villageKey's admin topic.
func (b *Broker) SubscriberCount(villageKey string) int {
	topic, err := AdminTopic(villageKey)
	if err != nil {
		return 0
	}
	return b.hub.SubscriberCount(topic)
}

func (b *Broker) QueueStatus() queue.Status {
	return b.queue.Status()
}

// Close refuses new sockets and publishes, then closes every open socket.
func (b *Broker) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.hub.CloseAll()
	b.logger.Info("broker_closed")
}
