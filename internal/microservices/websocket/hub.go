package websocket

import (
	"log/slog"
	"sync"
)

// TopicHub is the in-process pub/sub primitive behind the broker.
// Subscribe, Unsubscribe and Publish are each atomic with respect to one another,
// so connections never need to lock each other.
type TopicHub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // clientID -> client
	topics  map[string]map[string]*Client // topic -> clientID -> client
	logger  *slog.Logger
}

func NewTopicHub(logger *slog.Logger) *TopicHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopicHub{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[string]*Client),
		logger:  logger,
	}
}

// Register adds a freshly opened connection.
func (h *TopicHub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	h.logger.Info("client_registered", "client_id", c.ID, "connections", len(h.clients))
}

// Unregister drops the connection and all of its subscriptions.
// After it returns no Publish can reach c.
func (h *TopicHub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, subs := range h.topics {
		if _, ok := subs[c.ID]; ok {
			delete(subs, c.ID)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.clients, c.ID)
	h.logger.Info("client_unregistered", "client_id", c.ID, "connections", len(h.clients))
}

func (h *TopicHub) Subscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]*Client)
		h.topics[topic] = subs
	}
	subs[c.ID] = c
}

func (h *TopicHub) Unsubscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish hands data to every subscriber of topic, or only to the listed client ids when
// targets is non-empty. It never blocks on a slow client and returns how many accepted the frame.
func (h *TopicHub) Publish(topic string, data []byte, targets []string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.topics[topic]
	delivered := 0
	if len(targets) > 0 {
		for _, id := range targets {
			if c, ok := subs[id]; ok && c.trySend(data) {
				delivered++
			}
		}
		return delivered
	}
	for _, c := range subs {
		if c.trySend(data) {
			delivered++
		}
	}
	return delivered
}

func (h *TopicHub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *TopicHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every socket; each read loop then unregisters its own client.
func (h *TopicHub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
