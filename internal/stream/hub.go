// Package stream fans live tracker events out to websocket clients, mirrored
// across processes through Redis when a client is configured.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "runflow:"
	channelSuffix = ":snapshots"
)

type Hub struct {
	redis   *redis.Client
	origin  string
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{}
}

type Client struct {
	RunnerID string
	Send     chan []byte
}

// envelope is the Redis wire form; origin lets a hub skip its own echoes.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		origin:  uuid.NewString(),
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}

	if redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		ready := make(chan struct{})
		go h.subscribeRedis(ctx, ready)
		<-ready
	} else {
		close(h.done)
	}
	return h
}

func (h *Hub) Register(runnerID string) *Client {
	client := &Client{
		RunnerID: runnerID,
		Send:     make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[runnerID] == nil {
		h.clients[runnerID] = map[*Client]struct{}{}
	}
	h.clients[runnerID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	runnerClients, ok := h.clients[client.RunnerID]
	if !ok {
		return
	}
	if _, ok := runnerClients[client]; !ok {
		return
	}
	delete(runnerClients, client)
	if len(runnerClients) == 0 {
		delete(h.clients, client.RunnerID)
	}
	close(client.Send)
}

// Subscribers reports how many local clients follow runnerID.
func (h *Hub) Subscribers(runnerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[runnerID])
}

// Broadcast delivers payload, which must be JSON, to local clients of
// runnerID and publishes it for other processes.
func (h *Hub) Broadcast(runnerID string, payload []byte) {
	h.deliver(runnerID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.origin, Payload: payload})
	if err != nil {
		log.Printf("stream: encode broadcast: %v", err)
		return
	}
	if err := h.redis.Publish(context.Background(), redisChannel(runnerID), msg).Err(); err != nil {
		log.Printf("stream: redis publish error: %v", err)
	}
}

// Close stops the Redis subscription.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

// deliver drops the payload for clients whose buffer is full.
func (h *Hub) deliver(runnerID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[runnerID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, ready chan<- struct{}) {
	defer close(h.done)

	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*"+channelSuffix)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("stream: redis subscribe error: %v", err)
		close(ready)
		return
	}
	close(ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("stream: drop malformed message on %s: %v", msg.Channel, err)
				continue
			}
			if env.Origin == h.origin {
				continue
			}
			h.deliver(runnerIDFromChannel(msg.Channel), env.Payload)
		}
	}
}

func redisChannel(runnerID string) string {
	return channelPrefix + runnerID + channelSuffix
}

func runnerIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) ||
		len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
