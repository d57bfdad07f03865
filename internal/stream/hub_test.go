package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("runner-1")
	defer hub.Unregister(client)

	hub.Broadcast("runner-1", []byte(`{"phase":"running"}`))

	select {
	case msg := <-client.Send:
		if string(msg) != `{"phase":"running"}` {
			t.Fatalf("unexpected message %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubBroadcastOtherRunnerNotDelivered(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("runner-1")
	defer hub.Unregister(client)

	hub.Broadcast("runner-2", []byte(`{}`))
	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected delivery %s", msg)
	default:
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "runflow:abc:snapshots" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if runnerIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected runner id")
	}
	if runnerIDFromChannel("bad") != "" {
		t.Fatalf("expected empty runner id")
	}
	if runnerIDFromChannel("other:abc:snapshots") != "" {
		t.Fatalf("expected empty runner id for foreign prefix")
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("runner-2")
	hub.Unregister(client)
	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
	if hub.Subscribers("runner-2") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestHubRedisLocalDeliveryNotDuplicated(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	ws := hub.Register("runner-redis")
	defer hub.Unregister(ws)

	hub.Broadcast("runner-redis", []byte(`"ping"`))

	select {
	case msg := <-ws.Send:
		if string(msg) != `"ping"` {
			t.Fatalf("unexpected message %s", msg)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for broadcast")
	}

	select {
	case msg := <-ws.Send:
		t.Fatalf("own redis echo delivered: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRedisForwardsOtherProcesses(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	ws := hub.Register("runner-7")
	defer hub.Unregister(ws)

	other := NewHub(client)
	defer other.Close()
	other.Broadcast("runner-7", []byte(`{"phase":"paused"}`))

	select {
	case msg := <-ws.Send:
		if string(msg) != `{"phase":"paused"}` {
			t.Fatalf("unexpected message from redis: %s", msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for redis message")
	}
}

func TestHubRedisDropsMalformed(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	ws := hub.Register("runner-8")
	defer hub.Unregister(ws)

	if err := client.Publish(context.Background(), redisChannel("runner-8"), "not json").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	good, _ := json.Marshal(envelope{Origin: "elsewhere", Payload: json.RawMessage(`1`)})
	if err := client.Publish(context.Background(), redisChannel("runner-8"), good).Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	select {
	case msg := <-ws.Send:
		if string(msg) != "1" {
			t.Fatalf("expected only the well-formed message, got %s", msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for redis message")
	}
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	clientNode := hub.Register("runner-bad")
	defer hub.Unregister(clientNode)

	hub.Broadcast("runner-bad", []byte(`"ping"`))
	select {
	case <-clientNode.Send:
	default:
		t.Fatalf("local delivery must not depend on redis")
	}
}
