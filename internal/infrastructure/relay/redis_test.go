package relay

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
	received chan struct{}
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{received: make(chan struct{}, 16)}
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, message hub.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, message.String())
	r.mu.Unlock()
	r.received <- struct{}{}
}

func (r *recordingBroadcaster) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func TestRedis_PublishFailureIsSwallowed(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	local := newRecordingBroadcaster()
	r := NewRedis(client, "test", local, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Broadcast(ctx, hub.Message("lost"))

	if got := local.all(); len(got) != 0 {
		t.Errorf("unpublished message reached local hub: %v", got)
	}
}

func TestRedis_RunStopsOnCancel(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRedis(client, "test", newRecordingBroadcaster(), logger.Discard())
	if err := r.Run(ctx); err != nil {
		t.Errorf("Run on cancelled context: got %v, want nil", err)
	}
}

// Requires a reachable Redis, e.g. REDIS_ADDR=localhost:6379.
func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	channel := "intellidraw:test:" + uuid.NewString()
	first := newRecordingBroadcaster()
	second := newRecordingBroadcaster()
	a := NewRedis(client, channel, first, logger.Discard())
	b := NewRedis(client, channel, second, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, r := range []*Redis{a, b} {
		wg.Add(1)
		go func(r *Redis) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				t.Errorf("Run: %v", err)
			}
		}(r)
	}

	waitForSubscribers(t, client, channel, 2)
	a.Broadcast(ctx, hub.Message(`{"type":"drawing"}`))

	for _, local := range []*recordingBroadcaster{first, second} {
		select {
		case <-local.received:
		case <-time.After(2 * time.Second):
			t.Fatal("relay did not deliver message")
		}
		if got := local.all(); len(got) != 1 || got[0] != `{"type":"drawing"}` {
			t.Errorf("unexpected messages: %v", got)
		}
	}

	cancel()
	wg.Wait()
}

func waitForSubscribers(t *testing.T, client *redis.Client, channel string, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		counts, err := client.PubSubNumSub(context.Background(), channel).Result()
		if err == nil && counts[channel] >= n {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("fewer than %d subscribers on %s", n, channel)
}
