package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/tripwire-iot/tripwire"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type collector struct {
	mu     sync.Mutex
	frames []string
}

func (c *collector) handle(frame []byte) {
	c.mu.Lock()
	c.frames = append(c.frames, string(frame))
	c.mu.Unlock()
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func TestConnect_RequiresInbound(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	assert.ErrorIs(t, New(client, "", "out").Connect(context.Background()), ErrNoChannel)
}

func TestSend_BeforeConnect(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	assert.False(t, New(client, "in", "out").Send([]byte(`{"pir":true}`)))
}

func TestTransport_DeliversPublishedFrames(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := New(client, "sensors", "sensors.test")
	got := &collector{}
	transport.OnMessage(got.handle)
	require.NoError(t, transport.Connect(ctx))
	defer transport.Close()

	require.Eventually(t, transport.Connected, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, client.Publish(ctx, "sensors", `{'pir': true}`).Err())
	require.NoError(t, client.Publish(ctx, "sensors", `{"ultrasonic": 12}`).Err())

	require.Eventually(t, func() bool { return len(got.all()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{`{'pir': true}`, `{"ultrasonic": 12}`}, got.all())
}

func TestTransport_SendPublishesOutbound(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "sensors.test")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	transport := New(client, "sensors", "sensors.test")
	require.NoError(t, transport.Connect(ctx))
	defer transport.Close()

	require.True(t, transport.Send([]byte(`{"led":true}`)))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, `{"led":true}`, msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for published frame")
	}
}

func TestTransport_Close(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	transport := New(client, "sensors", "sensors.test")
	require.NoError(t, transport.Connect(ctx))
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	assert.False(t, transport.Connected())
	assert.False(t, transport.Send([]byte(`{"led":true}`)))
	assert.ErrorIs(t, transport.Connect(ctx), tripwire.ErrAlreadyConnected)
}
