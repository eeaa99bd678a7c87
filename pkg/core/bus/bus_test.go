package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector 线程安全的事件收集器
type collector struct {
	mu     sync.Mutex
	events []string
}

func (c *collector) send(kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, kind)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

// waitForEvents 轮询直到收到n个事件
func (c *collector) waitForEvents(t *testing.T, n int, timeout time.Duration) []string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("等待 %d 个事件超时，已收到 %v", n, c.snapshot())
	return nil
}

func TestBus_PublishToRoom(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Start())
	defer b.Stop()

	c := &collector{}
	sub := b.Subscribe("org-1", c.send)
	defer b.Unsubscribe("org-1", sub)

	b.Publish("org-1", EventNotifications)
	b.Publish("org-1", EventIntegrations)

	got := c.waitForEvents(t, 2, 3*time.Second)
	assert.Equal(t, EventNotifications, got[0], "单发布者房间内保持发送顺序")
	assert.Equal(t, EventIntegrations, got[1])
}

func TestBus_RoomIsolation(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Start())
	defer b.Stop()

	c1 := &collector{}
	c2 := &collector{}
	sub1 := b.Subscribe("org-1", c1.send)
	sub2 := b.Subscribe("org-2", c2.send)
	defer b.Unsubscribe("org-1", sub1)
	defer b.Unsubscribe("org-2", sub2)

	b.Publish("org-1", EventNotifications)

	c1.waitForEvents(t, 1, 3*time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, c2.snapshot(), "org-2不应收到org-1的事件")
}

func TestBus_NoSubscribersDropsSilently(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Start())
	defer b.Stop()

	// at-most-once：无订阅者时事件直接丢弃，不阻塞发布端
	for i := 0; i < 100; i++ {
		b.Publish("empty-org", EventNotifications)
	}
}

func TestBus_SlowConsumerDropsOldest(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Start())
	defer b.Stop()

	// 阻塞的订阅者：发送泵在第一个事件上卡住
	block := make(chan struct{})
	var mu sync.Mutex
	var delivered []string
	sub := b.Subscribe("org-slow", func(kind string) error {
		<-block
		mu.Lock()
		delivered = append(delivered, kind)
		mu.Unlock()
		return nil
	})
	defer b.Unsubscribe("org-slow", sub)

	// 超出队列深度的事件触发丢弃最旧
	for i := 0; i < DefaultQueueDepth*3; i++ {
		b.Publish("org-slow", EventNotifications)
	}

	time.Sleep(200 * time.Millisecond)
	close(block)

	// 发布端与其他房间不被慢消费者拖住，这里只验证不死锁且有交付
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(delivered)
		mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("慢消费者恢复后应收到事件")
}

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "org:abc-123", roomKey("abc-123"))
}
