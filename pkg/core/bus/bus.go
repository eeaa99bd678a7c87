// Package bus 组织级事件总线
// 订阅者按 org:<uuid> 加入房间；事件不带载荷，订阅者收到后重新拉取对应集合
// 内部管道用watermill gochannel连接发布端与房间分发器
package bus

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// 可观测事件类型
const (
	EventNotifications = "notifications:update"
	EventIntegrations  = "integrations:update"
)

// topicEvents watermill内部管道主题
const topicEvents = "bus.events"

// DefaultQueueDepth 慢订阅者的队列深度，超出后丢弃最旧事件
const DefaultQueueDepth = 64

// Event 总线事件
type Event struct {
	OrgID string `json:"org_id"`
	Kind  string `json:"kind"`
}

// Bus 事件总线（对外导出）
// 房间单写者：每个房间一个分发协程；慢消费者不阻塞其他房间与上游
type Bus struct {
	pubsub *gochannel.GoChannel

	mu    sync.RWMutex
	rooms map[string]*room

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBus 创建事件总线
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
			// 等待分发协程确认后再返回，保证单发布者的事件按发送顺序入房间
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NewStdLogger(false, false)),
		rooms:  make(map[string]*room),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动总线分发协程（对外导出）
func (b *Bus) Start() error {
	messages, err := b.pubsub.Subscribe(b.ctx, topicEvents)
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Printf("⚠️ 总线事件解析失败: %v", err)
				msg.Ack()
				continue
			}
			b.routeToRoom(ev)
			msg.Ack()
		}
	}()

	log.Println("✅ 事件总线已启动")
	return nil
}

// Stop 停止总线，断开全部订阅者（对外导出）
func (b *Bus) Stop() {
	b.cancel()

	b.mu.Lock()
	rooms := make([]*room, 0, len(b.rooms))
	for _, r := range b.rooms {
		rooms = append(rooms, r)
	}
	b.rooms = make(map[string]*room)
	b.mu.Unlock()

	for _, r := range rooms {
		r.shutdown()
	}

	if err := b.pubsub.Close(); err != nil {
		log.Printf("⚠️ 关闭内部管道失败: %v", err)
	}
	b.wg.Wait()
	log.Println("🛑 事件总线已停止")
}

// Publish 发布组织事件（对外导出）
// 发布端只等待分发协程完成路由；路由不等待房间，房间入口满时丢弃并记日志
func (b *Bus) Publish(orgID, kind string) {
	payload, err := json.Marshal(Event{OrgID: orgID, Kind: kind})
	if err != nil {
		log.Printf("⚠️ 序列化总线事件失败: %v", err)
		return
	}
	if err := b.pubsub.Publish(topicEvents, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		log.Printf("⚠️ 发布总线事件失败: %v", err)
	}
}

// Subscribe 将订阅者加入组织房间（对外导出）
func (b *Bus) Subscribe(orgID string, send func(kind string) error) *Subscriber {
	r := b.ensureRoom(orgID)
	return r.addSubscriber(send)
}

// Unsubscribe 将订阅者移出房间（对外导出）
func (b *Bus) Unsubscribe(orgID string, s *Subscriber) {
	b.mu.RLock()
	r, ok := b.rooms[roomKey(orgID)]
	b.mu.RUnlock()
	if ok {
		r.removeSubscriber(s)
	}
}

// routeToRoom 将事件送入对应房间的入口通道；满时丢弃，绝不阻塞上游
func (b *Bus) routeToRoom(ev Event) {
	b.mu.RLock()
	r, ok := b.rooms[roomKey(ev.OrgID)]
	b.mu.RUnlock()
	if !ok {
		// 房间无订阅者：at-most-once语义下直接丢弃
		return
	}

	select {
	case r.events <- ev.Kind:
	default:
		log.Printf("⚠️ 房间 %s 入口队列已满，丢弃事件 %s", roomKey(ev.OrgID), ev.Kind)
	}
}

// ensureRoom 取或建房间（房间分发协程随房间创建启动）
func (b *Bus) ensureRoom(orgID string) *room {
	key := roomKey(orgID)

	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.rooms[key]; ok {
		return r
	}

	r := newRoom(key)
	b.rooms[key] = r
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		r.dispatch()
	}()
	return r
}

// roomKey 房间键格式 org:<uuid>
func roomKey(orgID string) string {
	return "org:" + orgID
}
