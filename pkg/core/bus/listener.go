package bus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"
)

// StoreListener 数据库通知桥接（对外导出）
// 单个长生命周期监听器消费 notifications_channel，解析org_id后送入总线
// 断线时有界退避重连；断线期间错过的通知由订阅者重连后重新拉取补偿
type StoreListener struct {
	dsn     string
	channel string
	bus     *Bus

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStoreListener 创建桥接监听器
func NewStoreListener(dsn, channel string, b *Bus) *StoreListener {
	return &StoreListener{
		dsn:     dsn,
		channel: channel,
		bus:     b,
		done:    make(chan struct{}),
	}
}

// Start 启动监听协程（对外导出）
func (l *StoreListener) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	go l.listen(ctx)
	log.Printf("✅ 数据库通知桥接已启动（channel=%s）", l.channel)
}

// Stop 停止监听（对外导出）
func (l *StoreListener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		log.Println("⚠️ 等待通知桥接退出超时")
	}
}

// listen 监听循环；lib/pq的Listener自带有界退避重连
func (l *StoreListener) listen(ctx context.Context) {
	defer close(l.done)

	listener := pq.NewListener(l.dsn, 2*time.Second, 30*time.Second, func(event pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("⚠️ 通知监听器事件 %d: %v", event, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		log.Printf("⚠️ LISTEN %s 失败: %v", l.channel, err)
		return
	}

	for {
		select {
		case n := <-listener.Notify:
			if n == nil {
				// 重连信号：订阅者需按重连横幅重新拉取
				log.Println("⚠️ 通知监听器已重连，断线期间的通知可能丢失")
				continue
			}
			l.handle(n.Extra)

		case <-time.After(90 * time.Second):
			// 定期探活，保证连接存活
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("⚠️ 通知监听器探活失败: %v", err)
				}
			}()

		case <-ctx.Done():
			return
		}
	}
}

// handle 解析通知载荷并广播
func (l *StoreListener) handle(payload string) {
	var ev struct {
		OrgID string `json:"org_id"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("⚠️ 通知载荷解析失败: %v", err)
		return
	}
	if ev.OrgID == "" {
		return
	}
	l.bus.Publish(ev.OrgID, EventNotifications)
}
