package bus

import (
	"log"
	"sync"
)

// Subscriber 房间内的单个订阅者
// 队列有界（DefaultQueueDepth），满时丢弃最旧事件；慢消费者只影响自己
type Subscriber struct {
	queue chan string
	done  chan struct{}
	once  sync.Once
}

// Close 关闭订阅者（对外导出，连接断开时调用）
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.done) })
}

// room 单个组织房间
// 单写者：dispatch协程独占向订阅者队列投递
type room struct {
	key    string
	events chan string

	mu   sync.Mutex
	subs map[*Subscriber]func(kind string) error

	quit chan struct{}
	once sync.Once
}

func newRoom(key string) *room {
	return &room{
		key:    key,
		events: make(chan string, 256),
		subs:   make(map[*Subscriber]func(kind string) error),
		quit:   make(chan struct{}),
	}
}

// addSubscriber 加入订阅者并启动其发送泵
func (r *room) addSubscriber(send func(kind string) error) *Subscriber {
	s := &Subscriber{
		queue: make(chan string, DefaultQueueDepth),
		done:  make(chan struct{}),
	}

	r.mu.Lock()
	r.subs[s] = send
	r.mu.Unlock()

	// 每个订阅者独立发送泵：慢连接只拖慢自己的队列
	go func() {
		for {
			select {
			case kind := <-s.queue:
				if err := send(kind); err != nil {
					log.Printf("⚠️ 房间 %s 订阅者发送失败，移除: %v", r.key, err)
					r.removeSubscriber(s)
					return
				}
			case <-s.done:
				return
			case <-r.quit:
				return
			}
		}
	}()

	return s
}

// removeSubscriber 移出订阅者
func (r *room) removeSubscriber(s *Subscriber) {
	r.mu.Lock()
	delete(r.subs, s)
	r.mu.Unlock()
	s.Close()
}

// dispatch 房间分发循环（单写者）
// 投递时对满队列执行丢弃最旧：先腾出一格再入队，保证新事件可达
func (r *room) dispatch() {
	for {
		select {
		case kind := <-r.events:
			r.mu.Lock()
			targets := make([]*Subscriber, 0, len(r.subs))
			for s := range r.subs {
				targets = append(targets, s)
			}
			r.mu.Unlock()

			for _, s := range targets {
				select {
				case s.queue <- kind:
				default:
					// 队列满：丢最旧，再放新事件
					select {
					case <-s.queue:
					default:
					}
					select {
					case s.queue <- kind:
					default:
					}
				}
			}
		case <-r.quit:
			return
		}
	}
}

// shutdown 关闭房间及全部订阅者
func (r *room) shutdown() {
	r.once.Do(func() { close(r.quit) })

	r.mu.Lock()
	subs := make([]*Subscriber, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.subs = make(map[*Subscriber]func(kind string) error)
	r.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}
