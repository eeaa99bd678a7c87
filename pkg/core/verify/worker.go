// Package verify 集成验证工作器
// 异步探测第三方集成的可用性，驱动 pending → active/error 状态迁移
// 探测结果通过Notification与事件总线反馈给用户
package verify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aliciakaith/flowgrid/pkg/core/guard"
	"github.com/aliciakaith/flowgrid/pkg/provider"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// ProbeTimeout 单次探测超时
const ProbeTimeout = 6 * time.Second

// DefaultDeferral 探测前的延迟，保证调用方UI能观察到pending状态
const DefaultDeferral = 3 * time.Second

// secretKeyPattern 形如 sk_/pk_ 前缀的密钥只走 Authorization: Bearer
var secretKeyPattern = regexp.MustCompile(`^(sk|pk)_`)

// Broadcaster 事件总线广播能力
type Broadcaster interface {
	Publish(orgID, event string)
}

// Request 一次验证请求
type Request struct {
	IntegrationID string
	OrgID         string
	Name          string
	APIKey        string
	TestURL       string
}

// Worker 集成验证工作器（对外导出）
// 探测按集成ID幂等；并发重验允许，last_checked 最后写入者胜出
type Worker struct {
	store    *storage.Store
	bus      Broadcaster
	guard    *guard.Guard
	client   *http.Client
	deferral time.Duration

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewWorker 创建工作器
func NewWorker(store *storage.Store, bus Broadcaster, g *guard.Guard) *Worker {
	return &Worker{
		store:    store,
		bus:      bus,
		guard:    g,
		client:   &http.Client{Timeout: ProbeTimeout},
		deferral: DefaultDeferral,
		quit:     make(chan struct{}),
	}
}

// SetDeferral 配置探测延迟（测试用）
func (w *Worker) SetDeferral(d time.Duration) {
	w.deferral = d
}

// Stop 停止工作器并等待在途探测完成（对外导出）
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.quit) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Println("⚠️ 等待验证探测完成超时")
	}
}

// Enqueue 提交验证请求（对外导出）
// 立即写入pending并广播，随后延迟探测；调用方此时已经返回，
// 后续的provider错误全部吸收为 status=error + 通知，不向API传播
func (w *Worker) Enqueue(ctx context.Context, req Request) error {
	if err := w.store.Integrations.UpdateStatus(ctx, req.IntegrationID, storage.IntegrationStatusPending); err != nil {
		return err
	}
	w.broadcast(req.OrgID, "integrations:update")

	w.wg.Add(1)
	go w.probe(req)
	return nil
}

// probe 延迟后执行一次探测
func (w *Worker) probe(req Request) {
	defer w.wg.Done()

	select {
	case <-time.After(w.deferral):
	case <-w.quit:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ProbeTimeout+time.Second)
	defer cancel()

	defer w.broadcast(req.OrgID, "integrations:update")

	// 探测URL选择：显式test_url → 按名称推断的provider默认端点
	probeURL := req.TestURL
	if probeURL == "" {
		probeURL = defaultProbeURL(req.Name)
	}
	if probeURL == "" {
		w.finish(ctx, req, storage.IntegrationStatusError, "no valid Test URL")
		return
	}

	if err := w.guard.CheckURL(probeURL); err != nil {
		w.finish(ctx, req, storage.IntegrationStatusError, fmt.Sprintf("Test URL被拒绝: %v", err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		w.finish(ctx, req, storage.IntegrationStatusError, fmt.Sprintf("构建探测请求失败: %v", err))
		return
	}

	// 密钥头启发式：sk_/pk_前缀只走Bearer；其余同时带Bearer与X-Api-Key
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
		if !secretKeyPattern.MatchString(req.APIKey) {
			httpReq.Header.Set("X-Api-Key", req.APIKey)
		}
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		w.finish(ctx, req, storage.IntegrationStatusError, fmt.Sprintf("探测失败: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		w.finish(ctx, req, storage.IntegrationStatusActive, "")
		return
	}
	w.finish(ctx, req, storage.IntegrationStatusError, fmt.Sprintf("探测返回HTTP %d", resp.StatusCode))
}

// finish 落库状态并产生用户通知
func (w *Worker) finish(ctx context.Context, req Request, status, reason string) {
	if err := w.store.Integrations.UpdateStatus(ctx, req.IntegrationID, status); err != nil {
		log.Printf("⚠️ 更新集成 %s 状态失败: %v", req.IntegrationID, err)
		return
	}

	if status == storage.IntegrationStatusActive {
		if _, err := w.store.Notifications.Insert(ctx, req.OrgID, storage.NotifyInfo,
			"Integration active: "+req.Name, fmt.Sprintf("集成 %s 验证通过", req.Name), req.IntegrationID); err != nil {
			log.Printf("⚠️ 插入集成通知失败: %v", err)
		}
		log.Printf("✅ 集成 %s 验证通过", req.Name)
		return
	}

	if _, err := w.store.Notifications.Insert(ctx, req.OrgID, storage.NotifyError,
		"Integration error: "+req.Name, reason, req.IntegrationID); err != nil {
		log.Printf("⚠️ 插入集成通知失败: %v", err)
	}
	log.Printf("⚠️ 集成 %s 验证失败: %s", req.Name, reason)
}

// broadcast 广播总线事件
func (w *Worker) broadcast(orgID, event string) {
	if w.bus != nil {
		w.bus.Publish(orgID, event)
	}
}

// defaultProbeURL 按集成名称推断provider默认探测端点
func defaultProbeURL(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "stripe"):
		return "https://api.stripe.com/v1/charges?limit=1"
	case strings.Contains(lower, "flutterwave"):
		return "https://api.flutterwave.com/v3/transactions?page=1"
	case strings.Contains(lower, "mtn"):
		return "https://sandbox.momodeveloper.mtn.com/collection/v1_0/account/balance"
	case strings.Contains(lower, "github"):
		return "https://api.github.com/user"
	case strings.Contains(lower, "sendgrid"):
		return "https://api.sendgrid.com/v3/user/profile"
	}
	return ""
}

// StartupSelfCheck 启动自检（对外导出）
// 对进程环境中带凭证的provider重验匹配集成：凭证在且探测成功 → active，
// 凭证缺失 → error；防止部署丢失凭证后留下陈旧的active行
func (w *Worker) StartupSelfCheck(ctx context.Context, mtn provider.MTNCredentials, flw provider.FlutterwaveCredentials) {
	checks := []struct {
		keyword    string
		configured bool
		apiKey     string
	}{
		{"flutterwave", flw.Configured(), flw.SecretKey},
		{"mtn", mtn.Configured(), mtn.SubscriptionKey},
	}

	for _, check := range checks {
		items, err := w.store.Integrations.FindByNameKeyword(ctx, check.keyword)
		if err != nil {
			log.Printf("⚠️ 启动自检查询 %s 集成失败: %v", check.keyword, err)
			continue
		}
		for _, item := range items {
			if !check.configured {
				w.finish(ctx, Request{
					IntegrationID: item.ID,
					OrgID:         item.OrgID,
					Name:          item.Name,
				}, storage.IntegrationStatusError, "进程环境缺少provider凭证")
				w.broadcast(item.OrgID, "integrations:update")
				continue
			}

			req := Request{
				IntegrationID: item.ID,
				OrgID:         item.OrgID,
				Name:          item.Name,
				APIKey:        check.apiKey,
			}
			if item.TestURL.Valid {
				req.TestURL = item.TestURL.String
			}
			if err := w.Enqueue(ctx, req); err != nil {
				log.Printf("⚠️ 启动自检提交 %s 失败: %v", item.Name, err)
			}
		}
	}
}
