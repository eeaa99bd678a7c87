// Package sweep 周期性维护任务
// 速率采样清理、过期注册清理、滞留执行提示，以及带schedule变量的流程的定时触发
package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aliciakaith/flowgrid/pkg/core/engine"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// SampleRetention 速率采样保留时长
const SampleRetention = 24 * time.Hour

// PendingUserTTL 注册验证码有效期
const PendingUserTTL = 24 * time.Hour

// Sweeper 周期任务调度器（对外导出）
type Sweeper struct {
	cron           *cron.Cron
	store          *storage.Store
	engine         *engine.Engine
	staleThreshold time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID // flowID -> 定时触发条目
}

// NewSweeper 创建调度器
func NewSweeper(store *storage.Store, eng *engine.Engine, staleThreshold time.Duration) *Sweeper {
	if staleThreshold <= 0 {
		staleThreshold = 30 * time.Minute
	}
	return &Sweeper{
		cron:           cron.New(),
		store:          store,
		engine:         eng,
		staleThreshold: staleThreshold,
		entries:        make(map[string]cron.EntryID),
	}
}

// Start 注册并启动全部周期任务（对外导出）
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.sweepRateSamples); err != nil {
		return fmt.Errorf("注册采样清理任务失败: %w", err)
	}
	if _, err := s.cron.AddFunc("@hourly", s.sweepPendingUsers); err != nil {
		return fmt.Errorf("注册过期注册清理任务失败: %w", err)
	}
	if _, err := s.cron.AddFunc("@every 10m", s.warnStaleExecutions); err != nil {
		return fmt.Errorf("注册滞留执行提示任务失败: %w", err)
	}

	if err := s.registerScheduledFlows(); err != nil {
		log.Printf("⚠️ 注册定时流程失败: %v", err)
	}

	s.cron.Start()
	log.Println("✅ 周期维护任务已启动")
	return nil
}

// Stop 停止调度，等待在途任务完成（对外导出）
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 周期维护任务已停止")
}

// sweepRateSamples 清理超过24小时的速率采样
func (s *Sweeper) sweepRateSamples() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.store.Policy.DeleteSamplesBefore(ctx, time.Now().UTC().Add(-SampleRetention))
	if err != nil {
		log.Printf("⚠️ 清理速率采样失败: %v", err)
		return
	}
	if n > 0 {
		log.Printf("🧹 清理速率采样 %d 条", n)
	}
}

// sweepPendingUsers 清理过期注册待验证记录
func (s *Sweeper) sweepPendingUsers() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.store.Users.DeleteExpiredPending(ctx, PendingUserTTL)
	if err != nil {
		log.Printf("⚠️ 清理过期注册失败: %v", err)
		return
	}
	if n > 0 {
		log.Printf("🧹 清理过期注册 %d 条", n)
	}
}

// warnStaleExecutions 提示超过阈值仍为running的执行
// 回收留给运维处理，这里只把可疑执行记入日志
func (s *Sweeper) warnStaleExecutions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stale, err := s.store.Executions.ListStaleRunning(ctx, s.staleThreshold)
	if err != nil {
		log.Printf("⚠️ 查询滞留执行失败: %v", err)
		return
	}
	for _, e := range stale {
		log.Printf("⚠️ 执行 %s 已running超过 %s（开始于 %s），请检查是否有存活worker", e.ID, s.staleThreshold, e.StartedAt)
	}
}

// registerScheduledFlows 注册带schedule变量的active流程
// 版本variables形如 {"schedule": "0 9 * * *"}
func (s *Sweeper) registerScheduledFlows() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	flows, err := s.store.Flows.ListScheduled(ctx)
	if err != nil {
		return err
	}

	for _, f := range flows {
		version, err := s.store.Flows.GetLatestVersion(ctx, f.ID)
		if err != nil {
			continue
		}

		var vars struct {
			Schedule string `json:"schedule"`
		}
		if len(version.Variables) == 0 {
			continue
		}
		if err := json.Unmarshal(version.Variables, &vars); err != nil || vars.Schedule == "" {
			continue
		}

		if err := s.RegisterFlowSchedule(f.OrgID, f.ID, vars.Schedule); err != nil {
			log.Printf("⚠️ 流程 %s 的schedule非法: %v", f.ID, err)
		}
	}
	return nil
}

// RegisterFlowSchedule 注册单个流程的定时触发（对外导出）
func (s *Sweeper) RegisterFlowSchedule(orgID, flowID, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.entries[flowID]; exists {
		s.cron.Remove(id)
		delete(s.entries, flowID)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := s.engine.StartExecution(ctx, orgID, flowID, storage.TriggerSchedule, nil); err != nil {
			log.Printf("⚠️ 定时触发流程 %s 失败: %v", flowID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("注册定时触发失败: %w", err)
	}

	s.entries[flowID] = entryID
	log.Printf("⏰ 流程 %s 已注册定时触发: %s", flowID, cronExpr)
	return nil
}

// UnregisterFlowSchedule 移除流程的定时触发（对外导出）
func (s *Sweeper) UnregisterFlowSchedule(flowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.entries[flowID]; exists {
		s.cron.Remove(id)
		delete(s.entries, flowID)
	}
}
