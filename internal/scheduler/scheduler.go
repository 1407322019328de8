package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/robfig/cron/v3"
)

// 任务 key
const (
	KeyCollect   = "collect"
	KeyRetention = "retention"
)

// Scheduler 每个 key 只对应一个 cron 条目，重复 Start 会替换旧条目
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start 注册或替换 key 对应的定时任务
func (s *Scheduler) Start(key, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		slog.Info("scheduled job triggered", "job", key)
		fn()
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s (%q): %w", key, spec, err)
	}
	if old, ok := s.entries[key]; ok {
		s.cron.Remove(old)
	}
	s.entries[key] = id
	slog.Info("job scheduled", "job", key, "spec", spec)
	return nil
}

// Stop 移除 key 对应的任务，不存在时返回 false
func (s *Scheduler) Stop(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[key]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, key)
	slog.Info("job stopped", "job", key)
	return true
}

// Keys 当前已注册的 key，按字母序
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Run 启动 cron，不阻塞
func (s *Scheduler) Run() {
	s.cron.Start()
}

// Shutdown 停止调度并等待正在执行的任务结束
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) entryCount() int {
	return len(s.cron.Entries())
}
