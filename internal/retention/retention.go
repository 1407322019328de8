package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LJTian/KickoffHub/internal/metrics"
)

// DefaultWindow 默认保留 30 天
const DefaultWindow = 30 * 24 * time.Hour

// Deleter 删除 before 之前发布且未置顶的文章，返回删除条数
type Deleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Sweeper struct {
	Store   Deleter
	Window  time.Duration
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewSweeper(store Deleter, window time.Duration, m *metrics.Metrics) *Sweeper {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Sweeper{Store: store, Window: window, Metrics: m, Now: time.Now}
}

// Cutoff 早于该时间发布的文章视为过期
func (s *Sweeper) Cutoff() time.Time {
	return s.now().Add(-s.Window)
}

// Sweep 执行一次清理
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.Cutoff()
	n, err := s.Store.DeleteExpired(ctx, cutoff)
	if err != nil {
		slog.Error("retention sweep failed", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("retention: sweep: %w", err)
	}
	s.Metrics.AddSwept(n)
	slog.Info("retention sweep done", "cutoff", cutoff, "deleted", n)
	return n, nil
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
