package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recipethread/internal/config"
	"recipethread/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// placeholderStore 清理服务依赖的存储能力
type placeholderStore interface {
	PrunePlaceholder(ctx context.Context, commentID uint) (bool, *uint, error)
	ListPlaceholders(ctx context.Context) ([]uint, error)
}

// PruneService 异步清理已无回复的软删除占位评论
// 硬删除一条回复后，其父评论如果是占位且已无子评论，也会被物理删除，并继续向上检查
type PruneService struct {
	store     placeholderStore
	queue     chan uint // 待检查的评论 ID 队列
	pending   map[uint]bool
	mu        sync.Mutex
	batchSize int
	interval  time.Duration
	cronSpec  string
	loc       *time.Location
	cron      *cron.Cron
	log       *zap.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPruneService 创建清理服务，需要调用 Start 启动后台任务
func NewPruneService(store placeholderStore, cfg config.PruneConfig, log *zap.Logger) (*PruneService, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid prune.timezone: %w", err)
		}
		loc = l
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return &PruneService{
		store:     store,
		queue:     make(chan uint, queueSize),
		pending:   make(map[uint]bool),
		batchSize: batchSize,
		interval:  interval,
		cronSpec:  cfg.Cron,
		loc:       loc,
		log:       log,
		done:      make(chan struct{}),
	}, nil
}

// Start 启动后台 worker 与定时清理任务
func (s *PruneService) Start(ctx context.Context) error {
	if s.cronSpec != "" {
		s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(s.loc))
		if _, err := s.cron.AddFunc(s.cronSpec, func() {
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("定时清理占位评论失败", zap.Error(err))
				return
			}
			s.log.Info("定时清理占位评论完成", zap.Int("pruned", n))
		}); err != nil {
			return fmt.Errorf("invalid prune.cron %q: %w", s.cronSpec, err)
		}
		s.cron.Start()
	}

	s.wg.Add(1)
	go s.worker(ctx)
	return nil
}

// Stop 停止后台任务并等待 worker 退出
func (s *PruneService) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		s.wg.Wait()
	})
}

// ScheduleUpdate 将评论加入检查队列（异步）
// 使用去重机制避免短时间内重复检查同一评论
func (s *PruneService) ScheduleUpdate(commentID uint) {
	s.mu.Lock()
	if s.pending[commentID] {
		s.mu.Unlock()
		return
	}
	s.pending[commentID] = true
	s.mu.Unlock()

	// 非阻塞发送到队列
	select {
	case s.queue <- commentID:
	default:
		s.mu.Lock()
		delete(s.pending, commentID)
		s.mu.Unlock()
		metrics.PruneQueueDropped.Inc()
		s.log.Warn("清理队列已满，跳过评论", zap.Uint("comment_id", commentID))
	}
}

// worker 后台处理队列中的检查请求
func (s *PruneService) worker(ctx context.Context) {
	defer s.wg.Done()

	batch := make([]uint, 0, s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case id := <-s.queue:
			batch = append(batch, id)
			if len(batch) >= s.batchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// processBatch 批量检查
func (s *PruneService) processBatch(ctx context.Context, ids []uint) {
	for _, id := range ids {
		if _, err := s.PruneNow(ctx, id); err != nil {
			s.log.Warn("清理占位评论失败", zap.Uint("comment_id", id), zap.Error(err))
		}

		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
}

// PruneNow 同步检查一条评论，删除后继续检查其父评论，返回删除的条数
func (s *PruneService) PruneNow(ctx context.Context, commentID uint) (int, error) {
	count := 0
	next := &commentID
	for next != nil {
		pruned, parentID, err := s.store.PrunePlaceholder(ctx, *next)
		if err != nil {
			return count, err
		}
		if !pruned {
			break
		}
		count++
		metrics.PlaceholdersPruned.Inc()
		s.log.Debug("占位评论已删除", zap.Uint("comment_id", *next))
		next = parentID
	}
	return count, nil
}

// Sweep 检查所有占位评论，返回删除的条数
func (s *PruneService) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.ListPlaceholders(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.PruneNow(ctx, id)
		if err != nil {
			s.log.Warn("清理占位评论失败", zap.Uint("comment_id", id), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}
