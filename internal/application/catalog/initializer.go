package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"drug-rec-api/internal/domain/repository"
	"drug-rec-api/pkg/logger"
)

// State 初始化状态
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// ErrInitTimeout 等待初始化超时
var ErrInitTimeout = errors.New("catalog initialization timed out")

// Status 初始化状态快照
type Status struct {
	State           State      `json:"status"`
	Progress        int        `json:"progress"`
	Message         string     `json:"message"`
	Error           string     `json:"error,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds float64    `json:"duration"`
	EncoderLoaded   bool       `json:"model_loaded"`
	CatalogLoaded   bool       `json:"database_loaded"`
	EmbeddingsReady bool       `json:"embeddings_loaded"`
}

// Initializer 在后台从来源加载目录，并跟踪进度
//
// 同一时间只有一次加载在运行；已有快照时重新加载失败不会影响读取。
type Initializer struct {
	store  *Store
	source repository.CatalogSource

	mu      sync.Mutex
	status  Status
	done    chan struct{}
	lastErr error
}

// NewInitializer 创建初始化器
func NewInitializer(store *Store, source repository.CatalogSource) *Initializer {
	return &Initializer{
		store:  store,
		source: source,
		status: Status{State: StateNotStarted},
	}
}

// Start 在后台启动加载；已在运行时返回 false
func (i *Initializer) Start(ctx context.Context) bool {
	done, ok := i.begin()
	if !ok {
		return false
	}
	go i.run(context.WithoutCancel(ctx), done)
	return true
}

// Run 同步加载；已在运行时等待该次加载结束
func (i *Initializer) Run(ctx context.Context) error {
	done, ok := i.begin()
	if !ok {
		return i.Wait(ctx, 0)
	}
	return i.run(ctx, done)
}

func (i *Initializer) begin() (chan struct{}, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status.State == StateInProgress {
		return nil, false
	}
	now := time.Now()
	i.done = make(chan struct{})
	i.lastErr = nil
	i.status = Status{
		State:     StateInProgress,
		Message:   "memulai inisialisasi",
		StartTime: &now,
	}
	return i.done, true
}

func (i *Initializer) run(ctx context.Context, done chan struct{}) (err error) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("catalog initialization panic: %v", r)
		}
		i.finish(ctx, err)
	}()

	logger.Info(ctx, "catalog initialization started", "source", i.source.Name(), "encoder", i.store.Encoder().Name())
	i.progress(10, "membaca data obat")
	records, err := i.source.LoadRecords(ctx)
	if err != nil {
		return loadErr(-1, "read source "+i.source.Name(), err)
	}

	i.progress(30, fmt.Sprintf("membuat embedding untuk %d obat", len(records)))
	return i.store.LoadWithProgress(ctx, records, func(n, total int) {
		i.progress(30+60*n/total, fmt.Sprintf("embedding %d/%d", n, total))
	})
}

func (i *Initializer) progress(p int, msg string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status.Progress = p
	i.status.Message = msg
}

func (i *Initializer) finish(ctx context.Context, err error) {
	i.mu.Lock()
	now := time.Now()
	i.status.EndTime = &now
	i.lastErr = err
	if err != nil {
		i.status.State = StateFailed
		i.status.Error = err.Error()
		i.status.Message = "inisialisasi gagal"
	} else {
		i.status.State = StateCompleted
		i.status.Progress = 100
		i.status.Message = "inisialisasi selesai"
	}
	elapsed := now.Sub(*i.status.StartTime)
	i.mu.Unlock()

	if err != nil {
		logger.Error(ctx, "catalog initialization failed", err, "duration_ms", elapsed.Milliseconds())
		return
	}
	logger.Info(ctx, "catalog initialization completed",
		"entries", i.store.Snapshot().Size(),
		"duration_ms", elapsed.Milliseconds())
}

// Wait 等待当前加载结束；未启动时会先启动。timeout <= 0 表示只受 ctx 约束
func (i *Initializer) Wait(ctx context.Context, timeout time.Duration) error {
	i.mu.Lock()
	state, done := i.status.State, i.done
	i.mu.Unlock()

	if state == StateNotStarted {
		logger.Warn(ctx, "catalog initialization not started, starting now")
		i.Start(ctx)
		i.mu.Lock()
		done = i.done
		i.mu.Unlock()
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrInitTimeout
		}
		return ctx.Err()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// Status 返回当前状态
func (i *Initializer) Status() Status {
	i.mu.Lock()
	st := i.status
	i.mu.Unlock()

	if st.StartTime != nil {
		end := time.Now()
		if st.EndTime != nil {
			end = *st.EndTime
		}
		st.DurationSeconds = end.Sub(*st.StartTime).Seconds()
	}
	st.EncoderLoaded = i.store.Encoder() != nil
	st.CatalogLoaded = i.store.Ready()
	st.EmbeddingsReady = i.store.Ready()
	return st
}

// Source 目录来源描述
func (i *Initializer) Source() string {
	return i.source.Name()
}
