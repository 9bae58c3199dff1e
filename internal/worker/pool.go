package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/logger"
)

// TaskType определяет тип задачи
type TaskType string

const (
	TaskUpload      TaskType = "upload"
	TaskWarmPreview TaskType = "warm_preview"
)

// Task представляет задачу для обработки
type Task struct {
	ID        string
	Type      TaskType
	SessionID string
	ObjectID  string // для warm_preview
	Filename  string // для upload
	Path      string // файл upload во временном каталоге
	CreatedAt time.Time
}

// TaskResult содержит результат выполнения задачи
type TaskResult struct {
	TaskID   string
	Type     TaskType
	Success  bool
	Error    error
	Duration time.Duration
}

// Handler обрабатывает задачи определенного типа
type Handler func(ctx context.Context, task *Task) error

// Pool управляет пулом воркеров
type Pool struct {
	numWorkers  int
	taskTimeout time.Duration
	taskQueue   chan *Task
	resultQueue chan *TaskResult
	handlers    map[TaskType]Handler
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	stopOnce    sync.Once

	// Статистика
	stats Stats
}

// Stats содержит статистику пула
type Stats struct {
	TotalTasks     int64 `json:"total_tasks"`
	CompletedTasks int64 `json:"completed_tasks"`
	FailedTasks    int64 `json:"failed_tasks"`
	QueuedTasks    int64 `json:"queued_tasks"`
	ActiveWorkers  int64 `json:"active_workers"`
}

// NewPool создает новый пул воркеров
func NewPool(numWorkers int, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		numWorkers:  numWorkers,
		taskTimeout: 5 * time.Minute,
		taskQueue:   make(chan *Task, queueSize),
		resultQueue: make(chan *TaskResult, queueSize),
		handlers:    make(map[TaskType]Handler),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// RegisterHandler регистрирует обработчик для типа задачи
func (p *Pool) RegisterHandler(taskType TaskType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[taskType] = handler
}

// Start запускает воркеры
func (p *Pool) Start() {
	logger.L.Info("starting worker pool", zap.Int("workers", p.numWorkers))

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	// Горутина для обработки результатов
	go p.processResults()
}

// Stop останавливает пул и ждет завершения текущих задач
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		logger.L.Info("stopping worker pool")
		p.cancel()
		p.wg.Wait()
		close(p.resultQueue)
		logger.L.Info("worker pool stopped")
	})
}

// Submit добавляет задачу в очередь, false если очередь переполнена
func (p *Pool) Submit(task *Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.taskQueue <- task:
		atomic.AddInt64(&p.stats.TotalTasks, 1)
		atomic.AddInt64(&p.stats.QueuedTasks, 1)
		return true
	default:
		logger.L.Warn("task queue full, dropping task", zap.String("task", task.ID), zap.String("type", string(task.Type)))
		return false
	}
}

// SubmitBlocking добавляет задачу, ожидая места в очереди
func (p *Pool) SubmitBlocking(ctx context.Context, task *Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	case p.taskQueue <- task:
		atomic.AddInt64(&p.stats.TotalTasks, 1)
		atomic.AddInt64(&p.stats.QueuedTasks, 1)
		return true
	}
}

// Stats возвращает статистику пула
func (p *Pool) Stats() Stats {
	return Stats{
		TotalTasks:     atomic.LoadInt64(&p.stats.TotalTasks),
		CompletedTasks: atomic.LoadInt64(&p.stats.CompletedTasks),
		FailedTasks:    atomic.LoadInt64(&p.stats.FailedTasks),
		QueuedTasks:    atomic.LoadInt64(&p.stats.QueuedTasks),
		ActiveWorkers:  atomic.LoadInt64(&p.stats.ActiveWorkers),
	}
}

// QueueLength возвращает текущую длину очереди
func (p *Pool) QueueLength() int {
	return len(p.taskQueue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			logger.L.Debug("worker stopping", zap.Int("worker", id))
			return
		case task := <-p.taskQueue:
			p.processTask(id, task)
		}
	}
}

func (p *Pool) processTask(workerID int, task *Task) {
	atomic.AddInt64(&p.stats.ActiveWorkers, 1)
	atomic.AddInt64(&p.stats.QueuedTasks, -1)
	defer atomic.AddInt64(&p.stats.ActiveWorkers, -1)

	start := time.Now()

	p.mu.RLock()
	handler, ok := p.handlers[task.Type]
	p.mu.RUnlock()

	result := &TaskResult{TaskID: task.ID, Type: task.Type}
	if !ok {
		logger.L.Error("no handler for task type", zap.Int("worker", workerID), zap.String("type", string(task.Type)))
	} else {
		ctx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
		result.Error = handler(ctx, task)
		cancel()
		result.Success = result.Error == nil
	}
	result.Duration = time.Since(start)

	if result.Success {
		atomic.AddInt64(&p.stats.CompletedTasks, 1)
	} else {
		atomic.AddInt64(&p.stats.FailedTasks, 1)
	}

	// Отправляем результат
	select {
	case p.resultQueue <- result:
	default:
		// очередь результатов переполнена, результат только в статистике
	}
}

func (p *Pool) processResults() {
	for result := range p.resultQueue {
		if !result.Success && result.Error != nil {
			logger.L.Warn("task failed",
				zap.String("task", result.TaskID),
				zap.String("type", string(result.Type)),
				zap.Duration("took", result.Duration),
				zap.Error(result.Error))
		}
	}
}
