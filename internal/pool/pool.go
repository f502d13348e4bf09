package pool

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultQueueSize — ёмкость очереди заданий по умолчанию.
const DefaultQueueSize = 100

// Config — настройки пула.
type Config struct {
	// Workers — число горутин-воркеров. <= 0 означает 1.
	Workers int

	// QueueSize — ёмкость очереди заданий. <= 0 означает DefaultQueueSize.
	QueueSize int

	// Logger — логгер. nil означает slog.Default().
	Logger *slog.Logger
}

// Pool — пул горутин с очередью заданий.
type Pool struct {
	queue  chan *submission
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	abortOnce sync.Once
	abortErr  error
}

type submission struct {
	req Request
	res *AsyncResult
}

// New создаёт пул и запускает воркеры.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		queue:  make(chan *submission, cfg.QueueSize),
		logger: cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// ApplyAsync ставит задание в очередь и возвращает хэндл.
//
// Не блокируется: при заполненной очереди возвращает ErrPoolBusy,
// после остановки пула — ErrPoolStopped.
func (p *Pool) ApplyAsync(req Request) (*AsyncResult, error) {
	if req.Run == nil {
		return nil, ErrNilRun
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolStopped
	}
	select {
	case <-p.ctx.Done():
		return nil, ErrPoolStopped
	default:
	}

	res := newAsyncResult(req.Meta)
	select {
	case p.queue <- &submission{req: req, res: res}:
		return res, nil
	default:
		return nil, ErrPoolBusy
	}
}

// Done закрывается, когда пул останавливается — по Stop/StopWait
// или по сигналу Abort из задания.
func (p *Pool) Done() <-chan struct{} {
	return p.ctx.Done()
}

// AbortSignal возвращает причину аварийной остановки.
// nil, если пул остановлен штатно или ещё работает.
func (p *Pool) AbortSignal() error {
	select {
	case <-p.ctx.Done():
		return p.abortErr
	default:
		return nil
	}
}

// Stop отбрасывает необработанную очередь, дожидается завершения
// текущих заданий и останавливает воркеры. Отброшенные задания
// не получают callback'ов.
func (p *Pool) Stop() {
	p.markClosed()

cleanup:
	for {
		select {
		case <-p.queue:
			// отбрасываем
		default:
			break cleanup
		}
	}

	p.cancel()
	p.wg.Wait()
}

// StopWait дожидается выполнения всех заданий в очереди
// и останавливает воркеры.
func (p *Pool) StopWait() {
	p.markClosed()
	close(p.queue)
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// abort останавливает пул по фатальному сигналу из задания.
func (p *Pool) abort(sig error) {
	p.abortOnce.Do(func() {
		p.abortErr = sig
		p.markClosed()
		p.cancel()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			p.execute(item)
		}
	}
}

func (p *Pool) execute(item *submission) {
	req := item.req

	if req.OnAck != nil {
		req.OnAck()
	}

	v := req.Run(p.ctx)

	if a, ok := v.(Abort); ok {
		p.logger.Error("pool aborting",
			"task_id", req.Meta.TaskID,
			"task_name", req.Meta.TaskName,
			"error", a.Signal)
		item.res.complete(v)
		p.abort(a.Signal)
		return
	}

	if f, ok := v.(Failure); ok {
		if req.OnFailure != nil {
			req.OnFailure(f, req.Meta)
		}
	} else {
		if req.OnSuccess != nil {
			req.OnSuccess(v, req.Meta)
		}
	}

	item.res.complete(v)
}
