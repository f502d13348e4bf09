package beat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashmetov/conveyor/internal/mq"
	"github.com/ashmetov/conveyor/internal/task"
)

// defaultTick — период проверки расписания.
const defaultTick = 1 * time.Second

// Service — цикл публикации периодических задач.
//
// Записи и их состояние живут в памяти одного процесса: следующее
// время публикации вычисляется при старте и сдвигается после каждой
// публикации. Записи не публикуются сразу при запуске — первая
// публикация происходит в первый наступивший срок.
type Service struct {
	publisher *mq.Publisher
	entries   []*entryState
	logger    *slog.Logger
	tick      time.Duration
}

// Config — конфигурация Service.
type Config struct {
	// Publisher — публикация сообщений задач. nil допустим в тестах:
	// записи помечаются опубликованными без отправки.
	Publisher *mq.Publisher

	// Entries — записи расписания.
	Entries []Entry

	// Tick — период проверки расписания (default: 1s).
	Tick time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт Service и вычисляет первые сроки публикации.
// Некорректная запись расписания — ошибка создания.
func New(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	now := time.Now()
	entries := make([]*entryState, 0, len(cfg.Entries))
	for _, e := range cfg.Entries {
		st, err := newEntryState(e, now)
		if err != nil {
			return nil, err
		}
		entries = append(entries, st)
	}

	return &Service{
		publisher: cfg.Publisher,
		entries:   entries,
		logger:    logger,
		tick:      tick,
	}, nil
}

// Run крутит цикл публикации до отмены контекста.
// Для процессов с leader election используйте Tick напрямую.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting beat", "entries", len(s.entries), "tick", s.tick)

	tk := time.NewTicker(s.tick)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tk.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick публикует записи с наступившим сроком и возвращает их число.
//
// Ошибка публикации одной записи не блокирует остальные. Срок записи
// сдвигается и при неудачной публикации: пропущенный такт не
// повторяется, beat не догоняет прошлое.
func (s *Service) Tick(ctx context.Context, now time.Time) int {
	published := 0

	for _, st := range s.entries {
		if !st.due(now) {
			continue
		}

		msg := &task.Message{
			Task:   st.entry.Task,
			ID:     uuid.New().String(),
			Args:   st.entry.Args,
			Kwargs: st.entry.Kwargs,
		}
		queue := mq.TaskQueue(st.entry.Queue)

		if s.publisher != nil {
			if err := s.publisher.PublishTask(ctx, queue, msg); err != nil {
				s.logger.Error("failed to publish periodic task",
					"entry", st.entry.Name,
					"task", st.entry.Task,
					"error", err,
				)
				st.next = st.nextDue(now)
				continue
			}
		}

		s.logger.Info("published periodic task",
			"entry", st.entry.Name,
			"task", st.entry.Task,
			"task_id", msg.ID,
			"queue", queue,
		)

		st.next = st.nextDue(now)
		published++
	}

	return published
}
