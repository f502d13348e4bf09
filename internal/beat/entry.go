package beat

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrBadEntry — некорректная запись расписания.
var ErrBadEntry = errors.New("invalid schedule entry")

// cronParser — парсер cron-выражений: пять полей, без секунд.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Entry — запись расписания: какая задача, как часто, с какими
// аргументами. Задаётся либо cron-выражение, либо интервал в секундах;
// при обоих заполненных полях cron имеет приоритет.
type Entry struct {
	// Name — имя записи для логов и контроля дублей.
	Name string `json:"name"`

	// Task — имя задачи из реестра воркера.
	Task string `json:"task"`

	// CronExpr — cron-выражение (пять полей).
	CronExpr string `json:"cron,omitempty"`

	// EverySec — интервал между публикациями в секундах.
	EverySec int `json:"every_sec,omitempty"`

	// Args, Kwargs — аргументы вызова задачи.
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`

	// Queue — имя очереди без префикса. Пустое — очередь по умолчанию.
	Queue string `json:"queue,omitempty"`
}

// isCron сообщает, задано ли расписание cron-выражением.
func (e *Entry) isCron() bool {
	return e.CronExpr != ""
}

// Validate проверяет обязательные поля записи.
func (e *Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: missing name", ErrBadEntry)
	}
	if e.Task == "" {
		return fmt.Errorf("%w: entry %q has no task", ErrBadEntry, e.Name)
	}
	if !e.isCron() && e.EverySec <= 0 {
		return fmt.Errorf("%w: entry %q has neither cron nor every_sec", ErrBadEntry, e.Name)
	}
	if e.isCron() {
		if _, err := cronParser.Parse(e.CronExpr); err != nil {
			return fmt.Errorf("%w: entry %q: parse cron %q: %v", ErrBadEntry, e.Name, e.CronExpr, err)
		}
	}
	return nil
}

// entryState — запись расписания со скомпилированным cron-выражением
// и временем следующей публикации.
type entryState struct {
	entry Entry
	sched cron.Schedule // nil для интервальных записей
	next  time.Time
}

func newEntryState(e Entry, now time.Time) (*entryState, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	st := &entryState{entry: e}
	if e.isCron() {
		sched, err := cronParser.Parse(e.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: parse cron %q: %v", ErrBadEntry, e.Name, e.CronExpr, err)
		}
		st.sched = sched
	}

	st.next = st.nextDue(now)
	return st, nil
}

// nextDue вычисляет следующее время публикации после from.
func (st *entryState) nextDue(from time.Time) time.Time {
	if st.sched != nil {
		return st.sched.Next(from)
	}
	return from.Add(time.Duration(st.entry.EverySec) * time.Second)
}

// due сообщает, пора ли публиковать запись.
func (st *entryState) due(now time.Time) bool {
	return !now.Before(st.next)
}
