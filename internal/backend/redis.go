package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashmetov/conveyor/internal/codec"
	"github.com/ashmetov/conveyor/internal/task"
)

// DefaultResultTTL — срок хранения результата в Redis по умолчанию.
const DefaultResultTTL = 24 * time.Hour

// RedisConfig — настройки Redis backend'а.
type RedisConfig struct {
	// Client — подключение к Redis. Обязательное поле.
	Client redis.UniversalClient

	// TTL — срок хранения записи результата. 0 — DefaultResultTTL.
	TTL time.Duration

	// Encoder — кодек записи Meta. nil — codec.JSON.
	Encoder codec.Encoder
}

// Redis — backend результатов поверх Redis.
//
// Каждая запись — JSON Meta по ключу conveyor:result:<task_id>
// с TTL. Перезапись при следующей попытке обновляет TTL.
type Redis struct {
	rdb redis.UniversalClient
	enc codec.Encoder
	ttl time.Duration
}

// NewRedis создаёт Redis backend.
func NewRedis(cfg RedisConfig) *Redis {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultResultTTL
	}
	if cfg.Encoder == nil {
		cfg.Encoder = codec.JSON{}
	}
	return &Redis{rdb: cfg.Client, enc: cfg.Encoder, ttl: cfg.TTL}
}

func resultKey(taskID string) string {
	return "conveyor:result:" + taskID
}

// ProcessCleanup для Redis backend'а ничего не делает:
// go-redis сам управляет жизненным циклом соединений в пуле.
func (r *Redis) ProcessCleanup(ctx context.Context) error { return nil }

// MarkAsDone сохраняет успешный результат со статусом DONE.
func (r *Redis) MarkAsDone(ctx context.Context, taskID string, result any) error {
	raw, err := r.enc.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	return r.store(ctx, &Meta{
		TaskID:   taskID,
		Status:   task.StatusDone,
		Result:   raw,
		DateDone: time.Now().UTC(),
	})
}

// MarkAsRetry помечает попытку статусом RETRY.
func (r *Redis) MarkAsRetry(ctx context.Context, taskID string, cause error) (*task.ExcInfo, error) {
	return r.markExc(ctx, taskID, task.StatusRetry, cause)
}

// MarkAsFailure помечает попытку статусом FAILURE.
func (r *Redis) MarkAsFailure(ctx context.Context, taskID string, cause error) (*task.ExcInfo, error) {
	return r.markExc(ctx, taskID, task.StatusFailure, cause)
}

// Status возвращает статус задачи, PENDING для неизвестного id.
func (r *Redis) Status(ctx context.Context, taskID string) (task.Status, error) {
	meta, err := r.Result(ctx, taskID)
	if errors.Is(err, ErrNotFound) {
		return task.StatusPending, nil
	}
	if err != nil {
		return "", err
	}
	return meta.Status, nil
}

// Result возвращает запись результата или ErrNotFound.
func (r *Redis) Result(ctx context.Context, taskID string) (*Meta, error) {
	raw, err := r.rdb.Get(ctx, resultKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	var meta Meta
	if err := r.enc.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal result meta: %w", err)
	}
	return &meta, nil
}

func (r *Redis) markExc(ctx context.Context, taskID string, status task.Status, cause error) (*task.ExcInfo, error) {
	info, meta, err := excMeta(r.enc, taskID, status, cause)
	if err != nil {
		return nil, err
	}
	if err := r.store(ctx, meta); err != nil {
		return nil, err
	}
	return info, nil
}

func (r *Redis) store(ctx context.Context, meta *Meta) error {
	raw, err := r.enc.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal result meta: %w", err)
	}
	if err := r.rdb.Set(ctx, resultKey(meta.TaskID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}
