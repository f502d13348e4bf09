package mq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAcknowledger подменяет живой канал AMQP и записывает решения
// по судьбе сообщения.
type fakeAcknowledger struct {
	mu    sync.Mutex
	acks  int
	nacks []bool // значения requeue в порядке вызовов
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks = append(f.nacks, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks = append(f.nacks, requeue)
	return nil
}

func testConsumer(h Handler) *Consumer {
	return &Consumer{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		queue:   "tasks.default",
		handler: h,
	}
}

func testRaw(ack *fakeAcknowledger) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(`{}`),
	}
}

func TestHandleDelivery_NilErrorLeavesSettlementToHandler(t *testing.T) {
	ack := &fakeAcknowledger{}
	c := testConsumer(func(ctx context.Context, d *Delivery) error {
		return d.Ack()
	})

	c.handleDelivery(context.Background(), testRaw(ack))

	if ack.acks != 1 {
		t.Errorf("acks = %d, want 1", ack.acks)
	}
	if len(ack.nacks) != 0 {
		t.Errorf("nacks = %v, want none", ack.nacks)
	}
}

func TestHandleDelivery_ErrorRequeues(t *testing.T) {
	ack := &fakeAcknowledger{}
	c := testConsumer(func(ctx context.Context, d *Delivery) error {
		return errors.New("pool is full")
	})

	c.handleDelivery(context.Background(), testRaw(ack))

	if len(ack.nacks) != 1 || ack.nacks[0] != true {
		t.Fatalf("nacks = %v, want one requeue", ack.nacks)
	}
	if ack.acks != 0 {
		t.Errorf("acks = %d, want 0", ack.acks)
	}
}

func TestHandleDelivery_RejectGoesToDLQ(t *testing.T) {
	ack := &fakeAcknowledger{}
	c := testConsumer(func(ctx context.Context, d *Delivery) error {
		return fmt.Errorf("%w: unknown task", ErrReject)
	})

	c.handleDelivery(context.Background(), testRaw(ack))

	if len(ack.nacks) != 1 || ack.nacks[0] != false {
		t.Fatalf("nacks = %v, want one without requeue", ack.nacks)
	}
}

func TestHandleDelivery_WrappedRejectStillClassified(t *testing.T) {
	ack := &fakeAcknowledger{}
	inner := fmt.Errorf("%w: malformed message", ErrReject)
	c := testConsumer(func(ctx context.Context, d *Delivery) error {
		return fmt.Errorf("handle: %w", inner)
	})

	c.handleDelivery(context.Background(), testRaw(ack))

	if len(ack.nacks) != 1 || ack.nacks[0] != false {
		t.Fatalf("nacks = %v, want one without requeue", ack.nacks)
	}
}
