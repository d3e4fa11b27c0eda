package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Message is one unit of dispatch. Attributes carry the job routing
// data; delivery is at-least-once, FIFO per queue.
type Message struct {
	ID         string            `json:"id"`
	Queue      string            `json:"queue"`
	Attributes map[string]string `json:"attributes"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	// ClaimedAt is stamped on the processing-list entry when a worker
	// claims the message; the reaper judges staleness by it, never by
	// how long the message waited in the queue.
	ClaimedAt  time.Time `json:"claimed_at"`
	Deliveries int       `json:"deliveries"`
}

// claimRef is the timestamp the reaper measures against. Entries that
// died between the list move and the claim stamp fall back to their
// enqueue time.
func (m *Message) claimRef() time.Time {
	if m.ClaimedAt.IsZero() {
		return m.EnqueuedAt
	}
	return m.ClaimedAt
}

// WorkQueue dispatches validation and generation work to the worker
// pool. Claimed messages sit on a processing list until acked; a
// reaper requeues messages whose worker died.
type WorkQueue interface {
	Enqueue(ctx context.Context, queue string, attributes map[string]string) error
	// Claim blocks up to wait for the next message. Returns nil when
	// the wait expires.
	Claim(ctx context.Context, queue string, wait time.Duration) (*Message, error)
	// Ack removes a claimed message from the processing list.
	Ack(ctx context.Context, msg *Message) error
	// Backout returns a claimed message to the head of its queue for
	// redelivery.
	Backout(ctx context.Context, msg *Message) error
	// ReapStale requeues processing messages older than age, for
	// workers that died without acking.
	ReapStale(ctx context.Context, queue string, age time.Duration) (int, error)
	Close() error
}

type redisQueue struct {
	log *logger.Logger
	rdb *goredis.Client
	ns  string
}

func NewWorkQueue(log *logger.Logger) (WorkQueue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ns := strings.TrimSpace(os.Getenv("REDIS_QUEUE_NAMESPACE"))
	if ns == "" {
		ns = "broker"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisQueue{
		log: log.With("service", "WorkQueue"),
		rdb: rdb,
		ns:  ns,
	}, nil
}

func (q *redisQueue) key(queue string) string     { return q.ns + ":queue:" + queue }
func (q *redisQueue) procKey(queue string) string { return q.ns + ":processing:" + queue }

func (q *redisQueue) Enqueue(ctx context.Context, queue string, attributes map[string]string) error {
	msg := Message{
		ID:         fmt.Sprintf("%d", time.Now().UnixNano()),
		Queue:      queue,
		Attributes: attributes,
		EnqueuedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key(queue), raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return nil
}

func (q *redisQueue) Claim(ctx context.Context, queue string, wait time.Duration) (*Message, error) {
	raw, err := q.rdb.BLMove(ctx, q.key(queue), q.procKey(queue), "RIGHT", "LEFT", wait).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", queue, err)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		// Poison payload: drop it from processing so it cannot wedge
		// the queue.
		_ = q.rdb.LRem(ctx, q.procKey(queue), 1, raw).Err()
		return nil, fmt.Errorf("claim %s: bad payload: %w", queue, err)
	}
	msg.Deliveries++
	msg.ClaimedAt = time.Now().UTC()
	stamped, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	// Restamp the processing entry so the reaper measures from this
	// claim, not from enqueue.
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.procKey(queue), 1, raw)
	pipe.LPush(ctx, q.procKey(queue), stamped)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("claim %s: %w", queue, err)
	}
	return &msg, nil
}

func (q *redisQueue) Ack(ctx context.Context, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.rdb.LRem(ctx, q.procKey(msg.Queue), 1, string(raw)).Err()
}

func (q *redisQueue) Backout(ctx context.Context, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	redelivered := *msg
	redelivered.ClaimedAt = time.Time{}
	updated, err := json.Marshal(redelivered)
	if err != nil {
		return err
	}
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.procKey(msg.Queue), 1, string(raw))
	pipe.RPush(ctx, q.key(msg.Queue), updated)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *redisQueue) ReapStale(ctx context.Context, queue string, age time.Duration) (int, error) {
	rawMsgs, err := q.rdb.LRange(ctx, q.procKey(queue), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-age)
	requeued := 0
	for _, raw := range rawMsgs {
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			_ = q.rdb.LRem(ctx, q.procKey(queue), 1, raw).Err()
			continue
		}
		if msg.claimRef().After(cutoff) {
			continue
		}
		msg.ClaimedAt = time.Time{}
		requeue, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		pipe := q.rdb.TxPipeline()
		pipe.LRem(ctx, q.procKey(queue), 1, raw)
		pipe.RPush(ctx, q.key(queue), requeue)
		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}

func (q *redisQueue) Close() error { return q.rdb.Close() }

// Queue names used by the dispatcher.
const (
	QueueValidation = "validation"
	QueueGeneration = "generation"
)
