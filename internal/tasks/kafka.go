package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaDispatcher publishes tasks to a topic consumed by the engagement worker.
type KafkaDispatcher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaDispatcher(brokers []string, topic string, log *zap.Logger) *KafkaDispatcher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("task publish failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaDispatcher{writer: w, log: log}
}

// Dispatch enqueues t on the async writer; delivery errors surface in the
// writer's completion callback.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, t Task) {
	value, err := json.Marshal(t)
	if err != nil {
		d.log.Error("task encode failed", zap.String("kind", string(t.Kind)), zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(t.AssetID), Value: value, Time: t.IssuedAt}
	if err := d.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		d.log.Error("task publish failed", zap.String("kind", string(t.Kind)), zap.String("asset_id", t.AssetID), zap.Error(err))
	}
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

// Consumer reads tasks from the topic and executes them.
type Consumer struct {
	reader  *kafka.Reader
	handler *Handler
	log     *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, handler *Handler, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, handler: handler, log: log}
}

// Run consumes until ctx is cancelled. A task that fails is logged and its
// offset committed anyway; these side effects are best-effort.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		var t Task
		if err := json.Unmarshal(msg.Value, &t); err != nil {
			c.log.Error("task decode failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		} else {
			taskCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			run(taskCtx, c.handler, c.log, t)
			cancel()
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
