package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/BearBump/ManifestBox/internal/broker/messages"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает события manifest.committed. Используется API-процессом
// для инвалидации снапшотов резолвера после загрузки батча.
type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r: kafka.NewReader(cfg),
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume декодирует каждое сообщение и отдаёт его обработчику.
// Commit оффсета делается только после успешной обработки, иначе
// событие потеряется и снапшоты останутся протухшими.
func (c *Consumer) Consume(ctx context.Context, handler func(msg messages.ManifestCommitted) error) error {
	for {
		raw, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}

		var msg messages.ManifestCommitted
		if err := json.Unmarshal(raw.Value, &msg); err != nil {
			// Битое сообщение коммитим и идём дальше: ретрай его не починит.
			if err := c.r.CommitMessages(ctx, raw); err != nil {
				return errors.Wrap(err, "commit malformed message")
			}
			continue
		}

		if err := handler(msg); err != nil {
			return err
		}
		if err := c.r.CommitMessages(ctx, raw); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
