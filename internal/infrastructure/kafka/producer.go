package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/events"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

// messageWriter — часть kafka.Writer, которой пользуется Producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer пишет события каталога (синхронно, для outbox) и события корзины (асинхронно).
type Producer struct {
	writer     messageWriter
	cartWriter messageWriter
	logger     logger.Logger
	cfg        *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}

	// События корзины best-effort: запрос пользователя не ждёт подтверждения брокера
	cartWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.CartTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error, topic: %s, messages: %d: %s", cfg.CartTopic, len(messages), err.Error())
			}
		},
	}

	return newProducer(writer, cartWriter, logger, cfg)
}

func newProducer(writer, cartWriter messageWriter, logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	return &Producer{
		writer:     writer,
		cartWriter: cartWriter,
		logger:     logger,
		cfg:        cfg,
	}
}

// WriteMessage синхронно публикует готовое сообщение в топик каталога.
func (p *Producer) WriteMessage(ctx context.Context, req *usecase.WriteMessageReq) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.Key),
		Value: req.Payload,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// PublishItemAdded публикует событие добавления в корзину, ключ — идентификатор сессии.
func (p *Producer) PublishItemAdded(ctx context.Context, sessionID string, item domain.CartItem) error {
	payload, err := events.Marshal(events.CartItemAdded(sessionID, item))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.cartWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// EnsureTopics создаёт топики каталога и корзины, если их нет.
func (p *Producer) EnsureTopics(timeout time.Duration) error {
	for _, topic := range []string{p.cfg.Topic, p.cfg.CartTopic} {
		if err := p.ensureTopic(topic, timeout); err != nil {
			return err
		}
	}

	return nil
}

func (p *Producer) ensureTopic(topic string, timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", topic, err))
		}
		p.logger.Infof("kafka topic created: %s", topic)
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, topic))
	}
}

// Close дожидается отправки буферизованных сообщений. Сигнатура подходит для closer.Func.
func (p *Producer) Close(context.Context) error {
	cartErr := p.cartWriter.Close()
	if err := p.writer.Close(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if cartErr != nil {
		return e.Wrap(whereami.WhereAmI(), cartErr)
	}

	return nil
}
