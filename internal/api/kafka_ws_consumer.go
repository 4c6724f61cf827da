package api

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"barback/internal/services"
)

// messageReader - часть kafka.Reader, нужная потребителю
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaWSConsumer читает события заказов из Kafka и отправляет их в WebSocket
type KafkaWSConsumer struct {
	reader    messageReader
	hub       *Hub
	log       *logrus.Entry
	retry     time.Duration
	processed int64 // Счетчик переданных событий
}

// NewKafkaWSConsumer создает потребителя топика заказов
func NewKafkaWSConsumer(brokers, topic, groupID string, auth KafkaAuth, hub *Hub, log *logrus.Entry) *KafkaWSConsumer {
	log = log.WithFields(logrus.Fields{"component": "kafka_ws_consumer", "topic": topic, "group_id": groupID})
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     ParseKafkaBrokers(brokers),
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset, // Экранам нужны только новые события
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      CreateKafkaDialer(auth, log),
	})
	return newKafkaWSConsumer(reader, hub, log)
}

func newKafkaWSConsumer(r messageReader, hub *Hub, log *logrus.Entry) *KafkaWSConsumer {
	return &KafkaWSConsumer{reader: r, hub: hub, log: log, retry: time.Second}
}

// Run читает топик до отмены ctx. Сообщения, не являющиеся событием, пропускаются.
func (kc *KafkaWSConsumer) Run(ctx context.Context) error {
	kc.log.Info("📡 Kafka WS Consumer запущен")
	defer func() {
		if err := kc.reader.Close(); err != nil {
			kc.log.WithError(err).Warn("⚠️ Ошибка закрытия Kafka reader")
		}
		kc.log.WithField("processed", kc.Processed()).Info("🛑 Kafka WS Consumer остановлен")
	}()

	for {
		msg, err := kc.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			kc.log.WithError(err).Warn("⚠️ Kafka WS Consumer ошибка чтения")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(kc.retry):
			}
			continue
		}

		var ev services.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.Type == "" {
			kc.log.WithFields(logrus.Fields{"offset": msg.Offset, "partition": msg.Partition}).Debug("ℹ️ Пропущено сообщение без события")
			continue
		}

		kc.hub.BroadcastMessage(msg.Value)
		atomic.AddInt64(&kc.processed, 1)
	}
}

// Processed возвращает число переданных в WebSocket событий
func (kc *KafkaWSConsumer) Processed() int64 {
	return atomic.LoadInt64(&kc.processed)
}
