package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"barback/internal/services"
)

// messageWriter - часть kafka.Writer, нужная публикатору
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher публикует доменные события в топик заказов
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *logrus.Entry
}

// NewKafkaPublisher создает публикатор; сообщения одного заказа попадают в одну партицию
func NewKafkaPublisher(brokers, topic string, auth KafkaAuth, log *logrus.Entry) *KafkaPublisher {
	log = log.WithField("component", "kafka_publisher")
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(ParseKafkaBrokers(brokers)...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Transport:              CreateKafkaTransport(auth, log),
	}
	log.WithField("topic", topic).Info("📡 Kafka publisher создан")
	return newKafkaPublisher(writer, topic, log)
}

func newKafkaPublisher(w messageWriter, topic string, log *logrus.Entry) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, log: log}
}

// Publish сериализует событие в JSON с ключом заказа или ингредиента
func (p *KafkaPublisher) Publish(ctx context.Context, ev services.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "ошибка сериализации события")
	}
	msg := kafka.Message{
		Key:   []byte(ev.Key()),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "ошибка отправки события %s в %s", ev.Type, p.topic)
	}
	p.log.WithFields(logrus.Fields{"event": ev.Type, "key": ev.Key()}).Debug("📤 Событие отправлено")
	return nil
}

// Close дожидается отправки буфера
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// HubPublisher рассылает события напрямую экранам бара (без Kafka)
type HubPublisher struct {
	hub *Hub
}

// NewHubPublisher создает публикатор в WebSocket хаб
func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// Publish ставит событие в очередь рассылки
func (p *HubPublisher) Publish(ctx context.Context, ev services.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "ошибка сериализации события")
	}
	if !p.hub.BroadcastMessage(payload) {
		return errors.New("очередь WebSocket переполнена")
	}
	return nil
}
