package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

var _ inventory.Notifier = (*KafkaPublisher)(nil)

// Producer lo que el publicador necesita de un kafka.Writer.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publica cada movimiento en un topic. La clave es el id del
// registro de origen, así los cambios de un mismo registro quedan en la misma partición.
type KafkaPublisher struct {
	producer Producer
	timeout  time.Duration
}

// NewKafkaWriter construye el writer de segmentio/kafka-go para los brokers y el topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// NewKafkaPublisher construye el publicador sobre producer.
func NewKafkaPublisher(producer Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, timeout: 5 * time.Second}
}

// Notify publica el movimiento propagando el contexto de traza en los headers.
func (p *KafkaPublisher) Notify(ctx context.Context, n entity.MovementNotification) error {
	value, err := encode(n)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(n.ResourceID),
		Value: value,
		Time:  n.OccurredAt,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(n.Operation)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publicar movimiento %s: %w", n.ResourceID, err)
	}
	return nil
}

// Close cierra el producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// headerCarrier adapta los headers de un mensaje a propagation.TextMapCarrier.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
