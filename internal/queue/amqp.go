package queue

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes to and consumes from durable RabbitMQ queues named
// after the topic. Failed deliveries are republished with a retry count
// until MaxRetries, then dropped.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	// amqp channels are not safe for concurrent publishing
	pubMu    sync.Mutex
	declared map[string]bool

	MaxRetries int
	Log        *zap.Logger
}

func DialAMQP(url string, log *zap.Logger) (*AMQPQueue, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open rabbitmq channel")
	}
	if err := ch.Qos(10, 0, false); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "set rabbitmq prefetch")
	}
	return &AMQPQueue{
		conn:       conn,
		ch:         ch,
		declared:   map[string]bool{},
		MaxRetries: defaultMaxRetries,
		Log:        log,
	}, nil
}

func (q *AMQPQueue) declare(topic string) error {
	if q.declared[topic] {
		return nil
	}
	_, err := q.ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrapf(err, "declare queue %s", topic)
	}
	q.declared[topic] = true
	return nil
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	return q.publish(topic, body, 0)
}

func (q *AMQPQueue) publish(topic string, body []byte, retry int32) error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	if err := q.declare(topic); err != nil {
		return err
	}
	err := q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryHeader: retry},
		Body:         body,
	})
	return errors.Wrapf(err, "publish to %s", topic)
}

// Subscribe starts consuming topic in the background. Deliveries are acked
// only after handler returns.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.pubMu.Lock()
	err := q.declare(topic)
	q.pubMu.Unlock()
	if err != nil {
		return err
	}

	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "consume %s", topic)
	}

	go func() {
		for d := range msgs {
			q.deliver(topic, d, handler)
		}
		q.Log.Info("rabbitmq consumer stopped", zap.String("topic", topic))
	}()
	return nil
}

func (q *AMQPQueue) deliver(topic string, d amqp.Delivery, handler Handler) {
	err := handler(d.Body)
	if err == nil {
		d.Ack(false)
		return
	}

	retry := retryCount(d.Headers)
	if retry >= int32(q.MaxRetries) {
		q.Log.Error("message dropped after retries",
			zap.String("topic", topic), zap.Int32("retries", retry), zap.Error(err))
		d.Nack(false, false)
		return
	}

	q.Log.Warn("message handler failed, requeueing",
		zap.String("topic", topic), zap.Int32("retry", retry+1), zap.Error(err))
	if perr := q.publish(topic, d.Body, retry+1); perr != nil {
		// keep the message on the broker rather than lose it
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// retryCount reads the retry header whatever integer type the broker used.
func retryCount(h amqp.Table) int32 {
	switch v := h[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	case int16:
		return int32(v)
	case int8:
		return int32(v)
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
