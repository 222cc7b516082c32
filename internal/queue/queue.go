package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TopicCallOutcomes carries normalized call-completion events.
const TopicCallOutcomes = "call_outcomes"

const defaultMaxRetries = 3

// Handler processes one JSON message body. A non-nil error asks for redelivery.
type Handler func(body []byte) error

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler Handler) error
}

// InMemoryQueue delivers messages to in-process subscribers with retry.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup

	MaxRetries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	Log     *zap.Logger
}

func NewInMemoryQueue(log *zap.Logger) *InMemoryQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		MaxRetries: defaultMaxRetries,
		Backoff:    500 * time.Millisecond,
		Log:        log,
	}
}

// Publish encodes payload and hands it to every subscriber of topic.
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}

	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go func(h Handler) {
			defer q.wg.Done()
			q.processJob(topic, h, body)
		}(handler)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler Handler, body []byte) {
	for attempt := 0; ; attempt++ {
		err := handler(body)
		if err == nil {
			return
		}
		if attempt >= q.MaxRetries {
			q.Log.Error("message dropped after retries",
				zap.String("topic", topic), zap.Int("attempts", attempt+1), zap.Error(err))
			return
		}
		q.Log.Warn("message handler failed, retrying",
			zap.String("topic", topic), zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(time.Duration(attempt+1) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published message has been handled or dropped.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}
