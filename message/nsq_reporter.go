// package message publishes gateway events to a messaging platform so that
// downstream diagnostics can track misbehaving providers.
package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nsqio/go-nsq"
	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/gateway"
)

// DefaultTopic receives every disagreement when no topic is configured.
const DefaultTopic = "cosmos_gateway_disagreements"

var _ gateway.DisagreementReporter = &NSQReporter{}

// NSQReporter publishes disagreements, JSON encoded, to an nsqd instance.
// Publishing is asynchronous: a slow or unavailable broker never delays
// the caller that observed the disagreement.
type NSQReporter struct {
	logger   polylog.Logger
	producer *nsq.Producer
	topic    string

	done     chan *nsq.ProducerTransaction
	wg       sync.WaitGroup
	stopOnce sync.Once

	published atomic.Uint64
	failed    atomic.Uint64
}

func NewNSQReporter(logger polylog.Logger, nsqdAddr, topic string) (*NSQReporter, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if !nsq.IsValidTopicName(topic) {
		return nil, fmt.Errorf("invalid NSQ topic %q", topic)
	}

	config := nsq.NewConfig()
	producer, err := nsq.NewProducer(nsqdAddr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ producer: %w", err)
	}

	r := &NSQReporter{
		logger:   logger.With("component", "nsq_reporter").With("topic", topic),
		producer: producer,
		topic:    topic,
		done:     make(chan *nsq.ProducerTransaction, 64),
	}
	producer.SetLogger(&producerLogger{logger: r.logger}, nsq.LogLevelInfo)

	r.wg.Add(1)
	go r.drain()
	return r, nil
}

// Publish implements gateway.DisagreementReporter.
func (r *NSQReporter) Publish(d gateway.Disagreement) {
	body, err := json.Marshal(d)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error().Err(err).Msg("failed to encode disagreement")
		return
	}

	if err := r.producer.PublishAsync(r.topic, body, r.done, d.Method); err != nil {
		r.failed.Add(1)
		r.logger.Warn().Err(err).Str("method", d.Method).Msg("failed to publish disagreement")
	}
}

// drain records the result of every asynchronous publish.
func (r *NSQReporter) drain() {
	defer r.wg.Done()
	for t := range r.done {
		if t.Error != nil {
			r.failed.Add(1)
			method, _ := t.Args[0].(string)
			r.logger.Warn().Err(t.Error).Str("method", method).Msg("failed to publish disagreement")
			continue
		}
		r.published.Add(1)
	}
}

// Stop flushes in-flight publishes and disconnects from nsqd.
func (r *NSQReporter) Stop() {
	r.stopOnce.Do(func() {
		r.producer.Stop()
		close(r.done)
		r.wg.Wait()
	})
}

// producerLogger forwards go-nsq client logs, e.g.
// "INF    1 (127.0.0.1:4150) connecting to nsqd", to polylog.
type producerLogger struct {
	logger polylog.Logger
}

func (l *producerLogger) Output(_ int, s string) error {
	if len(s) < 3 {
		return nil
	}
	level, msg := s[:3], strings.TrimSpace(s[3:])

	switch level {
	case "DBG", "INF":
		l.logger.Debug().Str("msg", msg).Msg("NSQ producer emitted log")
	case "WRN":
		l.logger.Warn().Str("msg", msg).Msg("NSQ producer emitted log")
	default:
		l.logger.Error().Str("msg", msg).Msg("NSQ producer emitted log")
	}
	return nil
}
