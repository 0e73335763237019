package outbox

import (
	"context"
	"sync"
	"time"

	"techshop/internal/queue"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
)

// Dispatcher drains pending outbox rows to Kafka in the background. When
// Kafka is disabled the rows are logged and marked sent so the table does
// not grow without bound in single-node deployments.
type Dispatcher struct {
	store   *Store
	client  *queue.Client
	writers map[string]*kafka.Writer
	logger  zerolog.Logger

	interval time.Duration
	batch    int

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher creates a dispatcher for the given topics.
func NewDispatcher(store *Store, client *queue.Client, topics []string, logger zerolog.Logger) *Dispatcher {
	writers := make(map[string]*kafka.Writer, len(topics))
	if client.Enabled() {
		for _, topic := range topics {
			writers[topic] = client.NewWriter(topic)
		}
	}
	return &Dispatcher{
		store:    store,
		client:   client,
		writers:  writers,
		logger:   logger.With().Str("component", "outbox-dispatcher").Logger(),
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	go func() {
		defer close(d.done)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		d.logger.Info().
			Bool("kafka_enabled", d.client.Enabled()).
			Dur("interval", d.interval).
			Msg("outbox dispatcher started")

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.drain(ctx)
			}
		}
	}()
}

// Stop halts the loop and closes the Kafka writers.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		if d.cancel != nil {
			d.cancel()
			<-d.done
		}
		for topic, writer := range d.writers {
			if err := writer.Close(); err != nil {
				d.logger.Warn().Err(err).Str("topic", topic).Msg("failed to close kafka writer")
			}
		}
		d.logger.Info().Msg("outbox dispatcher stopped")
	})
}

// drain publishes one batch of pending events. Errors are logged and the
// rows stay pending for the next tick.
func (d *Dispatcher) drain(ctx context.Context) {
	records, err := d.store.FetchPending(ctx, d.batch)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to fetch pending events")
		return
	}

	for _, rec := range records {
		if writer, ok := d.writers[rec.Topic]; ok {
			if err := queue.Publish(ctx, writer, rec.Key, rec.Payload); err != nil {
				d.logger.Error().
					Err(err).
					Str("topic", rec.Topic).
					Str("event_id", rec.EventID.String()).
					Msg("failed to publish event, will retry")
				return
			}
		} else {
			d.logger.Info().
				Str("topic", rec.Topic).
				Str("key", rec.Key).
				RawJSON("payload", rec.Payload).
				Msg("event drained locally (kafka disabled)")
		}

		if err := d.store.MarkSent(ctx, rec.ID); err != nil {
			// The event may be delivered again next tick; consumers must
			// tolerate duplicates.
			d.logger.Error().
				Err(err).
				Str("event_id", rec.EventID.String()).
				Msg("failed to mark event sent")
			return
		}
	}
}
