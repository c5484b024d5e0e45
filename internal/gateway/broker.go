package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

const subscriberBuffer = 64

// Broker fans created records out to subscribers of their collection.
type Broker interface {
	Publish(ctx context.Context, rec Record) error
	Subscribe(ctx context.Context, collection string) (<-chan Record, error)
}

// PublishObserver counts records that were stored but could not be published.
type PublishObserver interface {
	ObservePublishFailure(collection string)
}

// notifier publishes a stored record. A failed publish is logged and
// counted but never reported to the writer: the record exists, and live
// subscribers catch up from their next snapshot.
type notifier struct {
	broker   Broker
	logger   *logging.Logger
	observer PublishObserver
}

func (n *notifier) publish(ctx context.Context, rec Record) {
	if err := n.broker.Publish(ctx, rec); err != nil {
		n.logger.Warn("gateway: publish failed after store", "collection", rec.Collection, "id", rec.ID, "error", err)
		if n.observer != nil {
			n.observer.ObservePublishFailure(rec.Collection)
		}
	}
}

// MemoryBroker delivers records to subscribers in this process only.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[chan Record]struct{}
	logger *logging.Logger
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(logger *logging.Logger) *MemoryBroker {
	if logger == nil {
		logger = logging.Default()
	}
	return &MemoryBroker{subs: make(map[string]map[chan Record]struct{}), logger: logger}
}

// Publish never blocks; a subscriber whose buffer is full misses the record.
func (b *MemoryBroker) Publish(_ context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[rec.Collection] {
		select {
		case ch <- rec:
		default:
			b.logger.Warn("gateway: subscriber lagging, record dropped", "collection", rec.Collection, "id", rec.ID)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, collection string) (<-chan Record, error) {
	ch := make(chan Record, subscriberBuffer)
	b.mu.Lock()
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[chan Record]struct{})
	}
	b.subs[collection][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[collection], ch)
		if len(b.subs[collection]) == 0 {
			delete(b.subs, collection)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// RedisBroker fans records out across instances over Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

// NewRedisBroker creates a broker publishing on "<prefix><collection>".
func NewRedisBroker(client *redis.Client, logger *logging.Logger) *RedisBroker {
	if client == nil {
		panic("gateway: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisBroker{client: client, prefix: "vocalvent:records:", logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("gateway: marshal record: %w", err)
	}
	if err := b.client.Publish(ctx, b.prefix+rec.Collection, payload).Err(); err != nil {
		return fmt.Errorf("gateway: publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, collection string) (<-chan Record, error) {
	ps := b.client.Subscribe(ctx, b.prefix+collection)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("gateway: subscribe: %w", err)
	}

	out := make(chan Record, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					b.logger.Warn("gateway: undecodable record on broker", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type querier interface {
	Query(ctx context.Context, collection string, f Filter) ([]Record, error)
}

// subscribe delivers the existing records as one batch, then every record
// the broker publishes, skipping any already delivered in the first batch.
func subscribe(ctx context.Context, q querier, broker Broker, collection string) (<-chan []Record, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	live, err := broker.Subscribe(ctx, collection)
	if err != nil {
		return nil, backendError("subscribe", collection, err)
	}
	existing, err := q.Query(ctx, collection, Filter{})
	if err != nil {
		return nil, err
	}
	reverse(existing)

	out := make(chan []Record, 1)
	go func() {
		defer close(out)
		seen := make(map[string]struct{}, len(existing))
		for _, r := range existing {
			seen[r.ID] = struct{}{}
		}
		if len(existing) > 0 {
			select {
			case out <- existing:
			case <-ctx.Done():
				return
			}
		}
		for rec := range live {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			select {
			case out <- []Record{rec}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func reverse(records []Record) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
