package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// MemoryBackend keeps records in process. It backs tests and local
// development without a database.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]*memoryRecord
	seq     int64
	broker  Broker
	events  *notifier
	now     func() time.Time
}

type memoryRecord struct {
	Record
	seq int64
}

// NewMemoryBackend creates an empty backend publishing through broker. A nil
// broker gets an in-process one.
func NewMemoryBackend(broker Broker) *MemoryBackend {
	if broker == nil {
		broker = NewMemoryBroker(nil)
	}
	return &MemoryBackend{
		records: make(map[string][]*memoryRecord),
		broker:  broker,
		events:  &notifier{broker: broker, logger: logging.Default()},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ObservePublishes logs failed publishes through logger and counts them on o.
func (m *MemoryBackend) ObservePublishes(logger *logging.Logger, o PublishObserver) *MemoryBackend {
	if logger != nil {
		m.events.logger = logger
	}
	m.events.observer = o
	return m
}

func (m *MemoryBackend) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", backendError("create", collection, err)
	}
	if err := ctx.Err(); err != nil {
		return "", backendError("create", collection, err)
	}
	now := m.now()
	rec := Record{
		ID:         uuid.NewString(),
		Collection: collection,
		Data:       cloneData(data),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	m.mu.Lock()
	m.seq++
	m.records[collection] = append(m.records[collection], &memoryRecord{Record: rec, seq: m.seq})
	m.mu.Unlock()

	m.events.publish(ctx, copyRecord(rec))
	return rec.ID, nil
}

func (m *MemoryBackend) Query(ctx context.Context, collection string, f Filter) ([]Record, error) {
	if err := validCollection(collection); err != nil {
		return nil, backendError("query", collection, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, backendError("query", collection, err)
	}
	m.mu.RLock()
	matched := make([]*memoryRecord, 0, len(m.records[collection]))
	for _, r := range m.records[collection] {
		if matches(r.Record, f) {
			matched = append(matched, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	out := make([]Record, len(matched))
	for i, r := range matched {
		out[i] = copyRecord(r.Record)
	}
	return out, nil
}

func (m *MemoryBackend) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	if err := validCollection(collection); err != nil {
		return backendError("update", collection, err)
	}
	if err := ctx.Err(); err != nil {
		return backendError("update", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records[collection] {
		if r.ID != id {
			continue
		}
		for k, v := range partial {
			r.Data[k] = v
		}
		r.UpdatedAt = m.now()
		return nil
	}
	return backendError("update", collection, ErrNotFound)
}

func (m *MemoryBackend) Subscribe(ctx context.Context, collection string) (<-chan []Record, error) {
	return subscribe(ctx, m, m.broker, collection)
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func copyRecord(r Record) Record {
	r.Data = cloneData(r.Data)
	return r
}
