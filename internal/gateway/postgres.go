package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LatencyObserver records how long each store operation took.
type LatencyObserver interface {
	ObserveGatewayLatency(op, collection string, d time.Duration)
}

// PostgresBackend stores records as JSONB documents in the records table.
type PostgresBackend struct {
	db      DB
	broker  Broker
	tracer  trace.Tracer
	latency LatencyObserver
	events  *notifier
	now     func() time.Time
}

// PostgresOption customises a PostgresBackend.
type PostgresOption func(*PostgresBackend)

// WithLatencyObserver reports per-operation latency.
func WithLatencyObserver(o LatencyObserver) PostgresOption {
	return func(p *PostgresBackend) { p.latency = o }
}

// WithPublishObserver counts records stored without a published change.
func WithPublishObserver(o PublishObserver) PostgresOption {
	return func(p *PostgresBackend) { p.events.observer = o }
}

// WithLogger sets the logger used for degraded publishes.
func WithLogger(l *logging.Logger) PostgresOption {
	return func(p *PostgresBackend) {
		if l != nil {
			p.events.logger = l
		}
	}
}

// WithTracer overrides the default tracer.
func WithTracer(t trace.Tracer) PostgresOption {
	return func(p *PostgresBackend) { p.tracer = t }
}

// NewPostgresBackend creates a backend over db publishing through broker.
func NewPostgresBackend(db DB, broker Broker, opts ...PostgresOption) *PostgresBackend {
	if db == nil {
		panic("gateway: db cannot be nil")
	}
	if broker == nil {
		broker = NewMemoryBroker(nil)
	}
	p := &PostgresBackend{
		db:     db,
		broker: broker,
		events: &notifier{broker: broker, logger: logging.Default()},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("vocalvent.internal.gateway")
	}
	return p
}

func (p *PostgresBackend) start(ctx context.Context, op, collection string) (context.Context, trace.Span, func()) {
	ctx, span := p.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(attribute.String("collection", collection)))
	began := time.Now()
	return ctx, span, func() {
		if p.latency != nil {
			p.latency.ObserveGatewayLatency(op, collection, time.Since(began))
		}
		span.End()
	}
}

func (p *PostgresBackend) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", backendError("create", collection, err)
	}
	ctx, span, done := p.start(ctx, "create", collection)
	defer done()

	payload, err := json.Marshal(cloneData(data))
	if err != nil {
		span.RecordError(err)
		return "", backendError("create", collection, fmt.Errorf("marshal data: %w", err))
	}
	now := p.now()
	rec := Record{ID: uuid.NewString(), Collection: collection, CreatedAt: now, UpdatedAt: now}

	_, err = p.db.Exec(ctx, `
		INSERT INTO records (id, collection, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, collection, payload, now, now,
	)
	if err != nil {
		span.RecordError(err)
		return "", backendError("create", collection, err)
	}

	// Publish what was stored, not what the caller still holds.
	if err := json.Unmarshal(payload, &rec.Data); err != nil {
		rec.Data = cloneData(data)
	}
	p.events.publish(ctx, rec)
	return rec.ID, nil
}

func (p *PostgresBackend) Query(ctx context.Context, collection string, f Filter) ([]Record, error) {
	if err := validCollection(collection); err != nil {
		return nil, backendError("query", collection, err)
	}
	ctx, span, done := p.start(ctx, "query", collection)
	defer done()

	sql, args := buildQuery(collection, f)
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		return nil, backendError("query", collection, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec  Record
			data []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Collection, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, backendError("query", collection, err)
		}
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			span.RecordError(err)
			return nil, backendError("query", collection, fmt.Errorf("decode %s: %w", rec.ID, err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, backendError("query", collection, err)
	}
	return out, nil
}

func buildQuery(collection string, f Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, collection, data, created_at, updated_at FROM records WHERE collection = $1`)
	args := []any{collection}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		b.WriteString(" AND data->>'status' = " + arg(f.Status))
	}
	if f.Platform != "" {
		b.WriteString(" AND data->>'platform' = " + arg(f.Platform))
	}
	if f.DateFrom != "" && f.DateTo != "" {
		b.WriteString(" AND data->>'date' >= " + arg(f.DateFrom))
		b.WriteString(" AND data->>'date' <= " + arg(f.DateTo))
	}
	b.WriteString(" ORDER BY created_at DESC, seq DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	return b.String(), args
}

func (p *PostgresBackend) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	if err := validCollection(collection); err != nil {
		return backendError("update", collection, err)
	}
	ctx, span, done := p.start(ctx, "update", collection)
	defer done()

	payload, err := json.Marshal(partial)
	if err != nil {
		span.RecordError(err)
		return backendError("update", collection, fmt.Errorf("marshal partial: %w", err))
	}
	tag, err := p.db.Exec(ctx, `
		UPDATE records SET data = data || $3::jsonb, updated_at = $4
		WHERE collection = $1 AND id = $2`,
		collection, id, payload, p.now(),
	)
	if err != nil {
		span.RecordError(err)
		return backendError("update", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return backendError("update", collection, ErrNotFound)
	}
	return nil
}

func (p *PostgresBackend) Subscribe(ctx context.Context, collection string) (<-chan []Record, error) {
	return subscribe(ctx, p, p.broker, collection)
}
