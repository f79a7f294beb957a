package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

// Config opciones del recorder.
type Config struct {
	QueueSize    int
	MaxRetries   int           // reintentos después del primer intento
	BaseBackoff  time.Duration // se duplica en cada reintento
	WriteTimeout time.Duration
}

func (c *Config) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// Recorder escribe la auditoría en segundo plano. Record nunca bloquea ni falla:
// una escritura que agota sus reintentos, o una entrada descartada por cola llena,
// se registra en el log, en la métrica audit.write_failures y en Failures().
type Recorder struct {
	repo repository.AuditLogRepository
	cfg  Config
	log  *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan entity.AuditLogEntry
	done   chan struct{}

	failures    atomic.Int64
	failCounter metric.Int64Counter
}

// NewRecorder construye el recorder y arranca su worker.
func NewRecorder(repo repository.AuditLogRepository, cfg Config, log *logger.Logger) *Recorder {
	cfg.defaults()
	if log == nil {
		log = logger.Nop()
	}
	r := &Recorder{
		repo:  repo,
		cfg:   cfg,
		log:   log.Component("audit"),
		queue: make(chan entity.AuditLogEntry, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	counter, err := otel.Meter("github.com/jhoicas/stockledger-api/internal/application/audit").
		Int64Counter("audit.write_failures", metric.WithDescription("Entradas de auditoría que no se pudieron escribir"))
	if err == nil {
		r.failCounter = counter
	}
	go r.run()
	return r
}

// Record encola la entrada. Completa ID, OccurredAt y Details si vienen vacíos.
func (r *Recorder) Record(ctx context.Context, entry entity.AuditLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	if len(entry.Details) == 0 || !json.Valid(entry.Details) {
		entry.Details = json.RawMessage(`{}`)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.fail(ctx, entry, "recorder_cerrado", nil)
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.fail(ctx, entry, "cola_llena", nil)
	}
}

// Failures total de entradas perdidas desde el arranque.
func (r *Recorder) Failures() int64 {
	return r.failures.Load()
}

// Close deja de aceptar entradas y espera a que se escriba lo encolado o venza ctx.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *Recorder) write(entry entity.AuditLogEntry) {
	var err error
	backoff := r.cfg.BaseBackoff
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
		e := entry
		err = r.repo.Create(ctx, &e)
		cancel()
		if err == nil {
			return
		}
		r.log.Warn().Err(err).Int("attempt", attempt+1).Str("audit_id", entry.ID).Msg("reintentando escritura de auditoría")
	}
	r.fail(context.Background(), entry, "reintentos_agotados", err)
}

func (r *Recorder) fail(ctx context.Context, entry entity.AuditLogEntry, reason string, err error) {
	r.failures.Add(1)
	if r.failCounter != nil {
		r.failCounter.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.String("action", entry.Action),
		))
	}
	ev := r.log.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.AnErr("audit_error", domain.ErrAuditWriteFailed).
		Str("reason", reason).
		Str("audit_id", entry.ID).
		Str("action", entry.Action).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("actor_id", entry.ActorUserID).
		RawJSON("details", entry.Details).
		Msg("auditoría no escrita")
}
