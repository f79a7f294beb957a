package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/pkg/logger"
	"github.com/jhoicas/stockledger-api/pkg/validator"
)

// OperationType tipo de operación que acepta el pipeline.
type OperationType string

const (
	OpOpeningStock OperationType = "opening_stock"
	OpDispatch     OperationType = "dispatch"
	OpReturn       OperationType = "return"
	OpDamage       OperationType = "damage"
	OpRecovery     OperationType = "recovery"
	OpSelfTransfer OperationType = "self_transfer"
	OpStatusUpdate OperationType = "status_update"
)

// Estados por los que pasa una operación.
const (
	StateRequested             = "REQUESTED"
	StatePermissionChecked     = "PERMISSION_CHECKED"
	StateReserved              = "RESERVED"
	StateDomainRecordPersisted = "DOMAIN_RECORD_PERSISTED"
	StateLedgerEventPersisted  = "LEDGER_EVENT_PERSISTED"
	StateCompleted             = "COMPLETED"
	StateAuditEmitted          = "AUDIT_EMITTED"
	StateFailed                = "FAILED"
)

// Códigos de falla de OperationResult.
const (
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeValidation          = "VALIDATION"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodePersistence         = "PERSISTENCE"
)

// maxAttempts un reintento ante conflicto de concurrencia.
const maxAttempts = 2

var tracer = otel.Tracer("github.com/jhoicas/stockledger-api/internal/application/inventory")

// OperationRequest operación a ejecutar. Payload es el DTO de la operación
// (valor o puntero) o su JSON crudo (json.RawMessage / []byte).
type OperationRequest struct {
	Type    OperationType
	Payload any
}

// OperationResult resultado de Execute. Err es el mismo error que devuelve Execute.
type OperationResult struct {
	Status     string
	ResourceID string
	Code       string
	EventIDs   []int64
	Err        error
}

// PipelineDeps dependencias del pipeline. Notifier, Logger y Now son opcionales.
type PipelineDeps struct {
	TxRunner     TxRunner
	Gate         Authorizer
	Ledger       *Ledger
	Availability *AvailabilityCalculator
	Audit        AuditSink
	Notifier     Notifier
	Logger       *logger.Logger
	Now          func() time.Time
}

// Pipeline orquesta permiso → reserva → registro de dominio → evento de ledger → auditoría
// para toda operación que cambia el stock. Es el único camino de escritura del ledger.
type Pipeline struct {
	txRunner     TxRunner
	gate         Authorizer
	ledger       *Ledger
	availability *AvailabilityCalculator
	audit        AuditSink
	notifier     Notifier
	log          *logger.Logger
	now          func() time.Time
}

// NewPipeline construye el pipeline.
func NewPipeline(d PipelineDeps) *Pipeline {
	p := &Pipeline{
		txRunner:     d.TxRunner,
		gate:         d.Gate,
		ledger:       d.Ledger,
		availability: d.Availability,
		audit:        d.Audit,
		notifier:     d.Notifier,
		log:          d.Logger,
		now:          d.Now,
	}
	if p.availability == nil {
		p.availability = NewAvailabilityCalculator(p.ledger)
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Execute corre la operación completa. Antes del commit cualquier falla (incluida
// la cancelación de ctx) deshace todo; después del commit el resultado se mantiene
// y la auditoría y la notificación siguen con un contexto desacoplado.
func (p *Pipeline) Execute(ctx context.Context, req OperationRequest, actor entity.Actor) (*OperationResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("operation.type", string(req.Type)),
		attribute.String("actor.id", actor.UserID),
	))
	defer span.End()

	log := p.log.WithTrace(ctx).With().Str("operation", string(req.Type)).Str("actor_id", actor.UserID).Logger()
	log.Debug().Str("state", StateRequested).Msg("operación recibida")

	op, err := decodeOperation(req)
	if err != nil {
		return p.fail(span, log, err)
	}

	if actor.UserID == "" {
		return p.fail(span, log, fmt.Errorf("%w: actor sin identificar", domain.ErrPermissionDenied))
	}
	allowed, err := p.gate.Authorize(ctx, actor.UserID, op.permission())
	if err != nil {
		return p.fail(span, log, fmt.Errorf("%w: verificando permiso: %w", domain.ErrPersistence, err))
	}
	if !allowed {
		return p.fail(span, log, fmt.Errorf("%w: %s requiere %s", domain.ErrPermissionDenied, op.name(), op.permission()))
	}
	log.Debug().Str("state", StatePermissionChecked).Msg("permiso concedido")

	if err := validator.Struct(op.payload()); err != nil {
		return p.fail(span, log, err)
	}

	var u *unit
	for attempt := 1; ; attempt++ {
		u, err = p.runUnit(ctx, op, actor, log)
		if err == nil || attempt >= maxAttempts || ctx.Err() != nil || !errors.Is(err, domain.ErrConcurrencyConflict) {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("conflicto de concurrencia, reintentando")
	}
	if err != nil {
		return p.fail(span, log, err)
	}

	keys := u.keys()
	p.ledger.Invalidate(keys...)
	span.SetAttributes(
		attribute.String("resource.id", u.resourceID),
		attribute.Int("events.count", len(u.eventIDs)),
	)
	log.Info().Str("state", StateCompleted).Str("resource_id", u.resourceID).
		Ints64("event_ids", u.eventIDs).Msg("operación completada")

	detached := context.WithoutCancel(ctx)
	p.emitAudit(detached, op, actor, u, log)
	p.emitNotification(detached, op, actor, u, keys, log)

	return &OperationResult{
		Status:     StateCompleted,
		ResourceID: u.resourceID,
		EventIDs:   u.eventIDs,
	}, nil
}

// runUnit ejecuta reserva + registro + eventos en una sola transacción.
func (p *Pipeline) runUnit(ctx context.Context, op operation, actor entity.Actor, log zerolog.Logger) (*unit, error) {
	var u *unit
	err := p.txRunner.Run(ctx, func(tx TxRepos) error {
		u = &unit{
			tx:      tx,
			ledger:  p.ledger,
			actor:   actor,
			now:     p.now().UTC(),
			log:     log,
			tokens:  make(map[entity.StockKey]*ReservationToken),
			touched: make(map[entity.StockKey]struct{}),
			details: make(map[string]any),
		}
		reqs := op.reservations()
		for _, k := range sortedKeys(reqs) {
			tok, err := p.availability.Reserve(ctx, tx, k, reqs[k])
			if err != nil {
				return err
			}
			u.tokens[k] = tok
		}
		log.Debug().Str("state", StateReserved).Int("reservations", len(u.tokens)).Msg("stock reservado")

		if err := op.apply(ctx, u); err != nil {
			return err
		}
		for _, tok := range u.tokens {
			if r := tok.Remaining(); r != 0 {
				return fmt.Errorf("reserva %s de %s con %d unidades sin consumir", tok.ID, tok.Key, r)
			}
		}
		return ctx.Err()
	})
	if u != nil {
		u.release()
	}
	if err != nil {
		if u != nil {
			p.ledger.Invalidate(u.keys()...)
		}
		return nil, err
	}
	return u, nil
}

func (p *Pipeline) fail(span trace.Span, log zerolog.Logger, err error) (*OperationResult, error) {
	err = classify(err)
	code := CodeOf(err)
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, code)

	ev := log.Warn()
	if code == CodePersistence {
		ev = log.Error()
	}
	ev.Err(err).Str("state", StateFailed).Str("code", code).Msg("operación fallida")
	return &OperationResult{Status: StateFailed, Code: code, Err: err}, err
}

func (p *Pipeline) emitAudit(ctx context.Context, op operation, actor entity.Actor, u *unit, log zerolog.Logger) {
	if p.audit == nil {
		return
	}
	details := map[string]any{
		"operation": string(op.name()),
		"request":   op.payload(),
		"event_ids": u.eventIDs,
	}
	for k, v := range u.details {
		details[k] = v
	}
	raw, err := json.Marshal(details)
	if err != nil {
		log.Error().Err(err).Msg("serializando detalles de auditoría")
		raw = json.RawMessage(`{}`)
	}
	p.audit.Record(ctx, entity.AuditLogEntry{
		ActorUserID:  actor.UserID,
		ActorName:    actor.Name,
		Action:       op.auditAction(),
		ResourceType: op.resourceType(),
		ResourceID:   u.resourceID,
		Details:      raw,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		OccurredAt:   u.now,
	})
	log.Debug().Str("state", StateAuditEmitted).Msg("auditoría encolada")
}

func (p *Pipeline) emitNotification(ctx context.Context, op operation, actor entity.Actor, u *unit, keys []entity.StockKey, log zerolog.Logger) {
	if p.notifier == nil {
		return
	}
	n := entity.MovementNotification{
		Operation:  string(op.name()),
		ResourceID: u.resourceID,
		ActorID:    actor.UserID,
		ActorName:  actor.Name,
		EventIDs:   u.eventIDs,
		OccurredAt: u.now,
	}
	for _, k := range keys {
		n.Keys = append(n.Keys, k.String())
	}
	go func() {
		if err := p.notifier.Notify(ctx, n); err != nil {
			log.Warn().Err(err).Msg("notificación de movimiento fallida")
		}
	}()
}

// classify lleva cualquier error desconocido a ErrPersistence.
func classify(err error) error {
	for _, known := range []error{
		domain.ErrPermissionDenied,
		domain.ErrValidation,
		domain.ErrInsufficientStock,
		domain.ErrConcurrencyConflict,
		domain.ErrPersistence,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

// CodeOf código de OperationResult para un error del pipeline.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, domain.ErrValidation):
		return CodeValidation
	case errors.Is(err, domain.ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return CodeConcurrencyConflict
	default:
		return CodePersistence
	}
}

func sortedKeys(m map[entity.StockKey]int) []entity.StockKey {
	keys := make([]entity.StockKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// unit estado de una ejecución dentro de la transacción.
type unit struct {
	tx         TxRepos
	ledger     *Ledger
	actor      entity.Actor
	now        time.Time
	log        zerolog.Logger
	tokens     map[entity.StockKey]*ReservationToken
	touched    map[entity.StockKey]struct{}
	details    map[string]any
	resourceID string
	eventIDs   []int64
}

func (u *unit) recordPersisted(resourceID string) {
	u.resourceID = resourceID
	u.log.Debug().Str("state", StateDomainRecordPersisted).Str("resource_id", resourceID).Msg("registro persistido")
}

func (u *unit) appendEvent(ctx context.Context, ev *entity.StockEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = u.now
	}
	ev.CreatedBy = u.actor.UserID
	if err := u.ledger.Append(ctx, u.tx, ev, u.tokens[ev.Key()]); err != nil {
		return err
	}
	u.eventIDs = append(u.eventIDs, ev.ID)
	u.touched[ev.Key()] = struct{}{}
	return nil
}

// lockKeys bloquea claves sin reservar stock, en orden, para serializar lecturas de
// registros vinculados (devoluciones contra un despacho, recuperaciones contra un daño).
func (u *unit) lockKeys(ctx context.Context, keys ...entity.StockKey) error {
	set := make(map[entity.StockKey]int, len(keys))
	for _, k := range keys {
		set[k] = 0
	}
	for _, k := range sortedKeys(set) {
		if err := u.tx.Events.LockKey(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) eventsPersisted() {
	u.log.Debug().Str("state", StateLedgerEventPersisted).Int("events", len(u.eventIDs)).Msg("eventos de ledger persistidos")
}

func (u *unit) keys() []entity.StockKey {
	keys := make([]entity.StockKey, 0, len(u.touched)+len(u.tokens))
	seen := make(map[entity.StockKey]struct{}, len(u.touched)+len(u.tokens))
	for k := range u.touched {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range u.tokens {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (u *unit) release() {
	for _, tok := range u.tokens {
		tok.Release()
	}
}
