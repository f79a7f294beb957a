package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/audit"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

// flakyRepo falla las primeras failFirst escrituras.
type flakyRepo struct {
	failFirst int32
	calls     atomic.Int32
	block     chan struct{}

	mu     sync.Mutex
	stored []entity.AuditLogEntry
}

func (r *flakyRepo) Create(ctx context.Context, e *entity.AuditLogEntry) error {
	if r.block != nil {
		<-r.block
	}
	if n := r.calls.Add(1); n <= r.failFirst {
		return errors.New("timeout escribiendo audit_logs")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, *e)
	return nil
}

func (r *flakyRepo) List(context.Context, entity.AuditFilter) ([]entity.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.AuditLogEntry(nil), r.stored...), nil
}

func closeRecorder(t *testing.T, r *audit.Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
}

func TestRecorder_CompletaCamposYEscribe(t *testing.T) {
	store := memory.NewStore()
	rec := audit.NewRecorder(store.AuditLogs(), audit.Config{}, nil)

	rec.Record(context.Background(), entity.AuditLogEntry{
		ActorUserID: "u1", ActorName: "Ana", Action: entity.AuditCreate,
		ResourceType: "dispatch", ResourceID: "d1", Details: json.RawMessage(`no-json`),
	})
	closeRecorder(t, rec)

	entries, err := store.AuditLogs().List(context.Background(), entity.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].OccurredAt.IsZero())
	assert.JSONEq(t, `{}`, string(entries[0].Details), "details inválidos se reemplazan por {}")
	assert.Equal(t, int64(0), rec.Failures())
}

func TestRecorder_ReintentaHastaEscribir(t *testing.T) {
	repo := &flakyRepo{failFirst: 2}
	rec := audit.NewRecorder(repo, audit.Config{MaxRetries: 3, BaseBackoff: time.Millisecond}, nil)

	rec.Record(context.Background(), entity.AuditLogEntry{Action: entity.AuditUpdate})
	closeRecorder(t, rec)

	stored, _ := repo.List(context.Background(), entity.AuditFilter{})
	assert.Len(t, stored, 1)
	assert.Equal(t, int32(3), repo.calls.Load())
	assert.Equal(t, int64(0), rec.Failures())
}

func TestRecorder_ReintentosAgotadosCuentaFalla(t *testing.T) {
	repo := &flakyRepo{failFirst: 100}
	rec := audit.NewRecorder(repo, audit.Config{MaxRetries: 2, BaseBackoff: time.Millisecond}, nil)

	rec.Record(context.Background(), entity.AuditLogEntry{Action: entity.AuditCreate})
	rec.Record(context.Background(), entity.AuditLogEntry{Action: entity.AuditCreate})
	closeRecorder(t, rec)

	assert.Equal(t, int64(2), rec.Failures())
	assert.Equal(t, int32(6), repo.calls.Load(), "tres intentos por entrada")
}

func TestRecorder_ColaLlenaNoBloquea(t *testing.T) {
	repo := &flakyRepo{block: make(chan struct{})}
	rec := audit.NewRecorder(repo, audit.Config{QueueSize: 1}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			rec.Record(context.Background(), entity.AuditLogEntry{Action: entity.AuditView})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record bloqueó con la cola llena")
	}
	close(repo.block)
	closeRecorder(t, rec)

	stored, _ := repo.List(context.Background(), entity.AuditFilter{})
	assert.Equal(t, int64(10), int64(len(stored))+rec.Failures(), "toda entrada se escribe o se cuenta como falla")
	assert.Positive(t, rec.Failures())
}

func TestRecorder_DespuesDeCerrar(t *testing.T) {
	repo := &flakyRepo{}
	rec := audit.NewRecorder(repo, audit.Config{}, nil)
	closeRecorder(t, rec)
	closeRecorder(t, rec)

	rec.Record(context.Background(), entity.AuditLogEntry{Action: entity.AuditLogout})
	assert.Equal(t, int64(1), rec.Failures())
	assert.Equal(t, int32(0), repo.calls.Load())
}

func TestRecorder_ContextoCanceladoNoPierdeLaEntrada(t *testing.T) {
	store := memory.NewStore()
	rec := audit.NewRecorder(store.AuditLogs(), audit.Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, entity.AuditLogEntry{Action: entity.AuditCreate})
	closeRecorder(t, rec)

	entries, err := store.AuditLogs().List(context.Background(), entity.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "la escritura usa su propio contexto")
}
