package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store almacenamiento en memoria con la misma semántica transaccional que el
// backend PostgreSQL: escrituras en buffer hasta el commit, locks por
// (barcode, bodega) retenidos hasta commit o rollback y verificación de saldo
// no negativo al confirmar.
type Store struct {
	mu sync.RWMutex

	nextEventID atomic.Int64
	events      []entity.StockEvent

	dispatches map[string]entity.Dispatch
	returns    map[string]entity.Return
	damages    map[string]entity.Damage
	recoveries map[string]entity.Recovery
	transfers  map[string]entity.SelfTransfer
	openings   map[string]entity.OpeningStock

	products   map[string]entity.Product
	warehouses map[string]entity.Warehouse

	users       map[string]entity.User
	roles       map[string]entity.Role
	permissions map[string]entity.Permission
	rolePerms   map[string][]string

	audit []entity.AuditLogEntry

	locks       *keyedMutex
	lockTimeout time.Duration
}

// Option configura el Store.
type Option func(*Store)

// WithLockTimeout tiempo máximo de espera por el lock de una clave. Al vencer
// se devuelve domain.ErrConcurrencyConflict (equivalente a lock_timeout en PostgreSQL).
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// NewStore crea un store vacío.
func NewStore(opts ...Option) *Store {
	s := &Store{
		dispatches:  make(map[string]entity.Dispatch),
		returns:     make(map[string]entity.Return),
		damages:     make(map[string]entity.Damage),
		recoveries:  make(map[string]entity.Recovery),
		transfers:   make(map[string]entity.SelfTransfer),
		openings:    make(map[string]entity.OpeningStock),
		products:    make(map[string]entity.Product),
		warehouses:  make(map[string]entity.Warehouse),
		users:       make(map[string]entity.User),
		roles:       make(map[string]entity.Role),
		permissions: make(map[string]entity.Permission),
		rolePerms:   make(map[string][]string),
		locks:       newKeyedMutex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// txState escrituras pendientes y locks de una transacción.
type txState struct {
	events []entity.StockEvent
	writes []pendingWrite
	held   map[entity.StockKey]struct{}
}

// pendingWrite escritura diferida: todas las verificaciones corren antes de aplicar
// cualquier cambio, así un commit fallido no deja nada a medias.
type pendingWrite struct {
	check func() error
	apply func()
}

// Run ejecuta fn con repositorios atados a una transacción en memoria.
func (s *Store) Run(ctx context.Context, fn func(tx inventory.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &txState{held: make(map[entity.StockKey]struct{})}
	defer s.releaseLocks(tx)

	if err := fn(s.repos(tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) repos(tx *txState) inventory.TxRepos {
	return inventory.TxRepos{
		Events:     &eventRepo{s: s, tx: tx},
		Dispatches: &dispatchRepo{s: s, tx: tx},
		Returns:    &returnRepo{s: s, tx: tx},
		Damages:    &damageRepo{s: s, tx: tx},
		Recoveries: &recoveryRepo{s: s, tx: tx},
		Transfers:  &transferRepo{s: s, tx: tx},
		Openings:   &openingRepo{s: s, tx: tx},
		Products:   &productRepo{s: s, tx: tx},
		Warehouses: &warehouseRepo{s: s, tx: tx},
	}
}

// commit verifica que ningún saldo quede negativo y aplica todo bajo un único lock.
func (s *Store) commit(tx *txState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := make(map[entity.StockKey]int)
	for _, ev := range tx.events {
		delta[ev.Key()] += ev.Signed()
	}
	for key, d := range delta {
		if d >= 0 {
			continue
		}
		if bal := s.balanceLocked(key); bal+d < 0 {
			return fmt.Errorf("%w: %s quedaría en %d", domain.ErrConcurrencyConflict, key, bal+d)
		}
	}
	for _, w := range tx.writes {
		if w.check == nil {
			continue
		}
		if err := w.check(); err != nil {
			return err
		}
	}
	for _, w := range tx.writes {
		w.apply()
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) balanceLocked(key entity.StockKey) int {
	total := 0
	for _, ev := range s.events {
		if ev.Key() == key {
			total += ev.Signed()
		}
	}
	return total
}

func (s *Store) releaseLocks(tx *txState) {
	for key := range tx.held {
		s.locks.unlock(key)
	}
}

// write aplica la escritura de inmediato fuera de tx o la encola dentro de tx.
// check (opcional) corre con s.mu tomado, también al confirmar.
func (s *Store) write(tx *txState, check func() error, apply func()) error {
	if tx == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if check != nil {
			if err := check(); err != nil {
				return err
			}
		}
		apply()
		return nil
	}
	tx.writes = append(tx.writes, pendingWrite{check: check, apply: apply})
	return nil
}

func (s *Store) lockKey(ctx context.Context, tx *txState, key entity.StockKey) error {
	if tx == nil {
		return nil
	}
	if _, ok := tx.held[key]; ok {
		return nil
	}
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	if err := s.locks.lock(lockCtx, key); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: timeout esperando lock de %s", domain.ErrConcurrencyConflict, key)
		}
		return err
	}
	tx.held[key] = struct{}{}
	return nil
}

// keyedMutex exclusión mutua por clave con espera cancelable por contexto.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[entity.StockKey]chan struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[entity.StockKey]chan struct{})}
}

func (k *keyedMutex) lock(ctx context.Context, key entity.StockKey) error {
	for {
		k.mu.Lock()
		ch, held := k.locks[key]
		if !held {
			k.locks[key] = make(chan struct{})
			k.mu.Unlock()
			return nil
		}
		k.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (k *keyedMutex) unlock(key entity.StockKey) {
	k.mu.Lock()
	ch, ok := k.locks[key]
	delete(k.locks, key)
	k.mu.Unlock()
	if ok {
		close(ch)
	}
}
