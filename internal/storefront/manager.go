package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/cart"
	"github.com/hrk/storefront-api/internal/catalog"
	"github.com/hrk/storefront-api/internal/checkout"
	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/lock"
	"github.com/hrk/storefront-api/internal/obs"
	"github.com/hrk/storefront-api/internal/view"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = common.NewAppError("SESSION_NOT_FOUND", "storefront session not found", http.StatusNotFound, nil)

// ErrSessionBusy is returned when another request holds the session for too long.
var ErrSessionBusy = common.NewAppError("SESSION_BUSY", "storefront session is busy, retry shortly", http.StatusConflict, nil)

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ManagerConfig groups Manager dependencies.
type ManagerConfig struct {
	Storage   cart.Storage
	Locker    Locker
	LockTTL   time.Duration
	Validator *checkout.Validator
	Logger    zerolog.Logger
	NewID     func() string
	Now       func() time.Time
}

// Manager opens, loads and persists sessions. Work on one session is
// serialised by an in-process mutex and, when configured, a distributed lock.
type Manager struct {
	storage   cart.Storage
	locker    Locker
	lockTTL   time.Duration
	validator *checkout.Validator
	logger    zerolog.Logger
	newID     func() string
	now       func() time.Time
	local     keyedMutex
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storefront: storage is required")
	}
	if cfg.Validator == nil {
		return nil, errors.New("storefront: validator is required")
	}
	m := &Manager{
		storage:   cfg.Storage,
		locker:    cfg.Locker,
		lockTTL:   cfg.LockTTL,
		validator: cfg.Validator,
		logger:    cfg.Logger,
		newID:     cfg.NewID,
		now:       cfg.Now,
	}
	if m.lockTTL <= 0 {
		m.lockTTL = 5 * time.Second
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Create opens a new session on the catalog view.
func (m *Manager) Create(ctx context.Context) (Snapshot, error) {
	id := m.newID()
	st := state{View: view.ViewCatalog, Category: catalog.CategoryAll, CreatedAt: m.now().UTC()}
	sess, err := newSession(ctx, id, st, m.storage, m.validator, m.logger)
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.save(ctx, sess); err != nil {
		return Snapshot{}, err
	}
	obs.ObserveSessionCreated()
	m.logger.Debug().Str("session_id", id).Msg("storefront session created")
	return sess.Snapshot(), nil
}

// Get loads a session read-only.
func (m *Manager) Get(ctx context.Context, id string) (Snapshot, error) {
	sess, err := m.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Do runs fn against the session while holding its locks and persists the
// session state afterwards. Cart mutations persist themselves as they happen.
func (m *Manager) Do(ctx context.Context, id string, fn func(context.Context, *Session) error) (Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Snapshot{}, ErrSessionNotFound
	}
	start := time.Now()
	unlock := m.local.Lock(id)
	defer unlock()

	var snap Snapshot
	run := func(ctx context.Context) error {
		obs.ObserveSessionLockWait(obs.DurationMillis(time.Since(start)))
		sess, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, sess); err != nil {
			return err
		}
		if err := m.save(ctx, sess); err != nil {
			return err
		}
		snap = sess.Snapshot()
		return nil
	}
	if m.locker == nil {
		return snap, run(ctx)
	}
	if err := m.locker.WithLock(ctx, lockKey(id), m.lockTTL, run); err != nil {
		if errors.Is(err, lock.ErrWaitTimeout) || errors.Is(err, lock.ErrLeaseLost) {
			return Snapshot{}, ErrSessionBusy
		}
		return Snapshot{}, err
	}
	return snap, nil
}

func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionNotFound
	}
	data, err := m.storage.Get(ctx, stateKey(id))
	if err != nil {
		if errors.Is(err, cart.ErrStorageMiss) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session state: %w", err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("discarding malformed session state")
		st = state{View: view.ViewCatalog, Category: catalog.CategoryAll}
	}
	return newSession(ctx, id, st, m.storage, m.validator, m.logger)
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := m.storage.Set(ctx, stateKey(s.ID), data); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func stateKey(id string) string { return id + ":state" }
func cartKey(id string) string { return id + ":" + cart.StorageKey }
func lockKey(id string) string { return "storefront:lock:" + id }

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*refMutex{}
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &refMutex{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
