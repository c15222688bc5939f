package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager owns one live Store per customer and wires each store's commit
// hook to the Repository.
type Manager struct {
	repo   Repository
	shared bool
	now    func() time.Time
	sfg    singleflight.Group

	mu     sync.Mutex
	stores map[string]*managedStore
}

type managedStore struct {
	store    *Store
	lastUsed time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// Shared declares that other processes write to the same repository. Live
// stores then re-read the persisted cart on every Get and before every
// mutation instead of trusting their in-memory copy.
func Shared() ManagerOption {
	return func(m *Manager) { m.shared = true }
}

// NewManager creates a Manager backed by repo.
func NewManager(repo Repository, opts ...ManagerOption) *Manager {
	m := &Manager{
		repo:   repo,
		now:    time.Now,
		stores: make(map[string]*managedStore),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the cart of userID, loading the persisted contents on first
// use. Concurrent first loads for the same user share one repository call.
func (m *Manager) Get(ctx context.Context, userID string) (*Store, error) {
	if s, ok := m.lookup(userID); ok {
		if err := s.Refresh(ctx); err != nil {
			return nil, errors.Wrap(err, "refresh cart")
		}
		return s, nil
	}

	v, err, _ := m.sfg.Do(userID, func() (any, error) {
		if s, ok := m.lookup(userID); ok {
			return s, nil
		}

		key := Key(userID)
		items, err := m.loader(key)(ctx)
		if err != nil {
			return nil, err
		}

		opts := []Option{WithItems(items), WithCommitHook(m.persist(key))}
		if m.shared {
			opts = append(opts, WithLoader(m.loader(key)))
		}
		s := NewStore(opts...)

		m.mu.Lock()
		m.stores[userID] = &managedStore{store: s, lastUsed: m.now()}
		m.mu.Unlock()

		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

func (m *Manager) lookup(userID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.stores[userID]
	if !ok {
		return nil, false
	}
	ms.lastUsed = m.now()
	return ms.store, true
}

func (m *Manager) loader(key string) LoadFunc {
	return func(ctx context.Context) ([]Item, error) {
		items, err := m.repo.Load(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load cart %s", key)
		}
		return items, nil
	}
}

func (m *Manager) persist(key string) CommitHook {
	return func(ctx context.Context, s Snapshot) error {
		if s.IsEmpty() {
			if err := m.repo.Delete(ctx, key); err != nil {
				return errors.Wrapf(err, "delete cart %s", key)
			}
			return nil
		}
		if err := m.repo.Save(ctx, key, s.Items); err != nil {
			return errors.Wrapf(err, "save cart %s", key)
		}
		return nil
	}
}

// Evict drops in-memory stores unused for longer than idle. Persisted
// contents are untouched and reloaded on the next Get.
func (m *Manager) Evict(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for userID, ms := range m.stores {
		if now.Sub(ms.lastUsed) >= idle {
			delete(m.stores, userID)
			evicted++
		}
	}
	return evicted
}

// StartJanitor evicts idle stores every idle interval until ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, idle time.Duration) {
	lg := zctx.From(ctx)
	go func() {
		ticker := time.NewTicker(idle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Evict(idle); n > 0 {
					lg.Debug("Evicted idle carts", zap.Int("count", n))
				}
			}
		}
	}()
}
