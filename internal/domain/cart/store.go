package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CommitHook is invoked with the new contents after every committed mutation.
// It runs while the store is locked, so hooks observe mutations in order.
type CommitHook func(ctx context.Context, s Snapshot) error

// LoadFunc returns the persisted contents a store refreshes from.
type LoadFunc func(ctx context.Context) ([]Item, error)

// Listener receives the new contents after every committed mutation.
// Listeners are notified one mutation at a time, in commit order. A listener
// may read the store but must not mutate it.
type Listener func(s Snapshot)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to generate line item identifiers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCommitHook registers the post-commit hook, typically persistence.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.commit = h }
}

// WithLoader makes the store refresh its contents from load before every
// mutation and on Refresh, so writes made elsewhere to the same persisted
// cart are not overwritten.
func WithLoader(load LoadFunc) Option {
	return func(s *Store) { s.load = load }
}

// WithItems seeds the store with previously persisted items.
func WithItems(items []Item) Option {
	return func(s *Store) { s.items = slices.Clone(items) }
}

// Store is the authoritative record of what one customer intends to buy.
//
// Store operations never fail on their own. The only errors they can return
// come from the loader, in which case nothing changes, or from the commit
// hook, in which case the in-memory mutation is kept.
type Store struct {
	// pubMu serializes mutate calls so listeners see commits in order.
	pubMu sync.Mutex

	mu     sync.Mutex
	items  []Item
	now    func() time.Time
	commit CommitHook
	load   LoadFunc

	subMu   sync.Mutex
	subs    map[int]Listener
	nextSub int
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:  time.Now,
		subs: make(map[int]Listener),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Items: slices.Clone(s.items)}
}

// Refresh replaces the contents with the persisted copy. It is a no-op
// without a loader.
func (s *Store) Refresh(ctx context.Context) error {
	if s.load == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Store) refreshLocked(ctx context.Context) error {
	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.items = slices.Clone(items)
	return nil
}

// TotalPrice returns the sum of unit price times quantity.
func (s *Store) TotalPrice() decimal.Decimal {
	return s.Snapshot().TotalPrice()
}

// TotalItems returns the sum of all quantities.
func (s *Store) TotalItems() int {
	return s.Snapshot().TotalItems()
}

// AddItem adds one unit of the candidate meal. If the meal is already in the
// cart its quantity is incremented and the display fields stay as they were
// on the first add.
func (s *Store) AddItem(ctx context.Context, c Candidate) error {
	return s.mutate(ctx, func(items []Item) []Item {
		if i := indexByMeal(items, c.MealID); i >= 0 {
			items[i].Quantity++
			return items
		}
		return append(items, Item{
			ID:           fmt.Sprintf("%s-%d", c.MealID, s.now().UnixMilli()),
			MealID:       c.MealID,
			Title:        c.Title,
			UnitPrice:    c.UnitPrice,
			Quantity:     1,
			ImageRef:     c.ImageRef,
			ProviderID:   c.ProviderID,
			ProviderName: c.ProviderName,
		})
	})
}

// RemoveItem deletes the line item with the given id. Unknown ids are ignored.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	return s.mutate(ctx, func(items []Item) []Item {
		return slices.DeleteFunc(items, func(it Item) bool { return it.ID == itemID })
	})
}

// UpdateQuantity sets the quantity of a line item. A quantity of zero or less
// removes the item.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	return s.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

// ClearCart removes every line item.
func (s *Store) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, func([]Item) []Item { return nil })
}

// Subscribe registers l for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = l

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) mutate(ctx context.Context, f func([]Item) []Item) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	snap, committed, err := s.apply(ctx, f)
	if committed {
		s.notify(snap)
	}
	return err
}

// apply runs f and the commit hook under the store lock. committed is false
// when the refresh failed and f never ran.
func (s *Store) apply(ctx context.Context, f func([]Item) []Item) (snap Snapshot, committed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.load != nil {
		if err := s.refreshLocked(ctx); err != nil {
			return Snapshot{}, false, err
		}
	}
	s.items = f(slices.Clone(s.items))
	snap = Snapshot{Items: slices.Clone(s.items)}

	if s.commit != nil {
		err = s.commit(ctx, snap)
	}
	return snap, true, err
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, l := range s.subs {
		listeners = append(listeners, l)
	}
	s.subMu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func indexByMeal(items []Item, mealID string) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.MealID == mealID })
}
