package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// EventKind names what happened to the cart.
type EventKind string

const (
	EventChanged    EventKind = "changed"
	EventSynced     EventKind = "synced"
	EventSyncFailed EventKind = "sync_failed"
	EventPushFailed EventKind = "push_failed"
	EventRolledBack EventKind = "rolled_back"
)

// Event is delivered to subscribers after every state change and after
// every failed network step.
type Event struct {
	Kind      EventKind   `json:"kind"`
	Cart      domain.Cart `json:"cart"`
	ProductID string      `json:"productid,omitempty"`
	Err       error       `json:"-"`
	Message   string      `json:"error,omitempty"`
}

// Store holds the shopper's cart in memory and mirrors every change to
// storage before anything else sees it. It is safe for concurrent use.
// Subscribers run synchronously, in order, and may call Snapshot but must not
// mutate the store or subscribe from inside a callback.
type Store struct {
	storage storage.Store
	logger  *slog.Logger

	mu   sync.RWMutex
	cart domain.Cart

	pubMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// NewStore loads the persisted cart. A missing or unreadable snapshot yields
// an empty cart. Lines persisted as pending never got an answer and are
// loaded as failed.
func NewStore(ctx context.Context, st storage.Store, logger *slog.Logger) *Store {
	s := &Store{
		storage: st,
		logger:  logger,
		subs:    make(map[int]func(Event)),
	}

	raw, err := st.Get(ctx, storage.KeyCart)
	switch {
	case apperrors.IsNotFound(err):
	case err != nil:
		logger.WarnContext(ctx, "failed to load cart, starting empty", slog.String("error", err.Error()))
	default:
		var items []domain.LineItem
		if err := json.Unmarshal(raw, &items); err != nil {
			logger.WarnContext(ctx, "corrupt cart snapshot, starting empty", slog.String("error", err.Error()))
			break
		}
		c := domain.NewCart(items)
		for i := range c.Items {
			if c.Items[i].Status == domain.StatusPending {
				c.Items[i].Status = domain.StatusFailed
			}
		}
		s.cart = c
	}
	return s
}

// Snapshot returns a deep copy of the current cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Subscribe registers fn for every subsequent event.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.pubMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.pubMu.Unlock()

	return func() {
		s.pubMu.Lock()
		delete(s.subs, id)
		s.pubMu.Unlock()
	}
}

// Mutate applies fn to the current cart, persists the result and only then
// makes it visible. If fn fails or the write fails, nothing changes.
func (s *Store) Mutate(ctx context.Context, kind EventKind, productID string, fn func(domain.Cart) (domain.Cart, error)) (before, after domain.Cart, err error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	before = s.cart.Clone()
	after, err = fn(s.cart.Clone())
	if err == nil {
		err = s.persist(ctx, after)
	}
	if err != nil {
		s.mu.Unlock()
		return before, before, err
	}
	s.cart = after
	s.mu.Unlock()

	s.deliver(Event{Kind: kind, Cart: after.Clone(), ProductID: productID})
	return before, after.Clone(), nil
}

// Replace swaps in c wholesale.
func (s *Store) Replace(ctx context.Context, kind EventKind, c domain.Cart) error {
	_, _, err := s.Mutate(ctx, kind, "", func(domain.Cart) (domain.Cart, error) {
		return c.Clone(), nil
	})
	return err
}

// Publish sends an event that carries no state change, e.g. a failed sync.
func (s *Store) Publish(e Event) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	e.Cart = s.Snapshot()
	s.deliver(e)
}

func (s *Store) deliver(e Event) {
	if e.Err != nil && e.Message == "" {
		e.Message = e.Err.Error()
	}
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			fn(e)
		}
	}
}

func (s *Store) persist(ctx context.Context, c domain.Cart) error {
	items := c.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.storage.Set(ctx, storage.KeyCart, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist cart", slog.String("error", err.Error()))
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}
