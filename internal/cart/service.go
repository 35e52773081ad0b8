// Package cart keeps the shopper's cart in local storage and, while the
// shopper is logged in, mirrors every change to the shop backend.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const tracerName = "github.com/utafrali/storefront/internal/cart"

// Operation names used in metrics and spans.
const (
	OpAdd            = "add"
	OpRemove         = "remove"
	OpUpdateQuantity = "update_quantity"
)

// MergePolicy decides what happens to logged-out edits when the shopper logs in.
type MergePolicy string

const (
	// MergeServerWins replaces the local cart with the server cart.
	MergeServerWins MergePolicy = "server-wins"
	// MergeLocal pushes local lines the server lacks, or holds fewer of,
	// before fetching.
	MergeLocal MergePolicy = "merge-local"
)

// API is the part of the shop backend the cart needs.
type API interface {
	GetCart(ctx context.Context) (domain.Cart, error)
	UpdateCart(ctx context.Context, delta domain.CartDelta) error
}

// AuthState reports whether backend calls should be made.
type AuthState interface {
	LoggedIn() bool
}

// Options tune failure and login behavior.
type Options struct {
	MergePolicy MergePolicy
	// RollbackOnFailure restores the pre-mutation line when a push fails.
	// When false the optimistic line stays and is marked failed.
	RollbackOnFailure bool
}

// DefaultOptions returns server-wins merging and keeps failed lines in
// place.
func DefaultOptions() Options {
	return Options{MergePolicy: MergeServerWins}
}

// Service implements the cart mutators and the synchronizer.
type Service struct {
	store  *Store
	api    API
	auth   AuthState
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	syncMu sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewService wires the cart to the backend and the session.
func NewService(store *Store, api API, auth AuthState, opts Options, logger *slog.Logger) *Service {
	if opts.MergePolicy == "" {
		opts.MergePolicy = MergeServerWins
	}
	return &Service{
		store:    store,
		api:      api,
		auth:     auth,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		inflight: make(map[string]struct{}),
	}
}

// Store returns the underlying local store.
func (s *Service) Store() *Store {
	return s.store
}

// Snapshot returns the current cart.
func (s *Service) Snapshot() domain.Cart {
	return s.store.Snapshot()
}

// HandleSessionChange is registered as a session listener. Logging in
// triggers a sync under the configured merge policy; logging out keeps the
// local cart as it is.
func (s *Service) HandleSessionChange(ctx context.Context, loggedIn bool) {
	if !loggedIn {
		return
	}
	if s.opts.MergePolicy == MergeLocal {
		s.pushLocalLines(ctx)
	}
	if _, err := s.Sync(ctx); err != nil {
		s.logger.ErrorContext(ctx, "cart sync after login failed", slog.String("error", err.Error()))
	}
}

// Sync fetches the server cart and replaces local state with it. On failure
// local state is left untouched. Lines whose push is still in flight keep
// their local version.
func (s *Service) Sync(ctx context.Context) (domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Sync")
	defer span.End()

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	start := time.Now()
	server, err := s.api.GetCart(ctx)
	if err != nil {
		syncDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "failed to fetch cart", slog.String("error", err.Error()))
		s.store.Publish(Event{Kind: EventSyncFailed, Err: err})
		return s.store.Snapshot(), fmt.Errorf("fetch cart: %w", err)
	}
	syncDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	_, after, err := s.store.Mutate(ctx, EventSynced, "", func(local domain.Cart) (domain.Cart, error) {
		return s.overlayInflight(server.WithStatus(domain.StatusCommitted), local), nil
	})
	if err != nil {
		span.RecordError(err)
		return s.store.Snapshot(), err
	}
	span.SetAttributes(attribute.Int("cart.lines", len(after.Items)))
	return after, nil
}

// AddToCart adds one unit of productID. A new line is priced at price; an
// existing line keeps its price unless that price is zero.
func (s *Service) AddToCart(ctx context.Context, productID string, price float64) (domain.Cart, error) {
	if productID == "" {
		mutationsTotal.WithLabelValues(OpAdd, outcomeInvalid).Inc()
		return s.store.Snapshot(), apperrors.InvalidInput("product id is required")
	}
	if price < 0 {
		mutationsTotal.WithLabelValues(OpAdd, outcomeInvalid).Inc()
		return s.store.Snapshot(), apperrors.InvalidInput("price must not be negative")
	}

	return s.apply(ctx, OpAdd, "cart.Add", productID, func(c domain.Cart) (domain.Cart, *domain.CartDelta, error) {
		out, line := c.Add(productID, price)
		d := domain.AddDelta(line)
		return out, &d, nil
	})
}

// RemoveFromCart drops productID. Removing a product that is not in the
// cart leaves the cart unchanged but is still reported to the backend.
func (s *Service) RemoveFromCart(ctx context.Context, productID string) (domain.Cart, error) {
	if productID == "" {
		mutationsTotal.WithLabelValues(OpRemove, outcomeInvalid).Inc()
		return s.store.Snapshot(), apperrors.InvalidInput("product id is required")
	}

	return s.apply(ctx, OpRemove, "cart.Remove", productID, func(c domain.Cart) (domain.Cart, *domain.CartDelta, error) {
		out, _ := c.Remove(productID)
		d := domain.RemoveDelta(productID)
		return out, &d, nil
	})
}

// UpdateQuantity overwrites the quantity of productID. Zero or less removes
// the line. A product missing from the local cart is left out locally but
// still pushed, and the following sync brings the server line in.
func (s *Service) UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, productID)
	}
	if productID == "" {
		mutationsTotal.WithLabelValues(OpUpdateQuantity, outcomeInvalid).Inc()
		return s.store.Snapshot(), apperrors.InvalidInput("product id is required")
	}

	return s.apply(ctx, OpUpdateQuantity, "cart.UpdateQuantity", productID, func(c domain.Cart) (domain.Cart, *domain.CartDelta, error) {
		out, _, _ := c.SetQuantity(productID, quantity)
		d := domain.QuantityDelta(productID, quantity)
		return out, &d, nil
	})
}

type mutation func(domain.Cart) (domain.Cart, *domain.CartDelta, error)

// apply runs the shared mutator flow: local write first, then, when logged
// in, push the single-line delta and re-sync.
func (s *Service) apply(ctx context.Context, op, spanName, productID string, mutate mutation) (domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("cart.product_id", productID),
	))
	defer span.End()

	if !s.acquire(productID) {
		mutationsTotal.WithLabelValues(op, outcomeConflict).Inc()
		return s.store.Snapshot(), apperrors.Conflict(fmt.Sprintf("a change to product %s is already in progress", productID))
	}
	held := true
	defer func() {
		if held {
			s.release(productID)
		}
	}()

	online := s.auth.LoggedIn()
	var delta *domain.CartDelta
	before, after, err := s.store.Mutate(ctx, EventChanged, productID, func(c domain.Cart) (domain.Cart, error) {
		out, d, err := mutate(c)
		if err != nil {
			return c, err
		}
		delta = d
		if online {
			if i := out.Find(productID); i >= 0 {
				out.Items[i].Status = domain.StatusPending
			}
		}
		return out, nil
	})
	if err != nil {
		outcome := outcomeFailed
		if errors.Is(err, apperrors.ErrInvalidInput) {
			outcome = outcomeInvalid
		}
		mutationsTotal.WithLabelValues(op, outcome).Inc()
		span.RecordError(err)
		return s.store.Snapshot(), err
	}

	if !online || delta == nil {
		mutationsTotal.WithLabelValues(op, outcomeLocal).Inc()
		return after, nil
	}

	if err := s.api.UpdateCart(ctx, *delta); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.handlePushFailure(ctx, op, productID, before, err)
	}

	s.release(productID)
	held = false

	synced, err := s.Sync(ctx)
	if err != nil {
		// The backend accepted the change; only the refresh failed.
		s.markCommitted(ctx, productID)
		s.logger.WarnContext(ctx, "cart change saved but refresh failed",
			slog.String("op", op),
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		mutationsTotal.WithLabelValues(op, outcomeSynced).Inc()
		return s.store.Snapshot(), nil
	}
	mutationsTotal.WithLabelValues(op, outcomeSynced).Inc()
	return synced, nil
}

func (s *Service) handlePushFailure(ctx context.Context, op, productID string, before domain.Cart, pushErr error) (domain.Cart, error) {
	// The local compensation must land even if the caller gave up.
	ctx = context.WithoutCancel(ctx)
	s.logger.ErrorContext(ctx, "failed to push cart change",
		slog.String("op", op),
		slog.String("product_id", productID),
		slog.String("error", pushErr.Error()),
	)

	if s.opts.RollbackOnFailure {
		_, restored, err := s.store.Mutate(ctx, EventRolledBack, productID, func(c domain.Cart) (domain.Cart, error) {
			return restoreLine(c, before, productID), nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to roll back cart change", slog.String("error", err.Error()))
		}
		mutationsTotal.WithLabelValues(op, outcomeRolledBack).Inc()
		s.store.Publish(Event{Kind: EventPushFailed, ProductID: productID, Err: pushErr})
		return restored, fmt.Errorf("update cart: %w", pushErr)
	}

	_, marked, err := s.store.Mutate(ctx, EventChanged, productID, func(c domain.Cart) (domain.Cart, error) {
		if i := c.Find(productID); i >= 0 {
			c.Items[i].Status = domain.StatusFailed
		}
		return c, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark cart line", slog.String("error", err.Error()))
	}
	mutationsTotal.WithLabelValues(op, outcomeFailed).Inc()
	s.store.Publish(Event{Kind: EventPushFailed, ProductID: productID, Err: pushErr})
	return marked, fmt.Errorf("update cart: %w", pushErr)
}

func (s *Service) markCommitted(ctx context.Context, productID string) {
	_, _, err := s.store.Mutate(ctx, EventChanged, productID, func(c domain.Cart) (domain.Cart, error) {
		if i := c.Find(productID); i >= 0 && c.Items[i].Status == domain.StatusPending {
			c.Items[i].Status = domain.StatusCommitted
		}
		return c, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark cart line", slog.String("error", err.Error()))
	}
}

// pushLocalLines sends every local line the server lacks, or holds fewer
// units of, so that logging in does not discard logged-out edits.
func (s *Service) pushLocalLines(ctx context.Context) {
	local := s.store.Snapshot()
	if len(local.Items) == 0 {
		return
	}
	server, err := s.api.GetCart(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch cart for merge", slog.String("error", err.Error()))
		return
	}

	var pushErrs []error
	for _, line := range local.Items {
		remote, ok := server.Get(line.ProductID)
		var delta domain.CartDelta
		switch {
		case !ok:
			delta = domain.AddDelta(line)
		case line.Quantity > remote.Quantity:
			delta = domain.QuantityDelta(line.ProductID, line.Quantity)
		default:
			continue
		}
		if err := s.api.UpdateCart(ctx, delta); err != nil {
			pushErrs = append(pushErrs, fmt.Errorf("%s: %w", line.ProductID, err))
		}
	}
	if err := errors.Join(pushErrs...); err != nil {
		s.logger.ErrorContext(ctx, "some local cart lines were not merged", slog.String("error", err.Error()))
	}
}

// overlayInflight keeps the local version of lines whose push has not
// finished, so a sync triggered by one mutation does not undo another.
func (s *Service) overlayInflight(server, local domain.Cart) domain.Cart {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if len(s.inflight) == 0 {
		return server
	}
	out := server
	for id := range s.inflight {
		out = restoreLine(out, local, id)
	}
	return out
}

// restoreLine makes productID in c look the way it does in ref: same
// quantity, price and status, at the same index when possible, or absent.
func restoreLine(c, ref domain.Cart, productID string) domain.Cart {
	line, inRef := ref.Get(productID)
	out, _ := c.Remove(productID)
	if !inRef {
		return out
	}
	idx := ref.Find(productID)
	if idx > len(out.Items) {
		idx = len(out.Items)
	}
	out.Items = append(out.Items, domain.LineItem{})
	copy(out.Items[idx+1:], out.Items[idx:])
	out.Items[idx] = line
	return out
}

func (s *Service) acquire(productID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[productID]; busy {
		return false
	}
	s.inflight[productID] = struct{}{}
	return true
}

func (s *Service) release(productID string) {
	s.inflightMu.Lock()
	delete(s.inflight, productID)
	s.inflightMu.Unlock()
}
