// Package cart holds the ordered list of line items of one shopper and
// notifies observers after every change.
package cart

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
)

// Observer receives a private copy of the cart contents.
type Observer func(items domain.CartContents)

// State owns the line items of one cart. All methods are safe for
// concurrent use. Observers are called synchronously, one change at a time,
// in mutation order; an observer must not mutate the cart it observes.
type State struct {
	// emitMu is held from a mutation until every observer has seen it.
	emitMu sync.Mutex

	mu     sync.Mutex
	items  domain.CartContents
	subs   map[uint64]*Subscription
	nextID uint64
}

// Subscription is returned by Subscribe.
type Subscription struct {
	id     uint64
	state  *State
	fn     Observer
	active atomic.Bool
}

// Unsubscribe stops delivery. It may be called from inside the observer.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.state.mu.Lock()
	delete(s.state.subs, s.id)
	s.state.mu.Unlock()
}

// NewState returns an empty cart.
func NewState() *State {
	return &State{
		items: domain.CartContents{},
		subs:  make(map[uint64]*Subscription),
	}
}

// Items returns a copy of the current contents.
func (s *State) Items() domain.CartContents {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// Len returns the number of lines.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn, immediately replays the current contents to it and
// then delivers every later change.
func (s *State) Subscribe(fn Observer) *Subscription {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.nextID++
	sub := &Subscription{id: s.nextID, state: s, fn: fn}
	sub.active.Store(true)
	s.subs[sub.id] = sub
	snapshot := s.items.Clone()
	s.mu.Unlock()

	fn(snapshot)
	return sub
}

// AddItem appends item, or merges it into the existing line for the same
// product by adding quantities. The line's unit price, name and image are
// refreshed from item; Price is always derived from UnitPrice × Quantity.
func (s *State) AddItem(item domain.LineItem) error {
	switch {
	case item.ProductID == "":
		return apperrors.InvalidInput("product id is required")
	case item.UnitPrice.IsNegative():
		return apperrors.InvalidInput("unit price must not be negative")
	case item.Quantity < 1 || item.Quantity > domain.MaxQuantityPerItem:
		return domain.ErrInvalidQuantity(item.Quantity)
	}

	return s.mutate(func(items domain.CartContents) (domain.CartContents, error) {
		if i := items.FindItemIndex(item.ProductID); i >= 0 {
			qty := items[i].Quantity + item.Quantity
			if qty > domain.MaxQuantityPerItem {
				return nil, domain.ErrInvalidQuantity(qty)
			}
			items[i] = item.WithQuantity(qty)
			return items, nil
		}

		if len(items) >= domain.MaxItemsPerCart {
			return nil, domain.ErrCartFull()
		}
		return append(items, item.WithQuantity(item.Quantity)), nil
	})
}

// RemoveItem removes the line at index and shifts later lines down.
func (s *State) RemoveItem(index int) error {
	return s.mutate(func(items domain.CartContents) (domain.CartContents, error) {
		if index < 0 || index >= len(items) {
			return nil, domain.ErrInvalidIndex(index, len(items))
		}
		return append(items[:index], items[index+1:]...), nil
	})
}

// UpdateQuantity sets the quantity of the line at index and re-derives its
// price. A quantity of 0 removes the line.
func (s *State) UpdateQuantity(index, quantity int) error {
	if quantity < 0 || quantity > domain.MaxQuantityPerItem {
		return domain.ErrInvalidQuantity(quantity)
	}

	return s.mutate(func(items domain.CartContents) (domain.CartContents, error) {
		if index < 0 || index >= len(items) {
			return nil, domain.ErrInvalidIndex(index, len(items))
		}
		if quantity == 0 {
			return append(items[:index], items[index+1:]...), nil
		}
		items[index] = items[index].WithQuantity(quantity)
		return items, nil
	})
}

// Clear empties the cart. Observers are notified even if it was empty.
func (s *State) Clear() {
	_ = s.mutate(func(domain.CartContents) (domain.CartContents, error) {
		return domain.CartContents{}, nil
	})
}

// mutate applies fn to a working copy and commits it only when fn succeeds,
// then notifies observers of the committed contents.
func (s *State) mutate(fn func(domain.CartContents) (domain.CartContents, error)) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	next, err := fn(s.items.Clone())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = next
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	snapshot := s.items.Clone()
	s.mu.Unlock()

	slices.SortFunc(subs, func(a, b *Subscription) int { return cmp.Compare(a.id, b.id) })
	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(snapshot.Clone())
		}
	}
	return nil
}
