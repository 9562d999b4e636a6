package cart

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
)

func item(id, price string, qty int) domain.LineItem {
	return domain.LineItem{
		ProductID: id,
		Name:      "Product " + id,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

type recorder struct {
	mu        sync.Mutex
	snapshots []domain.CartContents
}

func (r *recorder) observe(items domain.CartContents) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, items)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() domain.CartContents {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func TestSubscribe_ReplaysCurrentContents(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddItem(item("a", "10.00", 1)))

	rec := &recorder{}
	s.Subscribe(rec.observe)

	require.Equal(t, 1, rec.count())
	assert.Len(t, rec.last(), 1)
}

func TestAddItem_DerivesPriceAndMerges(t *testing.T) {
	s := NewState()

	require.NoError(t, s.AddItem(item("a", "10.00", 2)))
	require.NoError(t, s.AddItem(item("b", "15.00", 1)))
	require.NoError(t, s.AddItem(item("a", "10.00", 1)))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, items[1].Price.Equal(decimal.RequireFromString("15.00")))
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		item domain.LineItem
		code string
	}{
		{"missing product", item("", "1.00", 1), "INVALID_INPUT"},
		{"negative price", item("a", "-1.00", 1), "INVALID_INPUT"},
		{"zero quantity", item("a", "1.00", 0), domain.CodeInvalidQuantity},
		{"too many", item("a", "1.00", domain.MaxQuantityPerItem+1), domain.CodeInvalidQuantity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewState()
			rec := &recorder{}
			s.Subscribe(rec.observe)

			err := s.AddItem(tc.item)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tc.code))
			assert.Empty(t, s.Items())
			assert.Equal(t, 1, rec.count(), "no notification on rejected mutation")
		})
	}
}

func TestAddItem_MergeExceedingMaxQuantity(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddItem(item("a", "1.00", domain.MaxQuantityPerItem)))

	err := s.AddItem(item("a", "1.00", 1))
	assert.True(t, apperrors.HasCode(err, domain.CodeInvalidQuantity))
	assert.Equal(t, domain.MaxQuantityPerItem, s.Items()[0].Quantity)
}

func TestAddItem_CartFull(t *testing.T) {
	s := NewState()
	for i := 0; i < domain.MaxItemsPerCart; i++ {
		require.NoError(t, s.AddItem(item(string(rune('A'+i)), "1.00", 1)))
	}

	err := s.AddItem(item("overflow", "1.00", 1))
	assert.True(t, apperrors.HasCode(err, domain.CodeCartFull))
	assert.Equal(t, domain.MaxItemsPerCart, s.Len())
}

func TestRemoveItem(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddItem(item("a", "10.00", 1)))
	require.NoError(t, s.AddItem(item("b", "15.00", 1)))
	require.NoError(t, s.AddItem(item("c", "5.00", 1)))

	require.NoError(t, s.RemoveItem(1))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ProductID)
	assert.Equal(t, "c", items[1].ProductID)
}

func TestRemoveItem_InvalidIndex(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddItem(item("a", "10.00", 1)))

	rec := &recorder{}
	s.Subscribe(rec.observe)

	for _, idx := range []int{-1, 1, 42} {
		err := s.RemoveItem(idx)
		assert.True(t, apperrors.HasCode(err, domain.CodeInvalidIndex), "index %d", idx)
	}
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, rec.count())
}

func TestUpdateQuantity(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddItem(item("a", "2.50", 1)))

	require.NoError(t, s.UpdateQuantity(0, 4))
	got := s.Items()[0]
	assert.Equal(t, 4, got.Quantity)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("10.00")))

	require.NoError(t, s.UpdateQuantity(0, 0))
	assert.Empty(t, s.Items())
}

func TestUpdateQuantity_Rejected(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddItem(item("a", "2.50", 3)))

	assert.True(t, apperrors.HasCode(s.UpdateQuantity(0, -1), domain.CodeInvalidQuantity))
	assert.True(t, apperrors.HasCode(s.UpdateQuantity(0, domain.MaxQuantityPerItem+1), domain.CodeInvalidQuantity))
	assert.True(t, apperrors.HasCode(s.UpdateQuantity(5, 1), domain.CodeInvalidIndex))
	assert.Equal(t, 3, s.Items()[0].Quantity)
}

func TestClear_NotifiesEvenWhenEmpty(t *testing.T) {
	s := NewState()
	rec := &recorder{}
	s.Subscribe(rec.observe)

	s.Clear()
	s.Clear()

	assert.Equal(t, 3, rec.count())
	assert.Empty(t, rec.last())
}

func TestItems_ReturnsCopy(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddItem(item("a", "1.00", 1)))

	items := s.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, s.Items()[0].Quantity)
}

func TestObserver_SnapshotsAreIndependent(t *testing.T) {
	s := NewState()
	s.Subscribe(func(items domain.CartContents) {
		for i := range items {
			items[i].Quantity = 0
		}
	})
	rec := &recorder{}
	s.Subscribe(rec.observe)

	require.NoError(t, s.AddItem(item("a", "1.00", 2)))
	assert.Equal(t, 2, rec.last()[0].Quantity)
	assert.Equal(t, 2, s.Items()[0].Quantity)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	s := NewState()
	rec := &recorder{}
	sub := s.Subscribe(rec.observe)

	require.NoError(t, s.AddItem(item("a", "1.00", 1)))
	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, s.AddItem(item("b", "1.00", 1)))

	assert.Equal(t, 2, rec.count())
}

func TestUnsubscribe_FromInsideObserver(t *testing.T) {
	s := NewState()
	calls := 0
	var sub *Subscription
	sub = s.Subscribe(func(domain.CartContents) {
		calls++
		if calls == 2 {
			sub.Unsubscribe()
		}
	})

	require.NoError(t, s.AddItem(item("a", "1.00", 1)))
	require.NoError(t, s.AddItem(item("b", "1.00", 1)))

	assert.Equal(t, 2, calls)
}

func TestConcurrentMutations_DeliveredInOrder(t *testing.T) {
	s := NewState()

	var mu sync.Mutex
	var lengths []int
	s.Subscribe(func(items domain.CartContents) {
		mu.Lock()
		lengths = append(lengths, len(items))
		mu.Unlock()
	})

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddItem(item(string(rune('a'+i)), "1.00", 1))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lengths, n+1)
	for i, l := range lengths {
		assert.Equal(t, i, l, "each add grows the cart by exactly one line")
	}
}
