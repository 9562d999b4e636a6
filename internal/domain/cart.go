package domain

import "github.com/shopspring/decimal"

const (
	// MaxItemsPerCart is the maximum number of distinct lines in one cart.
	MaxItemsPerCart = 50
	// MaxQuantityPerItem is the maximum quantity of a single line.
	MaxQuantityPerItem = 100
)

// LineItem is one selected product in the cart. Price is the line total
// (UnitPrice × Quantity) and is the only amount pricing reads.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// WithQuantity returns a copy of the line with quantity q and Price
// re-derived from UnitPrice.
func (li LineItem) WithQuantity(q int) LineItem {
	li.Quantity = q
	li.Price = li.UnitPrice.Mul(decimal.NewFromInt(int64(q)))
	return li
}

// CartContents is the ordered, index-addressable list of lines. Indices are
// only meaningful until the next mutation.
type CartContents []LineItem

// ItemCount returns the total number of units across all lines.
func (c CartContents) ItemCount() int {
	var n int
	for _, li := range c {
		n += li.Quantity
	}
	return n
}

// FindItemIndex returns the index of the line for productID, or -1.
func (c CartContents) FindItemIndex(productID string) int {
	for i := range c {
		if c[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares nothing with c.
func (c CartContents) Clone() CartContents {
	if c == nil {
		return CartContents{}
	}
	out := make(CartContents, len(c))
	copy(out, c)
	return out
}
