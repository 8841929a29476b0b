package domain

import "time"

// Listing is an active marketplace posting. Quantity is decremented
// as buyers purchase from it.
type Listing struct {
	ID        string
	ItemName  string
	ItemPrice float64
	Quantity  int64
	CreatedAt time.Time
}

// Available reports whether the listing still has stock.
func (l Listing) Available() bool {
	return l.Quantity > 0
}
