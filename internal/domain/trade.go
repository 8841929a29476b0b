package domain

import "time"

// DayLayout is the calendar-day key format used for daily grouping.
const DayLayout = "2006-01-02"

// Trade represents one completed sale recorded in the trade log.
// Trades are immutable once appended.
type Trade struct {
	ID         string
	Timestamp  time.Time
	ItemName   string
	ItemPrice  float64
	AmountSold int64
	Buyer      string
}

// Revenue returns amount sold times unit price.
func (t Trade) Revenue() float64 {
	return float64(t.AmountSold) * t.ItemPrice
}

// Day returns the UTC calendar day of the trade as YYYY-MM-DD.
func (t Trade) Day() string {
	return t.Timestamp.UTC().Format(DayLayout)
}
