package domain

import (
	"fmt"
	"time"
)

// Filter restricts which trades a query sees. Zero fields are unset;
// set fields combine conjunctively.
type Filter struct {
	Since    time.Time // timestamp >= Since
	ItemName string    // exact item name
}

// Match reports whether t passes the filter.
func (f Filter) Match(t Trade) bool {
	if !f.Since.IsZero() && t.Timestamp.Before(f.Since) {
		return false
	}
	if f.ItemName != "" && t.ItemName != f.ItemName {
		return false
	}
	return true
}

// GroupBy selects the grouping key of an aggregation.
type GroupBy int

const (
	GroupByItem GroupBy = iota // key is the item name
	GroupByDay                 // key is the UTC calendar day, YYYY-MM-DD
)

func (g GroupBy) String() string {
	switch g {
	case GroupByItem:
		return "item"
	case GroupByDay:
		return "day"
	}
	return fmt.Sprintf("GroupBy(%d)", int(g))
}

// Key returns the group key of t.
func (g GroupBy) Key(t Trade) string {
	if g == GroupByDay {
		return t.Day()
	}
	return t.ItemName
}

// Op is a per-group reducer.
type Op string

const (
	OpCount      Op = "count"
	OpSum        Op = "sum"
	OpMin        Op = "min"
	OpMax        Op = "max"
	OpAvg        Op = "avg"
	OpStdDevPop  Op = "stdDevPop"
	OpStdDevSamp Op = "stdDevSamp"
)

// ParseOp parses a reducer name.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpCount, OpSum, OpMin, OpMax, OpAvg, OpStdDevPop, OpStdDevSamp:
		return op, nil
	}
	return "", fmt.Errorf("unknown reducer %q", s)
}

// Field is a trade-to-scalar projection.
type Field string

const (
	FieldPrice   Field = "itemPrice"
	FieldAmount  Field = "amountSold"
	FieldRevenue Field = "revenue" // amountSold * itemPrice
)

// Project returns the scalar value of f for t.
func (f Field) Project(t Trade) float64 {
	switch f {
	case FieldPrice:
		return t.ItemPrice
	case FieldAmount:
		return float64(t.AmountSold)
	case FieldRevenue:
		return t.Revenue()
	}
	return 0
}

// Accumulator names one output value of a group: Op applied to Field.
// Field is ignored by OpCount.
type Accumulator struct {
	Name  string
	Op    Op
	Field Field
}

// Query is a grouped aggregation request against the trade log.
type Query struct {
	Filter       Filter
	GroupBy      GroupBy
	Accumulators []Accumulator
}

// Group is one output row of an aggregation.
type Group struct {
	Key    string
	Values map[string]float64
}
