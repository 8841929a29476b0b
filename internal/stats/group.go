package stats

import "github.com/efreitasn/marketboard/internal/domain"

// Aggregate groups trades by groupBy and evaluates every accumulator per
// group. Groups come back in the order their first trade was seen; callers
// impose their own ordering. No trades yields an empty, non-nil slice.
func Aggregate(trades []domain.Trade, groupBy domain.GroupBy, accs []domain.Accumulator) []domain.Group {
	type bucket struct {
		key    string
		series [][]float64 // one projected series per accumulator
	}

	index := make(map[string]int)
	buckets := make([]*bucket, 0)

	for _, t := range trades {
		key := groupBy.Key(t)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, &bucket{key: key, series: make([][]float64, len(accs))})
		}
		b := buckets[i]
		for j, acc := range accs {
			b.series[j] = append(b.series[j], acc.Field.Project(t))
		}
	}

	groups := make([]domain.Group, 0, len(buckets))
	for _, b := range buckets {
		values := make(map[string]float64, len(accs))
		for j, acc := range accs {
			values[acc.Name] = Reduce(acc.Op, b.series[j])
		}
		groups = append(groups, domain.Group{Key: b.key, Values: values})
	}
	return groups
}

// Partition splits trades into per-key slices of projected values,
// preserving first-seen key order. It is the raw-record building block
// for recomputing statistics that a storage back-end could not reduce.
func Partition(trades []domain.Trade, groupBy domain.GroupBy, field domain.Field) (keys []string, series map[string][]float64) {
	keys = make([]string, 0)
	series = make(map[string][]float64)
	for _, t := range trades {
		key := groupBy.Key(t)
		if _, ok := series[key]; !ok {
			keys = append(keys, key)
		}
		series[key] = append(series[key], field.Project(t))
	}
	return keys, series
}
