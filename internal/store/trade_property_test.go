package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/efreitasn/marketboard/internal/domain"
	"pgregory.net/rapid"
)

// TestProperty_WindowScanMatchesLinearFilter verifies that the B-tree range
// scan used for windowed reads returns exactly the trades a linear filter
// over the whole log would.
func TestProperty_WindowScanMatchesLinearFilter(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := NewTradeStore()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		n := rapid.IntRange(0, 60).Draw(t, "n")
		for i := 0; i < n; i++ {
			// Small offset range forces timestamp collisions.
			offset := rapid.IntRange(0, 30).Draw(t, fmt.Sprintf("offset-%d", i))
			s.Append(ctx, newTestTrade(
				rapid.SampledFrom([]string{"Potion", "Ether"}).Draw(t, fmt.Sprintf("item-%d", i)),
				10, 1, base.Add(time.Duration(offset)*time.Minute)))
		}

		filter := domain.Filter{
			Since:    base.Add(time.Duration(rapid.IntRange(0, 31).Draw(t, "cutoff")) * time.Minute),
			ItemName: rapid.SampledFrom([]string{"", "Potion"}).Draw(t, "scope"),
		}

		all, _ := s.Find(ctx, domain.Filter{})
		want := 0
		for _, tr := range all {
			if filter.Match(tr) {
				want++
			}
		}

		got, err := s.Find(ctx, filter)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != want {
			t.Fatalf("range scan returned %d trades, linear filter %d", len(got), want)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.Before(got[i-1].Timestamp) {
				t.Fatalf("trades out of order at %d", i)
			}
		}
	})
}
