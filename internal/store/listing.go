package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/efreitasn/marketboard/internal/domain"
)

// ListingStore is a thread-safe in-memory store for listings,
// keyed by listing ID.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[string]*domain.Listing
}

// NewListingStore creates an empty ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{
		listings: make(map[string]*domain.Listing),
	}
}

// Create adds a listing, assigning an ID when it has none.
func (s *ListingStore) Create(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return domain.Listing{}, err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := l
	s.listings[stored.ID] = &stored
	return stored, nil
}

// ListAvailable returns listings with stock left, oldest first. A non-empty
// search restricts results to item names containing it, case-insensitively.
func (s *ListingStore) ListAvailable(ctx context.Context, search string) ([]domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(search)

	s.mu.RLock()
	result := make([]domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if !l.Available() {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(l.ItemName), needle) {
			continue
		}
		result = append(result, *l)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Count returns the number of listings, including sold-out ones.
func (s *ListingStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.listings)), nil
}

// Delete removes a listing. It returns domain.ErrListingNotFound if the
// listing does not exist.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(s.listings, id)
	return nil
}

// Reserve atomically takes quantity units from a listing and returns the
// listing as it was before the decrement. It returns
// domain.ErrInsufficientQuantity when fewer units remain.
func (s *ListingStore) Reserve(ctx context.Context, id string, quantity int64) (domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return domain.Listing{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	if l.Quantity < quantity {
		return domain.Listing{}, domain.ErrInsufficientQuantity
	}
	before := *l
	l.Quantity -= quantity
	return before, nil
}

// Release returns quantity units to a listing. It undoes a Reserve whose
// trade could not be recorded.
func (s *ListingStore) Release(ctx context.Context, id string, quantity int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	l.Quantity += quantity
	return nil
}
