package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/metrics"
)

// ListingRepository is the listing storage the marketplace runs on.
type ListingRepository interface {
	Create(ctx context.Context, l domain.Listing) (domain.Listing, error)
	ListAvailable(ctx context.Context, search string) ([]domain.Listing, error)
	Delete(ctx context.Context, id string) error
	// Reserve atomically takes quantity units off a listing and returns
	// the listing as it was before.
	Reserve(ctx context.Context, id string, quantity int64) (domain.Listing, error)
	Release(ctx context.Context, id string, quantity int64) error
}

// TradeRepository is the write and browse surface of the trade log.
type TradeRepository interface {
	Append(ctx context.Context, t domain.Trade) (domain.Trade, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Trade, error)
}

// AddListingRequest is the input for posting a listing.
type AddListingRequest struct {
	ItemName     string  `json:"itemName" validate:"required"`
	ItemPrice    float64 `json:"itemPrice" validate:"gt=0"`
	ItemQuantity int64   `json:"itemQuantity" validate:"gte=0"`
}

// BuyRequest is the input for purchasing from a listing.
type BuyRequest struct {
	ItemID   string `json:"itemID" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
	Buyer    string `json:"buyer" validate:"required"`
}

// RecordTradeRequest is the input for writing a trade directly to the log.
type RecordTradeRequest struct {
	ItemName   string  `json:"itemName" validate:"required"`
	ItemPrice  float64 `json:"itemPrice" validate:"gt=0"`
	AmountSold int64   `json:"amountSold" validate:"gt=0"`
	Buyer      string  `json:"userCustomer" validate:"required"`
}

// MarketService runs the marketplace: listings, purchases and the trade
// history they produce.
type MarketService struct {
	listings ListingRepository
	trades   TradeRepository
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewMarketService creates a new MarketService.
func NewMarketService(listings ListingRepository, trades TradeRepository, logger *slog.Logger) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{
		listings: listings,
		trades:   trades,
		validate: newValidator(),
		logger:   logger.With(slog.String("component", "market")),
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report wire names in messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates req and converts failures to *domain.ValidationError.
func (s *MarketService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Message: err.Error()}
	}
	// The first failing field is enough for the caller.
	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		msg = fmt.Sprintf("%s must be > %s", fe.Field(), fe.Param())
	case "gte":
		msg = fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return &domain.ValidationError{Message: msg}
}

// ListListings returns listings with stock left. A non-empty search
// matches item names case-insensitively.
func (s *MarketService) ListListings(ctx context.Context, search string) ([]domain.Listing, error) {
	return s.listings.ListAvailable(ctx, strings.TrimSpace(search))
}

// AddListing validates and stores a new listing.
func (s *MarketService) AddListing(ctx context.Context, req AddListingRequest) (domain.Listing, error) {
	req.ItemName = strings.TrimSpace(req.ItemName)
	if err := s.check(req); err != nil {
		return domain.Listing{}, err
	}

	l, err := s.listings.Create(ctx, domain.Listing{
		ItemName:  req.ItemName,
		ItemPrice: req.ItemPrice,
		Quantity:  req.ItemQuantity,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	s.logger.InfoContext(ctx, "listing added",
		slog.String("listing_id", l.ID),
		slog.String("item", l.ItemName),
	)
	return l, nil
}

// DeleteListing removes a listing.
func (s *MarketService) DeleteListing(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &domain.ValidationError{Message: "itemID is required"}
	}
	return s.listings.Delete(ctx, id)
}

// Buy takes the requested quantity off a listing and records the trade at
// the listing's price. If the trade cannot be recorded the quantity is put
// back.
func (s *MarketService) Buy(ctx context.Context, req BuyRequest) (domain.Trade, error) {
	if err := s.check(req); err != nil {
		return domain.Trade{}, err
	}

	l, err := s.listings.Reserve(ctx, req.ItemID, req.Quantity)
	if err != nil {
		return domain.Trade{}, err
	}

	t, err := s.trades.Append(ctx, domain.Trade{
		Timestamp:  s.now().UTC(),
		ItemName:   l.ItemName,
		ItemPrice:  l.ItemPrice,
		AmountSold: req.Quantity,
		Buyer:      req.Buyer,
	})
	if err != nil {
		if relErr := s.listings.Release(context.WithoutCancel(ctx), req.ItemID, req.Quantity); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release reserved quantity",
				slog.String("listing_id", req.ItemID),
				slog.Int64("quantity", req.Quantity),
				slog.String("error", relErr.Error()),
			)
		}
		return domain.Trade{}, fmt.Errorf("record trade: %w", err)
	}

	metrics.TradesRecordedTotal.Inc()
	s.logger.InfoContext(ctx, "purchase completed",
		slog.String("listing_id", req.ItemID),
		slog.String("trade_id", t.ID),
		slog.String("item", t.ItemName),
		slog.Int64("quantity", t.AmountSold),
	)
	return t, nil
}

// History returns every recorded trade, newest first.
func (s *MarketService) History(ctx context.Context) ([]domain.Trade, error) {
	return s.trades.List(ctx)
}

// RecordTrade appends a trade at the current time without touching any
// listing.
func (s *MarketService) RecordTrade(ctx context.Context, req RecordTradeRequest) (domain.Trade, error) {
	req.ItemName = strings.TrimSpace(req.ItemName)
	if err := s.check(req); err != nil {
		return domain.Trade{}, err
	}

	t, err := s.trades.Append(ctx, domain.Trade{
		Timestamp:  s.now().UTC(),
		ItemName:   req.ItemName,
		ItemPrice:  req.ItemPrice,
		AmountSold: req.AmountSold,
		Buyer:      req.Buyer,
	})
	if err != nil {
		return domain.Trade{}, fmt.Errorf("record trade: %w", err)
	}
	metrics.TradesRecordedTotal.Inc()
	return t, nil
}

// DeleteTrade removes a trade from the log.
func (s *MarketService) DeleteTrade(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &domain.ValidationError{Message: "entryID is required"}
	}
	return s.trades.Delete(ctx, id)
}
