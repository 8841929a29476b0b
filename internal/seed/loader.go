// Package seed loads initial listings and trade history from JSON files
// into empty stores.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/efreitasn/marketboard/internal/domain"
)

// ListingSink is where seeded listings go.
type ListingSink interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, l domain.Listing) (domain.Listing, error)
}

// TradeSink is where seeded trades go.
type TradeSink interface {
	Count(ctx context.Context) (int64, error)
	Append(ctx context.Context, t domain.Trade) (domain.Trade, error)
}

type listingRecord struct {
	ItemName     string  `json:"itemName" validate:"required"`
	ItemPrice    float64 `json:"itemPrice" validate:"gt=0"`
	ItemQuantity int64   `json:"itemQuantity" validate:"gte=0"`
}

type tradeRecord struct {
	Timestamp    string  `json:"timestamp" validate:"required"`
	ItemName     string  `json:"itemName" validate:"required"`
	ItemPrice    float64 `json:"itemPrice" validate:"gt=0"`
	AmountSold   int64   `json:"amountSold" validate:"gt=0"`
	UserCustomer string  `json:"userCustomer"`
}

// timestampLayouts are tried in order. Zoneless layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses s in RFC 3339 or as YYYY-MM-DD[T ]HH:MM:SS[.ffffff].
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Loader seeds stores from files. A path that is empty or does not exist
// is skipped, as is a store that already holds data.
type Loader struct {
	listings ListingSink
	trades   TradeSink
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoader creates a new Loader.
func NewLoader(listings ListingSink, trades TradeSink, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		listings: listings,
		trades:   trades,
		validate: newValidator(),
		logger:   logger.With(slog.String("component", "seed")),
		now:      time.Now,
	}
}

// Load seeds listings from listingsPath and trades from historyPath. It
// returns how many records of each kind were inserted.
func (l *Loader) Load(ctx context.Context, listingsPath, historyPath string) (listings, trades int, err error) {
	listings, err = l.loadListings(ctx, listingsPath)
	if err != nil {
		return 0, 0, err
	}
	trades, err = l.loadTrades(ctx, historyPath)
	if err != nil {
		return listings, 0, err
	}
	return listings, trades, nil
}

func (l *Loader) loadListings(ctx context.Context, path string) (int, error) {
	var records []listingRecord
	ok, err := l.readIfNeeded(ctx, path, l.listings.Count, &records)
	if !ok || err != nil {
		return 0, err
	}

	for i := range records {
		if err := l.check(&records[i]); err != nil {
			return 0, fmt.Errorf("seed listing %d from %s: %w", i, path, err)
		}
	}

	createdAt := l.now().UTC()
	for i, r := range records {
		if _, err := l.listings.Create(ctx, domain.Listing{
			ItemName:  r.ItemName,
			ItemPrice: r.ItemPrice,
			Quantity:  r.ItemQuantity,
			CreatedAt: createdAt,
		}); err != nil {
			return i, fmt.Errorf("seed listing %d from %s: %w", i, path, err)
		}
	}
	l.logger.InfoContext(ctx, "listings seeded",
		slog.String("path", path),
		slog.Int("count", len(records)),
	)
	return len(records), nil
}

func (l *Loader) loadTrades(ctx context.Context, path string) (int, error) {
	var records []tradeRecord
	ok, err := l.readIfNeeded(ctx, path, l.trades.Count, &records)
	if !ok || err != nil {
		return 0, err
	}

	// Parse everything before writing so a bad record leaves the log empty.
	trades := make([]domain.Trade, 0, len(records))
	for i, r := range records {
		if err := l.check(&r); err != nil {
			return 0, fmt.Errorf("seed trade %d from %s: %w", i, path, err)
		}
		ts, err := ParseTimestamp(r.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("seed trade %d from %s: %w", i, path, err)
		}
		trades = append(trades, domain.Trade{
			Timestamp:  ts,
			ItemName:   r.ItemName,
			ItemPrice:  r.ItemPrice,
			AmountSold: r.AmountSold,
			Buyer:      r.UserCustomer,
		})
	}

	for i, t := range trades {
		if _, err := l.trades.Append(ctx, t); err != nil {
			return i, fmt.Errorf("seed trade %d from %s: %w", i, path, err)
		}
	}
	l.logger.InfoContext(ctx, "trade history seeded",
		slog.String("path", path),
		slog.Int("count", len(trades)),
	)
	return len(trades), nil
}

// readIfNeeded decodes path into v when path names an existing file and
// the target store is empty. It reports whether v was filled.
func (l *Loader) readIfNeeded(
	ctx context.Context,
	path string,
	count func(context.Context) (int64, error),
	v any,
) (bool, error) {
	if path == "" {
		return false, nil
	}

	n, err := count(ctx)
	if err != nil {
		return false, fmt.Errorf("count before seeding %s: %w", path, err)
	}
	if n > 0 {
		l.logger.DebugContext(ctx, "store not empty, skipping seed", slog.String("path", path))
		return false, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.WarnContext(ctx, "seed file not found", slog.String("path", path))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// check rejects records that break the listing or trade invariants.
func (l *Loader) check(record any) error {
	err := l.validate.Struct(record)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return &domain.ValidationError{Message: fmt.Sprintf("%s is required", fe.Field())}
	}
	return &domain.ValidationError{Message: fmt.Sprintf("%s must be %s %s", fe.Field(), opSymbol(fe.Tag()), fe.Param())}
}

func opSymbol(tag string) string {
	switch tag {
	case "gt":
		return ">"
	case "gte":
		return ">="
	}
	return tag
}
