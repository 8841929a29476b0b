package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/efreitasn/marketboard/internal/domain"
)

// TradeCollection is the collection holding the trade log.
const TradeCollection = "postingHistory"

type tradeDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp  time.Time          `bson:"timestamp"`
	ItemName   string             `bson:"itemName"`
	ItemPrice  float64            `bson:"itemPrice"`
	AmountSold int64              `bson:"amountSold"`
	Buyer      string             `bson:"userCustomer"`
}

func (d tradeDoc) toDomain() domain.Trade {
	return domain.Trade{
		ID:         d.ID.Hex(),
		Timestamp:  d.Timestamp.UTC(),
		ItemName:   d.ItemName,
		ItemPrice:  d.ItemPrice,
		AmountSold: d.AmountSold,
		Buyer:      d.Buyer,
	}
}

// TradeStore is a trade log backed by a MongoDB collection. Aggregations
// run server-side; reducers the server does not know surface as
// domain.ErrUnsupportedOperator.
type TradeStore struct {
	coll *mongo.Collection
}

// NewTradeStore creates a TradeStore over db's postingHistory collection.
func NewTradeStore(db *mongo.Database) *TradeStore {
	return &TradeStore{coll: db.Collection(TradeCollection)}
}

// Append inserts a trade and returns it with its assigned ID.
func (s *TradeStore) Append(ctx context.Context, t domain.Trade) (domain.Trade, error) {
	doc := tradeDoc{
		Timestamp:  t.Timestamp.UTC(),
		ItemName:   t.ItemName,
		ItemPrice:  t.ItemPrice,
		AmountSold: t.AmountSold,
		Buyer:      t.Buyer,
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("insert trade: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return doc.toDomain(), nil
}

// Delete removes a trade by ID. Unknown or malformed IDs yield
// domain.ErrTradeNotFound.
func (s *TradeStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrTradeNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete trade: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTradeNotFound
	}
	return nil
}

// List returns every trade, newest first.
func (s *TradeStore) List(ctx context.Context) ([]domain.Trade, error) {
	return s.find(ctx, bson.D{}, -1)
}

// Count returns the number of trades in the log.
func (s *TradeStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

// Find returns the trades matching f in chronological order.
func (s *TradeStore) Find(ctx context.Context, f domain.Filter) ([]domain.Trade, error) {
	return s.find(ctx, matchFilter(f), 1)
}

func (s *TradeStore) find(ctx context.Context, filter bson.D, order int) ([]domain.Trade, error) {
	opts := options.Find().SetSort(bson.D{{Key: fieldTimestamp, Value: order}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find trades: %w", err)
	}
	var docs []tradeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}

	trades := make([]domain.Trade, 0, len(docs))
	for _, d := range docs {
		trades = append(trades, d.toDomain())
	}
	return trades, nil
}

// Aggregate runs q as a server-side aggregation pipeline.
func (s *TradeStore) Aggregate(ctx context.Context, q domain.Query) ([]domain.Group, error) {
	pipeline, err := buildPipeline(q)
	if err != nil {
		return nil, err
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translateAggregateError(TradeCollection, err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateAggregateError(TradeCollection, err)
	}

	groups := make([]domain.Group, 0, len(docs))
	for _, doc := range docs {
		g, err := decodeGroup(doc, q.Accumulators)
		if err != nil {
			return nil, fmt.Errorf("decode group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// EnsureIndexes creates the timestamp index that windowed reads rely on.
func (s *TradeStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: fieldTimestamp, Value: 1}, {Key: fieldItemName, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create trade index: %w", err)
	}
	return nil
}
