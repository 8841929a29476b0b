package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/efreitasn/marketboard/internal/domain"
)

// ListingCollection is the collection holding marketplace listings.
const ListingCollection = "postings"

// Document field names in the postings collection.
const (
	fieldQuantity  = "itemQuantity"
	fieldCreatedAt = "timestamp"
)

type listingDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ItemName  string             `bson:"itemName"`
	ItemPrice float64            `bson:"itemPrice"`
	Quantity  int64              `bson:"itemQuantity"`
	CreatedAt time.Time          `bson:"timestamp"`
}

func (d listingDoc) toDomain() domain.Listing {
	return domain.Listing{
		ID:        d.ID.Hex(),
		ItemName:  d.ItemName,
		ItemPrice: d.ItemPrice,
		Quantity:  d.Quantity,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// ListingStore keeps listings in a MongoDB collection.
type ListingStore struct {
	coll *mongo.Collection
}

// NewListingStore creates a ListingStore over db's postings collection.
func NewListingStore(db *mongo.Database) *ListingStore {
	return &ListingStore{coll: db.Collection(ListingCollection)}
}

// Create inserts a listing and returns it with its assigned ID.
func (s *ListingStore) Create(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	doc := listingDoc{
		ItemName:  l.ItemName,
		ItemPrice: l.ItemPrice,
		Quantity:  l.Quantity,
		CreatedAt: l.CreatedAt.UTC(),
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return doc.toDomain(), nil
}

// ListAvailable returns listings with stock left, oldest first, optionally
// restricted to item names containing search (case-insensitive).
func (s *ListingStore) ListAvailable(ctx context.Context, search string) ([]domain.Listing, error) {
	filter := bson.D{{Key: fieldQuantity, Value: bson.D{{Key: "$gt", Value: 0}}}}
	if search != "" {
		filter = append(filter, bson.E{Key: fieldItemName, Value: primitive.Regex{
			Pattern: regexp.QuoteMeta(search),
			Options: "i",
		}})
	}
	opts := options.Find().SetSort(bson.D{{Key: fieldCreatedAt, Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	var docs []listingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	listings := make([]domain.Listing, 0, len(docs))
	for _, d := range docs {
		listings = append(listings, d.toDomain())
	}
	return listings, nil
}

// Count returns the number of listings, including sold-out ones.
func (s *ListingStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// Delete removes a listing by ID.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrListingNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// Reserve atomically decrements a listing's quantity when enough units
// remain, returning the listing as it was before the decrement.
func (s *ListingStore) Reserve(ctx context.Context, id string, quantity int64) (domain.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Listing{}, domain.ErrListingNotFound
	}

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: fieldQuantity, Value: bson.D{{Key: "$gte", Value: quantity}}},
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: fieldQuantity, Value: -quantity}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var doc listingDoc
	err = s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Listing{}, fmt.Errorf("reserve listing: %w", err)
	}

	// Distinguish a missing listing from one without enough stock.
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("reserve listing: %w", err)
	}
	if n == 0 {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return domain.Listing{}, domain.ErrInsufficientQuantity
}

// Release returns quantity units to a listing.
func (s *ListingStore) Release(ctx context.Context, id string, quantity int64) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrListingNotFound
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: fieldQuantity, Value: quantity}}}},
	)
	if err != nil {
		return fmt.Errorf("release listing: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}
