package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/efreitasn/marketboard/internal/domain"
)

// Document field names in the postingHistory collection.
const (
	fieldTimestamp = "timestamp"
	fieldItemName  = "itemName"
	fieldItemPrice = "itemPrice"
	fieldAmount    = "amountSold"
	fieldBuyer     = "userCustomer"
)

// matchFilter translates a domain filter to a MongoDB query document.
func matchFilter(f domain.Filter) bson.D {
	filter := bson.D{}
	if !f.Since.IsZero() {
		filter = append(filter, bson.E{Key: fieldTimestamp, Value: bson.D{{Key: "$gte", Value: f.Since.UTC()}}})
	}
	if f.ItemName != "" {
		filter = append(filter, bson.E{Key: fieldItemName, Value: f.ItemName})
	}
	return filter
}

func groupKey(g domain.GroupBy) (any, error) {
	switch g {
	case domain.GroupByItem:
		return "$" + fieldItemName, nil
	case domain.GroupByDay:
		return bson.D{{Key: "$dateToString", Value: bson.D{
			{Key: "format", Value: "%Y-%m-%d"},
			{Key: "date", Value: "$" + fieldTimestamp},
		}}}, nil
	}
	return nil, fmt.Errorf("unsupported group by %s", g)
}

func fieldExpr(f domain.Field) (any, error) {
	switch f {
	case domain.FieldPrice:
		return "$" + fieldItemPrice, nil
	case domain.FieldAmount:
		return "$" + fieldAmount, nil
	case domain.FieldRevenue:
		return bson.D{{Key: "$multiply", Value: bson.A{"$" + fieldAmount, "$" + fieldItemPrice}}}, nil
	}
	return nil, fmt.Errorf("unsupported field %q", f)
}

var accumulatorOps = map[domain.Op]string{
	domain.OpSum:        "$sum",
	domain.OpMin:        "$min",
	domain.OpMax:        "$max",
	domain.OpAvg:        "$avg",
	domain.OpStdDevPop:  "$stdDevPop",
	domain.OpStdDevSamp: "$stdDevSamp",
}

func accumulator(acc domain.Accumulator) (bson.E, error) {
	if acc.Op == domain.OpCount {
		return bson.E{Key: acc.Name, Value: bson.D{{Key: "$sum", Value: 1}}}, nil
	}
	op, ok := accumulatorOps[acc.Op]
	if !ok {
		return bson.E{}, fmt.Errorf("unsupported reducer %q", acc.Op)
	}
	expr, err := fieldExpr(acc.Field)
	if err != nil {
		return bson.E{}, err
	}
	return bson.E{Key: acc.Name, Value: bson.D{{Key: op, Value: expr}}}, nil
}

// buildPipeline compiles q into a $match/$group aggregation pipeline.
// Accumulator names become the output fields of each group document.
func buildPipeline(q domain.Query) (mongo.Pipeline, error) {
	id, err := groupKey(q.GroupBy)
	if err != nil {
		return nil, err
	}

	group := bson.D{{Key: "_id", Value: id}}
	for _, acc := range q.Accumulators {
		if acc.Name == "_id" {
			return nil, fmt.Errorf("accumulator name %q is reserved", acc.Name)
		}
		e, err := accumulator(acc)
		if err != nil {
			return nil, err
		}
		group = append(group, e)
	}

	pipeline := mongo.Pipeline{}
	if filter := matchFilter(q.Filter); len(filter) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: group}})
	return pipeline, nil
}

// decodeGroup converts a $group output document to a domain group.
// Null reducer results (e.g. $stdDevSamp over one value) become 0.
func decodeGroup(doc bson.M, accs []domain.Accumulator) (domain.Group, error) {
	key, ok := doc["_id"].(string)
	if !ok {
		return domain.Group{}, fmt.Errorf("unexpected group key %T", doc["_id"])
	}
	values := make(map[string]float64, len(accs))
	for _, acc := range accs {
		v, err := toFloat(doc[acc.Name])
		if err != nil {
			return domain.Group{}, fmt.Errorf("field %s: %w", acc.Name, err)
		}
		values[acc.Name] = v
	}
	return domain.Group{Key: key, Values: values}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("unexpected numeric type %T", v)
}
