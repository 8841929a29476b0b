package mongostore

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/efreitasn/marketboard/internal/domain"
)

// Server error codes raised when a $group accumulator or pipeline
// operator is unknown to the connected server.
const (
	codeUnknownGroupOperator    = 15952
	codeInvalidPipelineOperator = 168
)

// isUnsupportedOperator reports whether err means the server cannot
// evaluate an operator used by the pipeline.
func isUnsupportedOperator(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeUnknownGroupOperator) || se.HasErrorCode(codeInvalidPipelineOperator)
}

// translateAggregateError maps operator-support failures onto
// domain.ErrUnsupportedOperator and wraps everything else unchanged.
func translateAggregateError(collection string, err error) error {
	if isUnsupportedOperator(err) {
		return fmt.Errorf("aggregate %s: %w: %v", collection, domain.ErrUnsupportedOperator, err)
	}
	return fmt.Errorf("aggregate %s: %w", collection, err)
}
