package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// mapError translates driver errors into the shared sentinels. Unreachable
// clusters become models.ErrTransport so the fallback layer can recover.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, mongo.ErrClientDisconnected),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, models.ErrTransport, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
