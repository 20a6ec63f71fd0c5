package common

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrNotFound is the internal signal for "no document matched". Repository
// methods never return it directly to callers — it is translated at the
// method boundary into a typed result instead (a bool, a nil pointer, or a
// NotFound-flavored StatusUpdateResult). IsNotFound recognizes both this
// sentinel and the driver's own mongo.ErrNoDocuments, so callers have one
// check to make regardless of which layer produced the absence.
var ErrNotFound = errors.New("hmrc-mongo: not found")

// IsNotFound reports whether err represents "no matching document", either
// as the driver's mongo.ErrNoDocuments or as ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, ErrNotFound)
}

// PartialInsertError is returned by PushNewBatch when the datastore
// acknowledges fewer inserts than items were supplied.
type PartialInsertError struct {
	Expected int
	Actual   int
}

func (e *PartialInsertError) Error() string {
	return fmt.Sprintf("hmrc-mongo: partial insert: expected %d documents, inserted %d", e.Expected, e.Actual)
}

// IsDuplicateKey reports whether err is a unique-index collision from the
// datastore. Lock acquisition swallows this into a plain false return;
// every other caller sees it surfaced.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
