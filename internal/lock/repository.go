// Package lock implements the named distributed lock registry: advisory,
// TTL-bounded mutual exclusion over a single MongoDB collection with a
// unique index on the lock id.
package lock

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/girishkamat/hmrc-mongo/internal/clock"
	"github.com/girishkamat/hmrc-mongo/internal/common"
	"github.com/girishkamat/hmrc-mongo/internal/models"
)

// Repository implements the lock acquisition/renewal/release protocol.
// Like queue.Repository, it holds no in-memory state beyond its
// collection handle, clock, and logger — all mutual exclusion flows
// through the collection's unique index on _id.
type Repository struct {
	collection *mongo.Collection
	clock      clock.Clock
	logger     *common.Logger
}

// New creates a Repository backed by collection. The caller is
// responsible for ensuring collection has a unique index on _id — which
// is MongoDB's default behaviour for the _id field, so no explicit
// EnsureIndexes call is required here (unlike the work-item collection's
// secondary indexes).
func New(collection *mongo.Collection, clk clock.Clock, logger *common.Logger) *Repository {
	return &Repository{collection: collection, clock: clk, logger: logger}
}

// logError reports a datastore failure, if a logger was configured.
func (r *Repository) logError(err error, msg, lockID string) {
	if r.logger == nil {
		return
	}
	r.logger.Error().Err(err).Str("lockId", lockID).Msg(msg)
}

// Lock attempts conditional acquisition: it sets {id, owner, timeCreated,
// expiryTime} iff no non-expired record for lockID held by a different
// owner exists; owner's own record is overwritten whether or not it has
// expired. Returns true
// on acquisition, false otherwise — including on a losing race, which
// surfaces as a duplicate-key error that this method swallows.
func (r *Repository) Lock(ctx context.Context, lockID, owner string, ttl time.Duration) (bool, error) {
	now := r.clock.Now()

	// Matches: an expired record (held by anyone), or one already held
	// by owner (a holder may always re-lock to reset its own ttl,
	// regardless of how much of the window remains). If no record exists
	// at all, the filter as a whole matches zero
	// documents and the upsert inserts a brand new one. If a record
	// exists, is unexpired, and belongs to someone else, the filter
	// matches nothing AND _id is already taken — the upsert's insert
	// attempt collides with the unique index, which is exactly the
	// DuplicateKey signal this method swallows into false below.
	filter := bson.M{
		"_id": lockID,
		"$or": []bson.M{
			{"expiryTime": bson.M{"$lte": now}},
			{"owner": owner},
		},
	}
	update := bson.M{"$set": bson.M{
		"_id":         lockID,
		"owner":       owner,
		"timeCreated": now,
		"expiryTime":  now.Add(ttl),
	}}
	upsert := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	_, err := r.collection.FindOneAndUpdate(ctx, filter, update, upsert).Raw()
	if err == nil {
		if r.logger != nil {
			r.logger.WithCorrelationId(lockID).Debug().Str("owner", owner).Msg("Acquired lock")
		}
		return true, nil
	}
	if common.IsNotFound(err) {
		return false, nil
	}
	if common.IsDuplicateKey(err) {
		if r.logger != nil {
			r.logger.Debug().Str("lockId", lockID).Str("owner", owner).Msg("Lock acquisition lost the race to another holder")
		}
		return false, nil
	}
	r.logError(err, "Failed to acquire lock", lockID)
	return false, fmt.Errorf("hmrc-mongo: acquire lock %q: %w", lockID, err)
}

// RefreshExpiry extends an already-held lock. It does not check that the
// existing lock is unexpired — owner is allowed to re-extend even if the
// window slipped, as long as no other holder has taken over. Returns
// false without creating a new lock if none exists for owner.
func (r *Repository) RefreshExpiry(ctx context.Context, lockID, owner string, ttl time.Duration) (bool, error) {
	filter := bson.M{"_id": lockID, "owner": owner}
	update := bson.M{"$set": bson.M{"expiryTime": r.clock.Now().Add(ttl)}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logError(err, "Failed to refresh lock expiry", lockID)
		return false, fmt.Errorf("hmrc-mongo: refresh lock %q: %w", lockID, err)
	}
	refreshed := result.ModifiedCount > 0
	if r.logger != nil {
		if refreshed {
			r.logger.Debug().Str("lockId", lockID).Str("owner", owner).Msg("Refreshed lock expiry")
		} else {
			r.logger.Debug().Str("lockId", lockID).Str("owner", owner).Msg("Refresh found no matching lock held by owner")
		}
	}
	return refreshed, nil
}

// ReleaseLock deletes any record matching {lockID, owner}. Idempotent —
// calling it twice is safe, and it never touches a lock held by a
// different owner.
func (r *Repository) ReleaseLock(ctx context.Context, lockID, owner string) error {
	filter := bson.M{"_id": lockID, "owner": owner}
	if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
		r.logError(err, "Failed to release lock", lockID)
		return fmt.Errorf("hmrc-mongo: release lock %q: %w", lockID, err)
	}
	if r.logger != nil {
		r.logger.Debug().Str("lockId", lockID).Str("owner", owner).Msg("Released lock")
	}
	return nil
}

// IsLocked reports whether a non-expired record exists matching
// {lockID, owner}.
func (r *Repository) IsLocked(ctx context.Context, lockID, owner string) (bool, error) {
	filter := bson.M{"_id": lockID, "owner": owner, "expiryTime": bson.M{"$gt": r.clock.Now()}}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logError(err, "Failed to check lock state", lockID)
		return false, fmt.Errorf("hmrc-mongo: check lock %q: %w", lockID, err)
	}
	return n > 0, nil
}

// Find returns the current Lock record for lockID, or nil if none
// exists. Useful for diagnostics and tests that want to assert on
// TimeCreated/ExpiryTime directly.
func (r *Repository) Find(ctx context.Context, lockID string) (*models.Lock, error) {
	var l models.Lock
	err := r.collection.FindOne(ctx, bson.M{"_id": lockID}).Decode(&l)
	if err != nil {
		if common.IsNotFound(err) {
			return nil, nil
		}
		r.logError(err, "Failed to find lock", lockID)
		return nil, fmt.Errorf("hmrc-mongo: find lock %q: %w", lockID, err)
	}
	return &l, nil
}
