// Package queue implements the persistent work-item repository: a
// multi-producer/multi-consumer queue with retry and in-progress timeout
// semantics, built on a single MongoDB collection.
//
// All mutual exclusion between concurrent pullers flows through MongoDB's
// per-document atomicity — FindOneAndUpdate with a conditional filter.
// The repository holds no in-memory lock and caches nothing; multiple
// Repository instances pointing at the same collection are safe and
// interchangeable.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/girishkamat/hmrc-mongo/internal/clock"
	"github.com/girishkamat/hmrc-mongo/internal/common"
	"github.com/girishkamat/hmrc-mongo/internal/models"
)

// Repository implements the work-item state machine over a MongoDB
// collection. It owns only its collection handle, field-name record, and
// clock reference — no global state.
type Repository[T any] struct {
	collection *mongo.Collection
	names      models.WorkItemFieldNames
	clock      clock.Clock
	logger     *common.Logger

	// inProgressRetryAfter is the process-wide duration resolved once at
	// construction.
	inProgressRetryAfter time.Duration

	// metricPrefix namespaces the keys returned by Metrics.
	metricPrefix string
}

// allStatuses enumerates every ProcessingStatus value, used by Metrics.
var allStatuses = []models.ProcessingStatus{
	models.StatusToDo,
	models.StatusInProgress,
	models.StatusSucceeded,
	models.StatusFailed,
	models.StatusPermanentlyFailed,
	models.StatusIgnored,
	models.StatusDuplicate,
	models.StatusDeferred,
	models.StatusCancelled,
}

// New creates a Repository backed by collection. inProgressRetryAfter is
// read once here and fixed for the repository's lifetime.
func New[T any](
	collection *mongo.Collection,
	names models.WorkItemFieldNames,
	clk clock.Clock,
	logger *common.Logger,
	inProgressRetryAfter time.Duration,
	metricPrefix string,
) *Repository[T] {
	return &Repository[T]{
		collection:           collection,
		names:                names,
		clock:                clk,
		logger:               logger,
		inProgressRetryAfter: inProgressRetryAfter,
		metricPrefix:         metricPrefix,
	}
}

// logError reports a datastore failure, if a logger was configured.
func (r *Repository[T]) logError(err error, msg string) {
	if r.logger == nil {
		return
	}
	r.logger.Error().Err(err).Msg(msg)
}

// EnsureIndexes creates the indexes required for PullOutstanding to
// perform acceptably at scale. They are ascending and idempotent — safe
// to call on every process start.
func (r *Repository[T]) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: r.names.Status, Value: 1}, {Key: r.names.UpdatedAt, Value: 1}}},
		{Keys: bson.D{{Key: r.names.Status, Value: 1}, {Key: r.names.AvailableAt, Value: 1}}},
		{Keys: bson.D{{Key: r.names.Status, Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		r.logError(err, "Failed to ensure work item indexes")
		return fmt.Errorf("hmrc-mongo: ensure work item indexes: %w", err)
	}
	return nil
}

// PushNew creates a single item with a freshly minted id. initialState is
// a pure function of item yielding the starting status.
func (r *Repository[T]) PushNew(
	ctx context.Context,
	payload T,
	receivedAt, availableAt time.Time,
	initialState func(T) models.ProcessingStatus,
) (*models.WorkItem[T], error) {
	now := r.clock.Now()
	wi := &models.WorkItem[T]{
		ID:          uuid.New().String(),
		ReceivedAt:  receivedAt,
		UpdatedAt:   now,
		AvailableAt: availableAt,
		Status:      initialState(payload),
		Item:        payload,
	}

	if _, err := r.collection.InsertOne(ctx, toDocument(wi, r.names)); err != nil {
		r.logError(err, "Failed to push new work item")
		return nil, fmt.Errorf("hmrc-mongo: push new work item: %w", err)
	}
	return wi, nil
}

// PushNewDefault is the convenience overload of PushNew: availableAt
// defaults to receivedAt and initialState always returns ToDo.
func (r *Repository[T]) PushNewDefault(ctx context.Context, payload T, receivedAt time.Time) (*models.WorkItem[T], error) {
	return r.PushNew(ctx, payload, receivedAt, receivedAt, alwaysToDo[T])
}

func alwaysToDo[T any](T) models.ProcessingStatus { return models.StatusToDo }

// PushNewBatch creates items sharing an identical receivedAt, availableAt,
// and initialState function. It fails with *common.PartialInsertError if
// the datastore acknowledges fewer inserts than items supplied.
func (r *Repository[T]) PushNewBatch(
	ctx context.Context,
	payloads []T,
	receivedAt, availableAt time.Time,
	initialState func(T) models.ProcessingStatus,
) ([]*models.WorkItem[T], error) {
	now := r.clock.Now()
	items := make([]*models.WorkItem[T], len(payloads))
	docs := make([]any, len(payloads))
	for i, payload := range payloads {
		wi := &models.WorkItem[T]{
			ID:          uuid.New().String(),
			ReceivedAt:  receivedAt,
			UpdatedAt:   now,
			AvailableAt: availableAt,
			Status:      initialState(payload),
			Item:        payload,
		}
		items[i] = wi
		docs[i] = toDocument(wi, r.names)
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		r.logError(err, "Failed to push new work item batch")
		return nil, fmt.Errorf("hmrc-mongo: push new work item batch: %w", err)
	}
	if len(result.InsertedIDs) != len(items) {
		partialErr := &common.PartialInsertError{Expected: len(items), Actual: len(result.InsertedIDs)}
		r.logError(partialErr, "Work item batch insert acknowledged fewer documents than supplied")
		return nil, partialErr
	}
	return items, nil
}

// pullUpdate is the "$set" applied by every pullOutstanding bucket: claim
// the item as InProgress and stamp updatedAt.
func (r *Repository[T]) pullUpdate(now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		r.names.Status:    models.StatusInProgress,
		r.names.UpdatedAt: now,
	}}
}

// PullOutstanding atomically selects and claims the next processable
// item, trying each of the three buckets in priority order. Each bucket
// is a single conditional FindOneAndUpdate; concurrent
// callers race on that one operation and MongoDB resolves it — exactly
// one caller receives the item per bucket attempt.
func (r *Repository[T]) PullOutstanding(ctx context.Context, failedBefore, availableBefore time.Time) (*models.WorkItem[T], error) {
	now := r.clock.Now()
	afterOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	// Bucket 1: ToDo and Deferred candidates ready for pickup.
	toDoFilter := bson.M{
		r.names.Status:      bson.M{"$in": []models.ProcessingStatus{models.StatusToDo, models.StatusDeferred}},
		r.names.AvailableAt: bson.M{"$lt": availableBefore},
	}
	if wi, err := r.tryPull(ctx, toDoFilter, now, afterOpts); wi != nil || err != nil {
		return wi, err
	}

	// Bucket 2: Failed candidates past their failedBefore cutoff. The
	// availableAt-absent disjunction accommodates legacy records that
	// predate the field.
	failedFilter := bson.M{
		r.names.Status:    models.StatusFailed,
		r.names.UpdatedAt: bson.M{"$lt": failedBefore},
		"$or": []bson.M{
			{r.names.AvailableAt: bson.M{"$lt": availableBefore}},
			{r.names.AvailableAt: bson.M{"$exists": false}},
		},
	}
	if wi, err := r.tryPull(ctx, failedFilter, now, afterOpts); wi != nil || err != nil {
		return wi, err
	}

	// Bucket 3: stuck in-progress items, rescued only once the
	// in-progress timeout has elapsed — a safety net for crashed workers.
	stuckFilter := bson.M{
		r.names.Status:    models.StatusInProgress,
		r.names.UpdatedAt: bson.M{"$lt": now.Add(-r.inProgressRetryAfter)},
	}
	return r.tryPull(ctx, stuckFilter, now, afterOpts)
}

func (r *Repository[T]) tryPull(ctx context.Context, filter bson.M, now time.Time, opts *options.FindOneAndUpdateOptionsBuilder) (*models.WorkItem[T], error) {
	raw, err := r.collection.FindOneAndUpdate(ctx, filter, r.pullUpdate(now), opts).Raw()
	if err != nil {
		if common.IsNotFound(err) {
			return nil, nil
		}
		r.logError(err, "Failed to pull outstanding work item")
		return nil, fmt.Errorf("hmrc-mongo: pull outstanding work item: %w", err)
	}
	wi, err := fromDocument[T](raw, r.names)
	if err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.WithCorrelationId(wi.ID).Debug().Str("status", string(wi.Status)).Msg("Claimed work item")
	}
	return wi, nil
}

// MarkAs is an unconditional status transition for id. If the new status
// is Failed, failureCount is atomically incremented — this is the only
// path by which failureCount changes.
func (r *Repository[T]) MarkAs(ctx context.Context, id string, status models.ProcessingStatus, availableAt *time.Time) (bool, error) {
	set := bson.M{
		r.names.Status:    status,
		r.names.UpdatedAt: r.clock.Now(),
	}
	if availableAt != nil {
		set[r.names.AvailableAt] = *availableAt
	}
	update := bson.M{"$set": set}
	if status == models.StatusFailed {
		update["$inc"] = bson.M{r.names.FailureCount: 1}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{r.names.ID: id}, update)
	if err != nil {
		r.logError(err, "Failed to mark work item status")
		return false, fmt.Errorf("hmrc-mongo: mark work item status: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// Complete conditionally transitions id to resultStatus only if its
// current status is InProgress — only the worker holding the item may
// terminate it. resultStatus must be one of the terminal statuses
// classified by models.IsResultStatus; anything else is rejected before
// the datastore is touched.
func (r *Repository[T]) Complete(ctx context.Context, id string, resultStatus models.ProcessingStatus) (bool, error) {
	if !models.IsResultStatus(resultStatus) {
		return false, fmt.Errorf("hmrc-mongo: complete work item: %q is not a valid result status", resultStatus)
	}

	filter := bson.M{r.names.ID: id, r.names.Status: models.StatusInProgress}
	update := bson.M{"$set": bson.M{
		r.names.Status:    resultStatus,
		r.names.UpdatedAt: r.clock.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logError(err, "Failed to complete work item")
		return false, fmt.Errorf("hmrc-mongo: complete work item: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// Cancel attempts a transition to Cancelled, only if the item's current
// status is in the cancellable set.
func (r *Repository[T]) Cancel(ctx context.Context, id string) (models.StatusUpdateResult, error) {
	filter := bson.M{r.names.ID: id, r.names.Status: bson.M{"$in": models.CancellableStatuses()}}
	update := bson.M{"$set": bson.M{
		r.names.Status:    models.StatusCancelled,
		r.names.UpdatedAt: r.clock.Now(),
	}}
	before := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	raw, err := r.collection.FindOneAndUpdate(ctx, filter, update, before).Raw()
	if err == nil {
		previous, decodeErr := fromDocument[T](raw, r.names)
		if decodeErr != nil {
			return models.StatusUpdateResult{}, fmt.Errorf("hmrc-mongo: decode cancelled work item: %w", decodeErr)
		}
		if r.logger != nil {
			r.logger.Debug().Str("id", id).Str("previousStatus", string(previous.Status)).Msg("Cancelled work item")
		}
		return models.Updated(previous.Status), nil
	}
	if !common.IsNotFound(err) {
		r.logError(err, "Failed to cancel work item")
		return models.StatusUpdateResult{}, fmt.Errorf("hmrc-mongo: cancel work item: %w", err)
	}

	// The conditional update matched nothing — find out whether that's
	// because the item doesn't exist or because its status simply isn't
	// cancellable right now.
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		r.logError(err, "Failed to look up work item after failed cancel")
		return models.StatusUpdateResult{}, fmt.Errorf("hmrc-mongo: cancel work item lookup: %w", err)
	}
	if existing == nil {
		return models.NotFound(), nil
	}
	return models.NotUpdated(existing.Status), nil
}

// FindByID returns the item with id, or nil if none exists.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*models.WorkItem[T], error) {
	raw, err := r.collection.FindOne(ctx, bson.M{r.names.ID: id}).Raw()
	if err != nil {
		if common.IsNotFound(err) {
			return nil, nil
		}
		r.logError(err, "Failed to find work item by id")
		return nil, fmt.Errorf("hmrc-mongo: find work item by id: %w", err)
	}
	return fromDocument[T](raw, r.names)
}

// Count returns the number of items currently in status.
func (r *Repository[T]) Count(ctx context.Context, status models.ProcessingStatus) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{r.names.Status: status})
	if err != nil {
		r.logError(err, "Failed to count work items")
		return 0, fmt.Errorf("hmrc-mongo: count work items: %w", err)
	}
	return n, nil
}

// Metrics returns one entry per status, keyed "<prefix>.<statusName>",
// valued with the current count — used by external telemetry.
func (r *Repository[T]) Metrics(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(allStatuses))
	for _, status := range allStatuses {
		n, err := r.Count(ctx, status)
		if err != nil {
			return nil, err
		}
		out[fmt.Sprintf("%s.%s", r.metricPrefix, string(status))] = int(n)
	}
	return out, nil
}
