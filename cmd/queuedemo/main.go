// Command queuedemo wires the work-item and lock repositories to a real
// MongoDB instance and runs one push/pull/complete cycle and one
// lock/refresh/release cycle, logging each step. It is not a
// web/service framework integration — consumer policy and transport are
// intentionally left to the caller — it exists only to exercise the
// libraries end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/girishkamat/hmrc-mongo/internal/clock"
	"github.com/girishkamat/hmrc-mongo/internal/common"
	"github.com/girishkamat/hmrc-mongo/internal/lock"
	"github.com/girishkamat/hmrc-mongo/internal/models"
	"github.com/girishkamat/hmrc-mongo/internal/queue"
)

// example is a stand-in user payload; the repository treats it as an
// opaque T.
type example struct {
	Message string `bson:"message"`
}

func main() {
	configPath := os.Getenv("HMRCMONGO_CONFIG")
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(cfg.Logging.Level)
	common.PrintBanner(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.Mongo.Database)
	clk := clock.New()

	workItems := queue.New[example](
		db.Collection(cfg.Queue.CollectionName),
		models.DefaultWorkItemFieldNames(),
		clk,
		logger,
		time.Duration(cfg.Queue.InProgressRetryAfterMS)*time.Millisecond,
		cfg.Queue.MetricPrefix,
	)
	if err := workItems.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure work item indexes")
	}

	locks := lock.New(db.Collection(cfg.Lock.CollectionName), clk, logger)

	runQueueCycle(ctx, logger, workItems)
	runLockCycle(ctx, logger, locks)
}

func runQueueCycle(ctx context.Context, logger *common.Logger, repo *queue.Repository[example]) {
	now := time.Now()
	pushed, err := repo.PushNewDefault(ctx, example{Message: "hello from queuedemo"}, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to push work item")
		return
	}
	logger.Info().Str("id", pushed.ID).Msg("Pushed work item")

	claimed, err := repo.PullOutstanding(ctx, now, now.Add(time.Millisecond))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to pull outstanding work item")
		return
	}
	if claimed == nil {
		logger.Warn().Msg("No outstanding work item found")
		return
	}
	logger.Info().Str("id", claimed.ID).Str("message", claimed.Item.Message).Msg("Claimed work item")

	ok, err := repo.Complete(ctx, claimed.ID, models.StatusSucceeded)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to complete work item")
		return
	}
	logger.Info().Bool("completed", ok).Msg("Completed work item")
}

func runLockCycle(ctx context.Context, logger *common.Logger, repo *lock.Repository) {
	const lockID = "queuedemo-singleton"
	const owner = "queuedemo-instance-1"

	acquired, err := repo.Lock(ctx, lockID, owner, 30*time.Second)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acquire lock")
		return
	}
	logger.Info().Bool("acquired", acquired).Msg("Lock acquisition attempted")

	if !acquired {
		return
	}

	refreshed, err := repo.RefreshExpiry(ctx, lockID, owner, time.Minute)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to refresh lock")
		return
	}
	logger.Info().Bool("refreshed", refreshed).Msg("Lock refresh attempted")

	if err := repo.ReleaseLock(ctx, lockID, owner); err != nil {
		logger.Error().Err(err).Msg("Failed to release lock")
		return
	}
	logger.Info().Msg("Lock released")
}
