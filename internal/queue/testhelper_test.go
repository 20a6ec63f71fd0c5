package queue

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/girishkamat/hmrc-mongo/internal/common"
	tcommon "github.com/girishkamat/hmrc-mongo/tests/common"
)

// testCollection connects to the shared MongoDB container and returns a
// collection scoped to a database unique to this test, for isolation.
func testCollection(t *testing.T) *mongo.Collection {
	t.Helper()

	uri := tcommon.StartMongoDB(t)
	ctx := context.Background()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect to MongoDB: %v", err)
	}
	t.Cleanup(func() { client.Disconnect(ctx) })

	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)

	return client.Database(dbName).Collection("work_items")
}

func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
