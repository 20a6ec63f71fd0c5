// Package common provides shared test infrastructure: a single shared
// MongoDB testcontainer for the whole test binary, gated behind an env
// var so Docker-backed tests never run unless explicitly enabled.
package common

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

var (
	mongoOnce      sync.Once
	mongoContainer *mongodb.MongoDBContainer
	mongoError     error
	mongoURI       string
)

// StartMongoDB starts a shared MongoDB container for the test run, or
// skips the test if HMRCMONGO_TEST_MONGO is not set to "true". Uses
// sync.Once so only one container is created per process.
func StartMongoDB(t *testing.T) string {
	t.Helper()

	if os.Getenv("HMRCMONGO_TEST_MONGO") != "true" {
		t.Skip("MongoDB-backed tests disabled (set HMRCMONGO_TEST_MONGO=true to enable)")
	}

	mongoOnce.Do(func() {
		ctx := context.Background()

		container, err := mongodb.Run(ctx, "mongo:7")
		if err != nil {
			mongoError = fmt.Errorf("start MongoDB container: %w", err)
			return
		}
		mongoContainer = container

		uri, err := container.ConnectionString(ctx)
		if err != nil {
			mongoError = fmt.Errorf("get MongoDB connection string: %w", err)
			return
		}
		mongoURI = uri
	})

	if mongoError != nil {
		t.Fatalf("MongoDB container failed: %v", mongoError)
	}

	return mongoURI
}
