package common

import "testing"

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Mongo.URI != "mongodb://localhost:27017" {
		t.Errorf("Mongo.URI default = %q, want %q", cfg.Mongo.URI, "mongodb://localhost:27017")
	}
	if cfg.Queue.CollectionName != "work_items" {
		t.Errorf("Queue.CollectionName default = %q, want %q", cfg.Queue.CollectionName, "work_items")
	}
	if cfg.Queue.InProgressRetryAfterMS != 5*60*1000 {
		t.Errorf("Queue.InProgressRetryAfterMS default = %d, want %d", cfg.Queue.InProgressRetryAfterMS, 5*60*1000)
	}
	if cfg.Lock.CollectionName != "locks" {
		t.Errorf("Lock.CollectionName default = %q, want %q", cfg.Lock.CollectionName, "locks")
	}
}

func TestConfig_MongoURIEnvOverride(t *testing.T) {
	t.Setenv("HMRCMONGO_MONGO_URI", "mongodb://example:27017")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Mongo.URI != "mongodb://example:27017" {
		t.Errorf("Mongo.URI = %q after env override, want %q", cfg.Mongo.URI, "mongodb://example:27017")
	}
}

func TestConfig_InProgressRetryAfterEnvOverride(t *testing.T) {
	t.Setenv("HMRCMONGO_IN_PROGRESS_RETRY_AFTER_MS", "1000")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Queue.InProgressRetryAfterMS != 1000 {
		t.Errorf("Queue.InProgressRetryAfterMS = %d after env override, want 1000", cfg.Queue.InProgressRetryAfterMS)
	}
}

func TestConfig_InProgressRetryAfterEnvOverride_InvalidIgnored(t *testing.T) {
	t.Setenv("HMRCMONGO_IN_PROGRESS_RETRY_AFTER_MS", "not-a-number")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Queue.InProgressRetryAfterMS != 5*60*1000 {
		t.Errorf("Queue.InProgressRetryAfterMS = %d after invalid env override, want unchanged default %d", cfg.Queue.InProgressRetryAfterMS, 5*60*1000)
	}
}

func TestConfig_LockCollectionEnvOverride(t *testing.T) {
	t.Setenv("HMRCMONGO_LOCK_COLLECTION", "custom_locks")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Lock.CollectionName != "custom_locks" {
		t.Errorf("Lock.CollectionName = %q after env override, want %q", cfg.Lock.CollectionName, "custom_locks")
	}
}

func TestLoadConfig_MissingPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/hmrc-mongo.toml")
	if err != nil {
		t.Fatalf("LoadConfig returned error for a missing path: %v", err)
	}
	if cfg.Queue.CollectionName != "work_items" {
		t.Errorf("Queue.CollectionName = %q, want default %q", cfg.Queue.CollectionName, "work_items")
	}
}
