package models

import "time"

// Lock is a named mutual-exclusion record. At most one document exists
// per ID, enforced by a unique index; a lock is held by Owner iff
// now < ExpiryTime.
type Lock struct {
	ID          string    `bson:"_id"`
	Owner       string    `bson:"owner"`
	TimeCreated time.Time `bson:"timeCreated"`
	ExpiryTime  time.Time `bson:"expiryTime"`
}
