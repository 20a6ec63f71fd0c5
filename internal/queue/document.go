package queue

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/girishkamat/hmrc-mongo/internal/models"
)

// toDocument builds the BSON representation of item using the
// repository's configured field names — names are never hard-coded into
// the query/update construction below.
func toDocument[T any](item *models.WorkItem[T], names models.WorkItemFieldNames) bson.D {
	return bson.D{
		{Key: names.ID, Value: item.ID},
		{Key: names.ReceivedAt, Value: item.ReceivedAt},
		{Key: names.UpdatedAt, Value: item.UpdatedAt},
		{Key: names.AvailableAt, Value: item.AvailableAt},
		{Key: names.Status, Value: item.Status},
		{Key: names.FailureCount, Value: item.FailureCount},
		{Key: names.Item, Value: item.Item},
	}
}

// fromDocument decodes a BSON document into a WorkItem[T] using the
// repository's configured field names. Documents are decoded through
// bson.M rather than struct tags precisely because the field names are
// runtime configuration, not compile-time tags.
func fromDocument[T any](raw bson.Raw, names models.WorkItemFieldNames) (*models.WorkItem[T], error) {
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	item := &models.WorkItem[T]{
		ID:           asString(m[names.ID]),
		ReceivedAt:   asTime(m[names.ReceivedAt]),
		UpdatedAt:    asTime(m[names.UpdatedAt]),
		AvailableAt:  asTime(m[names.AvailableAt]),
		Status:       models.ProcessingStatus(asString(m[names.Status])),
		FailureCount: asInt(m[names.FailureCount]),
	}

	if raw, ok := m[names.Item]; ok {
		encoded, err := bson.Marshal(bson.M{"v": raw})
		if err != nil {
			return nil, err
		}
		var wrapper struct {
			V T `bson:"v"`
		}
		if err := bson.Unmarshal(encoded, &wrapper); err != nil {
			return nil, err
		}
		item.Item = wrapper.V
	}

	return item, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case bson.DateTime:
		return t.Time()
	default:
		return time.Time{}
	}
}
