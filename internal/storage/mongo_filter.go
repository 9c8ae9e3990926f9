package storage

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskhub/internal/models"
	"taskhub/internal/query"
)

// поля с датами в обеих коллекциях
var mongoTimeFields = map[string]bool{
	"deadline":    true,
	"dateCreated": true,
}

var mongoBoolFields = map[string]bool{
	"completed": true,
}

// toBSONFilter переводит фильтр в документ запроса MongoDB
func toBSONFilter(f query.Filter) bson.D {
	switch v := f.(type) {
	case nil, query.MatchAll:
		return bson.D{}
	case query.And:
		return bson.D{{Key: "$and", Value: toBSONList(v)}}
	case query.Or:
		return bson.D{{Key: "$or", Value: toBSONList(v)}}
	case query.Nor:
		return bson.D{{Key: "$nor", Value: toBSONList(v)}}
	case query.Condition:
		return bson.D{{Key: v.Field, Value: bson.D{{Key: string(v.Op), Value: toBSONValue(v)}}}}
	}
	return bson.D{}
}

func toBSONList(filters []query.Filter) bson.A {
	out := make(bson.A, 0, len(filters))
	for _, f := range filters {
		out = append(out, toBSONFilter(f))
	}
	return out
}

func toBSONValue(c query.Condition) any {
	if c.Op == query.OpExists {
		return c.Value
	}
	if values, ok := c.Value.([]any); ok {
		out := make(bson.A, 0, len(values))
		for _, v := range values {
			out = append(out, convertBSONScalar(c.Field, v))
		}
		return out
	}
	return convertBSONScalar(c.Field, c.Value)
}

// convertBSONScalar приводит строки к ObjectID для _id, к датам и к bool
// для полей соответствующих типов
func convertBSONScalar(field string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if field == "_id" {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
		return s
	}
	if mongoTimeFields[field] {
		if t, err := models.ParseTime(s); err == nil {
			return t
		}
	}
	if mongoBoolFields[field] {
		if b, ok := models.ParseBoolValue(s); ok {
			return b
		}
	}
	return v
}

func toBSONSort(sort query.Sort) bson.D {
	if len(sort) == 0 {
		return nil
	}
	out := make(bson.D, 0, len(sort))
	for _, s := range sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: s.Field, Value: dir})
	}
	return out
}
