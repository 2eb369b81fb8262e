package qdrant

import (
	"fmt"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ── Payload Conversion ───────────────────────────────────────────────────────

// recordPayload flattens a record into the stored payload. Reserved keys
// always win over metadata entries of the same name.
func recordPayload(rec vectordb.Record) map[string]any {
	payload := make(map[string]any, len(rec.Metadata)+4)
	for k, v := range rec.Metadata {
		payload[k] = normalizeValue(v)
	}
	payload[vectordb.FieldType] = rec.Type
	payload[vectordb.FieldOwner] = rec.Owner
	payload[vectordb.FieldText] = rec.Text
	payload[vectordb.FieldCreatedAt] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	return payload
}

// normalizeValue maps integer kinds TryValueMap does not accept to int64.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case int32:
		return int64(n)
	}
	return v
}

// parseScoredPoints converts Qdrant hits into matches.
func parseScoredPoints(resp []*qdrant.ScoredPoint) ([]vectordb.Match, error) {
	matches := make([]vectordb.Match, 0, len(resp))
	for _, p := range resp {
		id, err := extractPointID(p.GetId())
		if err != nil {
			return nil, err
		}

		payload := convertPayload(p.GetPayload())
		m := vectordb.Match{
			ID:       id,
			Score:    p.GetScore(),
			Metadata: payload,
		}
		m.Type, _ = payload[vectordb.FieldType].(string)
		m.Owner, _ = payload[vectordb.FieldOwner].(string)
		m.Text, _ = payload[vectordb.FieldText].(string)
		if ts, ok := payload[vectordb.FieldCreatedAt].(string); ok {
			m.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func extractPointID(id *qdrant.PointId) (string, error) {
	if id == nil {
		return "", fmt.Errorf("qdrant: nil point id")
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num), nil
	case *qdrant.PointId_Uuid:
		return v.Uuid, nil
	default:
		return "", fmt.Errorf("qdrant: unexpected point id type %T", v)
	}
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = extractValue(v)
	}
	return out
}

func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_StructValue:
		if val.StructValue == nil {
			return nil
		}
		return convertPayload(val.StructValue.Fields)
	case *qdrant.Value_ListValue:
		if val.ListValue == nil {
			return nil
		}
		items := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			items[i] = extractValue(item)
		}
		return items
	default:
		return nil
	}
}

// ── Filter Conversion ────────────────────────────────────────────────────────

// convertFilterSet returns nil when fs carries no usable condition.
func convertFilterSet(fs *vectordb.FilterSet) *qdrant.Filter {
	if fs == nil {
		return nil
	}

	filter := &qdrant.Filter{
		Must:    convertConditionSet(fs.Must),
		Should:  convertConditionSet(fs.Should),
		MustNot: convertConditionSet(fs.MustNot),
	}
	if len(filter.Must) == 0 && len(filter.Should) == 0 && len(filter.MustNot) == 0 {
		return nil
	}
	return filter
}

func convertConditionSet(cs *vectordb.ConditionSet) []*qdrant.Condition {
	if cs == nil {
		return nil
	}
	var conditions []*qdrant.Condition
	for _, c := range cs.Conditions {
		if cond := convertCondition(c); cond != nil {
			conditions = append(conditions, cond)
		}
	}
	return conditions
}

func convertCondition(c vectordb.FilterCondition) *qdrant.Condition {
	switch cond := c.(type) {
	case *vectordb.MatchCondition:
		return convertMatch(cond)
	case *vectordb.MatchAnyCondition:
		return convertMatchAny(cond.Field, cond.Values, false)
	case *vectordb.MatchExceptCondition:
		return convertMatchAny(cond.Field, cond.Values, true)
	case *vectordb.TimeRangeCondition:
		return convertTimeRange(cond)
	default:
		return nil
	}
}

func convertMatch(c *vectordb.MatchCondition) *qdrant.Condition {
	switch v := c.Value.(type) {
	case string:
		return qdrant.NewMatch(c.Field, v)
	case bool:
		return qdrant.NewMatchBool(c.Field, v)
	}
	if n, ok := toInt64(c.Value); ok {
		return qdrant.NewMatchInt(c.Field, n)
	}
	return nil
}

func convertMatchAny(field string, values []any, except bool) *qdrant.Condition {
	if len(values) == 0 {
		return nil
	}

	if _, ok := values[0].(string); ok {
		strs := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		if except {
			return qdrant.NewMatchExceptKeywords(field, strs...)
		}
		return qdrant.NewMatchKeywords(field, strs...)
	}

	ints := make([]int64, 0, len(values))
	for _, v := range values {
		if n, ok := toInt64(v); ok {
			ints = append(ints, n)
		}
	}
	if len(ints) == 0 {
		return nil
	}
	if except {
		return qdrant.NewMatchExceptInts(field, ints...)
	}
	return qdrant.NewMatchInts(field, ints...)
}

func convertTimeRange(c *vectordb.TimeRangeCondition) *qdrant.Condition {
	r := &qdrant.DatetimeRange{
		Gt:  toTimestamp(c.Range.Gt),
		Gte: toTimestamp(c.Range.Gte),
		Lt:  toTimestamp(c.Range.Lt),
		Lte: toTimestamp(c.Range.Lte),
	}
	if r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil {
		return nil
	}
	return qdrant.NewDatetimeRange(c.Field, r)
}

func toTimestamp(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return timestamppb.New(*t)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
