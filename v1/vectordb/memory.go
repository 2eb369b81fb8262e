package vectordb

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with exact cosine scoring. It applies
// the same space, owner and filter rules as the Qdrant implementation and is
// meant for tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[Space]map[string]Record
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		spaces: make(map[Space]map[string]Record),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Seed writes records into any space, the read-only one included.
func (m *MemoryStore) Seed(space Space, records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.put(space, rec)
	}
}

// Len returns the number of records in space.
func (m *MemoryStore) Len(space Space) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.spaces[space])
}

// Upsert implements Store.
func (m *MemoryStore) Upsert(_ context.Context, space Space, rec Record) (string, error) {
	if err := checkWritable(space, rec.Owner); err != nil {
		return "", err
	}
	if len(rec.Vector) == 0 {
		return "", fmt.Errorf("vectordb: vector cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(space, rec), nil
}

func (m *MemoryStore) put(space Space, rec Record) string {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	rec.Vector = append([]float32(nil), rec.Vector...)

	if m.spaces[space] == nil {
		m.spaces[space] = make(map[string]Record)
	}
	m.spaces[space][rec.ID] = rec
	return rec.ID
}

// Search implements Store.
func (m *MemoryStore) Search(_ context.Context, space Space, req SearchRequest) ([]Match, error) {
	if err := req.Validate(space); err != nil {
		return nil, err
	}
	filters := req.Filters
	if space.OwnerScoped() {
		filters = WithOwner(filters, req.Owner)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, rec := range m.spaces[space] {
		payload := memoryPayload(rec)
		if !filterMatches(filters, payload) {
			continue
		}
		matches = append(matches, Match{
			ID:        rec.ID,
			Score:     cosine(req.Vector, rec.Vector),
			Type:      rec.Type,
			Owner:     rec.Owner,
			Text:      rec.Text,
			Metadata:  payload,
			CreatedAt: rec.CreatedAt,
		})
	}
	return Normalize(matches, req.TopK, req.MinScore), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, space Space, owner string, ids ...string) error {
	if err := checkWritable(space, owner); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if rec, ok := m.spaces[space][id]; ok && rec.Owner == owner {
			delete(m.spaces[space], id)
		}
	}
	return nil
}

// DeleteByFilter implements Store.
func (m *MemoryStore) DeleteByFilter(_ context.Context, space Space, owner string, filters *FilterSet) error {
	if err := checkWritable(space, owner); err != nil {
		return err
	}
	if filters.Empty() {
		return fmt.Errorf("vectordb: delete by filter requires at least one condition")
	}
	filters = WithOwner(filters, owner)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.spaces[space] {
		if filterMatches(filters, memoryPayload(rec)) {
			delete(m.spaces[space], id)
		}
	}
	return nil
}

func checkWritable(space Space, owner string) error {
	if err := space.Validate(); err != nil {
		return err
	}
	if !space.Writable() {
		return ErrReadOnlySpace
	}
	if space.OwnerScoped() && owner == "" {
		return ErrOwnerRequired
	}
	return nil
}

func memoryPayload(rec Record) map[string]any {
	payload := make(map[string]any, len(rec.Metadata)+4)
	for k, v := range rec.Metadata {
		payload[k] = v
	}
	payload[FieldType] = rec.Type
	payload[FieldOwner] = rec.Owner
	payload[FieldText] = rec.Text
	payload[FieldCreatedAt] = rec.CreatedAt
	return payload
}

func filterMatches(fs *FilterSet, payload map[string]any) bool {
	if fs == nil {
		return true
	}
	if fs.Must != nil {
		for _, c := range fs.Must.Conditions {
			if !conditionMatches(c, payload) {
				return false
			}
		}
	}
	if fs.Should != nil && len(fs.Should.Conditions) > 0 {
		matched := false
		for _, c := range fs.Should.Conditions {
			if conditionMatches(c, payload) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if fs.MustNot != nil {
		for _, c := range fs.MustNot.Conditions {
			if conditionMatches(c, payload) {
				return false
			}
		}
	}
	return true
}

func conditionMatches(c FilterCondition, payload map[string]any) bool {
	switch cond := c.(type) {
	case *MatchCondition:
		return equalValues(payload[cond.Field], cond.Value)
	case *MatchAnyCondition:
		return containsValue(cond.Values, payload[cond.Field])
	case *MatchExceptCondition:
		return !containsValue(cond.Values, payload[cond.Field])
	case *TimeRangeCondition:
		t, ok := payload[cond.Field].(time.Time)
		return ok && inRange(t, cond.Range)
	}
	return false
}

func containsValue(values []any, v any) bool {
	for _, candidate := range values {
		if equalValues(v, candidate) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func inRange(t time.Time, r TimeRange) bool {
	if r.Gt != nil && !t.After(*r.Gt) {
		return false
	}
	if r.Gte != nil && t.Before(*r.Gte) {
		return false
	}
	if r.Lt != nil && !t.Before(*r.Lt) {
		return false
	}
	if r.Lte != nil && t.After(*r.Lte) {
		return false
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
