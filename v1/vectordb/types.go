package vectordb

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Space selects one of the vector collections.
type Space string

const (
	SpaceUser      Space = "user"
	SpaceGuest     Space = "guest"
	SpaceReference Space = "reference"
)

// Spaces lists every known space.
var Spaces = []Space{SpaceUser, SpaceGuest, SpaceReference}

// Writable reports whether records may be written to or deleted from s.
func (s Space) Writable() bool { return s == SpaceUser || s == SpaceGuest }

// OwnerScoped reports whether every operation on s needs an owner.
func (s Space) OwnerScoped() bool { return s == SpaceUser || s == SpaceGuest }

// Validate returns an error for unknown spaces.
func (s Space) Validate() error {
	switch s {
	case SpaceUser, SpaceGuest, SpaceReference:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownSpace, string(s))
}

var (
	// ErrOwnerRequired is returned when an owner-scoped space is used without an owner.
	ErrOwnerRequired = errors.New("vectordb: owner required")

	// ErrReadOnlySpace is returned on writes to SpaceReference.
	ErrReadOnlySpace = errors.New("vectordb: space is read-only")

	// ErrUnknownSpace is returned for spaces outside Spaces.
	ErrUnknownSpace = errors.New("vectordb: unknown space")
)

// Payload keys written by every implementation.
const (
	FieldType       = "type"
	FieldOwner      = "ownerId"
	FieldText       = "text"
	FieldCreatedAt  = "createdAt"
	FieldFragmentID = "fragmentId"
	FieldDBID       = "dbId"
	FieldClusterID  = "clusterId"
	FieldName       = "name"
	FieldDocument   = "fingerprint"
)

// Record types stored under FieldType.
const (
	TypeHighlight = "highlight"
	TypeResume    = "resume"
	TypeGalaxy    = "galaxy"
	TypeDocument  = "document"
)

// Record is a vector plus its metadata.
type Record struct {
	// ID is a UUID. Upsert generates one when empty.
	ID string

	Vector []float32

	Text string

	// Type is one of the Type* constants.
	Type string

	Owner string

	// Metadata holds entity references such as fragmentId or clusterId.
	Metadata map[string]any

	// CreatedAt defaults to the write time.
	CreatedAt time.Time
}

// Match is a single search hit.
type Match struct {
	ID        string
	Score     float32
	Type      string
	Owner     string
	Text      string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Uint reads a numeric metadata field. JSON numbers, integers and numeric
// strings are accepted.
func (m Match) Uint(key string) (uint64, bool) {
	v, ok := m.Metadata[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), n >= 0
	case int:
		return uint64(n), n >= 0
	case float64:
		return uint64(n), n >= 0
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return u, err == nil
	}
	return 0, false
}

// String reads a string metadata field.
func (m Match) String(key string) string {
	s, _ := m.Metadata[key].(string)
	return s
}

// SearchRequest is a single similarity query within one space.
type SearchRequest struct {
	Vector []float32

	// Owner is required for owner-scoped spaces and ignored otherwise.
	Owner string

	// TopK is the maximum number of matches returned.
	TopK int

	// MinScore drops matches scoring below it.
	MinScore float32

	// Filters are applied in addition to the owner condition.
	Filters *FilterSet
}

// Validate checks the request against space s.
func (r SearchRequest) Validate(s Space) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.OwnerScoped() && r.Owner == "" {
		return ErrOwnerRequired
	}
	if len(r.Vector) == 0 {
		return fmt.Errorf("vectordb: vector cannot be empty")
	}
	if r.TopK <= 0 {
		return fmt.Errorf("vectordb: topK must be greater than 0")
	}
	return nil
}
