// Package model holds the relational entities. Relations are plain id
// columns; nothing is lazily loaded.
package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
)

// FragmentKind discriminates highlights from AI summaries.
type FragmentKind string

const (
	KindHighlight FragmentKind = "highlight"
	KindSummary   FragmentKind = "summary"
)

// Valid reports whether k is a known kind.
func (k FragmentKind) Valid() bool {
	return k == KindHighlight || k == KindSummary
}

// FragmentStatus tracks processing of a fragment.
type FragmentStatus string

const (
	StatusPending   FragmentStatus = "pending"
	StatusProcessed FragmentStatus = "processed"
	StatusFailed    FragmentStatus = "failed"
)

// MaxContentLength is the character budget of Fragment.Content.
const MaxContentLength = 3900

// Fragment is a highlight or summary owned by one user.
type Fragment struct {
	ID                uint64         `gorm:"primaryKey" json:"id"`
	OwnerID           string         `gorm:"size:128;not null;index:idx_fragment_owner_status,priority:1" json:"ownerId"`
	SourceFingerprint string         `gorm:"size:64;index" json:"sourceFingerprint,omitempty"`
	Content           string         `gorm:"type:text;not null" json:"content"`
	Kind              FragmentKind   `gorm:"size:16;not null" json:"kind"`
	Status            FragmentStatus `gorm:"size:16;not null;index:idx_fragment_owner_status,priority:2" json:"status"`
	CreatedAt         time.Time      `gorm:"index" json:"createdAt"`
}

// Cluster is a user-named group of fragments ("galaxy"). NameKey is the
// normalised name backing the per-owner unique index.
type Cluster struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	OwnerID   string    `gorm:"size:128;not null;uniqueIndex:idx_cluster_owner_name,priority:1" json:"ownerId"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	NameKey   string    `gorm:"size:255;not null;uniqueIndex:idx_cluster_owner_name,priority:2" json:"-"`
	Color     string    `gorm:"size:16" json:"color,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Active    bool      `gorm:"not null" json:"active"`
	VectorID  string    `gorm:"size:64" json:"vectorId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NameKey normalises a cluster name for uniqueness checks.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Association is a scored edge from one cluster to one fragment.
type Association struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	ClusterID  uint64    `gorm:"not null;uniqueIndex:idx_association_pair,priority:1" json:"clusterId"`
	FragmentID uint64    `gorm:"not null;uniqueIndex:idx_association_pair,priority:2;index" json:"fragmentId"`
	Score      float32   `gorm:"not null" json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Profile stores the latest topical radar of a user.
type Profile struct {
	OwnerID   string         `gorm:"primaryKey;size:128" json:"ownerId"`
	Radar     datatypes.JSON `json:"radar"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// DocumentAnalysis is the persisted result of analysing an uploaded document.
type DocumentAnalysis struct {
	Fingerprint string         `gorm:"primaryKey;size:64" json:"fingerprint"`
	OwnerID     string         `gorm:"size:128;not null;index" json:"ownerId"`
	Name        string         `gorm:"size:255" json:"name"`
	ContentType string         `gorm:"size:128" json:"contentType,omitempty"`
	Summary     string         `gorm:"type:text" json:"summary"`
	Tags        datatypes.JSON `json:"tags"`
	Sentiment   string         `gorm:"size:32" json:"sentiment"`
	Degraded    bool           `gorm:"not null" json:"degraded"`
	VectorID    string         `gorm:"size:64" json:"vectorId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// All lists the entities for migration.
func All() []interface{} {
	return []interface{}{
		&Fragment{},
		&Cluster{},
		&Association{},
		&Profile{},
		&DocumentAnalysis{},
	}
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
