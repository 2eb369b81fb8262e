// Package events defines the topics and payloads exchanged over Kafka.
// Payloads are encoded once as JSON; consumers decode them with kafka.Decode,
// which enforces the validate tags below.
package events

import (
	"encoding/json"
	"strconv"
)

// Topics.
const (
	TopicFragmentCreated      = "fragment.created"
	TopicAssociationRequested = "association.requested"
	TopicRecomputeRequested   = "cluster.recompute.requested"
	TopicRecomputeCompleted   = "cluster.recompute.completed"
	TopicFragmentDeleted      = "fragment.deleted"
	TopicClusterDeleted       = "cluster.deleted"
	TopicDocumentIngested     = "document.ingested"
	TopicSummaryRequested     = "summary.requested"
	TopicSummaryCompleted     = "summary.completed"
)

// Statuses carried by SummaryCompleted.
const (
	SummaryCompletedOK     = "COMPLETED"
	SummaryCompletedFailed = "FAILED"
)

// Kinds carried by Deleted.
const (
	DeletedHighlight = "highlight"
	DeletedSummary   = "summary"
	DeletedCluster   = "cluster"
)

// MaxSnippets and MaxSnippetLength bound a recompute request.
const (
	MaxSnippets      = 30
	MaxSnippetLength = 255
)

// FragmentCreated is keyed by fragment id.
type FragmentCreated struct {
	FragmentID           uint64 `json:"fragmentId" validate:"required"`
	OwnerID              string `json:"ownerId" validate:"required"`
	SourceDocFingerprint string `json:"sourceDocFingerprint,omitempty"`
	Text                 string `json:"text" validate:"required"`
	Kind                 string `json:"kind" validate:"required,oneof=highlight summary"`
}

// AssociationRequested is the output of a backward gravity search, keyed by
// fragment id.
type AssociationRequested struct {
	ClusterID  uint64  `json:"clusterId" validate:"required"`
	FragmentID uint64  `json:"fragmentId" validate:"required"`
	Score      float32 `json:"score" validate:"gte=0,lte=1"`
}

// RecomputeRequested asks for a new topical radar, keyed by owner.
type RecomputeRequested struct {
	OwnerID  string   `json:"ownerId" validate:"required"`
	Snippets []string `json:"snippets" validate:"max=30,dive,max=255"`
}

// RecomputeCompleted carries the radar produced for an owner.
type RecomputeCompleted struct {
	OwnerID string          `json:"ownerId" validate:"required"`
	Result  json.RawMessage `json:"resultPayload" validate:"required"`
}

// Deleted signals that a fragment or cluster row is gone. OwnerID scopes the
// vector cleanup.
type Deleted struct {
	Kind    string `json:"kind" validate:"required,oneof=highlight summary cluster"`
	ID      uint64 `json:"id" validate:"required"`
	OwnerID string `json:"ownerId" validate:"required"`
}

// DocumentIngested announces an uploaded document, keyed by fingerprint.
type DocumentIngested struct {
	Fingerprint string `json:"fingerprint" validate:"required,len=64,hexadecimal"`
	OwnerID     string `json:"ownerId" validate:"required"`
	ObjectKey   string `json:"objectKey" validate:"required"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// SummaryRequested asks for a generated summary of Text, keyed by owner.
// SummaryID is the id of the pending summary fragment. An empty Text is
// answered with a FAILED completion rather than rejected.
type SummaryRequested struct {
	SummaryID            uint64 `json:"summaryId" validate:"required"`
	OwnerID              string `json:"ownerId" validate:"required"`
	SourceDocFingerprint string `json:"sourceDocFingerprint,omitempty"`
	Text                 string `json:"textContent"`
	Language             string `json:"preferredLanguage,omitempty"`
}

// SummaryCompleted reports the outcome of a SummaryRequested, keyed by
// summary id. Text is the generated summary, or the failure reason.
type SummaryCompleted struct {
	SummaryID uint64 `json:"summaryId" validate:"required"`
	Text      string `json:"generatedText"`
	Status    string `json:"status" validate:"required,oneof=COMPLETED FAILED"`
}

// IDKey renders a numeric id as a message key.
func IDKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}
