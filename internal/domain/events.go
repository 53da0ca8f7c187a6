package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for assignment events.
const (
	EventTypeClusterCreated     = "cluster.created"
	EventTypeSignatureAttached  = "cluster.signature_attached"
	EventTypeSignatureDeferred  = "cluster.signature_deferred"
	EventTypeBatchCompleted     = "cluster.batch_completed"
	AggregateTypeRealAuthor     = "real_author"
	AggregateTypeVirtualAuthor  = "virtual_author"
	AggregateTypeProcessingPass = "processing_pass"
)

// Event is an assignment event published after a cluster state change.
type Event struct {
	EventID       string
	AggregateID   int64
	AggregateType string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// NewEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewEvent(eventType string, aggregateID int64, aggregateType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now(),
	}, nil
}

// ClusterCreatedPayload is the payload for cluster.created events.
type ClusterCreatedPayload struct {
	RealAuthorID    int64   `json:"real_author_id"`
	VirtualAuthorID int64   `json:"virtual_author_id"`
	Probability     float64 `json:"probability"`
}

// SignatureAttachedPayload is the payload for cluster.signature_attached events.
type SignatureAttachedPayload struct {
	RealAuthorIDs   []int64 `json:"real_author_ids"`
	VirtualAuthorID int64   `json:"virtual_author_id"`
	Score           float64 `json:"score"`
	MultiAssigned   bool    `json:"multi_assigned"`
}

// SignatureDeferredPayload is the payload for cluster.signature_deferred events.
type SignatureDeferredPayload struct {
	VirtualAuthorID int64   `json:"virtual_author_id"`
	TiedCandidates  []int64 `json:"tied_candidates"`
	Score           float64 `json:"score"`
}

// BatchCompletedPayload is the payload for cluster.batch_completed events.
type BatchCompletedPayload struct {
	Pass      string `json:"pass"`
	Processed int    `json:"processed"`
	Created   int    `json:"created"`
	Attached  int    `json:"attached"`
	Deferred  int    `json:"deferred"`
	Failed    int    `json:"failed"`
}
