package types

import "encoding/json"

// NodeEvent is the raw change event accepted on POST /cdc/node. Only the
// fields with a `required` tag can cause rejection; everything else is
// optional and coerced by the normalizer. Unknown keys in the request body
// are ignored.
//
// PropertiesBefore and PropertiesAfter are kept as raw JSON because callers
// may send either a structured object or a pre-serialized JSON string; the
// normalizer resolves both into a JSON object string.
type NodeEvent struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type" validate:"required"`
	EventTimestamp   string          `json:"event_timestamp"`
	EntityID         string          `json:"entity_id" validate:"required"`
	Labels           []string        `json:"labels"`
	PropertiesBefore json.RawMessage `json:"properties_before"`
	PropertiesAfter  json.RawMessage `json:"properties_after"`
	Metadata         map[string]any  `json:"metadata"`
}

// RelationshipEvent is the raw change event accepted on
// POST /cdc/relationship. SourceID and TargetID are deliberately optional:
// a missing endpoint is coerced to an empty string rather than rejected.
type RelationshipEvent struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type" validate:"required"`
	EventTimestamp   string          `json:"event_timestamp"`
	EntityID         string          `json:"entity_id" validate:"required"`
	RelationshipType string          `json:"relationship_type" validate:"required"`
	SourceID         string          `json:"source_id"`
	TargetID         string          `json:"target_id"`
	PropertiesBefore json.RawMessage `json:"properties_before"`
	PropertiesAfter  json.RawMessage `json:"properties_after"`
	Metadata         map[string]any  `json:"metadata"`
}
