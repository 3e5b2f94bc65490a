// Package types defines the shared domain types for the CDC bridge: the raw
// change events accepted at the HTTP boundary, the canonical envelope
// published to Kafka, and the application error model.
package types

import (
	"encoding/json"
	"time"
)

// EntityKind identifies which graph entity a change event describes. It is
// set by the intake handler based on the receiving endpoint, never by the
// caller.
type EntityKind string

const (
	KindNode         EntityKind = "NODE"
	KindRelationship EntityKind = "RELATIONSHIP"
)

// TimestampLayout is the wire format for event timestamps: UTC wall-clock
// time at millisecond precision. Downstream consumers parse this format
// verbatim, so it must not change.
const TimestampLayout = "2006-01-02 15:04:05.000"

// NowTimestamp returns the current UTC time formatted at millisecond
// precision for use as an event_timestamp.
func NowTimestamp() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// Envelope is the canonical, fully-populated change event published to the
// broker. It is constructed once per accepted request by the normalizer and
// is immutable afterwards.
//
// PropertiesBefore, PropertiesAfter and Metadata always hold serialized JSON
// object strings; the normalizer guarantees this regardless of whether the
// caller sent structured objects or pre-serialized strings.
//
// Kind-specific fields follow the entity kind: Labels is populated for node
// envelopes (empty slice when the caller sent none), RelationshipType,
// SourceID and TargetID for relationship envelopes (empty string when the
// caller sent none). The JSON encoding emits only the fields belonging to
// the envelope's kind.
type Envelope struct {
	EventID        string
	EventType      string
	EventTimestamp string
	EntityID       string
	EntityKind     EntityKind

	// Node envelopes only.
	Labels []string

	// Relationship envelopes only.
	RelationshipType string
	SourceID         string
	TargetID         string

	PropertiesBefore string
	PropertiesAfter  string
	Metadata         string
}

// nodeEnvelopeJSON is the wire shape of a node envelope. Labels is emitted
// even when empty so consumers can rely on its presence.
type nodeEnvelopeJSON struct {
	EventID          string     `json:"event_id"`
	EventType        string     `json:"event_type"`
	EventTimestamp   string     `json:"event_timestamp"`
	EntityID         string     `json:"entity_id"`
	EntityKind       EntityKind `json:"entity_kind"`
	Labels           []string   `json:"labels"`
	PropertiesBefore string     `json:"properties_before"`
	PropertiesAfter  string     `json:"properties_after"`
	Metadata         string     `json:"metadata"`
}

// relationshipEnvelopeJSON is the wire shape of a relationship envelope.
// SourceID and TargetID are emitted even when empty.
type relationshipEnvelopeJSON struct {
	EventID          string     `json:"event_id"`
	EventType        string     `json:"event_type"`
	EventTimestamp   string     `json:"event_timestamp"`
	EntityID         string     `json:"entity_id"`
	EntityKind       EntityKind `json:"entity_kind"`
	RelationshipType string     `json:"relationship_type"`
	SourceID         string     `json:"source_id"`
	TargetID         string     `json:"target_id"`
	PropertiesBefore string     `json:"properties_before"`
	PropertiesAfter  string     `json:"properties_after"`
	Metadata         string     `json:"metadata"`
}

// MarshalJSON serializes the envelope in its kind-specific wire shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.EntityKind == KindRelationship {
		return json.Marshal(relationshipEnvelopeJSON{
			EventID:          e.EventID,
			EventType:        e.EventType,
			EventTimestamp:   e.EventTimestamp,
			EntityID:         e.EntityID,
			EntityKind:       e.EntityKind,
			RelationshipType: e.RelationshipType,
			SourceID:         e.SourceID,
			TargetID:         e.TargetID,
			PropertiesBefore: e.PropertiesBefore,
			PropertiesAfter:  e.PropertiesAfter,
			Metadata:         e.Metadata,
		})
	}

	labels := e.Labels
	if labels == nil {
		labels = []string{}
	}
	return json.Marshal(nodeEnvelopeJSON{
		EventID:          e.EventID,
		EventType:        e.EventType,
		EventTimestamp:   e.EventTimestamp,
		EntityID:         e.EntityID,
		EntityKind:       e.EntityKind,
		Labels:           labels,
		PropertiesBefore: e.PropertiesBefore,
		PropertiesAfter:  e.PropertiesAfter,
		Metadata:         e.Metadata,
	})
}
