// Package cdc implements the envelope normalizer: the pure transformation
// from a raw, loosely-structured change event into the canonical envelope
// published to the broker. It performs no I/O and never fails; required-field
// validation happens at the HTTP boundary before normalization.
package cdc

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"graphbridge/internal/types"
)

// metadataSource tags every envelope with the originating system. The bulk
// loader uses its own source tag; this one covers the trigger-driven path.
const metadataSource = "neo4j"

// emptyObject is the fallback for absent or missing JSON-object fields.
const emptyObject = "{}"

// NormalizeNode converts a raw node event into its canonical envelope.
//
// Missing optional fields are coerced, never rejected: event_id and
// event_timestamp are generated if absent, labels defaults to an empty
// sequence, and the properties fields default to "{}".
func NormalizeNode(ev types.NodeEvent) types.Envelope {
	labels := ev.Labels
	if labels == nil {
		labels = []string{}
	}

	return types.Envelope{
		EventID:          orGeneratedID(ev.EventID),
		EventType:        ev.EventType,
		EventTimestamp:   orNowTimestamp(ev.EventTimestamp),
		EntityID:         ev.EntityID,
		EntityKind:       types.KindNode,
		Labels:           labels,
		PropertiesBefore: coerceJSONObject(ev.PropertiesBefore),
		PropertiesAfter:  coerceJSONObject(ev.PropertiesAfter),
		Metadata:         encodeMetadata(ev.Metadata, types.KindNode),
	}
}

// NormalizeRelationship converts a raw relationship event into its canonical
// envelope. Missing source_id/target_id become empty strings, a deliberate
// lenient fallback so an otherwise-valid change event is still delivered.
func NormalizeRelationship(ev types.RelationshipEvent) types.Envelope {
	return types.Envelope{
		EventID:          orGeneratedID(ev.EventID),
		EventType:        ev.EventType,
		EventTimestamp:   orNowTimestamp(ev.EventTimestamp),
		EntityID:         ev.EntityID,
		EntityKind:       types.KindRelationship,
		RelationshipType: ev.RelationshipType,
		SourceID:         ev.SourceID,
		TargetID:         ev.TargetID,
		PropertiesBefore: coerceJSONObject(ev.PropertiesBefore),
		PropertiesAfter:  coerceJSONObject(ev.PropertiesAfter),
		Metadata:         encodeMetadata(ev.Metadata, types.KindRelationship),
	}
}

func orGeneratedID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func orNowTimestamp(ts string) string {
	if ts != "" {
		return ts
	}
	return types.NowTimestamp()
}

// coerceJSONObject resolves a raw properties value into a JSON string:
//   - absent (or JSON null) -> "{}"
//   - JSON string -> the decoded string, passed through without re-validation
//     (a string is trusted as already being in final form)
//   - any other JSON value -> its serialization as sent by the caller
func coerceJSONObject(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyObject
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// encodeMetadata merges the bridge-populated fields into the caller-supplied
// metadata (overwriting caller values for the same keys) and serializes the
// result. Other caller keys are preserved.
func encodeMetadata(meta map[string]any, kind types.EntityKind) string {
	merged := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		merged[k] = v
	}
	merged["source"] = metadataSource
	merged["entity_kind"] = string(kind)

	b, err := json.Marshal(merged)
	if err != nil {
		// Caller metadata decoded from JSON always re-marshals; this branch
		// keeps the transformation total regardless.
		return `{"source":"` + metadataSource + `","entity_kind":"` + string(kind) + `"}`
	}
	return string(b)
}
