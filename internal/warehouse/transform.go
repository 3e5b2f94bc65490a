package warehouse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"graphbridge/internal/types"
)

// snapshotEventType marks envelopes produced by the bulk loader; downstream
// consumers distinguish initial-load rows from trigger-driven CDC rows by it.
const snapshotEventType = "SNAPSHOT"

// loadSource is the metadata source tag for bulk-loaded envelopes.
const loadSource = "initial_load"

// csvRow is a single CSV record keyed by header column name.
type csvRow map[string]string

// nodeRowToEnvelope builds a SNAPSHOT node envelope from a staging CSV row.
// The row must carry an entity_id; everything else is coerced with the same
// leniency as the live bridge (absent labels become an empty sequence,
// unparseable properties become "{}").
func nodeRowToEnvelope(row csvRow, file string) (types.Envelope, error) {
	entityID := strings.TrimSpace(row["entity_id"])
	if entityID == "" {
		return types.Envelope{}, fmt.Errorf("row has no entity_id")
	}

	return types.Envelope{
		EventID:          uuid.New().String(),
		EventType:        snapshotEventType,
		EventTimestamp:   types.NowTimestamp(),
		EntityID:         entityID,
		EntityKind:       types.KindNode,
		Labels:           parseLabels(row["labels"]),
		PropertiesBefore: "{}",
		PropertiesAfter:  sanitizeProperties(row["properties"]),
		Metadata:         loadMetadata(file),
	}, nil
}

// relationshipRowToEnvelope builds a SNAPSHOT relationship envelope from a
// staging CSV row.
func relationshipRowToEnvelope(row csvRow, file string) (types.Envelope, error) {
	entityID := strings.TrimSpace(row["entity_id"])
	if entityID == "" {
		return types.Envelope{}, fmt.Errorf("row has no entity_id")
	}

	return types.Envelope{
		EventID:          uuid.New().String(),
		EventType:        snapshotEventType,
		EventTimestamp:   types.NowTimestamp(),
		EntityID:         entityID,
		EntityKind:       types.KindRelationship,
		RelationshipType: strings.TrimSpace(row["relationship_type"]),
		SourceID:         strings.TrimSpace(row["source_id"]),
		TargetID:         strings.TrimSpace(row["target_id"]),
		PropertiesBefore: "{}",
		PropertiesAfter:  sanitizeProperties(row["properties"]),
		Metadata:         loadMetadata(file),
	}, nil
}

// parseLabels accepts the two label formats found in Neo4j CSV exports: a
// JSON array string (`["Device","Sensor"]`) or a comma-separated list
// (`Device,Sensor`). Anything unparseable yields an empty sequence.
func parseLabels(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}

	if strings.HasPrefix(raw, "[") {
		var labels []string
		if err := json.Unmarshal([]byte(raw), &labels); err == nil {
			return labels
		}
		return []string{}
	}

	parts := strings.Split(raw, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

// sanitizeProperties validates the properties column as JSON, substituting
// "{}" for empty or malformed values so a bad row degrades instead of
// failing the batch.
func sanitizeProperties(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return "{}"
	}
	return raw
}

// loadMetadata builds the serialized metadata object recorded on every
// bulk-loaded envelope: the source tag, originating file, and load time.
func loadMetadata(file string) string {
	b, err := json.Marshal(map[string]any{
		"source":    loadSource,
		"file":      file,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return `{"source":"` + loadSource + `"}`
	}
	return string(b)
}
