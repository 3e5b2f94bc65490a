// Package handlers contains the HTTP handler implementations for the CDC
// bridge: the node and relationship intake endpoints and the health probe.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"graphbridge/internal/cdc"
	"graphbridge/internal/config"
	"graphbridge/internal/core"
	"graphbridge/internal/types"
)

// EventPublisher is the contract between the intake service and the broker
// publisher. Handlers depend on this abstraction so tests can substitute a
// capturing fake.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, env types.Envelope) error
	Connected() bool
}

// publishResponse is the success body for the intake endpoints.
type publishResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// CDCHandler validates raw change events, delegates normalization and
// publishing, and maps the outcome to an HTTP response. It holds no
// per-request state beyond the publisher's connectivity flag.
type CDCHandler struct {
	publisher EventPublisher
	kafkaCfg  config.KafkaConfig
	service   string
	validator *core.Validator
	logger    *slog.Logger
}

// NewCDCHandler creates a CDCHandler with the provided dependencies.
func NewCDCHandler(
	publisher EventPublisher,
	kafkaCfg config.KafkaConfig,
	service string,
	v *core.Validator,
	l *slog.Logger,
) *CDCHandler {
	if l == nil {
		l = slog.Default()
	}
	return &CDCHandler{
		publisher: publisher,
		kafkaCfg:  kafkaCfg,
		service:   service,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the bridge's routes on the provided chi.Router.
func (h *CDCHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/cdc", func(r chi.Router) {
		r.Post("/node", h.NodeEvent)
		r.Post("/relationship", h.RelationshipEvent)
	})
}

// healthResponse reports the publisher's startup connectivity flag. The flag
// is set once at boot and not re-probed, so it does not detect post-startup
// broker loss.
type healthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	KafkaConnected bool   `json:"kafka_connected"`
}

// Health handles GET /health.
func (h *CDCHandler) Health(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, healthResponse{
		Status:         "healthy",
		Service:        h.service,
		KafkaConnected: h.publisher.Connected(),
	})
}

// NodeEvent handles POST /cdc/node.
//
// Request flow: decode and gate required fields (event_type, entity_id) ->
// normalize with kind NODE -> publish to the node topic keyed by entity_id.
// Validation failures return 400 with no publish attempt; delivery failures
// return 500 so the upstream trigger retry policy can resend the original
// event.
func (h *CDCHandler) NodeEvent(w http.ResponseWriter, r *http.Request) {
	var ev types.NodeEvent
	if err := core.DecodeJSON(w, r, &ev); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(ev); err != nil {
		core.Error(w, r, err)
		return
	}

	env := cdc.NormalizeNode(ev)
	h.publish(w, r, h.kafkaCfg.NodeTopic, env)
}

// RelationshipEvent handles POST /cdc/relationship. Same flow as NodeEvent
// with relationship_type added to the required-field gate; missing
// source_id/target_id are coerced, not rejected.
func (h *CDCHandler) RelationshipEvent(w http.ResponseWriter, r *http.Request) {
	var ev types.RelationshipEvent
	if err := core.DecodeJSON(w, r, &ev); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(ev); err != nil {
		core.Error(w, r, err)
		return
	}

	env := cdc.NormalizeRelationship(ev)
	h.publish(w, r, h.kafkaCfg.RelationshipTopic, env)
}

// publish routes the envelope to its topic using entity_id as the partition
// key, so events for the same entity always land in the same partition.
func (h *CDCHandler) publish(w http.ResponseWriter, r *http.Request, topic string, env types.Envelope) {
	if err := h.publisher.Publish(r.Context(), topic, env.EntityID, env); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to publish change event",
			"event_id", env.EventID,
			"entity_id", env.EntityID,
			"entity_kind", string(env.EntityKind),
			"topic", topic,
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeDeliveryFailed,
			"failed to publish event to kafka",
			err,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, publishResponse{
		Status:  "success",
		EventID: env.EventID,
	})
}
