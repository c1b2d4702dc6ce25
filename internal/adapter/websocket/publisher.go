package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pscheid92/tallyd/internal/adapter/metrics"
	"github.com/pscheid92/tallyd/internal/domain"
)

// snapshotUpdate is the wire format pushed to websocket clients.
type snapshotUpdate struct {
	Mode      string `json:"mode"`
	ModeCount int64  `json:"mode_count"`
	Total     int64  `json:"total"`
	Distinct  int    `json:"distinct"`
	Status    string `json:"status"`
}

// Publisher implements domain.EventPublisher on top of the hub.
type Publisher struct {
	hub       *Hub
	wsMetrics *metrics.WebSocketMetrics
}

// NewPublisher creates a publisher. wsMetrics may be nil.
func NewPublisher(hub *Hub, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return &Publisher{hub: hub, wsMetrics: wsMetrics}
}

func (p *Publisher) PublishSnapshot(_ context.Context, streamID uuid.UUID, snapshot *domain.TallySnapshot) error {
	update := snapshotUpdate{
		Mode:      snapshot.Mode,
		ModeCount: snapshot.ModeCount,
		Total:     snapshot.Total,
		Distinct:  snapshot.Distinct,
		Status:    "active",
	}
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal snapshot update: %w", err)
	}

	p.hub.Broadcast(streamID, data)

	if p.wsMetrics != nil {
		p.wsMetrics.MessagesPublished.Inc()
	}
	return nil
}
