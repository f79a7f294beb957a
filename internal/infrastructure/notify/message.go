package notify

import (
	"encoding/json"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// movementMessage forma JSON de una notificación de movimiento (websocket y Kafka).
type movementMessage struct {
	Type       string    `json:"type"`
	Operation  string    `json:"operation"`
	ResourceID string    `json:"resource_id"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name,omitempty"`
	Keys       []string  `json:"keys"`
	EventIDs   []int64   `json:"event_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

func encode(n entity.MovementNotification) ([]byte, error) {
	return json.Marshal(movementMessage{
		Type:       "stock.movement",
		Operation:  n.Operation,
		ResourceID: n.ResourceID,
		ActorID:    n.ActorID,
		ActorName:  n.ActorName,
		Keys:       n.Keys,
		EventIDs:   n.EventIDs,
		OccurredAt: n.OccurredAt,
	})
}
