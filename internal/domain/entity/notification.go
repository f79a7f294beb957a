package entity

import "time"

// MovementNotification se publica (fire-and-forget) después de completar una operación.
type MovementNotification struct {
	Operation  string
	ResourceID string
	ActorID    string
	ActorName  string
	Keys       []string
	EventIDs   []int64
	OccurredAt time.Time
}
