package entity

import (
	"encoding/json"
	"time"
)

// Acciones de auditoría.
const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
	AuditLogin  = "LOGIN"
	AuditLogout = "LOGOUT"
	AuditView   = "VIEW"
	AuditExport = "EXPORT"
)

// AuditLogEntry registro inmutable de quién hizo qué, cuándo y desde dónde.
// ActorName se desnormaliza al escribir para que la entrada siga siendo legible
// aunque el usuario se renombre o se elimine.
type AuditLogEntry struct {
	ID           string
	ActorUserID  string
	ActorName    string
	Action       string
	ResourceType string
	ResourceID   string
	Details      json.RawMessage
	IPAddress    string
	UserAgent    string
	OccurredAt   time.Time
}

// AuditFilter filtros para listar la auditoría.
type AuditFilter struct {
	ActorUserID  string
	ResourceType string
	ResourceID   string
	Action       string
	From, To     *time.Time
	Limit        int
	Offset       int
}
