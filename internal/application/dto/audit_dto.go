package dto

import (
	"encoding/json"
	"time"
)

// AuditLogQuery filtros de GET /api/audit-logs. From/To en RFC3339.
type AuditLogQuery struct {
	Limit        int    `query:"limit"`
	Offset       int    `query:"offset"`
	ActorUserID  string `query:"actor_user_id"`
	ResourceType string `query:"resource_type"`
	ResourceID   string `query:"resource_id"`
	Action       string `query:"action"`
	From         string `query:"from"`
	To           string `query:"to"`
}

// AuditLogResponse entrada de auditoría.
type AuditLogResponse struct {
	ID           string          `json:"id"`
	ActorUserID  string          `json:"actor_user_id"`
	ActorName    string          `json:"actor_name"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Details      json.RawMessage `json:"details"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// AuditLogListResponse lista paginada de auditoría.
type AuditLogListResponse struct {
	Items []AuditLogResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
