package handler

import (
	"time"

	"github.com/mssola/useragent"

	"chronicle/internal/audit"
)

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

type overviewResponse struct {
	Events   []entryDTO    `json:"events"`
	Changes  []changeDTO   `json:"changes"`
	Access   []accessDTO   `json:"access"`
	Security []securityDTO `json:"security"`
}

type entryDTO struct {
	ID          string    `json:"id"`
	ActorID     *string   `json:"actor_id,omitempty"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    *string   `json:"entity_id,omitempty"`
	EntityName  *string   `json:"entity_name,omitempty"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Category    string    `json:"category"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	BatchID     *string   `json:"batch_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type changeDTO struct {
	EntryID    string    `json:"entry_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	FieldName  *string   `json:"field_name,omitempty"`
	OldValue   *string   `json:"old_value,omitempty"`
	NewValue   *string   `json:"new_value,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type accessDTO struct {
	ID          string    `json:"id"`
	ActorID     *string   `json:"actor_id,omitempty"`
	EntityType  string    `json:"entity_type"`
	AccessType  string    `json:"access_type"`
	DataScope   string    `json:"data_scope"`
	ResultCount int       `json:"result_count"`
	Timestamp   time.Time `json:"timestamp"`
}

type securityDTO struct {
	ID          string    `json:"id"`
	ActorID     *string   `json:"actor_id,omitempty"`
	EventType   string    `json:"event_type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Client      string    `json:"client,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func entryFromModel(e audit.AuditLogEntry) entryDTO {
	dto := entryDTO{
		ID:          e.ID.String(),
		Action:      string(e.Action),
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		EntityName:  e.EntityName,
		Description: e.Description,
		Severity:    string(e.Severity),
		Category:    string(e.Category),
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		Timestamp:   e.Timestamp,
	}
	if e.ActorID != nil {
		s := e.ActorID.String()
		dto.ActorID = &s
	}
	if e.BatchID != nil {
		s := e.BatchID.String()
		dto.BatchID = &s
	}
	return dto
}

func changeFromModel(c audit.ChangeRecord) changeDTO {
	return changeDTO{
		EntryID:    c.EntryID.String(),
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Action:     string(c.Action),
		FieldName:  c.FieldName,
		OldValue:   c.OldValue,
		NewValue:   c.NewValue,
		Timestamp:  c.Timestamp,
	}
}

func accessFromModel(r audit.DataAccessRecord) accessDTO {
	dto := accessDTO{
		ID:          r.ID.String(),
		EntityType:  r.EntityType,
		AccessType:  string(r.AccessType),
		DataScope:   r.DataScope,
		ResultCount: r.ResultCount,
		Timestamp:   r.Timestamp,
	}
	if r.ActorID != nil {
		s := r.ActorID.String()
		dto.ActorID = &s
	}
	return dto
}

func securityFromModel(ev audit.SecurityEvent) securityDTO {
	dto := securityDTO{
		ID:          ev.ID.String(),
		EventType:   string(ev.EventType),
		Severity:    string(ev.Severity),
		Description: ev.Description,
		IPAddress:   ev.IPAddress,
		UserAgent:   ev.UserAgent,
		Client:      clientSummary(ev.UserAgent),
		Timestamp:   ev.Timestamp,
	}
	if ev.ActorID != nil {
		s := ev.ActorID.String()
		dto.ActorID = &s
	}
	return dto
}

// clientSummary condenses a raw User-Agent header into a display string like
// "Chrome 126.0 on Linux". Empty when the header is absent or unrecognized.
func clientSummary(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return ""
	}
	out := name
	if version != "" {
		out += " " + version
	}
	if os := ua.OS(); os != "" {
		out += " on " + os
	}
	return out
}
