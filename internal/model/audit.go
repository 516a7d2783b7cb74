package model

import "time"

// AuditEntry records one request that reached the audited API surface.
// CredentialID is a weak reference: nil for unauthenticated or unmatched
// requests, and it may point at a credential that has since been deleted.
type AuditEntry struct {
	ID            int64     `json:"id" db:"id"`
	CredentialID  *int64    `json:"api_key_id" db:"api_key_id"`
	Endpoint      string    `json:"endpoint" db:"endpoint"`
	Method        string    `json:"method" db:"method"`
	StatusCode    int       `json:"status_code" db:"status_code"`
	SourceAddress string    `json:"ip_address" db:"ip_address"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}

// AuditFilter narrows an audit trail query. A zero Limit means no limit.
type AuditFilter struct {
	CredentialID *int64
	Limit        int
	Offset       int
}
