package scanlog

import (
	"time"
)

// ScanLog is the immutable record of one scan attempt and its outcome. Rows
// are never updated after insert; duplicate suppression and anomaly
// detection both read from this table.
type ScanLog struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// ScanEventID is the client-generated idempotency key. A network retry
	// of the same scan returns the stored row instead of re-running the
	// pipeline.
	ScanEventID string `gorm:"type:varchar(64);not null;unique" json:"scan_event_id"`

	// ActionPointID is zero when the token could not be attributed to any
	// action point (invalid_qr before resolution).
	ActionPointID uint   `gorm:"index:idx_scan_logs_ap_result_created" json:"action_point_id"`
	UserID        string `gorm:"type:varchar(64);not null;index:idx_scan_logs_user_ap_server" json:"user_id"`
	DeviceID      string `gorm:"type:varchar(128);not null" json:"device_id"`

	// TokenJTI identifies which issued token value was presented.
	TokenJTI string `gorm:"type:varchar(64)" json:"token_jti,omitempty"`

	GPSLat *float64 `gorm:"type:decimal(10,7)" json:"gps_lat,omitempty"`
	GPSLon *float64 `gorm:"type:decimal(10,7)" json:"gps_lon,omitempty"`

	ClientTimestamp *time.Time `json:"client_timestamp,omitempty"`
	ServerTimestamp time.Time  `gorm:"not null;index:idx_scan_logs_user_ap_server" json:"server_timestamp"`

	Result          ValidationResult `gorm:"type:varchar(30);not null;index:idx_scan_logs_ap_result_created" json:"validation_result"`
	RejectionReason *string          `gorm:"type:varchar(255)" json:"rejection_reason,omitempty"`

	// DedupKey is set on success rows only: "user:ap:bucket" where bucket is
	// the server timestamp rounded down to the action point's duplicate
	// window. Its unique index is what collapses concurrent identical scans
	// into a single success.
	DedupKey *string `gorm:"type:varchar(160);uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_scan_logs_ap_result_created" json:"created_at"`
}

// TableName sets the table name for the ScanLog model
func (ScanLog) TableName() string {
	return "scan_logs"
}
