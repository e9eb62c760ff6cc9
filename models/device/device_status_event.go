package device

import (
	"time"
)

// StatusEvent represents a status change event for a device registration.
// Rows are append-only; the anomaly detector scores reset churn from them.
type StatusEvent struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Foreign key for registration relationship
	RegistrationID uint         `gorm:"not null;index" json:"registration_id"`
	Registration   Registration `gorm:"foreignKey:RegistrationID" json:"registration"`

	UserID string             `gorm:"type:varchar(64);not null;index:idx_device_status_events_user_created" json:"user_id"`
	Status RegistrationStatus `gorm:"type:varchar(30);not null" json:"status"`
	Reason string             `gorm:"type:varchar(255)" json:"reason,omitempty"`

	// AdminNotes is filled for administrative resets only.
	AdminNotes *string `gorm:"type:text" json:"admin_notes,omitempty"`

	CreatedBy string    `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_device_status_events_user_created" json:"created_at"`
}

// TableName sets the table name for the StatusEvent model
func (StatusEvent) TableName() string {
	return "device_status_events"
}
