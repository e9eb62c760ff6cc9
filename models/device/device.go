package device

import (
	"time"
)

// RegistrationStatus represents the lifecycle state of a device registration
type RegistrationStatus string

const (
	StatusPendingSMSVerification RegistrationStatus = "pending_sms_verification"
	StatusActive                 RegistrationStatus = "active"
	StatusRevoked                RegistrationStatus = "revoked"
	StatusExpired                RegistrationStatus = "expired"
	StatusTransferred            RegistrationStatus = "transferred"
	StatusVerificationFailed     RegistrationStatus = "verification_failed"
	StatusSuspended              RegistrationStatus = "suspended"
)

// Helper methods for RegistrationStatus
func (rs RegistrationStatus) String() string {
	return string(rs)
}

func (rs RegistrationStatus) IsValid() bool {
	switch rs {
	case StatusPendingSMSVerification, StatusActive, StatusRevoked, StatusExpired,
		StatusTransferred, StatusVerificationFailed, StatusSuspended:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the registration can no longer become active
func (rs RegistrationStatus) IsTerminal() bool {
	switch rs {
	case StatusRevoked, StatusExpired, StatusTransferred, StatusVerificationFailed:
		return true
	default:
		return false
	}
}

// Registration binds a user to exactly one trusted mobile device. Only one
// registration per user may be in the active state at any time; resets revoke
// the current row and create a fresh pending one.
type Registration struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID   string `gorm:"type:varchar(64);not null;index:idx_device_registrations_user_status" json:"user_id"`
	DeviceID string `gorm:"type:varchar(128);not null;index" json:"device_id"`
	Platform string `gorm:"type:varchar(20);not null" json:"platform"`

	VerifiedPhone string             `gorm:"type:varchar(20);not null" json:"verified_phone"`
	Status        RegistrationStatus `gorm:"type:varchar(30);not null;index:idx_device_registrations_user_status" json:"status"`

	// ResetCount counts how many times this user's binding has been reset,
	// carried forward to each new registration row for anomaly scoring.
	ResetCount  int        `gorm:"default:0" json:"reset_count"`
	LastResetAt *time.Time `json:"last_reset_at,omitempty"`

	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`

	CreatedBy string    `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy string    `gorm:"type:varchar(255)" json:"updated_by,omitempty"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for the Registration model
func (Registration) TableName() string {
	return "device_registrations"
}

// IsUsable reports whether scans from this registration may be accepted
func (r *Registration) IsUsable() bool {
	return r.Status == StatusActive
}
