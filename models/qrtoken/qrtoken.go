package qrtoken

import (
	"time"

	"campus-access/models/actionpoint"
)

// QRToken represents an issued QR token value for an action point. At most
// one row per action point is active at any instant; rotation and explicit
// regeneration retire the old row before minting a new one.
type QRToken struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Foreign key for action point relationship
	ActionPointID uint                    `gorm:"not null;index:idx_qr_tokens_ap_active" json:"action_point_id"`
	ActionPoint   actionpoint.ActionPoint `gorm:"foreignKey:ActionPointID" json:"action_point"`

	// Value is the signed JWT embedded in the QR image. The signature makes
	// tampered action point ids or expiries detectable without a DB lookup.
	Value string `gorm:"type:text;not null" json:"value"`

	// JTI is the unique token id claim, used to pin mode_b scans to the
	// currently active static value.
	JTI string `gorm:"type:varchar(64);not null;unique" json:"jti"`

	Mode     actionpoint.QRMode `gorm:"type:varchar(10);not null" json:"mode"`
	IssuedAt time.Time          `gorm:"not null" json:"issued_at"`

	// ExpiresAt is set for mode_a only; mode_b tokens never auto-expire.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	IsActive  bool       `gorm:"default:true;index:idx_qr_tokens_ap_active" json:"is_active"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for the QRToken model
func (QRToken) TableName() string {
	return "qr_tokens"
}

// IsExpired reports whether the token has passed its expiry plus the given
// grace period. Tokens without an expiry (mode_b) never expire.
func (t *QRToken) IsExpired(at time.Time, grace time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return at.After(t.ExpiresAt.Add(grace))
}
