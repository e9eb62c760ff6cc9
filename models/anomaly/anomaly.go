package anomaly

import (
	"time"
)

// FlagKind classifies what pattern a flag describes
type FlagKind string

const (
	// KindExcessiveResets marks a user whose device binding was reset more
	// often than the configured threshold inside the trailing window.
	KindExcessiveResets FlagKind = "excessive_device_resets"
	// KindFailureClustering marks an action point with an abnormal
	// concentration of failed scans, pointing at misconfiguration or abuse.
	KindFailureClustering FlagKind = "failure_clustering"
)

func (fk FlagKind) String() string {
	return string(fk)
}

func (fk FlagKind) IsValid() bool {
	return fk == KindExcessiveResets || fk == KindFailureClustering
}

// Flag is a read-only summary row produced by the periodic anomaly detector.
// Flags never block scans; dashboards consume them.
type Flag struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	Kind FlagKind `gorm:"type:varchar(40);not null;index:idx_anomaly_flags_kind_created" json:"kind"`

	// Exactly one of UserID / ActionPointID is set depending on Kind.
	UserID        *string `gorm:"type:varchar(64);index" json:"user_id,omitempty"`
	ActionPointID *uint   `gorm:"index" json:"action_point_id,omitempty"`

	Count       int       `gorm:"not null" json:"count"`
	WindowStart time.Time `gorm:"not null" json:"window_start"`
	WindowEnd   time.Time `gorm:"not null" json:"window_end"`
	Details     string    `gorm:"type:text" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_anomaly_flags_kind_created" json:"created_at"`
}

// TableName sets the table name for the Flag model
func (Flag) TableName() string {
	return "anomaly_flags"
}
