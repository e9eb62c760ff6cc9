package actionpoint

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ActionPoint represents a configured physical access point (mess hall,
// hostel gate, library counter, exam hall, ...) where a QR scan authorizes
// a real-world action.
type ActionPoint struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	LocationCode string `gorm:"type:varchar(64);not null;unique" json:"location_code"`

	ActionType    ActionType    `gorm:"type:varchar(50);not null" json:"action_type"`
	QRMode        QRMode        `gorm:"type:varchar(10);not null" json:"qr_mode"`
	SecurityLevel SecurityLevel `gorm:"type:varchar(20);not null;default:'standard'" json:"security_level"`

	// Geofence center. Optional; when set, GeoRadiusMeters must be positive.
	GeoLat          *float64 `gorm:"type:decimal(10,7)" json:"geo_lat,omitempty"`
	GeoLon          *float64 `gorm:"type:decimal(10,7)" json:"geo_lon,omitempty"`
	GeoRadiusMeters float64  `gorm:"type:decimal(10,2);default:0" json:"geo_radius_meters"`

	// QRRotationMinutes is meaningful only for mode_a.
	QRRotationMinutes      int `gorm:"default:0" json:"qr_rotation_minutes"`
	DuplicateWindowMinutes int `gorm:"default:0" json:"duplicate_window_minutes"`

	// Active schedule. Hours are "HH:MM" in server local time; days are
	// weekday indices 0 (Sunday) through 6 (Saturday). Nil means always.
	ActiveHoursStart *string  `gorm:"type:varchar(5)" json:"active_hours_start,omitempty"`
	ActiveHoursEnd   *string  `gorm:"type:varchar(5)" json:"active_hours_end,omitempty"`
	ActiveDays       IntSlice `gorm:"type:json" json:"active_days,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedBy string     `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy string     `gorm:"type:varchar(255)" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName sets the table name for the ActionPoint model
func (ActionPoint) TableName() string {
	return "action_points"
}

// HasGeofence returns true when a geofence center is configured
func (ap *ActionPoint) HasGeofence() bool {
	return ap.GeoLat != nil && ap.GeoLon != nil
}

// InSchedule reports whether t falls inside the configured active hours and
// active days. An action point without schedule fields is always in schedule.
func (ap *ActionPoint) InSchedule(t time.Time) bool {
	if len(ap.ActiveDays) > 0 {
		day := int(t.Weekday())
		found := false
		for _, d := range ap.ActiveDays {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if ap.ActiveHoursStart != nil && ap.ActiveHoursEnd != nil {
		hhmm := t.Format("15:04")
		start := *ap.ActiveHoursStart
		end := *ap.ActiveHoursEnd
		if start <= end {
			if hhmm < start || hhmm > end {
				return false
			}
		} else {
			// Window crosses midnight (e.g. hostel gate 20:00-06:00).
			if hhmm < start && hhmm > end {
				return false
			}
		}
	}

	return true
}

// IntSlice is a custom type to store weekday indices as a JSON column
type IntSlice []int

// Scan implements the Scanner interface for database deserialization
func (is *IntSlice) Scan(value interface{}) error {
	if value == nil {
		*is = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}

	return json.Unmarshal(bytes, is)
}

// Value implements the driver Valuer interface for database serialization
func (is IntSlice) Value() (driver.Value, error) {
	if is == nil {
		return nil, nil
	}
	return json.Marshal(is)
}
