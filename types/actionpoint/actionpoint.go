package actionpoint

import "github.com/go-playground/validator/v10"

// StoreActionPointRequest represents the request payload for creating an action point
type StoreActionPointRequest struct {
	Name         string `json:"name" validate:"required"`
	LocationCode string `json:"location_code" validate:"required,min=2,max=64"`
	ActionType   string `json:"action_type" validate:"required"`
	QRMode       string `json:"qr_mode" validate:"required,oneof=mode_a mode_b"`

	SecurityLevel string `json:"security_level" validate:"omitempty,oneof=standard elevated strict"`

	GeoLat          *float64 `json:"geo_lat,omitempty"`
	GeoLon          *float64 `json:"geo_lon,omitempty"`
	GeoRadiusMeters float64  `json:"geo_radius_meters"`

	QRRotationMinutes      int `json:"qr_rotation_minutes"`
	DuplicateWindowMinutes int `json:"duplicate_window_minutes" validate:"gte=0"`

	ActiveHoursStart *string `json:"active_hours_start,omitempty" validate:"omitempty,len=5"`
	ActiveHoursEnd   *string `json:"active_hours_end,omitempty" validate:"omitempty,len=5"`
	ActiveDays       []int   `json:"active_days,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
}

func (req *StoreActionPointRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(req)
}

// UpdateActionPointRequest represents the request payload for editing an action point.
// Pointer fields distinguish "leave unchanged" from explicit zero values.
type UpdateActionPointRequest struct {
	Name          *string `json:"name,omitempty"`
	SecurityLevel *string `json:"security_level,omitempty" validate:"omitempty,oneof=standard elevated strict"`

	GeoLat          *float64 `json:"geo_lat,omitempty"`
	GeoLon          *float64 `json:"geo_lon,omitempty"`
	GeoRadiusMeters *float64 `json:"geo_radius_meters,omitempty"`

	QRRotationMinutes      *int `json:"qr_rotation_minutes,omitempty"`
	DuplicateWindowMinutes *int `json:"duplicate_window_minutes,omitempty" validate:"omitempty,gte=0"`

	ActiveHoursStart *string `json:"active_hours_start,omitempty" validate:"omitempty,len=5"`
	ActiveHoursEnd   *string `json:"active_hours_end,omitempty" validate:"omitempty,len=5"`
	ActiveDays       []int   `json:"active_days,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
}

func (req *UpdateActionPointRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(req)
}

// ListActionPointsQuery represents the supported list filters
type ListActionPointsQuery struct {
	ActionType string `query:"action_type"`
	QRMode     string `query:"qr_mode"`
	OnlyActive bool   `query:"only_active"`
}
