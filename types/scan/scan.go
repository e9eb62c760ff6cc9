package scan

import "github.com/go-playground/validator/v10"

// ValidateScanRequest represents the scan event submitted by a registered device
type ValidateScanRequest struct {
	Token    string `json:"token" validate:"required"`
	UserID   string `json:"user_id" validate:"required,max=64"`
	DeviceID string `json:"device_id" validate:"required,max=128"`

	GPSLat *float64 `json:"gps_lat,omitempty"`
	GPSLon *float64 `json:"gps_lon,omitempty"`

	// Attested is set by clients that passed platform device attestation;
	// required at strict action points.
	Attested bool `json:"attested"`

	ClientTimestamp string `json:"client_timestamp,omitempty"`

	// ScanEventID is the idempotency key; retries of the same scan must
	// reuse it.
	ScanEventID string `json:"scan_event_id" validate:"required,max=64"`
}

func (req *ValidateScanRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(req)
}

// ScanResultResponse is the wire result of a validation attempt. The
// validation_result values are a fixed contract with the mobile app and
// dashboards.
type ScanResultResponse struct {
	ValidationResult string `json:"validation_result"`
	RejectionReason  string `json:"rejection_reason,omitempty"`
	ActionPointID    uint   `json:"action_point_id,omitempty"`
	ActionType       string `json:"action_type,omitempty"`
	ScanEventID      string `json:"scan_event_id"`
	ServerTimestamp  string `json:"server_timestamp"`
}
